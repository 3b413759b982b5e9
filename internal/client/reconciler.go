package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hebrewvocab/internal/gamedata"
	"hebrewvocab/internal/logging"
	"hebrewvocab/internal/players"
	"hebrewvocab/internal/rooms"
	"hebrewvocab/internal/rules"
)

const (
	DefaultPollInterval = time.Second
	DefaultRoundDelay   = 2 * time.Second
	actionTimeout       = 5 * time.Second
)

var ErrNoRoom = errors.New("not in a room")

type Screen string

const (
	ScreenWelcome  Screen = "welcome"
	ScreenLobby    Screen = "lobby"
	ScreenGame     Screen = "game"
	ScreenGameOver Screen = "gameover"
)

func screenFor(room gamedata.Room) Screen {
	switch room.Phase() {
	case gamedata.PhaseGameOver:
		return ScreenGameOver
	case gamedata.PhaseGame:
		return ScreenGame
	default:
		return ScreenLobby
	}
}

type Options struct {
	PollInterval time.Duration
	RoundDelay   time.Duration
	Now          func() time.Time
	AfterFunc    func(time.Duration, func())
	// OnScreen is called after every screen transition, outside any lock.
	OnScreen func(from, to Screen)
}

// Reconciler is one player's view of a room kept in sync by polling the
// key-value surface. Actions are read-modify-write on the last fetched copy
// with no isolation: two players writing at once lose one of the updates.
type Reconciler struct {
	kv       *KV
	opts     Options
	playerID string
	log      zerolog.Logger

	mu      sync.Mutex
	code    string
	room    gamedata.Room
	hasRoom bool
	screen  Screen
	// nextRoundFor is the round a pending advance was scheduled for.
	nextRoundFor int
}

func New(kv *KV, playerID string, opts Options) *Reconciler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.RoundDelay <= 0 {
		opts.RoundDelay = DefaultRoundDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	if playerID == "" {
		playerID = players.NewID()
	}
	return &Reconciler{
		kv:       kv,
		opts:     opts,
		playerID: playerID,
		log:      logging.Component("client").With().Str("player", playerID).Logger(),
		screen:   ScreenWelcome,
	}
}

func (r *Reconciler) PlayerID() string { return r.playerID }

func (r *Reconciler) Code() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.code
}

func (r *Reconciler) Screen() Screen {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.screen
}

// Room returns a copy of the last fetched or written state.
func (r *Reconciler) Room() (gamedata.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.room.Clone(), r.hasRoom
}

// Run polls the room every PollInterval until ctx is done. Fetch failures
// are logged and the next tick retries.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()
	for {
		if err := r.Poll(ctx); err != nil && ctx.Err() == nil {
			r.log.Warn().Err(err).Msg("poll failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll fetches the room once and replaces the local view with it.
func (r *Reconciler) Poll(ctx context.Context) error {
	code := r.Code()
	if code == "" {
		return nil
	}
	room, err := r.fetch(ctx, code)
	if err != nil {
		return err
	}
	r.apply(code, room)
	return nil
}

// CreateRoom opens a room under a fresh code and makes this player its host.
// The code is not checked against existing rooms.
func (r *Reconciler) CreateRoom(ctx context.Context, name string) (string, error) {
	room, err := rules.CreateRoom(r.playerID, name, r.opts.Now())
	if err != nil {
		return "", err
	}
	code, err := rooms.GenerateCode()
	if err != nil {
		return "", fmt.Errorf("generating room code: %w", err)
	}
	if err := r.write(ctx, code, room); err != nil {
		return "", err
	}
	r.log.Info().Str("code", code).Msg("room created")
	return code, nil
}

// JoinRoom fetches the room and adds this player unless already present.
func (r *Reconciler) JoinRoom(ctx context.Context, code, name string) error {
	code = rooms.NormalizeCode(code)
	if code == "" {
		return fmt.Errorf("%w: room code required", rules.ErrValidation)
	}
	if players.NormalizeName(name) == "" {
		return fmt.Errorf("%w: name required", rules.ErrValidation)
	}
	room, err := r.fetch(ctx, code)
	if err != nil {
		return err
	}
	room, err = rules.JoinRoom(room, r.playerID, name, r.opts.Now())
	if err != nil {
		return err
	}
	if err := r.write(ctx, code, room); err != nil {
		return err
	}
	r.log.Info().Str("code", code).Msg("joined room")
	return nil
}

func (r *Reconciler) ToggleReady(ctx context.Context) error {
	return r.modify(ctx, func(room gamedata.Room, now time.Time) (gamedata.Room, error) {
		return rules.ToggleReady(room, r.playerID, now), nil
	})
}

func (r *Reconciler) StartGame(ctx context.Context) error {
	return r.modify(ctx, func(room gamedata.Room, now time.Time) (gamedata.Room, error) {
		return rules.StartGame(room, r.playerID, now)
	})
}

func (r *Reconciler) UpdateInput(ctx context.Context, text string) error {
	return r.modify(ctx, func(room gamedata.Room, now time.Time) (gamedata.Room, error) {
		return rules.UpdateInput(room, r.playerID, text, now), nil
	})
}

// CheckWord submits a guess. When it leaves every player finished, the next
// round is written after RoundDelay.
func (r *Reconciler) CheckWord(ctx context.Context, text string) (rules.GuessResult, error) {
	var res rules.GuessResult
	err := r.modify(ctx, func(room gamedata.Room, now time.Time) (gamedata.Room, error) {
		out, gr, err := rules.CheckWord(room, r.playerID, text, now)
		res = gr
		return out, err
	})
	if err != nil {
		return rules.GuessResult{}, err
	}
	if res.AllFinished {
		room, _ := r.Room()
		r.scheduleNextRound(room.Round)
	}
	return res, nil
}

func (r *Reconciler) scheduleNextRound(round int) {
	r.mu.Lock()
	if r.nextRoundFor == round {
		r.mu.Unlock()
		return
	}
	r.nextRoundFor = round
	r.mu.Unlock()

	r.opts.AfterFunc(r.opts.RoundDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := r.nextRound(ctx, round); err != nil {
			r.log.Warn().Err(err).Int("round", round).Msg("next round failed")
		}
	})
}

// nextRound re-fetches the room and advances it if it is still on round.
func (r *Reconciler) nextRound(ctx context.Context, round int) error {
	code := r.Code()
	if code == "" {
		return ErrNoRoom
	}
	room, err := r.fetch(ctx, code)
	if err != nil {
		return err
	}
	if room.Round != round || room.GameOver {
		r.apply(code, room)
		return nil
	}
	return r.write(ctx, code, rules.AdvanceRound(room, r.opts.Now()))
}

func (r *Reconciler) modify(ctx context.Context, fn func(gamedata.Room, time.Time) (gamedata.Room, error)) error {
	r.mu.Lock()
	code, room, ok := r.code, r.room.Clone(), r.hasRoom
	r.mu.Unlock()
	if !ok {
		return ErrNoRoom
	}
	out, err := fn(room, r.opts.Now())
	if err != nil {
		return err
	}
	return r.write(ctx, code, out)
}

func (r *Reconciler) fetch(ctx context.Context, code string) (gamedata.Room, error) {
	raw, err := r.kv.Get(ctx, gamedata.RoomKey(code))
	if errors.Is(err, ErrNotFound) {
		return gamedata.Room{}, fmt.Errorf("%w: %s", rooms.ErrRoomNotFound, code)
	}
	if err != nil {
		return gamedata.Room{}, err
	}
	room, err := gamedata.Decode(raw)
	if err != nil {
		return gamedata.Room{}, fmt.Errorf("%w: %s: %w", rooms.ErrRoomNotFound, code, err)
	}
	return room, nil
}

// write stores the whole record and adopts it as the local view.
func (r *Reconciler) write(ctx context.Context, code string, room gamedata.Room) error {
	raw, err := gamedata.Encode(room)
	if err != nil {
		return fmt.Errorf("encoding room %s: %w", code, err)
	}
	if err := r.kv.Set(ctx, gamedata.RoomKey(code), raw); err != nil {
		r.log.Warn().Err(err).Str("code", code).Msg("save failed")
		return err
	}
	r.apply(code, room)
	return nil
}

func (r *Reconciler) apply(code string, room gamedata.Room) {
	r.mu.Lock()
	from := r.screen
	r.code = code
	r.room = room
	r.hasRoom = true
	r.screen = screenFor(room)
	to := r.screen
	r.mu.Unlock()

	if from != to {
		r.log.Debug().Str("code", code).Str("from", string(from)).Str("to", string(to)).Msg("screen changed")
		if r.opts.OnScreen != nil {
			r.opts.OnScreen(from, to)
		}
	}
}
