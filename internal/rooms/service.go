package rooms

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hebrewvocab/internal/gamedata"
	"hebrewvocab/internal/kv"
	"hebrewvocab/internal/logging"
	"hebrewvocab/internal/metrics"
	"hebrewvocab/internal/rules"
)

var ErrRoomNotFound = errors.New("room not found")

// errUnchanged lets a transition decline to write without failing the call.
var errUnchanged = errors.New("unchanged")

const (
	maxCodeAttempts   = 10
	DefaultTTL        = 30 * time.Minute
	DefaultRoundDelay = 2 * time.Second
)

type Options struct {
	// TTL is how long a record may go without a write before Sweep drops it.
	TTL time.Duration
	// RoundDelay is the pause between the last player finishing and the
	// next word.
	RoundDelay time.Duration
	Now        func() time.Time
	AfterFunc  func(time.Duration, func())
	Metrics    *metrics.Metrics
}

// Service owns the room records in the KV store. Every operation runs
// read-decode-apply-encode-write under the room's lock, so concurrent
// callers never lose each other's updates.
type Service struct {
	store    *kv.Store
	opts     Options
	metrics  *metrics.Metrics
	log      zerolog.Logger
	sweepLog zerolog.Logger

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewService(store *kv.Store, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
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
	return &Service{
		store:    store,
		opts:     opts,
		metrics:  opts.Metrics,
		log:      logging.Component("rooms"),
		sweepLog: logging.Component("sweep"),
		rooms:    make(map[string]*Room),
	}
}

// Create opens a new room hosted by playerID. The code is checked against
// existing records and regenerated on collision.
func (s *Service) Create(playerID, name string) (string, gamedata.Room, error) {
	room, err := rules.CreateRoom(playerID, name, s.opts.Now())
	if err != nil {
		return "", gamedata.Room{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return "", gamedata.Room{}, fmt.Errorf("generating room code: %w", err)
		}
		if _, err := s.store.Get(gamedata.RoomKey(code)); err == nil {
			continue
		}
		if err := s.write(code, room); err != nil {
			return "", gamedata.Room{}, err
		}
		if _, ok := s.rooms[code]; !ok {
			s.rooms[code] = newRoom(code, s.opts.Now())
		}
		s.metrics.RoomCreated()
		s.log.Info().Str("code", code).Str("host", playerID).Msg("room created")
		return code, room, nil
	}
	return "", gamedata.Room{}, fmt.Errorf("failed to generate unique room code after %d attempts", maxCodeAttempts)
}

func (s *Service) Get(code string) (gamedata.Room, error) {
	code = NormalizeCode(code)
	if code == "" {
		return gamedata.Room{}, fmt.Errorf("%w: room code required", rules.ErrValidation)
	}
	return s.load(code)
}

func (s *Service) Join(code, playerID, name string) (gamedata.Room, error) {
	return s.mutate(code, func(room gamedata.Room, now time.Time) (gamedata.Room, error) {
		return rules.JoinRoom(room, playerID, name, now)
	})
}

func (s *Service) Ready(code, playerID string) (gamedata.Room, error) {
	return s.mutate(code, func(room gamedata.Room, now time.Time) (gamedata.Room, error) {
		if !room.Players.Has(playerID) || room.GameStarted {
			return room, errUnchanged
		}
		return rules.ToggleReady(room, playerID, now), nil
	})
}

func (s *Service) Start(code, playerID string) (gamedata.Room, error) {
	return s.mutate(code, func(room gamedata.Room, now time.Time) (gamedata.Room, error) {
		return rules.StartGame(room, playerID, now)
	})
}

func (s *Service) Input(code, playerID, text string) (gamedata.Room, error) {
	return s.mutate(code, func(room gamedata.Room, now time.Time) (gamedata.Room, error) {
		if _, ok := room.PlayerStates[playerID]; !ok {
			return room, errUnchanged
		}
		return rules.UpdateInput(room, playerID, text, now), nil
	})
}

// Guess checks a submission. When it leaves every player finished, the next
// round is scheduled after the round delay.
func (s *Service) Guess(code, playerID, text string) (gamedata.Room, rules.GuessResult, error) {
	var res rules.GuessResult
	room, err := s.mutate(code, func(room gamedata.Room, now time.Time) (gamedata.Room, error) {
		out, r, err := rules.CheckWord(room, playerID, text, now)
		res = r
		return out, err
	})
	if err != nil {
		return gamedata.Room{}, rules.GuessResult{}, err
	}
	s.metrics.Guess(string(res.Outcome))
	if res.AllFinished {
		s.scheduleAdvance(NormalizeCode(code), room.Round)
	}
	return room, res, nil
}

// scheduleAdvance arms one timer per round; repeated calls for the same
// round do nothing.
func (s *Service) scheduleAdvance(code string, round int) {
	r := s.lookup(code)
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.closed || r.advancing == round {
		r.mu.Unlock()
		return
	}
	r.advancing = round
	r.mu.Unlock()

	s.opts.AfterFunc(s.opts.RoundDelay, func() {
		if _, err := s.advance(code, round); err != nil {
			s.log.Warn().Err(err).Str("code", code).Int("round", round).Msg("advance round")
		}
	})
}

// advance moves past round if it is still the current, fully finished round.
// A round left unfinished, because someone joined during the delay, clears
// the guard so the next finishing guess can schedule again.
func (s *Service) advance(code string, round int) (gamedata.Room, error) {
	return s.mutateLocked(code, func(live *Room, room gamedata.Room, now time.Time) (gamedata.Room, error) {
		if room.Round != round || !room.GameStarted || room.GameOver {
			return room, errUnchanged
		}
		if !room.AllFinished() {
			if live.advancing == round {
				live.advancing = 0
			}
			return room, errUnchanged
		}
		out := rules.AdvanceRound(room, now)
		s.metrics.RoundAdvanced(out.GameOver)
		s.log.Info().Str("code", code).Int("round", out.Round).Bool("game_over", out.GameOver).Msg("round advanced")
		return out, nil
	})
}

// Subscribe returns the live side of an existing room for push delivery.
func (s *Service) Subscribe(code string) (*Room, gamedata.Room, error) {
	code = NormalizeCode(code)
	room, err := s.Get(code)
	if err != nil {
		return nil, gamedata.Room{}, err
	}
	return s.attach(code, room), room, nil
}

// Observe republishes a record written through the raw KV surface so push
// subscribers see changes made by polling clients too.
func (s *Service) Observe(key string) {
	code, ok := gamedata.CodeFromKey(key)
	if !ok {
		return
	}
	r := s.lookup(code)
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	room, err := s.load(code)
	if err != nil {
		s.detach(code, r)
		r.close()
		return
	}
	r.publish(room)
}

// Sweep deletes every room record that has not been written for longer than
// the TTL, or that no longer decodes. It returns the removed codes.
func (s *Service) Sweep(now time.Time) []string {
	var removed []string
	keys := s.store.Keys(gamedata.KeyPrefix())
	for _, key := range keys {
		code, _ := gamedata.CodeFromKey(key)
		r := s.lookup(code)
		if r != nil {
			r.mu.Lock()
		}
		if reason := s.staleReason(key, now); reason != "" {
			s.store.Delete(key)
			removed = append(removed, code)
			s.sweepLog.Info().Str("code", code).Str("reason", reason).Msg("swept room")
			if r != nil {
				s.detach(code, r)
				r.close()
			}
		}
		if r != nil {
			r.mu.Unlock()
		}
	}

	for code, r := range s.snapshot() {
		r.mu.Lock()
		if _, err := s.store.Get(gamedata.RoomKey(code)); errors.Is(err, kv.ErrNotFound) {
			s.detach(code, r)
			r.close()
		}
		r.mu.Unlock()
	}

	s.metrics.RoomsSwept(len(removed), len(keys)-len(removed))
	if len(removed) > 0 {
		s.sweepLog.Info().Int("count", len(removed)).Msg("sweep complete")
	}
	return removed
}

func (s *Service) staleReason(key string, now time.Time) string {
	raw, err := s.store.Get(key)
	if err != nil {
		return ""
	}
	room, err := gamedata.Decode(raw)
	if err != nil {
		return "undecodable"
	}
	if now.Sub(room.LastUpdated()) > s.opts.TTL {
		return "idle"
	}
	return ""
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.opts.Now())
		}
	}
}

// Close releases every live room. Records stay in the store.
func (s *Service) Close() {
	for code, r := range s.snapshot() {
		r.mu.Lock()
		s.detach(code, r)
		r.close()
		r.mu.Unlock()
	}
}

func (s *Service) mutate(code string, fn func(gamedata.Room, time.Time) (gamedata.Room, error)) (gamedata.Room, error) {
	return s.mutateLocked(code, func(_ *Room, room gamedata.Room, now time.Time) (gamedata.Room, error) {
		return fn(room, now)
	})
}

// mutateLocked is mutate with the live room passed to fn; its mu is held.
func (s *Service) mutateLocked(code string, fn func(*Room, gamedata.Room, time.Time) (gamedata.Room, error)) (gamedata.Room, error) {
	code = NormalizeCode(code)
	if code == "" {
		return gamedata.Room{}, fmt.Errorf("%w: room code required", rules.ErrValidation)
	}
	current, err := s.load(code)
	if err != nil {
		return gamedata.Room{}, err
	}
	r := s.attach(code, current)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return gamedata.Room{}, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	before, err := s.load(code)
	if err != nil {
		return gamedata.Room{}, err
	}
	after, err := fn(r, before, s.opts.Now())
	if errors.Is(err, errUnchanged) {
		return before, nil
	}
	if err != nil {
		return gamedata.Room{}, err
	}
	if err := s.write(code, after); err != nil {
		return gamedata.Room{}, err
	}
	r.publish(after)
	return after, nil
}

func (s *Service) load(code string) (gamedata.Room, error) {
	raw, err := s.store.Get(gamedata.RoomKey(code))
	if err != nil {
		return gamedata.Room{}, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	room, err := gamedata.Decode(raw)
	if err != nil {
		return gamedata.Room{}, fmt.Errorf("%w: %s: %w", ErrRoomNotFound, code, err)
	}
	return room, nil
}

func (s *Service) write(code string, room gamedata.Room) error {
	raw, err := gamedata.Encode(room)
	if err != nil {
		return fmt.Errorf("encoding room %s: %w", code, err)
	}
	s.store.Set(gamedata.RoomKey(code), raw)
	return nil
}

func (s *Service) attach(code string, room gamedata.Room) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code]
	if !ok {
		r = newRoom(code, s.opts.Now())
		r.phase = room.Phase()
		s.rooms[code] = r
	}
	return r
}

func (s *Service) lookup(code string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[code]
}

func (s *Service) detach(code string, r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms[code] == r {
		delete(s.rooms, code)
	}
}

func (s *Service) snapshot() map[string]*Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*Room, len(s.rooms))
	for code, r := range s.rooms {
		out[code] = r
	}
	return out
}
