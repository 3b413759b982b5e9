package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hebrewvocab/internal/config"
	"hebrewvocab/internal/gamedata"
	"hebrewvocab/internal/kv"
	"hebrewvocab/internal/metrics"
	"hebrewvocab/internal/rooms"
	"hebrewvocab/internal/rules"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	store := kv.NewStore()
	m := metrics.New()
	svc := rooms.NewService(store, rooms.Options{
		RoundDelay: 20 * time.Millisecond,
		Metrics:    m,
	})
	srv := New(store, svc, m, config.Default())
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		svc.Close()
		ts.Close()
	})
	return srv, ts
}

func newClientWithJar(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type roomBody struct {
	PlayerID string             `json:"playerId"`
	Code     string             `json:"code"`
	Phase    gamedata.Phase     `json:"phase"`
	Room     gamedata.Room      `json:"room"`
	Word     *json.RawMessage   `json:"word"`
	Result   *rules.GuessResult `json:"result"`
	Error    string             `json:"error"`
}

func createRoom(t *testing.T, client *http.Client, base, name string) roomBody {
	t.Helper()
	var out roomBody
	status := doJSON(t, client, http.MethodPost, base+"/rooms", map[string]string{"name": name}, &out)
	require.Equal(t, http.StatusCreated, status)
	return out
}

func TestStore_GetMissing(t *testing.T) {
	_, ts := newTestServer(t)
	client := newClientWithJar(t)

	var out map[string]string
	status := doJSON(t, client, http.MethodGet, ts.URL+"/store/room_NOPE", nil, &out)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "key not found", out["error"])
}

func TestStore_EmptyValueReadsAsMissing(t *testing.T) {
	_, ts := newTestServer(t)
	client := newClientWithJar(t)

	require.Equal(t, http.StatusOK, doJSON(t, client, http.MethodPost, ts.URL+"/api/storage/blank", map[string]string{"value": ""}, nil))

	var out map[string]string
	status := doJSON(t, client, http.MethodGet, ts.URL+"/api/storage/blank", nil, &out)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "key not found", out["error"])

	var list struct {
		Keys []string `json:"keys"`
	}
	doJSON(t, client, http.MethodGet, ts.URL+"/store", nil, &list)
	assert.Contains(t, list.Keys, "blank")
}

func TestStore_SetGetListDelete(t *testing.T) {
	_, ts := newTestServer(t)
	client := newClientWithJar(t)

	var set storeValue
	status := doJSON(t, client, http.MethodPost, ts.URL+"/api/storage/room_ABC234", map[string]string{"value": `{"x":1}`}, &set)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "room_ABC234", set.Key)

	status = doJSON(t, client, http.MethodPut, ts.URL+"/store/settings", map[string]string{"value": "on"}, nil)
	require.Equal(t, http.StatusOK, status)

	var got storeValue
	status = doJSON(t, client, http.MethodGet, ts.URL+"/store/room_ABC234", nil, &got)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, `{"x":1}`, got.Value)

	var list struct {
		Keys   []string `json:"keys"`
		Prefix string   `json:"prefix"`
	}
	status = doJSON(t, client, http.MethodGet, ts.URL+"/store?prefix=room_", nil, &list)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"room_ABC234"}, list.Keys)
	assert.Equal(t, "room_", list.Prefix)

	var del struct {
		Key     string `json:"key"`
		Deleted bool   `json:"deleted"`
	}
	status = doJSON(t, client, http.MethodDelete, ts.URL+"/api/storage/room_ABC234", nil, &del)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, del.Deleted)

	status = doJSON(t, client, http.MethodDelete, ts.URL+"/store/room_ABC234", nil, &del)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, del.Deleted)
}

func TestStore_SetRequiresValue(t *testing.T) {
	_, ts := newTestServer(t)
	client := newClientWithJar(t)

	status := doJSON(t, client, http.MethodPost, ts.URL+"/store/k", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/store/k", strings.NewReader("{nope"))
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRooms_CreateAndGet(t *testing.T) {
	srv, ts := newTestServer(t)
	client := newClientWithJar(t)

	created := createRoom(t, client, ts.URL, "Dana")
	assert.Len(t, created.Code, 6)
	assert.True(t, strings.HasPrefix(created.PlayerID, "player_"))
	assert.Equal(t, gamedata.PhaseLobby, created.Phase)
	require.Len(t, created.Room.Players, 1)

	raw, err := srv.Store.Get(gamedata.RoomKey(created.Code))
	require.NoError(t, err)
	assert.Contains(t, raw, `"name":"Dana"`)

	var got roomBody
	status := doJSON(t, client, http.MethodGet, ts.URL+"/rooms/"+strings.ToLower(created.Code), nil, &got)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, created.Code, got.Code)

	status = doJSON(t, client, http.MethodGet, ts.URL+"/rooms/NOPE99", nil, &got)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "room not found", got.Error)
}

func TestRooms_CreateRequiresName(t *testing.T) {
	_, ts := newTestServer(t)
	var out roomBody
	status := doJSON(t, newClientWithJar(t), http.MethodPost, ts.URL+"/rooms", map[string]string{"name": " "}, &out)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, out.Error)
}

func TestRooms_StartPreconditions(t *testing.T) {
	_, ts := newTestServer(t)
	dana := newClientWithJar(t)
	created := createRoom(t, dana, ts.URL, "Dana")

	var out roomBody
	status := doJSON(t, dana, http.MethodPost, ts.URL+"/rooms/"+created.Code+"/start", nil, &out)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, out.Error, "precondition")
}

func TestRooms_FullRoundOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)
	dana := newClientWithJar(t)
	avi := newClientWithJar(t)

	created := createRoom(t, dana, ts.URL, "Dana")
	base := ts.URL + "/rooms/" + created.Code

	var joined roomBody
	require.Equal(t, http.StatusOK, doJSON(t, avi, http.MethodPost, base+"/join", map[string]string{"name": "Avi"}, &joined))
	require.Len(t, joined.Room.Players, 2)

	// both identify through the cookie set on create/join
	require.Equal(t, http.StatusOK, doJSON(t, dana, http.MethodPost, base+"/ready", nil, nil))
	require.Equal(t, http.StatusOK, doJSON(t, avi, http.MethodPost, base+"/ready", nil, nil))

	var started roomBody
	require.Equal(t, http.StatusOK, doJSON(t, dana, http.MethodPost, base+"/start", nil, &started))
	assert.Equal(t, gamedata.PhaseGame, started.Phase)
	require.NotNil(t, started.Word)
	assert.Contains(t, string(*started.Word), `"length":3`)

	require.Equal(t, http.StatusOK, doJSON(t, avi, http.MethodPost, base+"/input", map[string]string{"text": "ב"}, nil))

	var guess roomBody
	require.Equal(t, http.StatusOK, doJSON(t, dana, http.MethodPost, base+"/guess", map[string]string{"text": "בית"}, &guess))
	require.NotNil(t, guess.Result)
	assert.Equal(t, rules.OutcomeSolved, guess.Result.Outcome)
	assert.Equal(t, 100, guess.Result.Points)

	var empty roomBody
	assert.Equal(t, http.StatusBadRequest, doJSON(t, avi, http.MethodPost, base+"/guess", map[string]string{"text": ""}, &empty))

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, doJSON(t, avi, http.MethodPost, base+"/guess", map[string]string{"text": "כלב"}, &guess))
	}
	assert.Equal(t, rules.OutcomeOutOfTries, guess.Result.Outcome)
	assert.True(t, guess.Result.AllFinished)

	assert.Eventually(t, func() bool {
		var cur roomBody
		doJSON(t, dana, http.MethodGet, base, nil, &cur)
		return cur.Room.Round == 2
	}, 2*time.Second, 20*time.Millisecond)

	var standings struct {
		Players []struct {
			PlayerID string `json:"playerId"`
			Score    int    `json:"score"`
			Rank     int    `json:"rank"`
		} `json:"players"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, dana, http.MethodGet, base+"/standings", nil, &standings))
	require.Len(t, standings.Players, 2)
	assert.Equal(t, created.PlayerID, standings.Players[0].PlayerID)
	assert.Equal(t, 100, standings.Players[0].Score)
}

func TestRooms_ActionWithoutPlayer(t *testing.T) {
	_, ts := newTestServer(t)
	created := createRoom(t, newClientWithJar(t), ts.URL, "Dana")

	var out roomBody
	status := doJSON(t, newClientWithJar(t), http.MethodPost, ts.URL+"/rooms/"+created.Code+"/ready", nil, &out)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRooms_QR(t *testing.T) {
	_, ts := newTestServer(t)
	client := newClientWithJar(t)
	created := createRoom(t, client, ts.URL, "Dana")

	resp, err := client.Get(ts.URL + "/rooms/" + created.Code + "/qr")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG")))

	resp, err = client.Get(ts.URL + "/rooms/NOPE99/qr")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJoinURL(t *testing.T) {
	s := &Server{}
	r := httptest.NewRequest(http.MethodGet, "http://vocab.local/rooms/ABC234/qr", nil)
	assert.Equal(t, "http://vocab.local/rooms/ABC234", s.joinURL(r, "ABC234"))

	r.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://vocab.local/rooms/ABC234", s.joinURL(r, "ABC234"))

	s.BaseURL = "https://play.example.com/"
	assert.Equal(t, "https://play.example.com/rooms/ABC234", s.joinURL(r, "ABC234"))
}

func TestEvents_StreamsStateAndPhase(t *testing.T) {
	_, ts := newTestServer(t)
	dana := newClientWithJar(t)
	avi := newClientWithJar(t)
	created := createRoom(t, dana, ts.URL, "Dana")
	base := ts.URL + "/rooms/" + created.Code

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan [2]string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		var event string
		for sc.Scan() {
			line := sc.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				events <- [2]string{event, strings.TrimPrefix(line, "data: ")}
			}
		}
		close(events)
	}()

	next := func() [2]string {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream ended")
			return ev
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
		}
		return [2]string{}
	}

	first := next()
	assert.Equal(t, "state", first[0])
	assert.Contains(t, first[1], created.Code)

	doJSON(t, avi, http.MethodPost, base+"/join", map[string]string{"name": "Avi"}, nil)
	assert.Equal(t, "state", next()[0])

	doJSON(t, dana, http.MethodPost, base+"/ready", nil, nil)
	next()
	doJSON(t, avi, http.MethodPost, base+"/ready", nil, nil)
	next()
	doJSON(t, dana, http.MethodPost, base+"/start", nil, nil)
	assert.Equal(t, "state", next()[0])
	phase := next()
	assert.Equal(t, "phase", phase[0])
	assert.JSONEq(t, `{"from":"lobby","to":"game"}`, phase[1])
}

func TestEvents_MissingRoom(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/rooms/NOPE99/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebsocket_StateAndCommands(t *testing.T) {
	_, ts := newTestServer(t)
	dana := newClientWithJar(t)
	created := createRoom(t, dana, ts.URL, "Dana")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/rooms/" + created.Code + "/ws?playerId=" + created.PlayerID
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	type serverMsg struct {
		Type  string          `json:"t"`
		Room  json.RawMessage `json:"room"`
		Error string          `json:"err"`
	}
	read := func() serverMsg {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg serverMsg
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	first := read()
	assert.Equal(t, "state", first.Type)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"t":"ready"}`)))
	msg := read()
	require.Equal(t, "state", msg.Type)
	var view struct {
		Room gamedata.Room `json:"room"`
	}
	require.NoError(t, json.Unmarshal(msg.Room, &view))
	require.Len(t, view.Room.Players, 1)
	assert.True(t, view.Room.Players[0].IsReady)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"t":"start"}`)))
	msg = read()
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "precondition")

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"t":"dance"}`)))
	msg = read()
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, errUnknownCommand.Error(), msg.Error)

	conn.Close(websocket.StatusNormalClosure, "")
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := newTestServer(t)
	client := newClientWithJar(t)

	var health map[string]any
	require.Equal(t, http.StatusOK, doJSON(t, client, http.MethodGet, ts.URL+"/health", nil, &health))
	assert.Equal(t, "ok", health["status"])

	createRoom(t, client, ts.URL, "Dana")

	resp, err := client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "hebrewvocab_rooms_created_total 1")
	assert.Contains(t, string(body), "hebrewvocab_http_requests_total")
}
