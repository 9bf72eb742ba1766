package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-arena/internal/bot"
	"github.com/park285/cheese-arena/internal/game"
	"github.com/park285/cheese-arena/internal/matchmaking"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cat, err := msgcat.New("")
	require.NoError(t, err)
	store := session.NewStore(session.NewMemoryKV())
	svc := game.NewService(store, matchmaking.New(nil), rules.NewEngine(), bot.New(), game.Options{})
	srv := NewServer(svc, cat, Options{TimeControls: matchmaking.DefaultControls})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		svc.Close()
		_ = store.Close()
	})
	return ts
}

func dial(t *testing.T, ts *httptest.Server, playerID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?playerId=" + playerID
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func send(t *testing.T, c *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, c, chessdto.Frame{Event: event, Data: raw}))
}

func expect(t *testing.T, c *websocket.Conn, event string, dst any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var f chessdto.Frame
	require.NoError(t, wsjson.Read(ctx, c, &f))
	require.Equal(t, event, f.Event, "data: %s", f.Data)
	if dst != nil {
		require.NoError(t, json.Unmarshal(f.Data, dst))
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWSRequiresPlayerID(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQueueGameOverWebsocket(t *testing.T) {
	ts := newTestServer(t)

	a := dial(t, ts, "A")
	expect(t, a, EventLobbyStatus, nil)
	send(t, a, EventJoinQueue, chessdto.JoinQueueRequest{TimeControl: "5"})
	var st chessdto.Status
	expect(t, a, EventStatus, &st)
	require.Equal(t, "waiting", st.Status)
	require.Contains(t, st.Message, "5 min")

	b := dial(t, ts, "B")
	expect(t, b, EventLobbyStatus, nil)
	send(t, b, EventJoinQueue, chessdto.JoinQueueRequest{TimeControl: "5"})

	var startA, startB chessdto.GameStart
	expect(t, a, EventGameStart, &startA)
	expect(t, b, EventGameStart, &startB)
	require.Equal(t, "w", startA.Color)
	require.Equal(t, "b", startB.Color)
	require.Equal(t, startA.GameID, startB.GameID)
	require.Equal(t, 300.0, startA.WhiteTime)

	send(t, b, EventMakeMove, chessdto.MoveRequest{GameID: startA.GameID, Move: chessdto.Move{From: "e7", To: "e5"}})
	var rej chessdto.Error
	expect(t, b, EventError, &rej)
	require.Equal(t, chessdto.CodeInvalidTurn, rej.Code)

	send(t, a, EventMakeMove, chessdto.MoveRequest{GameID: startA.GameID, Move: chessdto.Move{From: "e2", To: "e4"}})
	var upA, upB chessdto.MoveResult
	expect(t, a, EventUpdateBoard, &upA)
	expect(t, b, EventUpdateBoard, &upB)
	require.Equal(t, "b", upA.Turn)
	require.Equal(t, upA.FEN, upB.FEN)

	send(t, b, EventResign, struct{}{})
	expect(t, a, EventUpdateBoard, &upA)
	require.True(t, upA.IsGameOver)
	require.Equal(t, "resign", upA.Reason)
	require.Equal(t, "w", upA.Winner)

	send(t, a, EventBackToMenu, struct{}{})
	expect(t, a, EventReturnedToMenu, nil)
}

func TestRoomErrorsReachOnlyRequester(t *testing.T) {
	ts := newTestServer(t)
	a := dial(t, ts, "A")
	expect(t, a, EventLobbyStatus, nil)

	send(t, a, EventCreateRoom, struct{}{})
	var rc chessdto.RoomCreated
	expect(t, a, EventRoomCreated, &rc)
	expect(t, a, EventStatus, nil)

	send(t, a, EventJoinRoom, chessdto.JoinRoomRequest{RoomCode: rc.RoomCode})
	var rej chessdto.Error
	expect(t, a, EventError, &rej)
	require.Equal(t, chessdto.CodeSelfRoomJoin, rej.Code)

	send(t, a, EventJoinRoom, chessdto.JoinRoomRequest{RoomCode: "nope00"})
	expect(t, a, EventError, &rej)
	require.Equal(t, chessdto.CodeNotFound, rej.Code)
	require.Contains(t, rej.Message, "nope00")

	send(t, a, "bogus", nil)
	expect(t, a, EventError, &rej)
	require.Equal(t, chessdto.CodeBadRequest, rej.Code)
}

func TestReconnectRestoresGame(t *testing.T) {
	ts := newTestServer(t)
	h := dial(t, ts, "H")
	expect(t, h, EventLobbyStatus, nil)
	send(t, h, EventPlayVsBot, chessdto.PlayVsBotRequest{Difficulty: "easy"})
	var start chessdto.GameStart
	expect(t, h, EventGameStart, &start)
	require.Equal(t, session.BotPlayerID, start.Opponent)

	h2 := dial(t, ts, "H")
	var rc chessdto.Reconnected
	expect(t, h2, EventReconnectGame, &rc)
	require.Equal(t, start.GameID, rc.GameID)
	require.Equal(t, "w", rc.Color)
}

func TestBotRepliesOverSocket(t *testing.T) {
	ts := newTestServer(t)
	h := dial(t, ts, "H")
	expect(t, h, EventLobbyStatus, nil)
	send(t, h, EventPlayVsBot, chessdto.PlayVsBotRequest{Difficulty: "medium"})
	var start chessdto.GameStart
	expect(t, h, EventGameStart, &start)

	send(t, h, EventMakeMove, chessdto.MoveRequest{GameID: start.GameID, Move: chessdto.Move{From: "e2", To: "e4"}})

	// The bot reply is not delayed here, so frames may interleave.
	var updates []chessdto.MoveResult
	var thinking bool
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		var f chessdto.Frame
		err := wsjson.Read(ctx, h, &f)
		cancel()
		require.NoError(t, err)
		switch f.Event {
		case EventUpdateBoard:
			var up chessdto.MoveResult
			require.NoError(t, json.Unmarshal(f.Data, &up))
			require.True(t, up.VsBot)
			updates = append(updates, up)
		case EventStatus:
			var st chessdto.Status
			require.NoError(t, json.Unmarshal(f.Data, &st))
			require.Equal(t, "bot_thinking", st.Status)
			thinking = true
		default:
			t.Fatalf("unexpected event %s: %s", f.Event, f.Data)
		}
	}
	require.True(t, thinking)
	require.Len(t, updates, 2)
	var human, reply chessdto.MoveResult
	for _, up := range updates {
		if up.Turn == "b" {
			human = up
		} else {
			reply = up
		}
	}
	require.Equal(t, "e2", human.LastMove.From)
	require.Equal(t, "w", reply.Turn)
	require.NotNil(t, reply.LastMove)
	require.Len(t, reply.LastMove.From, 2)
}
