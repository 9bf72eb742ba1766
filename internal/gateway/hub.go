package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

// conn is one websocket of a player. A player may hold several.
type conn struct {
	playerID string
	ws       *websocket.Conn
	send     chan chessdto.Frame
	done     chan struct{}
	once     sync.Once
}

func newConn(playerID string, ws *websocket.Conn) *conn {
	return &conn{playerID: playerID, ws: ws, send: make(chan chessdto.Frame, sendBuffer), done: make(chan struct{})}
}

func (c *conn) close(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close(code, reason)
	})
}

// enqueue never blocks; a client that stops reading is disconnected.
func (c *conn) enqueue(f chessdto.Frame) {
	select {
	case <-c.done:
	case c.send <- f:
	default:
		obslog.L().Warn("ws_slow_consumer", zap.String("player_id", c.playerID))
		go c.close(websocket.StatusPolicyViolation, "slow consumer")
	}
}

func (c *conn) writeLoop(ctx context.Context) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case f := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.ws, f)
			cancel()
			if err != nil {
				c.close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

// Hub maps players to their sockets and games to their players.
type Hub struct {
	mu      sync.RWMutex
	players map[string]map[*conn]struct{}
	games   map[string]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{players: make(map[string]map[*conn]struct{}), games: make(map[string]map[string]struct{})}
}

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.players[c.playerID]
	if !ok {
		set = make(map[*conn]struct{})
		h.players[c.playerID] = set
	}
	set[c] = struct{}{}
}

// remove reports whether c was the player's last socket.
func (h *Hub) remove(c *conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.players[c.playerID]
	delete(set, c)
	if len(set) > 0 {
		return false
	}
	delete(h.players, c.playerID)
	return true
}

func (h *Hub) joinGame(gameID string, playerIDs ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.games[gameID]
	if !ok {
		set = make(map[string]struct{})
		h.games[gameID] = set
	}
	for _, p := range playerIDs {
		set[p] = struct{}{}
	}
}

// leaveGames removes playerID from every game room.
func (h *Hub) leaveGames(playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.games {
		delete(set, playerID)
		if len(set) == 0 {
			delete(h.games, id)
		}
	}
}

func frame(event string, payload any) (chessdto.Frame, error) {
	f := chessdto.Frame{Event: event}
	if payload == nil {
		return f, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return f, err
	}
	f.Data = raw
	return f, nil
}

func (h *Hub) sendTo(playerID, event string, payload any) {
	f, err := frame(event, payload)
	if err != nil {
		obslog.L().Error("ws_encode_error", zap.String("event", event), zap.Error(err))
		return
	}
	h.mu.RLock()
	conns := make([]*conn, 0, len(h.players[playerID]))
	for c := range h.players[playerID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.enqueue(f)
	}
}

func (h *Hub) broadcast(gameID, event string, payload any) {
	h.mu.RLock()
	players := make([]string, 0, len(h.games[gameID]))
	for p := range h.games[gameID] {
		players = append(players, p)
	}
	h.mu.RUnlock()
	for _, p := range players {
		h.sendTo(p, event, payload)
	}
}
