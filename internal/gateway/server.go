// Package gateway is the websocket transport: it maps a socket to a player id,
// forwards player events to the game service and fans results out to the
// players of a game.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-arena/internal/game"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

// Server and client event names.
const (
	EventJoinQueue  = "joinQueue"
	EventCreateRoom = "createRoom"
	EventJoinRoom   = "joinRoom"
	EventMakeMove   = "makeMove"
	EventPlayVsBot  = "playVsBot"
	EventResign     = "resign"
	EventBackToMenu = "backToMenu"

	EventLobbyStatus    = "lobbyStatus"
	EventReconnectGame  = "reconnectGame"
	EventStatus         = "status"
	EventRoomCreated    = "roomCreated"
	EventGameStart      = "gameStart"
	EventUpdateBoard    = "updateBoard"
	EventReturnedToMenu = "returnedToMenu"
	EventError          = "error"
)

const opTimeout = 10 * time.Second

// Service is the part of game.Service the transport drives.
type Service interface {
	JoinQueue(ctx context.Context, playerID, timeControl string) (*chessdto.Started, error)
	CreateRoom(ctx context.Context, playerID string) (string, error)
	JoinRoom(ctx context.Context, playerID, code string) (*chessdto.Started, error)
	PlayVsBot(ctx context.Context, playerID, difficulty string) (*chessdto.Started, error)
	MakeMove(ctx context.Context, gameID, playerID string, m rules.Move) (*chessdto.MoveResult, error)
	Resign(ctx context.Context, playerID string) (*chessdto.MoveResult, error)
	BackToMenu(ctx context.Context, playerID string) error
	Connect(ctx context.Context, playerID string) (*chessdto.Reconnected, error)
	RemoveFromQueues(playerID string)
	OnBotMove(fn game.BotMoveFunc)
}

type Options struct {
	AllowedOrigins []string
	TimeControls   []string
	Health         func(ctx context.Context) error
}

type Server struct {
	svc  Service
	cat  *msgcat.Catalog
	hub  *Hub
	opts Options
}

func NewServer(svc Service, cat *msgcat.Catalog, opts Options) *Server {
	s := &Server{svc: svc, cat: cat, hub: NewHub(), opts: opts}
	svc.OnBotMove(func(gameID string, res chessdto.MoveResult) {
		s.hub.broadcast(gameID, EventUpdateBoard, res)
	})
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWS)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}
	if s.opts.Health != nil {
		if err := s.opts.Health(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]string{"status": "unavailable", "error": err.Error()}
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	playerID := strings.TrimSpace(r.URL.Query().Get("playerId"))
	if playerID == "" || playerID == session.BotPlayerID {
		http.Error(w, "playerId is required", http.StatusBadRequest)
		return
	}
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.opts.AllowedOrigins})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("player_id", playerID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	c := newConn(playerID, ws)
	s.hub.add(c)
	go c.writeLoop(ctx)
	obslog.L().Info("ws_connect", zap.String("player_id", playerID))

	defer func() {
		if s.hub.remove(c) {
			s.hub.leaveGames(playerID)
			s.svc.RemoveFromQueues(playerID)
		}
		c.close(websocket.StatusNormalClosure, "")
		obslog.L().Info("ws_disconnect", zap.String("player_id", playerID))
	}()

	s.greet(ctx, c)
	for {
		var f chessdto.Frame
		if err := wsjson.Read(ctx, ws, &f); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				obslog.L().Debug("ws_read_error", zap.String("player_id", playerID), zap.Error(err))
			}
			return
		}
		s.dispatch(ctx, c, f)
	}
}

func (s *Server) greet(ctx context.Context, c *conn) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	rc, err := s.svc.Connect(opCtx, c.playerID)
	if err != nil {
		s.reject(c, err)
		return
	}
	if rc == nil {
		s.hub.sendTo(c.playerID, EventLobbyStatus, chessdto.Lobby{Status: "lobby"})
		return
	}
	s.hub.joinGame(rc.GameID, c.playerID)
	s.hub.sendTo(c.playerID, EventReconnectGame, rc)
}

func (s *Server) dispatch(ctx context.Context, c *conn, f chessdto.Frame) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	player := c.playerID

	switch f.Event {
	case EventJoinQueue:
		var req chessdto.JoinQueueRequest
		if !s.decode(c, f, &req) {
			return
		}
		started, err := s.svc.JoinQueue(opCtx, player, strings.TrimSpace(req.TimeControl))
		if err != nil {
			s.reject(c, err, "TimeControl", req.TimeControl)
			return
		}
		if started == nil {
			s.hub.sendTo(player, EventStatus, chessdto.Status{
				Status:  "waiting",
				Message: s.cat.Text("status.waiting", map[string]any{"TimeControl": req.TimeControl}),
			})
			return
		}
		s.startGame(started)

	case EventCreateRoom:
		code, err := s.svc.CreateRoom(opCtx, player)
		if err != nil {
			s.reject(c, err)
			return
		}
		s.hub.sendTo(player, EventRoomCreated, chessdto.RoomCreated{RoomCode: code})
		s.hub.sendTo(player, EventStatus, chessdto.Status{
			Status:  "room_waiting",
			Message: s.cat.Text("status.room_waiting", map[string]any{"RoomCode": code}),
		})

	case EventJoinRoom:
		var req chessdto.JoinRoomRequest
		if !s.decode(c, f, &req) {
			return
		}
		started, err := s.svc.JoinRoom(opCtx, player, strings.ToUpper(strings.TrimSpace(req.RoomCode)))
		if err != nil {
			s.reject(c, err, "RoomCode", req.RoomCode)
			return
		}
		s.startGame(started)

	case EventPlayVsBot:
		var req chessdto.PlayVsBotRequest
		if len(f.Data) > 0 && !s.decode(c, f, &req) {
			return
		}
		started, err := s.svc.PlayVsBot(opCtx, player, req.Difficulty)
		if err != nil {
			s.reject(c, err)
			return
		}
		s.startGame(started)

	case EventMakeMove:
		var req chessdto.MoveRequest
		if !s.decode(c, f, &req) {
			return
		}
		m := rules.Move{From: req.Move.From, To: req.Move.To, Promotion: req.Move.Promotion}
		res, err := s.svc.MakeMove(opCtx, req.GameID, player, m)
		if err != nil {
			s.reject(c, err, "Move", m.UCI())
			return
		}
		s.hub.broadcast(req.GameID, EventUpdateBoard, res)
		if !res.IsGameOver && res.VsBot && res.Turn == string(rules.Black) {
			s.hub.sendTo(player, EventStatus, chessdto.Status{Status: "bot_thinking", Message: s.cat.Text("status.bot_thinking", nil)})
		}

	case EventResign:
		res, err := s.svc.Resign(opCtx, player)
		if err != nil {
			s.reject(c, err)
			return
		}
		s.hub.broadcast(res.GameID, EventUpdateBoard, res)

	case EventBackToMenu:
		if err := s.svc.BackToMenu(opCtx, player); err != nil {
			s.reject(c, err)
			return
		}
		s.hub.leaveGames(player)
		s.hub.sendTo(player, EventReturnedToMenu, chessdto.ReturnedToMenu{OK: true, Message: s.cat.Text("status.returned", nil)})

	default:
		s.hub.sendTo(player, EventError, chessdto.Error{Code: chessdto.CodeBadRequest, Message: s.cat.Text("error.bad_request", nil)})
	}
}

func (s *Server) startGame(st *chessdto.Started) {
	if st.Black == session.BotPlayerID {
		s.hub.joinGame(st.GameID, st.White)
	} else {
		s.hub.joinGame(st.GameID, st.White, st.Black)
	}
	s.hub.sendTo(st.White, EventGameStart, chessdto.GameStart{
		GameID: st.GameID, Color: string(rules.White), Opponent: st.Black,
		FEN: st.FEN, WhiteTime: st.WhiteTime, BlackTime: st.BlackTime, TimeControl: st.TimeControl,
	})
	if st.Black != session.BotPlayerID {
		s.hub.sendTo(st.Black, EventGameStart, chessdto.GameStart{
			GameID: st.GameID, Color: string(rules.Black), Opponent: st.White,
			FEN: st.FEN, WhiteTime: st.WhiteTime, BlackTime: st.BlackTime, TimeControl: st.TimeControl,
		})
	}
}

func (s *Server) decode(c *conn, f chessdto.Frame, dst any) bool {
	if err := json.Unmarshal(f.Data, dst); err != nil {
		s.hub.sendTo(c.playerID, EventError, chessdto.Error{Code: chessdto.CodeBadRequest, Message: s.cat.Text("error.bad_request", nil)})
		return false
	}
	return true
}

// reject answers the requesting player only. kv pairs feed the message template.
func (s *Server) reject(c *conn, err error, kv ...string) {
	data := map[string]any{"Controls": strings.Join(s.opts.TimeControls, ", ")}
	for i := 0; i+1 < len(kv); i += 2 {
		data[kv[i]] = kv[i+1]
	}
	code, key := classify(err)
	if code == chessdto.CodeNotFound {
		if rc, ok := data["RoomCode"]; ok && rc != "" {
			key = "error.room_not_found"
		}
	}
	if code == chessdto.CodeInternal {
		obslog.L().Error("ws_op_error", zap.String("player_id", c.playerID), zap.Error(err))
	}
	s.hub.sendTo(c.playerID, EventError, chessdto.Error{Code: code, Message: s.cat.Text(key, data)})
}

func classify(err error) (code, key string) {
	switch {
	case errors.Is(err, game.ErrInvalidTimeControl):
		code = chessdto.CodeInvalidTimeControl
	case errors.Is(err, game.ErrSelfRoomJoin):
		code = chessdto.CodeSelfRoomJoin
	case errors.Is(err, game.ErrInvalidTurn):
		code = chessdto.CodeInvalidTurn
	case errors.Is(err, game.ErrIllegalMove):
		code = chessdto.CodeIllegalMove
	case errors.Is(err, game.ErrGameOver):
		code = chessdto.CodeGameOver
	case errors.Is(err, game.ErrNotParticipant):
		code = chessdto.CodeNotParticipant
	case errors.Is(err, game.ErrNotFound):
		code = chessdto.CodeNotFound
	default:
		code = chessdto.CodeInternal
	}
	return code, "error." + code
}
