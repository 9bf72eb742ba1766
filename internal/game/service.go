// Package game runs the player-facing operations: matchmaking, rooms, bot
// games, moves, resignation, leaving and reconnecting.
package game

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/bot"
	"github.com/park285/cheese-arena/internal/clock"
	"github.com/park285/cheese-arena/internal/matchmaking"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

var (
	ErrNotFound           = session.ErrNotFound
	ErrInvalidTimeControl = matchmaking.ErrInvalidTimeControl
	ErrIllegalMove        = rules.ErrIllegalMove
	ErrSelfRoomJoin       = errors.New("cannot join own room")
	ErrInvalidTurn        = errors.New("not your turn")
	ErrGameOver           = errors.New("game is over")
	ErrNotParticipant     = errors.New("not a participant of this game")
)

// Recorder receives every finished game. Archive and webhook sinks implement it.
type Recorder interface {
	Record(ctx context.Context, g chessdto.FinishedGame) error
}

// BotMoveFunc is called with the result of every committed bot move.
type BotMoveFunc func(gameID string, res chessdto.MoveResult)

// Options tunes a Service. Zero values fall back to the defaults.
type Options struct {
	SessionTTL   time.Duration
	RoomTTL      time.Duration
	RoomMinutes  int
	BotMinutes   int
	BotMoveDelay time.Duration
	Recorders    []Recorder

	Now   func() time.Time
	NewID func() string
}

func (o *Options) defaults() {
	if o.SessionTTL <= 0 {
		o.SessionTTL = session.DefaultSessionTTL
	}
	if o.RoomTTL <= 0 {
		o.RoomTTL = session.DefaultRoomTTL
	}
	if o.RoomMinutes <= 0 {
		o.RoomMinutes = 10
	}
	if o.BotMinutes <= 0 {
		o.BotMinutes = 10
	}
	if o.BotMoveDelay < 0 {
		o.BotMoveDelay = 0
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
}

// Service runs matchmaking, rooms and games on top of a session store.
type Service struct {
	store *session.Store
	queue *matchmaking.Queue
	rules *rules.Engine
	bot   *bot.Engine
	opts  Options

	locks keyedMutex

	mu        sync.Mutex
	closed    bool
	onBotMove BotMoveFunc
	pending   sync.WaitGroup
}

// NewService builds a Service; call Close on shutdown.
func NewService(store *session.Store, queue *matchmaking.Queue, eng *rules.Engine, ai *bot.Engine, opts Options) *Service {
	opts.defaults()
	return &Service{store: store, queue: queue, rules: eng, bot: ai, opts: opts}
}

// OnBotMove registers the receiver of bot move results.
func (s *Service) OnBotMove(fn BotMoveFunc) {
	s.mu.Lock()
	s.onBotMove = fn
	s.mu.Unlock()
}

// Close stops scheduling background work and waits for bot moves and
// recorders already in flight.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.pending.Wait()
	s.queue.Reset()
}

// goTracked runs fn in the background unless the service is closed.
func (s *Service) goTracked(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		fn()
	}()
	return true
}

// JoinQueue returns nil while the player waits and the started game once paired.
func (s *Service) JoinQueue(ctx context.Context, playerID, timeControl string) (*chessdto.Started, error) {
	res, err := s.queue.Join(playerID, timeControl)
	if err != nil {
		obslog.L().Warn("queue_join_error", zap.String("player_id", playerID), zap.String("time_control", timeControl), zap.Error(err))
		return nil, err
	}
	if !res.Paired {
		obslog.L().Info("queue_join", zap.String("player_id", playerID), zap.String("time_control", timeControl), zap.String("reason", "waiting"))
		return nil, nil
	}
	minutes, err := strconv.Atoi(timeControl)
	if err != nil || minutes <= 0 {
		s.queue.Requeue(res.Opponent, timeControl)
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeControl, timeControl)
	}
	started, err := s.startGame(ctx, res.Opponent, playerID, session.Minutes(minutes))
	if err != nil {
		s.queue.Requeue(res.Opponent, timeControl)
		return nil, err
	}
	return started, nil
}

// RemoveFromQueues drops the player from matchmaking, e.g. on disconnect.
func (s *Service) RemoveFromQueues(playerID string) {
	if s.queue.Remove(playerID) {
		obslog.L().Info("queue_leave", zap.String("player_id", playerID))
	}
}

func (s *Service) CreateRoom(ctx context.Context, playerID string) (string, error) {
	s.queue.Remove(playerID)
	code, err := session.NewRoomCode()
	if err != nil {
		return "", fmt.Errorf("room code: %w", err)
	}
	if err := s.store.CreateRoomInvite(ctx, code, playerID, s.opts.RoomTTL); err != nil {
		return "", err
	}
	obslog.L().Info("room_create", zap.String("code", code), zap.String("creator_id", playerID))
	return code, nil
}

// JoinRoom consumes the invite and starts a game with the creator as white.
func (s *Service) JoinRoom(ctx context.Context, playerID, code string) (*chessdto.Started, error) {
	creator, err := s.store.GetRoomInvite(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", code, err)
	}
	if creator == playerID {
		return nil, ErrSelfRoomJoin
	}
	creator, err = s.store.ConsumeRoomInvite(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", code, err)
	}
	s.queue.Remove(playerID)
	s.queue.Remove(creator)
	started, err := s.startGame(ctx, creator, playerID, session.Minutes(s.opts.RoomMinutes))
	if err != nil {
		return nil, err
	}
	obslog.L().Info("room_join", zap.String("code", code), zap.String("game_id", started.GameID), zap.String("user_id", playerID))
	return started, nil
}

func (s *Service) PlayVsBot(ctx context.Context, playerID, difficulty string) (*chessdto.Started, error) {
	s.queue.Remove(playerID)
	return s.startGame(ctx, playerID, session.BotPlayerID, session.BotGame(session.ParseDifficulty(difficulty), s.opts.BotMinutes))
}

func (s *Service) startGame(ctx context.Context, whiteID, blackID string, tc session.TimeControl) (*chessdto.Started, error) {
	now := s.opts.Now()
	sess := &session.GameSession{
		ID:          s.opts.NewID(),
		WhiteID:     whiteID,
		BlackID:     blackID,
		FEN:         s.rules.InitialFEN(),
		Moves:       []string{},
		TimeControl: tc,
		Status:      session.StatusActive,
		LastMoveAt:  now,
		CreatedAt:   now,
	}
	sess.SetTimes(clock.Initial(tc.Minutes))
	if err := s.store.CreateSession(ctx, sess, s.opts.SessionTTL); err != nil {
		obslog.L().Error("game_create_error", zap.String("white_id", whiteID), zap.String("black_id", blackID), zap.Error(err))
		return nil, fmt.Errorf("create session: %w", err)
	}
	for i, p := range []string{whiteID, blackID} {
		if err := s.store.SetPlayerPointer(ctx, p, sess.ID, s.opts.SessionTTL); err != nil {
			if i > 0 {
				_ = s.store.DeletePlayerPointer(ctx, whiteID)
			}
			_ = s.store.DeleteSession(ctx, sess.ID)
			obslog.L().Error("game_create_error", zap.String("game_id", sess.ID), zap.String("player_id", p), zap.Error(err))
			return nil, fmt.Errorf("player pointer: %w", err)
		}
	}
	obslog.L().Info("game_create",
		zap.String("game_id", sess.ID),
		zap.String("white_id", whiteID),
		zap.String("black_id", blackID),
		zap.String("time_control", tc.String()),
	)
	return toStarted(sess), nil
}

// MakeMove validates and commits a move. A flag fall is reported as a finished
// game, not as an error.
func (s *Service) MakeMove(ctx context.Context, gameID, playerID string, m rules.Move) (*chessdto.MoveResult, error) {
	unlock := s.locks.Lock(gameID)
	defer unlock()

	sess, err := s.store.GetSession(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", gameID, err)
	}
	color, err := participant(sess, playerID)
	if err != nil {
		return nil, err
	}
	if sess.Ended() {
		return nil, ErrGameOver
	}

	out, err := commitMove(s.rules, sess, color, m, s.opts.Now())
	if err != nil {
		obslog.L().Info("game_move_rejected", zap.String("game_id", gameID), zap.String("player_id", playerID), zap.String("move", m.UCI()), zap.Error(err))
		return nil, err
	}
	if err := s.store.PutSession(ctx, gameID, sess, s.opts.SessionTTL); err != nil {
		return nil, fmt.Errorf("save game %s: %w", gameID, err)
	}

	if out.timedOut {
		obslog.L().Info("game_timeout", zap.String("game_id", gameID), zap.String("winner", string(sess.Winner)))
	} else {
		obslog.L().Info("game_move",
			zap.String("game_id", gameID),
			zap.String("player_id", playerID),
			zap.String("move", sess.LastMove.UCI()),
			zap.Bool("game_over", out.status.GameOver),
		)
	}
	if sess.Ended() {
		s.finish(sess)
	} else if sess.IsBotGame() && out.status.Turn == rules.Black {
		s.scheduleBot(gameID)
	}
	res := toMoveResult(sess, out.status.Turn)
	return &res, nil
}

// Resign ends the player's current game in the opponent's favour.
func (s *Service) Resign(ctx context.Context, playerID string) (*chessdto.MoveResult, error) {
	gameID, err := s.store.GetPlayerPointer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("player %s: %w", playerID, err)
	}
	unlock := s.locks.Lock(gameID)
	defer unlock()

	sess, err := s.store.GetSession(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", gameID, err)
	}
	color, err := participant(sess, playerID)
	if err != nil {
		return nil, err
	}
	if sess.Ended() {
		return nil, ErrGameOver
	}
	turn, err := s.rules.Turn(sess.FEN)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w: %w", gameID, session.ErrCorrupt, err)
	}
	now := s.opts.Now()
	sess.SetTimes(clock.ApplyElapsed(sess.Times(), turn, sess.LastMoveAt, now))
	sess.LastMoveAt = now
	sess.End(color.Opponent(), session.ReasonResign)
	if err := s.store.PutSession(ctx, gameID, sess, s.opts.SessionTTL); err != nil {
		return nil, fmt.Errorf("save game %s: %w", gameID, err)
	}
	obslog.L().Info("game_resign", zap.String("game_id", gameID), zap.String("player_id", playerID))
	s.finish(sess)
	res := toMoveResult(sess, turn)
	return &res, nil
}

// BackToMenu detaches the player from queues and from its game. The session is
// deleted once nobody can come back to it.
func (s *Service) BackToMenu(ctx context.Context, playerID string) error {
	s.queue.Remove(playerID)
	gameID, err := s.store.GetPlayerPointer(ctx, playerID)
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(gameID)
	defer unlock()

	if err := s.store.DeletePlayerPointer(ctx, playerID); err != nil {
		return err
	}
	sess, err := s.store.GetSession(ctx, gameID)
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	drop := sess.Ended() || sess.IsBotGame()
	if !drop {
		opponent := sess.WhiteID
		if opponent == playerID {
			opponent = sess.BlackID
		}
		ptr, err := s.store.GetPlayerPointer(ctx, opponent)
		drop = err != nil || ptr != gameID
	}
	if drop {
		if err := s.store.DeleteSession(ctx, gameID); err != nil {
			return err
		}
	}
	obslog.L().Info("game_leave", zap.String("game_id", gameID), zap.String("player_id", playerID), zap.Bool("session_deleted", drop))
	return nil
}

// Connect returns the player's live game, or nil when it belongs in the lobby.
// Clocks in the answer include the time elapsed since the last move.
func (s *Service) Connect(ctx context.Context, playerID string) (*chessdto.Reconnected, error) {
	gameID, err := s.store.GetPlayerPointer(ctx, playerID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess, err := s.store.GetSession(ctx, gameID)
	if errors.Is(err, session.ErrNotFound) {
		_ = s.store.DeletePlayerPointer(ctx, playerID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	color, ok := sess.ColorOf(playerID)
	if !ok || sess.Ended() {
		_ = s.store.DeletePlayerPointer(ctx, playerID)
		return nil, nil
	}
	turn, err := s.rules.Turn(sess.FEN)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w: %w", gameID, session.ErrCorrupt, err)
	}
	times := clock.ApplyElapsed(sess.Times(), turn, sess.LastMoveAt, s.opts.Now())
	if sess.IsBotGame() && turn == rules.Black {
		s.scheduleBot(gameID)
	}
	obslog.L().Info("game_reconnect", zap.String("game_id", gameID), zap.String("player_id", playerID))
	return &chessdto.Reconnected{
		GameID:    gameID,
		FEN:       sess.FEN,
		Color:     string(color),
		LastMove:  toDTOMove(sess.LastMove),
		WhiteTime: times.White,
		BlackTime: times.Black,
	}, nil
}

func participant(sess *session.GameSession, playerID string) (rules.Color, error) {
	if playerID == session.BotPlayerID {
		return "", ErrNotParticipant
	}
	color, ok := sess.ColorOf(playerID)
	if !ok {
		return "", ErrNotParticipant
	}
	return color, nil
}

func (s *Service) finish(sess *session.GameSession) {
	if len(s.opts.Recorders) == 0 {
		return
	}
	g := chessdto.FinishedGame{
		GameID:      sess.ID,
		WhiteID:     sess.WhiteID,
		BlackID:     sess.BlackID,
		TimeControl: sess.TimeControl.String(),
		Winner:      string(sess.Winner),
		Reason:      string(sess.Reason),
		MovesUCI:    append([]string(nil), sess.Moves...),
		FinalFEN:    sess.FEN,
		WhiteTime:   sess.WhiteTime,
		BlackTime:   sess.BlackTime,
		StartedAt:   sess.CreatedAt,
		EndedAt:     sess.LastMoveAt,
	}
	record := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		for _, r := range s.opts.Recorders {
			if err := r.Record(ctx, g); err != nil {
				obslog.L().Error("game_record_error", zap.String("game_id", g.GameID), zap.Error(err))
			}
		}
	}
	if !s.goTracked(record) {
		record()
	}
}

func toStarted(sess *session.GameSession) *chessdto.Started {
	return &chessdto.Started{
		GameID:      sess.ID,
		White:       sess.WhiteID,
		Black:       sess.BlackID,
		FEN:         sess.FEN,
		WhiteTime:   sess.WhiteTime,
		BlackTime:   sess.BlackTime,
		TimeControl: sess.TimeControl.String(),
	}
}

func toMoveResult(sess *session.GameSession, turn rules.Color) chessdto.MoveResult {
	return chessdto.MoveResult{
		GameID:     sess.ID,
		FEN:        sess.FEN,
		Turn:       string(turn),
		IsGameOver: sess.Ended(),
		Winner:     string(sess.Winner),
		Reason:     string(sess.Reason),
		LastMove:   toDTOMove(sess.LastMove),
		WhiteTime:  sess.WhiteTime,
		BlackTime:  sess.BlackTime,
		VsBot:      sess.IsBotGame(),
	}
}

func toDTOMove(m *rules.Move) *chessdto.Move {
	if m == nil {
		return nil
	}
	return &chessdto.Move{From: m.From, To: m.To, Promotion: m.Promotion}
}
