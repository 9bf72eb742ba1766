package game

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/session"
)

const botMoveTimeout = 30 * time.Second

// scheduleBot plays the bot's reply after BotMoveDelay. The caller's response
// is never held up by it.
func (s *Service) scheduleBot(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending.Add(1)
	time.AfterFunc(s.opts.BotMoveDelay, func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), botMoveTimeout)
		defer cancel()
		s.playBot(ctx, gameID)
	})
}

func (s *Service) playBot(ctx context.Context, gameID string) {
	unlock := s.locks.Lock(gameID)
	defer unlock()

	sess, err := s.store.GetSession(ctx, gameID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			obslog.L().Error("bot_move_load_error", zap.String("game_id", gameID), zap.Error(err))
		}
		return
	}
	if !sess.IsBotGame() || sess.Ended() {
		return
	}
	board, err := s.rules.NewBoard(sess.FEN)
	if err != nil {
		obslog.L().Error("bot_move_board_error", zap.String("game_id", gameID), zap.Error(err))
		return
	}
	if board.Turn() != rules.Black {
		return
	}

	started := time.Now()
	m, err := s.bot.Choose(board, sess.TimeControl.Bot)
	if err != nil {
		obslog.L().Warn("bot_move_none", zap.String("game_id", gameID), zap.Error(err))
		return
	}
	st, err := commitBotMove(s.rules, sess, m, s.opts.Now())
	if err != nil {
		obslog.L().Error("bot_move_apply_error", zap.String("game_id", gameID), zap.String("move", m.UCI()), zap.Error(err))
		return
	}
	if err := s.store.PutSession(ctx, gameID, sess, s.opts.SessionTTL); err != nil {
		obslog.L().Error("bot_move_save_error", zap.String("game_id", gameID), zap.Error(err))
		return
	}
	obslog.L().Info("bot_move",
		zap.String("game_id", gameID),
		zap.String("difficulty", string(sess.TimeControl.Bot)),
		zap.String("move", sess.LastMove.UCI()),
		zap.Duration("search", time.Since(started)),
		zap.Bool("game_over", st.GameOver),
	)
	if sess.Ended() {
		s.finish(sess)
	}

	s.mu.Lock()
	fn := s.onBotMove
	s.mu.Unlock()
	if fn != nil {
		fn(gameID, toMoveResult(sess, st.Turn))
	}
}
