package game

import (
	"fmt"
	"time"

	"github.com/park285/cheese-arena/internal/clock"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/session"
)

// commitOutcome is what validating and applying a move did to a session.
type commitOutcome struct {
	timedOut bool
	status   rules.Status
}

// commitMove charges the clock, checks for a flag fall, checks the mover and
// applies m. On error sess is left untouched. A flag fall ends the session
// without consulting the rules engine.
func commitMove(eng *rules.Engine, sess *session.GameSession, mover rules.Color, m rules.Move, now time.Time) (commitOutcome, error) {
	turn, err := eng.Turn(sess.FEN)
	if err != nil {
		return commitOutcome{}, fmt.Errorf("%w: %w", session.ErrCorrupt, err)
	}
	times := clock.ApplyElapsed(sess.Times(), turn, sess.LastMoveAt, now)
	if flagged, ok := times.Flagged(); ok {
		sess.SetTimes(times)
		sess.LastMoveAt = now
		sess.End(flagged.Opponent(), session.ReasonTimeout)
		return commitOutcome{timedOut: true, status: rules.Status{Turn: turn, GameOver: true}}, nil
	}
	if mover != turn {
		return commitOutcome{}, ErrInvalidTurn
	}
	res, err := eng.Apply(sess.FEN, m)
	if err != nil {
		return commitOutcome{}, err
	}
	applyCommitted(sess, res, times, now)
	return commitOutcome{status: res.Status}, nil
}

// commitBotMove is commitMove for the engine side. The bot never loses on time
// by its own move; its clock is charged and clamped.
func commitBotMove(eng *rules.Engine, sess *session.GameSession, m rules.Move, now time.Time) (rules.Status, error) {
	turn, err := eng.Turn(sess.FEN)
	if err != nil {
		return rules.Status{}, fmt.Errorf("%w: %w", session.ErrCorrupt, err)
	}
	times := clock.ApplyElapsed(sess.Times(), turn, sess.LastMoveAt, now)
	res, err := eng.Apply(sess.FEN, m)
	if err != nil {
		return rules.Status{}, err
	}
	applyCommitted(sess, res, times, now)
	return res.Status, nil
}

func applyCommitted(sess *session.GameSession, res rules.Applied, times clock.Times, now time.Time) {
	played := res.Move
	sess.FEN = res.FEN
	sess.LastMove = &played
	sess.Moves = append(sess.Moves, played.UCI())
	sess.SetTimes(times)
	sess.LastMoveAt = now
	if res.Status.GameOver {
		reason := session.ReasonNone
		if res.Status.Checkmate {
			reason = session.ReasonCheckmate
		}
		sess.End(res.Status.Winner(), reason)
	}
}
