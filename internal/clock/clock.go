// Package clock does the lazy wall-clock accounting for a game: nothing ticks,
// the elapsed time is charged whenever a session is read for a decision.
package clock

import (
	"time"

	"github.com/park285/cheese-arena/internal/rules"
)

// Times holds the remaining seconds for each side.
type Times struct {
	White float64
	Black float64
}

// For returns the remaining time of c.
func (t Times) For(c rules.Color) float64 {
	if c == rules.Black {
		return t.Black
	}
	return t.White
}

// Flagged reports the first side whose clock reached zero, white first.
func (t Times) Flagged() (rules.Color, bool) {
	switch {
	case t.White <= 0:
		return rules.White, true
	case t.Black <= 0:
		return rules.Black, true
	default:
		return "", false
	}
}

// ApplyElapsed charges the time since lastMoveAt to the side to move and clamps
// both sides at zero. A clock running backwards charges nothing.
func ApplyElapsed(t Times, turn rules.Color, lastMoveAt, now time.Time) Times {
	elapsed := now.Sub(lastMoveAt).Seconds()
	if elapsed < 0 || lastMoveAt.IsZero() {
		elapsed = 0
	}
	if turn == rules.Black {
		t.Black -= elapsed
	} else {
		t.White -= elapsed
	}
	if t.White < 0 {
		t.White = 0
	}
	if t.Black < 0 {
		t.Black = 0
	}
	return t
}

// Initial returns both clocks set to minutes.
func Initial(minutes int) Times {
	secs := float64(minutes * 60)
	return Times{White: secs, Black: secs}
}
