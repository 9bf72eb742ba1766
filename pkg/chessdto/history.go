package chessdto

import "time"

// FinishedGame is the record archived and announced when a game ends.
type FinishedGame struct {
	GameID      string    `json:"gameId"`
	WhiteID     string    `json:"white"`
	BlackID     string    `json:"black"`
	TimeControl string    `json:"timeControl"`
	Winner      string    `json:"winner,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	MovesUCI    []string  `json:"moves"`
	FinalFEN    string    `json:"fen"`
	WhiteTime   float64   `json:"whiteTime"`
	BlackTime   float64   `json:"blackTime"`
	StartedAt   time.Time `json:"startedAt"`
	EndedAt     time.Time `json:"endedAt"`
}

func (g FinishedGame) Duration() time.Duration {
	if g.StartedAt.IsZero() || g.EndedAt.Before(g.StartedAt) {
		return 0
	}
	return g.EndedAt.Sub(g.StartedAt)
}
