package chessdto

type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// MoveResult is broadcast to the game after every committed move, resignation
// or detected timeout.
type MoveResult struct {
	GameID     string  `json:"gameId"`
	FEN        string  `json:"fen"`
	Turn       string  `json:"turn"`
	IsGameOver bool    `json:"isGameOver"`
	Winner     string  `json:"winner,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	LastMove   *Move   `json:"lastMove"`
	WhiteTime  float64 `json:"whiteTime"`
	BlackTime  float64 `json:"blackTime"`
	VsBot      bool    `json:"vsBot,omitempty"`
}
