package chessdto

// Started is sent to both players when a game begins.
type Started struct {
	GameID      string  `json:"gameId"`
	White       string  `json:"white"`
	Black       string  `json:"black"`
	FEN         string  `json:"fen"`
	WhiteTime   float64 `json:"whiteTime"`
	BlackTime   float64 `json:"blackTime"`
	TimeControl string  `json:"timeControl"`
}

// Reconnected restores a player's view of an in-progress game.
type Reconnected struct {
	GameID    string  `json:"gameId"`
	FEN       string  `json:"fen"`
	Color     string  `json:"color"`
	LastMove  *Move   `json:"lastMove"`
	WhiteTime float64 `json:"whiteTime"`
	BlackTime float64 `json:"blackTime"`
}

// Lobby tells a player it has no live game.
type Lobby struct {
	Status string `json:"status"`
}

// Status carries a human readable notice such as "waiting for opponent".
type Status struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type RoomCreated struct {
	RoomCode string `json:"roomCode"`
}

type ReturnedToMenu struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// GameStart is the per-player view of Started, carrying the player's colour.
type GameStart struct {
	GameID      string  `json:"gameId"`
	Color       string  `json:"color"`
	Opponent    string  `json:"opponent"`
	FEN         string  `json:"fen"`
	WhiteTime   float64 `json:"whiteTime"`
	BlackTime   float64 `json:"blackTime"`
	TimeControl string  `json:"timeControl"`
}
