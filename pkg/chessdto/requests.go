package chessdto

import "encoding/json"

// Frame is the envelope of every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinQueueRequest struct {
	TimeControl string `json:"timeControl"`
}

type JoinRoomRequest struct {
	RoomCode string `json:"roomCode"`
}

type PlayVsBotRequest struct {
	Difficulty string `json:"difficulty"`
}

type MoveRequest struct {
	GameID string `json:"gameId"`
	Move   Move   `json:"move"`
}
