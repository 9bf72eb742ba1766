package chessdto

// Error codes sent with the "error" event.
const (
	CodeNotFound           = "not_found"
	CodeInvalidTimeControl = "invalid_time_control"
	CodeSelfRoomJoin       = "self_room_join"
	CodeInvalidTurn        = "invalid_turn"
	CodeIllegalMove        = "illegal_move"
	CodeGameOver           = "game_over"
	CodeNotParticipant     = "not_participant"
	CodeBadRequest         = "bad_request"
	CodeInternal           = "internal"
)

// Error is the rejection returned to the requesting player only.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "chess service error"
}
