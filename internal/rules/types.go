// Package rules adapts github.com/corentings/chess/v2 to the FEN-in/FEN-out
// queries used by the session engine and to a mutable board used by the bot search.
package rules

import (
	"errors"
	"strings"
)

var (
	ErrIllegalMove     = errors.New("illegal move")
	ErrInvalidPosition = errors.New("invalid position")
)

// Color is the side to move, encoded the way FEN does.
type Color string

const (
	White Color = "w"
	Black Color = "b"
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) Valid() bool { return c == White || c == Black }

// Kind is a piece type in lower-case FEN letters.
type Kind byte

const (
	Pawn   Kind = 'p'
	Knight Kind = 'n'
	Bishop Kind = 'b'
	Rook   Kind = 'r'
	Queen  Kind = 'q'
	King   Kind = 'k'
)

// Move is a source/destination pair with an optional promotion piece letter.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// UCI renders the move in long algebraic notation, e.g. e7e8q.
func (m Move) UCI() string {
	return strings.ToLower(strings.TrimSpace(m.From) + strings.TrimSpace(m.To) + strings.TrimSpace(m.Promotion))
}

func (m Move) String() string { return m.UCI() }

// ParseUCI splits a long algebraic move. It does not check legality.
func ParseUCI(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return Move{}, ErrIllegalMove
	}
	if !isSquare(s[0:2]) || !isSquare(s[2:4]) {
		return Move{}, ErrIllegalMove
	}
	m := Move{From: s[0:2], To: s[2:4]}
	if len(s) == 5 {
		switch Kind(s[4]) {
		case Knight, Bishop, Rook, Queen:
			m.Promotion = s[4:5]
		default:
			return Move{}, ErrIllegalMove
		}
	}
	return m, nil
}

func isSquare(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

// Status summarises a position after a move.
type Status struct {
	Turn      Color
	GameOver  bool
	Checkmate bool
	Stalemate bool
}

// Winner is the colour that delivered mate, or "" when there is none.
func (s Status) Winner() Color {
	if !s.Checkmate {
		return ""
	}
	return s.Turn.Opponent()
}
