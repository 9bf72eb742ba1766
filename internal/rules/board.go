package rules

import (
	nchess "github.com/corentings/chess/v2"
)

// Board is a mutable position with push/pop used by the bot search.
// It is not safe for concurrent use; a parallel search needs one Board per goroutine.
type Board struct {
	game  *nchess.Game
	stack []*nchess.Game
}

func (b *Board) Turn() Color { return colorOf(b.game.Position().Turn()) }

func (b *Board) FEN() string { return b.game.FEN() }

func (b *Board) LegalMoves() []Move { return legalMoves(b.game) }

// Push plays m. On error the board is unchanged.
func (b *Board) Push(m Move) error {
	next := b.game.Clone()
	if _, err := push(next, m); err != nil {
		return err
	}
	b.stack = append(b.stack, b.game)
	b.game = next
	return nil
}

// Pop reverts the most recent Push. It is a no-op at the root.
func (b *Board) Pop() {
	n := len(b.stack)
	if n == 0 {
		return
	}
	b.game = b.stack[n-1]
	b.stack[n-1] = nil
	b.stack = b.stack[:n-1]
}

func (b *Board) Terminal() bool { return statusOf(b.game).GameOver }

// Pieces calls fn for every occupied square.
func (b *Board) Pieces(fn func(c Color, k Kind)) {
	board := b.game.Position().Board()
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			piece := board.Piece(nchess.NewSquare(file, rank))
			if piece == nchess.NoPiece {
				continue
			}
			kind, ok := kindOf(piece.Type())
			if !ok {
				continue
			}
			fn(colorOf(piece.Color()), kind)
		}
	}
}

func kindOf(pt nchess.PieceType) (Kind, bool) {
	switch pt {
	case nchess.Pawn:
		return Pawn, true
	case nchess.Knight:
		return Knight, true
	case nchess.Bishop:
		return Bishop, true
	case nchess.Rook:
		return Rook, true
	case nchess.Queen:
		return Queen, true
	case nchess.King:
		return King, true
	default:
		return 0, false
	}
}
