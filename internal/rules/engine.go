package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Engine answers legality and state queries over FEN strings. It keeps no state.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

func (e *Engine) InitialFEN() string { return nchess.NewGame().FEN() }

func (e *Engine) Turn(fen string) (Color, error) {
	game, err := load(fen)
	if err != nil {
		return "", err
	}
	return colorOf(game.Position().Turn()), nil
}

func (e *Engine) LegalMoves(fen string) ([]Move, error) {
	game, err := load(fen)
	if err != nil {
		return nil, err
	}
	return legalMoves(game), nil
}

// Applied is the outcome of a committed move. Move carries the promotion
// piece actually used.
type Applied struct {
	FEN    string
	Move   Move
	Status Status
}

// Apply plays m on fen. A pawn reaching the last rank without a promotion
// letter is promoted to a queen.
func (e *Engine) Apply(fen string, m Move) (Applied, error) {
	game, err := load(fen)
	if err != nil {
		return Applied{}, err
	}
	played, err := push(game, m)
	if err != nil {
		return Applied{}, err
	}
	return Applied{FEN: game.FEN(), Move: played, Status: statusOf(game)}, nil
}

func (e *Engine) Status(fen string) (Status, error) {
	game, err := load(fen)
	if err != nil {
		return Status{}, err
	}
	return statusOf(game), nil
}

// NewBoard returns a mutable board positioned at fen.
func (e *Engine) NewBoard(fen string) (*Board, error) {
	game, err := load(fen)
	if err != nil {
		return nil, err
	}
	return &Board{game: game}, nil
}

// SAN replays uciMoves from the initial position and returns them in standard
// algebraic notation.
func (e *Engine) SAN(uciMoves []string) ([]string, error) {
	game := nchess.NewGame()
	out := make([]string, 0, len(uciMoves))
	for i, uci := range uciMoves {
		pos := game.Position()
		mv, err := nchess.UCINotation{}.Decode(pos, uci)
		if err != nil {
			return nil, fmt.Errorf("%w: move %d %q: %v", ErrIllegalMove, i+1, uci, err)
		}
		out = append(out, nchess.AlgebraicNotation{}.Encode(pos, mv))
		if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("%w: move %d %q: %v", ErrIllegalMove, i+1, uci, err)
		}
	}
	return out, nil
}

func load(fen string) (*nchess.Game, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return nchess.NewGame(), nil
	}
	option, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return nchess.NewGame(option), nil
}

func legalMoves(game *nchess.Game) []Move {
	valid := game.ValidMoves()
	out := make([]Move, 0, len(valid))
	for _, mv := range valid {
		m, err := ParseUCI(mv.String())
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

func push(game *nchess.Game, m Move) (Move, error) {
	if game.Outcome() != nchess.NoOutcome {
		return Move{}, ErrIllegalMove
	}
	want, err := ParseUCI(m.UCI())
	if err != nil {
		return Move{}, err
	}
	legal := legalMoves(game)
	if want.Promotion == "" && needsPromotion(legal, want) {
		want.Promotion = string(Queen)
	}
	for _, cand := range legal {
		if cand == want {
			if err := game.PushNotationMove(want.UCI(), nchess.UCINotation{}, nil); err != nil {
				return Move{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
			}
			return want, nil
		}
	}
	return Move{}, ErrIllegalMove
}

func needsPromotion(legal []Move, m Move) bool {
	for _, cand := range legal {
		if cand.From == m.From && cand.To == m.To && cand.Promotion != "" {
			return true
		}
	}
	return false
}

func statusOf(game *nchess.Game) Status {
	st := Status{Turn: colorOf(game.Position().Turn())}
	if game.Outcome() != nchess.NoOutcome {
		st.GameOver = true
		switch game.Method() {
		case nchess.Checkmate:
			st.Checkmate = true
		case nchess.Stalemate:
			st.Stalemate = true
		}
		return st
	}
	if len(game.ValidMoves()) == 0 {
		st.GameOver = true
	}
	return st
}

func colorOf(c nchess.Color) Color {
	if c == nchess.Black {
		return Black
	}
	return White
}
