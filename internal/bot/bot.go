// Package bot picks moves for the AI opponent: a random legal move on easy,
// minimax with alpha-beta pruning over material on medium and hard.
package bot

import (
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/session"
)

var ErrNoMoves = errors.New("no legal moves")

// Position is the mutable board the search walks with push/pop.
// rules.Board implements it. A Position must not be shared between searches.
type Position interface {
	Turn() rules.Color
	LegalMoves() []rules.Move
	Push(m rules.Move) error
	Pop()
	Terminal() bool
	Pieces(fn func(c rules.Color, k rules.Kind))
}

var pieceValues = map[rules.Kind]int{
	rules.Pawn:   10,
	rules.Knight: 30,
	rules.Bishop: 30,
	rules.Rook:   50,
	rules.Queen:  90,
	rules.King:   900,
}

// Evaluate sums material, positive for side.
func Evaluate(pos Position, side rules.Color) int {
	score := 0
	pos.Pieces(func(c rules.Color, k rules.Kind) {
		if c == side {
			score += pieceValues[k]
		} else {
			score -= pieceValues[k]
		}
	})
	return score
}

// Depth is the search depth of a difficulty; zero means random play.
func Depth(d session.Difficulty) int {
	switch d {
	case session.Medium:
		return 2
	case session.Hard:
		return 3
	default:
		return 0
	}
}

type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns an engine seeded from the wall clock.
func New() *Engine {
	now := uint64(time.Now().UnixNano())
	return NewWithRand(rand.New(rand.NewPCG(now, now>>1|1)))
}

// NewWithRand uses rng for move shuffling and random play.
func NewWithRand(rng *rand.Rand) *Engine {
	return &Engine{rng: rng}
}

// Choose returns the move for the side to move at difficulty d.
func (e *Engine) Choose(pos Position, d session.Difficulty) (rules.Move, error) {
	depth := Depth(d)
	if depth == 0 {
		moves := pos.LegalMoves()
		if len(moves) == 0 {
			return rules.Move{}, ErrNoMoves
		}
		return moves[e.intN(len(moves))], nil
	}
	m, _, err := e.Search(pos, depth)
	return m, err
}

// Search runs alpha-beta to depth and returns the first move with the highest
// value for the side to move, together with that value.
func (e *Engine) Search(pos Position, depth int) (rules.Move, int, error) {
	side := pos.Turn()
	moves := e.shuffled(pos.LegalMoves())
	if len(moves) == 0 {
		return rules.Move{}, 0, ErrNoMoves
	}
	var (
		best     rules.Move
		bestVal  = math.MinInt
		alpha    = math.MinInt
		beta     = math.MaxInt
		searched bool
	)
	for _, m := range moves {
		if pos.Push(m) != nil {
			continue
		}
		v := e.alphaBeta(pos, depth-1, alpha, beta, false, side)
		pos.Pop()
		if !searched || v > bestVal {
			best, bestVal, searched = m, v, true
		}
		alpha = max(alpha, bestVal)
	}
	if !searched {
		return rules.Move{}, 0, ErrNoMoves
	}
	return best, bestVal, nil
}

func (e *Engine) alphaBeta(pos Position, depth, alpha, beta int, maximizing bool, side rules.Color) int {
	if depth <= 0 || pos.Terminal() {
		return Evaluate(pos, side)
	}
	moves := e.shuffled(pos.LegalMoves())
	if maximizing {
		v := math.MinInt
		for _, m := range moves {
			if pos.Push(m) != nil {
				continue
			}
			v = max(v, e.alphaBeta(pos, depth-1, alpha, beta, false, side))
			pos.Pop()
			alpha = max(alpha, v)
			if beta <= alpha {
				break
			}
		}
		if v == math.MinInt {
			return Evaluate(pos, side)
		}
		return v
	}
	v := math.MaxInt
	for _, m := range moves {
		if pos.Push(m) != nil {
			continue
		}
		v = min(v, e.alphaBeta(pos, depth-1, alpha, beta, true, side))
		pos.Pop()
		beta = min(beta, v)
		if beta <= alpha {
			break
		}
	}
	if v == math.MaxInt {
		return Evaluate(pos, side)
	}
	return v
}

// Minimax is the exhaustive search without pruning. The root maximizes for side
// when maximizing is true.
func Minimax(pos Position, depth int, maximizing bool, side rules.Color) int {
	if depth <= 0 || pos.Terminal() {
		return Evaluate(pos, side)
	}
	best, seen := 0, false
	for _, m := range pos.LegalMoves() {
		if pos.Push(m) != nil {
			continue
		}
		v := Minimax(pos, depth-1, !maximizing, side)
		pos.Pop()
		if !seen || (maximizing && v > best) || (!maximizing && v < best) {
			best, seen = v, true
		}
	}
	if !seen {
		return Evaluate(pos, side)
	}
	return best
}

func (e *Engine) shuffled(moves []rules.Move) []rules.Move {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rng.Shuffle(len(moves), func(i, j int) { moves[i], moves[j] = moves[j], moves[i] })
	return moves
}

func (e *Engine) intN(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.IntN(n)
}
