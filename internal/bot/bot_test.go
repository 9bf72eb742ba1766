package bot

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/session"
)

// treeNode is a synthetic game tree; leaves score by black pawns minus white pawns.
type treeNode struct {
	children []*treeNode
	black    int
	white    int
}

type treePosition struct {
	root  *treeNode
	path  []*treeNode
	turn0 rules.Color
}

func newTreePosition(root *treeNode) *treePosition {
	return &treePosition{root: root, path: []*treeNode{root}, turn0: rules.Black}
}

func (p *treePosition) cur() *treeNode { return p.path[len(p.path)-1] }

func (p *treePosition) Turn() rules.Color {
	if (len(p.path)-1)%2 == 0 {
		return p.turn0
	}
	return p.turn0.Opponent()
}

func (p *treePosition) LegalMoves() []rules.Move {
	out := make([]rules.Move, len(p.cur().children))
	for i := range out {
		out[i] = rules.Move{From: "a1", To: fmt.Sprintf("%d", i)}
	}
	return out
}

func (p *treePosition) Push(m rules.Move) error {
	var i int
	if _, err := fmt.Sscanf(m.To, "%d", &i); err != nil || i < 0 || i >= len(p.cur().children) {
		return rules.ErrIllegalMove
	}
	p.path = append(p.path, p.cur().children[i])
	return nil
}

func (p *treePosition) Pop() {
	if len(p.path) > 1 {
		p.path = p.path[:len(p.path)-1]
	}
}

func (p *treePosition) Terminal() bool { return len(p.cur().children) == 0 }

func (p *treePosition) Pieces(fn func(rules.Color, rules.Kind)) {
	for i := 0; i < p.cur().black; i++ {
		fn(rules.Black, rules.Pawn)
	}
	for i := 0; i < p.cur().white; i++ {
		fn(rules.White, rules.Pawn)
	}
}

func randomTree(rng *rand.Rand, depth, width int) *treeNode {
	n := &treeNode{black: rng.IntN(10), white: rng.IntN(10)}
	if depth == 0 {
		return n
	}
	for i := 0; i < 1+rng.IntN(width); i++ {
		n.children = append(n.children, randomTree(rng, depth-1, width))
	}
	return n
}

func TestAlphaBetaMatchesMinimaxOnRandomTrees(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 50; i++ {
		root := randomTree(rng, 4, 5)
		for depth := 1; depth <= 4; depth++ {
			want := Minimax(newTreePosition(root), depth, true, rules.Black)
			e := NewWithRand(rand.New(rand.NewPCG(uint64(i), uint64(depth))))
			_, got, err := e.Search(newTreePosition(root), depth)
			require.NoError(t, err)
			require.Equal(t, want, got, "tree %d depth %d", i, depth)
		}
	}
}

func TestSearchPicksBestMoveOnFixedTree(t *testing.T) {
	// Black to move. Move 0 lets white pick a leaf worth -20, move 1 guarantees +10.
	root := &treeNode{children: []*treeNode{
		{children: []*treeNode{{black: 5}, {white: 2}}},
		{children: []*treeNode{{black: 1}, {black: 3}}},
	}}
	_, v, err := NewWithRand(rand.New(rand.NewPCG(1, 2))).Search(newTreePosition(root), 2)
	require.NoError(t, err)
	require.Equal(t, 10, v)
	require.Equal(t, 10, Minimax(newTreePosition(root), 2, true, rules.Black))
}

func TestAlphaBetaMatchesMinimaxOnRealPosition(t *testing.T) {
	eng := rules.NewEngine()
	fen := "r1bqkb1r/pppp1ppp/2n2n2/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R b KQkq - 4 4"
	b, err := eng.NewBoard(fen)
	require.NoError(t, err)
	want := Minimax(b, 2, true, rules.Black)

	b, err = eng.NewBoard(fen)
	require.NoError(t, err)
	_, got, err := NewWithRand(rand.New(rand.NewPCG(3, 4))).Search(b, 2)
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, fen, b.FEN(), "search must leave the board where it found it")
}

func TestBotTakesHangingQueen(t *testing.T) {
	eng := rules.NewEngine()
	fen := "3rk3/8/8/3Q4/8/8/8/4K3 b - - 0 1"
	for _, d := range []session.Difficulty{session.Medium, session.Hard} {
		b, err := eng.NewBoard(fen)
		require.NoError(t, err)
		m, err := NewWithRand(rand.New(rand.NewPCG(5, 6))).Choose(b, d)
		require.NoError(t, err)
		require.Equal(t, "d8d5", m.UCI(), "difficulty %s", d)
	}
}

func TestEasyPlaysLegalMove(t *testing.T) {
	eng := rules.NewEngine()
	b, err := eng.NewBoard(rules.StartFEN)
	require.NoError(t, err)
	legal := map[string]bool{}
	for _, m := range b.LegalMoves() {
		legal[m.UCI()] = true
	}
	e := NewWithRand(rand.New(rand.NewPCG(9, 9)))
	for i := 0; i < 20; i++ {
		m, err := e.Choose(b, session.Easy)
		require.NoError(t, err)
		require.True(t, legal[m.UCI()], "illegal move %s", m)
	}
}

func TestNoMoves(t *testing.T) {
	e := NewWithRand(rand.New(rand.NewPCG(1, 1)))
	_, err := e.Choose(newTreePosition(&treeNode{}), session.Hard)
	require.ErrorIs(t, err, ErrNoMoves)
	_, err = e.Choose(newTreePosition(&treeNode{}), session.Easy)
	require.ErrorIs(t, err, ErrNoMoves)
}

func TestEvaluateMaterial(t *testing.T) {
	b, err := rules.NewEngine().NewBoard(rules.StartFEN)
	require.NoError(t, err)
	require.Zero(t, Evaluate(b, rules.Black))

	b, err = rules.NewEngine().NewBoard("3rk3/8/8/3Q4/8/8/8/4K3 b - - 0 1")
	require.NoError(t, err)
	require.Equal(t, 50-90, Evaluate(b, rules.Black))
	require.Equal(t, 90-50, Evaluate(b, rules.White))
}
