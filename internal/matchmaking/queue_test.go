package matchmaking

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinPairsFIFO(t *testing.T) {
	q := New(nil)

	res, err := q.Join("A", "5")
	require.NoError(t, err)
	require.False(t, res.Paired)

	res, err = q.Join("B", "5")
	require.NoError(t, err)
	require.Equal(t, Result{Paired: true, Opponent: "A"}, res)
	require.Zero(t, q.Len("5"))
}

func TestJoinTwiceKeepsOneEntry(t *testing.T) {
	q := New(nil)
	_, err := q.Join("A", "5")
	require.NoError(t, err)
	res, err := q.Join("A", "5")
	require.NoError(t, err)
	require.False(t, res.Paired)
	require.Equal(t, 1, q.Len("5"))
}

func TestJoinMovesBetweenBuckets(t *testing.T) {
	q := New(nil)
	_, _ = q.Join("A", "5")
	_, _ = q.Join("A", "10")
	require.Zero(t, q.Len("5"))
	require.Equal(t, 1, q.Len("10"))

	res, _ := q.Join("B", "5")
	require.False(t, res.Paired)
}

func TestJoinRejectsUnknownControl(t *testing.T) {
	q := New(nil)
	_, err := q.Join("A", "7")
	require.ErrorIs(t, err, ErrInvalidTimeControl)
	require.True(t, q.Supports("30"))
	require.False(t, q.Supports("7"))
}

func TestRemoveIsIdempotent(t *testing.T) {
	q := New([]string{"3", "3", " 15 "})
	require.Equal(t, []string{"3", "15"}, q.Controls())
	_, _ = q.Join("A", "15")
	require.True(t, q.Remove("A"))
	require.False(t, q.Remove("A"))
	require.Zero(t, q.Len("15"))
}

func TestRequeueGoesToHead(t *testing.T) {
	q := New(nil)
	_, _ = q.Join("X", "10")
	q.Requeue("A", "10")
	q.Requeue("A", "10")
	require.Equal(t, 2, q.Len("10"))

	res, _ := q.Join("B", "10")
	require.Equal(t, "A", res.Opponent)
}

func TestConcurrentJoinsPairEveryone(t *testing.T) {
	q := New(nil)
	const n = 200
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		paired = map[string]int{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			res, err := q.Join(id, "5")
			require.NoError(t, err)
			if res.Paired {
				mu.Lock()
				paired[id]++
				paired[res.Opponent]++
				mu.Unlock()
			}
		}(fmt.Sprintf("p%d", i))
	}
	wg.Wait()

	require.Zero(t, q.Len("5"))
	require.Len(t, paired, n)
	for id, c := range paired {
		require.Equal(t, 1, c, "player %s paired %d times", id, c)
	}

	q.Reset()
	require.Zero(t, q.Len("5"))
}

func TestConcurrentJoinsSamePlayerOneBucket(t *testing.T) {
	for i := 0; i < 200; i++ {
		q := New(nil)
		var wg sync.WaitGroup
		for _, tc := range []string{"5", "10", "30"} {
			wg.Add(1)
			go func(tc string) {
				defer wg.Done()
				res, err := q.Join("A", tc)
				require.NoError(t, err)
				require.False(t, res.Paired)
			}(tc)
		}
		wg.Wait()
		require.Equal(t, 1, q.Len("5")+q.Len("10")+q.Len("30"), "iteration %d", i)
	}
}

func TestRequeueKeepsNewerChoice(t *testing.T) {
	q := New(nil)
	_, _ = q.Join("A", "10")
	q.Requeue("A", "5")
	require.Zero(t, q.Len("5"))
	require.Equal(t, 1, q.Len("10"))
}
