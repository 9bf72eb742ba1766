// Package matchmaking pairs waiting players per time control.
package matchmaking

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var ErrInvalidTimeControl = errors.New("invalid time control")

// DefaultControls are the supported minute buckets.
var DefaultControls = []string{"5", "10", "30"}

// Result of a Join. When Paired, Opponent waited first and plays white.
type Result struct {
	Paired   bool
	Opponent string
}

type bucket struct {
	mu      sync.Mutex
	waiting []string
}

func (b *bucket) remove(playerID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := slices.Index(b.waiting, playerID)
	if i < 0 {
		return false
	}
	b.waiting = slices.Delete(b.waiting, i, i+1)
	return true
}

func (b *bucket) contains(playerID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Contains(b.waiting, playerID)
}

// Queue holds one FIFO bucket per time control. A player waits in at most
// one bucket; membership changes are serialized by mu.
type Queue struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	order   []string
}

func New(controls []string) *Queue {
	if len(controls) == 0 {
		controls = DefaultControls
	}
	q := &Queue{buckets: make(map[string]*bucket, len(controls))}
	for _, tc := range controls {
		tc = strings.TrimSpace(tc)
		if tc == "" {
			continue
		}
		if _, ok := q.buckets[tc]; ok {
			continue
		}
		q.buckets[tc] = &bucket{}
		q.order = append(q.order, tc)
	}
	return q
}

// Controls returns the supported time controls in configuration order.
func (q *Queue) Controls() []string { return slices.Clone(q.order) }

func (q *Queue) Supports(tc string) bool {
	_, ok := q.buckets[tc]
	return ok
}

// Join removes playerID from every bucket and then either pairs it with the
// head of tc's bucket or appends it there.
func (q *Queue) Join(playerID, tc string) (Result, error) {
	b, ok := q.buckets[tc]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidTimeControl, tc)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(playerID)

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.waiting) > 0 {
		head := b.waiting[0]
		b.waiting = b.waiting[1:]
		return Result{Paired: true, Opponent: head}, nil
	}
	b.waiting = append(b.waiting, playerID)
	return Result{}, nil
}

// Requeue puts playerID back at the head of tc's bucket, used when a pairing
// could not be turned into a session. A player already waiting elsewhere
// stays where it is.
func (q *Queue) Requeue(playerID, tc string) {
	b, ok := q.buckets[tc]
	if !ok {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, other := range q.buckets {
		if other.contains(playerID) {
			return
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.waiting = slices.Insert(b.waiting, 0, playerID)
}

// Remove drops playerID from every bucket. It is safe to call repeatedly.
func (q *Queue) Remove(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(playerID)
}

func (q *Queue) removeLocked(playerID string) bool {
	removed := false
	for _, tc := range q.order {
		if q.buckets[tc].remove(playerID) {
			removed = true
		}
	}
	return removed
}

func (q *Queue) Len(tc string) int {
	b, ok := q.buckets[tc]
	if !ok {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.waiting)
}

// Reset empties every bucket.
func (q *Queue) Reset() {
	for _, b := range q.buckets {
		b.mu.Lock()
		b.waiting = nil
		b.mu.Unlock()
	}
}
