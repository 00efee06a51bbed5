package marketindex

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/okian/gaffer/pkg/metrics"
)

// Treap-based, in-memory Board implementation.
//
// Ordering: score DESC, then athleteID ASC (deterministic).
// The BST comparator treats "less" as ranking earlier, so an in-order
// traversal yields the board from hottest to coldest.

// scoreScale controls fixed-point scaling from float64. Market scores are
// small (momentum counts, blended form), so six decimal places are plenty.
const scoreScale = 1_000_000

type scoreFP int64

func toFixedPoint(x float64) scoreFP {
	if math.IsNaN(x) {
		return 0
	}
	if math.IsInf(x, 1) {
		return scoreFP(math.MaxInt64)
	}
	if math.IsInf(x, -1) {
		return scoreFP(math.MinInt64)
	}

	scaled := x * scoreScale
	if scaled > float64(math.MaxInt64) {
		return scoreFP(math.MaxInt64)
	}
	if scaled < float64(math.MinInt64) {
		return scoreFP(math.MinInt64)
	}
	return scoreFP(math.Round(scaled))
}

func toFloat(x scoreFP) float64 {
	return float64(x) / scoreScale
}

// treap node
type node struct {
	id    int
	score scoreFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aID) should appear before (bScore, bID)
// on the board (higher scores rank earlier).
func less(aScore scoreFP, aID int, bScore scoreFP, bID int) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID // tie-breaker by id asc
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// scoreToPriority converts a score to a heap priority.
// Higher scores get higher priorities so hot athletes sit near the root.
func scoreToPriority(score scoreFP) uint64 {
	const offset = uint64(1) << 63 // shift negatives into positive range
	return uint64(score) + offset
}

func insert(n *node, id int, score scoreFP) *node {
	if n == nil {
		return &node{id: id, score: score, prio: scoreToPriority(score), size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id int, score scoreFP) *node {
	if n == nil {
		return nil
	}
	if score == n.score && id == n.id {
		// Merge children by rotating the highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	} else if less(score, id, n.score, n.id) {
		n.left = deleteNode(n.left, id, score)
	} else {
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order (highest scores first).
func collectTopN(n *node, limit int, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}

	collectTopN(n.left, limit, out)

	if len(*out) < limit {
		*out = append(*out, Entry{Rank: 0 /* fixed later */, AthleteID: n.id, Score: toFloat(n.score)})
	}

	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// collectAll appends all entries in rank order (highest scores first).
func collectAll(n *node, out *[]Entry) {
	if n == nil {
		return
	}
	collectAll(n.left, out)
	*out = append(*out, Entry{AthleteID: n.id, Score: toFloat(n.score)})
	collectAll(n.right, out)
}

// TreapBoard is the treap-backed Board.
type TreapBoard struct {
	mu   sync.RWMutex
	root *node
	byID map[int]scoreFP
}

// NewTreapBoard constructs an empty board.
func NewTreapBoard(opts ...Option) *TreapBoard {
	b := &TreapBoard{
		byID: make(map[int]scoreFP),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Upsert implements Board.Upsert with O(log n) expected time.
func (b *TreapBoard) Upsert(ctx context.Context, athleteID int, score float64) (bool, error) {
	ns := toFixedPoint(score)

	b.mu.Lock()
	if old, ok := b.byID[athleteID]; ok {
		if ns == old { // unchanged, keep the tree intact
			b.mu.Unlock()
			return false, nil
		}
		b.root = deleteNode(b.root, athleteID, old)
	}
	b.byID[athleteID] = ns
	b.root = insert(b.root, athleteID, ns)
	count := len(b.byID)
	b.mu.Unlock()

	metrics.UpdateMarketIndexSize(count)
	return true, nil
}

// Remove implements Board.Remove.
func (b *TreapBoard) Remove(ctx context.Context, athleteID int) error {
	b.mu.Lock()
	old, ok := b.byID[athleteID]
	if !ok {
		b.mu.Unlock()
		return ErrNotFound
	}
	b.root = deleteNode(b.root, athleteID, old)
	delete(b.byID, athleteID)
	count := len(b.byID)
	b.mu.Unlock()

	metrics.UpdateMarketIndexSize(count)
	return nil
}

// Rank returns the current rank and score for an athlete.
func (b *TreapBoard) Rank(ctx context.Context, athleteID int) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordMarketIndexQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.byID[athleteID]; !ok {
		metrics.RecordErrorByComponent("marketindex", "not_found")
		return Entry{}, ErrNotFound
	}

	all := make([]Entry, 0, len(b.byID))
	collectAll(b.root, &all)
	assignRanksWithTies(all)

	for _, entry := range all {
		if entry.AthleteID == athleteID {
			return entry, nil
		}
	}
	return Entry{}, ErrNotFound
}

// TopN returns the top N entries ordered by score desc.
func (b *TreapBoard) TopN(ctx context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordMarketIndexQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("marketindex", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, 0, n)
	collectTopN(b.root, n, &out)
	assignRanksWithTies(out)
	return out, nil
}

// Count returns the total number of tracked athletes.
func (b *TreapBoard) Count(ctx context.Context) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}

// assignRanksWithTies assigns ranks in place. Athletes with the same score
// share a rank; the next distinct score takes the next consecutive rank.
func assignRanksWithTies(entries []Entry) {
	if len(entries) == 0 {
		return
	}

	currentRank := 1
	for i := 0; i < len(entries); i++ {
		entries[i].Rank = currentRank

		sameScoreCount := 1
		for j := i + 1; j < len(entries) && entries[j].Score == entries[i].Score; j++ {
			entries[j].Rank = currentRank
			sameScoreCount++
		}

		currentRank++
		i += sameScoreCount - 1
	}
}
