// Package queue provides the bounded top-k heap used by exhaustive search.
package queue

import "math"

// Item is a scored candidate.
type Item struct {
	ID    int64   // ID of the stored vector
	Score float32 // Score is the similarity to the query (higher is better)
}

// Worse reports whether a ranks below b.
//
// Lower scores rank below higher ones. Equal scores rank by ID, so the larger
// ID is the worse one. NaN ranks below every number.
func Worse(a, b Item) bool {
	aNaN := math.IsNaN(float64(a.Score))
	bNaN := math.IsNaN(float64(b.Score))

	switch {
	case aNaN && bNaN:
		return a.ID > b.ID
	case aNaN:
		return true
	case bNaN:
		return false
	case a.Score != b.Score:
		return a.Score < b.Score
	default:
		return a.ID > b.ID
	}
}

// TopK retains the k best items offered to it.
// The root of the heap is the worst retained item.
type TopK struct {
	k     int
	items []Item
}

// NewTopK creates a TopK that retains at most k items.
func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	return &TopK{
		k:     k,
		items: make([]Item, 0, k),
	}
}

// Len returns the number of retained items.
func (t *TopK) Len() int { return len(t.items) }

// Cap returns k.
func (t *TopK) Cap() int { return t.k }

// Worst returns the worst retained item.
func (t *TopK) Worst() (Item, bool) {
	if len(t.items) == 0 {
		return Item{}, false
	}
	return t.items[0], true
}

// Offer considers item for the result set.
// It reports whether the item was retained.
func (t *TopK) Offer(item Item) bool {
	if t.k == 0 {
		return false
	}

	if len(t.items) < t.k {
		t.items = append(t.items, item)
		t.siftUp(len(t.items) - 1)
		return true
	}

	if !Worse(t.items[0], item) {
		return false
	}

	t.items[0] = item
	t.siftDown(0)
	return true
}

// Drain empties the heap and returns its items best first.
func (t *TopK) Drain() []Item {
	out := make([]Item, len(t.items))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = t.pop()
	}
	return out
}

// Reset clears the heap for reuse.
func (t *TopK) Reset() {
	t.items = t.items[:0]
}

func (t *TopK) pop() Item {
	n := len(t.items)
	root := t.items[0]
	t.items[0] = t.items[n-1]
	t.items = t.items[:n-1]
	if len(t.items) > 0 {
		t.siftDown(0)
	}
	return root
}

func (t *TopK) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !Worse(t.items[i], t.items[p]) {
			return
		}
		t.items[i], t.items[p] = t.items[p], t.items[i]
		i = p
	}
}

func (t *TopK) siftDown(i int) {
	n := len(t.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		worst := l
		if r := l + 1; r < n && Worse(t.items[r], t.items[l]) {
			worst = r
		}
		if !Worse(t.items[worst], t.items[i]) {
			return
		}
		t.items[i], t.items[worst] = t.items[worst], t.items[i]
		i = worst
	}
}
