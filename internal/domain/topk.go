package domain

import "container/heap"

// TopKSelector keeps the K largest entries seen so far in a bounded
// min-heap. It is not safe for concurrent use.
type TopKSelector struct {
	h topKHeap
	k int
}

// NewTopKSelector creates a selector for the k largest amounts.
// A non-positive k selects nothing.
func NewTopKSelector(k int) *TopKSelector {
	if k < 0 {
		k = 0
	}
	return &TopKSelector{
		h: make(topKHeap, 0, k),
		k: k,
	}
}

// K returns the selector capacity.
func (s *TopKSelector) K() int {
	return s.k
}

// Len returns the number of entries currently held.
func (s *TopKSelector) Len() int {
	return s.h.Len()
}

// Offer considers one entry. Once the heap is full, an entry replaces the
// current minimum only when its amount is strictly greater, so among equal
// amounts the earliest offered entries are kept.
func (s *TopKSelector) Offer(e TopEntry) {
	if s.k == 0 {
		return
	}

	if s.h.Len() < s.k {
		heap.Push(&s.h, e)
		return
	}

	if e.Amount.GreaterThan(s.h[0].Amount) {
		s.h[0] = e
		heap.Fix(&s.h, 0)
	}
}

// Result drains the heap and returns the entries sorted by amount
// descending. Equal amounts come out with the larger ID first. The selector
// is empty afterwards.
func (s *TopKSelector) Result() []TopEntry {
	out := make([]TopEntry, s.h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&s.h).(TopEntry)
	}
	return out
}

// SelectTopK is a convenience wrapper for an in-memory slice.
func SelectTopK(entries []TopEntry, k int) []TopEntry {
	s := NewTopKSelector(k)
	for _, e := range entries {
		s.Offer(e)
	}
	return s.Result()
}

// topKHeap orders by amount, then ID, ascending, which keeps the heap
// totally ordered and the output deterministic.
type topKHeap []TopEntry

func (h topKHeap) Len() int { return len(h) }

func (h topKHeap) Less(i, j int) bool {
	if c := h[i].Amount.Cmp(h[j].Amount); c != 0 {
		return c < 0
	}
	return h[i].ID < h[j].ID
}

func (h topKHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *topKHeap) Push(x any) { *h = append(*h, x.(TopEntry)) }

func (h *topKHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
