// Package topk selects the K highest-count entities from an arbitrary-size
// input without a full sort.
//
// A binary min-heap of capacity K holds the current best K entities. The
// first K entities fill the heap with sift-up; every further entity either
// replaces the root (when it outranks the current minimum, restoring order
// with sift-down) or is discarded in O(1). Total cost is O(n log K)
// comparisons with O(K) auxiliary storage, versus O(n log n) for sorting
// everything, which pays off precisely when K is much smaller than n.
//
// Ordering is total and deterministic: entities rank by count descending,
// with ascending location id breaking ties, so output is reproducible
// across runs regardless of input order.
package topk

import "fmt"

// Entity is one ranked element: a zone identifier, its display label, and
// the aggregate count being ranked. Zero and negative counts rank normally.
type Entity struct {
	ID    int
	Label string
	Count int64
}

// outranks reports whether a ranks strictly above b: higher count first,
// lower id on equal counts. This is the single comparison the heap and the
// final ordering both use.
func outranks(a, b Entity) bool {
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	return a.ID < b.ID
}

// Top returns the k highest-count entities in descending rank order.
// The input slice is not modified. k < 0 is a configuration error; k = 0
// returns an empty result, as does an empty input. When k >= len(entities)
// the full input is returned, ranked.
func Top(entities []Entity, k int) ([]Entity, error) {
	if k < 0 {
		return nil, fmt.Errorf("topk: k must not be negative, got %d", k)
	}
	if k == 0 || len(entities) == 0 {
		return []Entity{}, nil
	}

	h := newMinHeap(k)
	for _, e := range entities {
		h.offer(e)
	}
	return h.drainDescending(), nil
}

// minHeap is a fixed-capacity binary min-heap: the root is the
// lowest-ranked of the retained entities.
type minHeap struct {
	items []Entity
	k     int
}

func newMinHeap(k int) *minHeap {
	cap := k
	if cap > 1024 {
		cap = 1024 // avoid huge upfront allocations for k >> n inputs
	}
	return &minHeap{items: make([]Entity, 0, cap), k: k}
}

// offer inserts e while the heap is below capacity, otherwise replaces the
// root when e outranks it, and is a no-op for anything ranked at or below
// the current minimum.
func (h *minHeap) offer(e Entity) {
	if len(h.items) < h.k {
		h.items = append(h.items, e)
		h.siftUp(len(h.items) - 1)
		return
	}
	if outranks(e, h.items[0]) {
		h.items[0] = e
		h.siftDown(0)
	}
}

func (h *minHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !outranks(h.items[parent], h.items[i]) {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *minHeap) siftDown(i int) {
	n := len(h.items)
	for {
		lowest := i
		if l := 2*i + 1; l < n && outranks(h.items[lowest], h.items[l]) {
			lowest = l
		}
		if r := 2*i + 2; r < n && outranks(h.items[lowest], h.items[r]) {
			lowest = r
		}
		if lowest == i {
			return
		}
		h.items[i], h.items[lowest] = h.items[lowest], h.items[i]
		i = lowest
	}
}

// drainDescending repeatedly extracts the minimum, filling the result from
// the back so the sequence comes out highest-ranked first. The heap is
// empty afterwards.
func (h *minHeap) drainDescending() []Entity {
	out := make([]Entity, len(h.items))
	for i := len(h.items) - 1; i >= 0; i-- {
		out[i] = h.items[0]
		last := len(h.items) - 1
		h.items[0] = h.items[last]
		h.items = h.items[:last]
		h.siftDown(0)
	}
	return out
}
