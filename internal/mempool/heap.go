package mempool

import "container/heap"

// entryHeap is a container/heap.Interface over *Entry ordered by priority
// descending, received-at ascending — the structure spec section 9 names
// as one acceptable implementation ("a B-tree keyed by (-priority,
// received_at, hash)... a binary heap"). The spec treats the exact
// structure as an implementation hint, not a contract; container/heap is
// the idiomatic stdlib choice the spec's own wording points at, and no
// example in the retrieval pack ships a third-party priority-queue
// library to prefer instead (see DESIGN.md).
type entryHeap []*Entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].less(h[j]) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(*Entry)) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*entryHeap)(nil)
