package expiry

import (
	"strconv"
	"time"
)

// record is a single scheduled expiry. Records are never updated in place:
// re-scheduling a key pushes a new record and the old one stays in the heap
// until it is popped and recognised as stale.
type record[K comparable] struct {
	key      K
	deadline time.Time
	onExpire func(K)
	index    int // Index in the heap, maintained by heap package
}

func (r *record[K]) String() string {
	return "{Deadline: " + r.deadline.Format(time.RFC3339Nano) + ", Index: " + strconv.Itoa(r.index) + "}"
}

// deadlineHeap is a min-heap of records ordered by deadline (earliest first)
type deadlineHeap[K comparable] []*record[K]

// Len returns the number of records in the heap (part of heap.Interface)
func (h deadlineHeap[K]) Len() int { return len(h) }

// Less compares records by deadline (part of heap.Interface)
func (h deadlineHeap[K]) Less(i, j int) bool {
	return h[i].deadline.Before(h[j].deadline)
}

// Swap exchanges records at positions i and j (part of heap.Interface)
func (h deadlineHeap[K]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

// Push adds a record to the heap (part of heap.Interface)
func (h *deadlineHeap[K]) Push(x interface{}) {
	rec := x.(*record[K])
	rec.index = len(*h)
	*h = append(*h, rec)
}

// Pop removes and returns the last record (part of heap.Interface)
func (h *deadlineHeap[K]) Pop() interface{} {
	old := *h
	n := len(old)
	rec := old[n-1]
	old[n-1] = nil // Avoid memory leak
	rec.index = -1 // For safety
	*h = old[:n-1]
	return rec
}

// peek returns the record with the earliest deadline without removing it
func (h deadlineHeap[K]) peek() (*record[K], bool) {
	if len(h) == 0 {
		return nil, false
	}
	return h[0], true
}
