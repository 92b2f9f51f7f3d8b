// Package util provides a lock-free Multi-Producer Single-Consumer (MPSC) queue.
//
// The datagram server pushes outgoing fragments from many handler goroutines
// while a single writer goroutine drains the queue onto the socket.
//
// Features and Guarantees:
//
//   - Lock-Free pushes: producers only use atomic operations
//   - Unbounded Size: the queue grows as needed, limited only by available memory
//   - Single Consumer: exactly one goroutine reads values via Recv()
//   - No Strict FIFO Guarantee across producers: concurrent pushes are ordered by
//     which producer completes first. Items pushed by one goroutine keep their order.
package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node represents a single element in the queue
type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// MPSC is a lock-free multi-producer single-consumer queue
type MPSC[T any] struct {
	head   atomic.Pointer[node[T]]
	tail   atomic.Pointer[node[T]]
	length atomic.Int64
	out    chan T
	notify chan struct{} // capacity 1, wakes the consumer
	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewMPSC creates a new queue and starts its consumer goroutine
func NewMPSC[T any]() *MPSC[T] {
	sentinel := &node[T]{}

	q := &MPSC[T]{
		out:    make(chan T),
		notify: make(chan struct{}, 1),
	}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.wg.Add(1)
	go q.consume()

	return q
}

// Push adds an item to the queue.
// Returns false if the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *MPSC[T]) Push(value T) bool {
	if q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}

	var backoff uint8 = 0
	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// a failing CAS means another producer already moved the tail
				q.tail.CompareAndSwap(tailNode, newNode)
				q.length.Add(1)
				q.wake()
				return true
			}
		} else {
			// help a producer that appended but did not move the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		// spin first, then yield under contention
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// Recv returns the channel the consumer reads from. It is closed after
// Close was called and every remaining item was delivered.
func (q *MPSC[T]) Recv() <-chan T {
	return q.out
}

// Close prevents further pushes. Items already in the queue are still delivered.
func (q *MPSC[T]) Close() {
	if q.closed.CompareAndSwap(false, true) {
		q.wake()
	}
}

// Wait blocks until the consumer goroutine exited (after Close and a full drain)
func (q *MPSC[T]) Wait() {
	q.wg.Wait()
}

// IsClosed returns true if the queue is closed
func (q *MPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the number of items that were pushed but not yet handed to the consumer
func (q *MPSC[T]) Len() int {
	return int(q.length.Load())
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// wake signals the consumer without blocking
func (q *MPSC[T]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// consume moves items from the linked list to the output channel
func (q *MPSC[T]) consume() {
	defer q.wg.Done()
	defer close(q.out)

	var zero T
	for {
		drained := false
		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			drained = true

			value := next.value
			q.head.Store(next)
			q.length.Add(-1)
			q.out <- value

			// help gc, next is the new sentinel
			next.value = zero
		}

		if !drained && q.closed.Load() {
			// a push may have raced with Close
			if q.head.Load().next.Load() == nil {
				return
			}
			continue
		}

		if !drained {
			<-q.notify
		}
	}
}
