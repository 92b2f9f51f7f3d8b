package expiry

import (
	"container/heap"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("expiry")

const (
	// DefaultInterval is the pause between two passes of the background loop
	DefaultInterval = 5 * time.Millisecond
)

// Option configures a Scheduler
type Option func(*options)

type options struct {
	interval time.Duration
}

// WithInterval sets the pause between two expiry passes. Values <= 0 fall
// back to DefaultInterval.
func WithInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.interval = interval
		}
	}
}

// Scheduler fires a callback once the time-to-live of a registered key has
// passed. Each key has at most one authoritative registration; scheduling a
// key again replaces the previous registration.
type Scheduler[K comparable] struct {
	mu       sync.Mutex // Protects queue
	queue    deadlineHeap[K]
	current  *xsync.MapOf[K, *record[K]]
	interval time.Duration

	stopCh  chan struct{}
	wg      sync.WaitGroup
	started atomic.Bool
	stopped atomic.Bool
}

// New creates a scheduler. The background loop is not running until Start
// is called.
func New[K comparable](opts ...Option) *Scheduler[K] {
	o := options{interval: DefaultInterval}
	for _, opt := range opts {
		opt(&o)
	}

	return &Scheduler[K]{
		queue:    make(deadlineHeap[K], 0),
		current:  xsync.NewMapOf[K, *record[K]](),
		interval: o.interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background loop. Calling Start more than once has no effect.
func (s *Scheduler[K]) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.wg.Add(1)
	go s.run()
}

// Stop signals the background loop to exit and waits for it.
// Registrations that did not expire yet are dropped without firing.
func (s *Scheduler[K]) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	close(s.stopCh)
	s.wg.Wait()
}

// Schedule registers key to expire after ttl. onExpire is called from the
// background loop with the key, unless the key is re-scheduled or cancelled
// before that.
//
// Thread-safety: This method is thread-safe and may be called from within
// an onExpire callback.
func (s *Scheduler[K]) Schedule(key K, ttl time.Duration, onExpire func(K)) {
	rec := &record[K]{
		key:      key,
		deadline: time.Now().Add(ttl),
		onExpire: onExpire,
		index:    -1,
	}

	// the lookup entry must exist before the record can be popped
	s.current.Store(key, rec)

	s.mu.Lock()
	heap.Push(&s.queue, rec)
	s.mu.Unlock()
}

// Cancel removes the registration of key. It returns false if the key was
// not registered (or already fired).
func (s *Scheduler[K]) Cancel(key K) bool {
	_, ok := s.current.LoadAndDelete(key)
	return ok
}

// Scheduled reports whether key currently has an authoritative registration
func (s *Scheduler[K]) Scheduled(key K) bool {
	_, ok := s.current.Load(key)
	return ok
}

// Len returns the number of authoritative registrations
func (s *Scheduler[K]) Len() int {
	return s.current.Size()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// run is the background loop
func (s *Scheduler[K]) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.expire(time.Now())

		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
		}
	}
}

// expire pops every record whose deadline is not after now and fires the
// authoritative ones. It returns the number of fired callbacks.
func (s *Scheduler[K]) expire(now time.Time) int {
	fired := 0
	for {
		s.mu.Lock()
		rec, ok := s.queue.peek()
		if !ok || rec.deadline.After(now) {
			s.mu.Unlock()
			return fired
		}
		heap.Pop(&s.queue)
		s.mu.Unlock()

		if !s.claim(rec) {
			continue // stale: re-scheduled or cancelled in the meantime
		}

		s.fire(rec)
		fired++
	}
}

// claim removes the lookup entry for rec.key if and only if rec is still the
// registration stored for that key
func (s *Scheduler[K]) claim(rec *record[K]) bool {
	authoritative := false
	s.current.Compute(rec.key, func(cur *record[K], loaded bool) (*record[K], bool) {
		if loaded && cur == rec {
			authoritative = true
			return nil, true
		}
		return cur, !loaded
	})
	return authoritative
}

// fire runs the callback outside of any lock so it may schedule again
func (s *Scheduler[K]) fire(rec *record[K]) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("expiry callback for %v panicked: %v", rec.key, r)
		}
	}()
	rec.onExpire(rec.key)
}
