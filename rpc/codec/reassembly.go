package codec

import (
	"fmt"
	"github.com/ValentinKolb/dRPC/lib/expiry"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"time"
)

var Logger = logger.GetLogger("codec")

// ReassemblyWindow collects the fragments of one logical packet
type ReassemblyWindow struct {
	window   uint8
	received int
	slots    [][]byte
	created  time.Time
}

func newReassemblyWindow(window uint8) *ReassemblyWindow {
	return &ReassemblyWindow{
		window:  window,
		slots:   make([][]byte, window),
		created: time.Now(),
	}
}

// join concatenates all chunks in sequence order
func (w *ReassemblyWindow) join() []byte {
	size := 0
	for _, s := range w.slots {
		size += len(s)
	}
	out := make([]byte, 0, size)
	for _, s := range w.slots {
		out = append(out, s...)
	}
	return out
}

// Reassembler is the receive-side table of in-flight reassembly windows.
// Incomplete windows are evicted by the expiry scheduler after the window
// timeout; nothing is reported to the sender in that case.
type Reassembler[K comparable] struct {
	windows   *xsync.MapOf[K, *ReassemblyWindow]
	scheduler *expiry.Scheduler[K]
	timeout   time.Duration
	onEvict   func(K)
}

// NewReassembler creates a table that uses scheduler for window eviction.
// The scheduler must be started by the caller.
func NewReassembler[K comparable](scheduler *expiry.Scheduler[K], timeout time.Duration) *Reassembler[K] {
	return &Reassembler[K]{
		windows:   xsync.NewMapOf[K, *ReassemblyWindow](),
		scheduler: scheduler,
		timeout:   timeout,
	}
}

// OnEvict registers a hook called for every window dropped by the timeout.
// It must be set before the first call to Add.
func (r *Reassembler[K]) OnEvict(fn func(K)) {
	r.onEvict = fn
}

// Add feeds one fragment. It returns the reassembled bytes and complete=true
// once every fragment of the window arrived, in any order. Fragments whose
// window disagrees with the existing entry or whose sequence id is out of
// range are dropped and reported as ErrFragmentDropped. Duplicates are ignored.
func (r *Reassembler[K]) Add(key K, f Fragment) ([]byte, bool, error) {
	if f.Window == 0 || f.SequenceID >= f.Window {
		return nil, false, fmt.Errorf("%w: sequence id %d not valid for window %d", ErrFragmentDropped, f.SequenceID, f.Window)
	}

	// unfragmented packets never touch the table
	if f.Window == 1 {
		return f.Chunk, true, nil
	}

	var (
		data     []byte
		complete bool
		dropErr  error
		created  *ReassemblyWindow
	)

	r.windows.Compute(key, func(w *ReassemblyWindow, loaded bool) (*ReassemblyWindow, bool) {
		if !loaded {
			w = newReassemblyWindow(f.Window)
			created = w
		} else if w.window != f.Window {
			dropErr = fmt.Errorf("%w: window %d disagrees with existing window %d", ErrFragmentDropped, f.Window, w.window)
			return w, false
		}

		if w.slots[f.SequenceID] != nil {
			return w, false // duplicate
		}

		chunk := f.Chunk
		if chunk == nil {
			chunk = []byte{}
		}
		w.slots[f.SequenceID] = chunk
		w.received++

		if w.received == int(w.window) {
			data = w.join()
			complete = true
			return nil, true
		}
		return w, false
	})

	if dropErr != nil {
		return nil, false, dropErr
	}

	if created != nil {
		r.scheduler.Schedule(key, r.timeout, func(k K) { r.evict(k, created) })
	}
	if complete {
		r.scheduler.Cancel(key)
	}
	return data, complete, nil
}

// Len returns the number of in-flight windows
func (r *Reassembler[K]) Len() int {
	return r.windows.Size()
}

// Clear drops all in-flight windows without calling the eviction hook
func (r *Reassembler[K]) Clear() {
	r.windows.Range(func(k K, _ *ReassemblyWindow) bool {
		r.windows.Delete(k)
		r.scheduler.Cancel(k)
		return true
	})
}

// evict drops the window of key if it is still the window the timer was set for
func (r *Reassembler[K]) evict(key K, w *ReassemblyWindow) {
	evicted := false
	r.windows.Compute(key, func(cur *ReassemblyWindow, loaded bool) (*ReassemblyWindow, bool) {
		if loaded && cur == w {
			evicted = true
			return nil, true
		}
		return cur, !loaded
	})
	if !evicted {
		return
	}

	Logger.Debugf("evicted incomplete window %v (%d/%d fragments after %s)",
		key, w.received, w.window, time.Since(w.created))
	if r.onEvict != nil {
		r.onEvict(key)
	}
}
