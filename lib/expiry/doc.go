// Package expiry provides a generic, thread-safe timeout facility.
//
// A Scheduler keeps every registration in a deadline-ordered heap and in a
// concurrent lookup map from key to its current registration. A single
// background goroutine pops all records whose deadline passed and fires the
// callback of those that are still authoritative for their key. Records that
// were superseded by a later Schedule call (or removed by Cancel) are
// recognised by pointer identity and discarded silently.
//
// The same scheduler type is used for fragment-window eviction, peer idle
// eviction and request retry/timeout in the rpc packages. In all cases
// "expiry" only means "call the supplied function with the key".
//
// Usage Example:
//
//	s := expiry.New[uint64](expiry.WithInterval(time.Millisecond))
//	s.Start()
//	defer s.Stop()
//
//	s.Schedule(42, 500*time.Millisecond, func(id uint64) {
//	  fmt.Println("expired", id)
//	})
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Callbacks run on the background
//	goroutine outside of any lock and may call Schedule or Cancel themselves.
package expiry
