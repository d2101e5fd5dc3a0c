// Package uniquekey provides a process-unique opaque token used to correlate
// asynchronous requests (radio sends, pending-table updates, MLME/MCPS
// confirms) with their eventual replies.
package uniquekey

import "sync/atomic"

var counter uint64

// Key is an opaque, comparable, process-unique identifier. The zero Key is
// never returned by New and is reserved for "no key" in call sites that need
// one.
type Key uint64

// New mints a fresh Key. Safe for concurrent use.
func New() Key {
	return Key(atomic.AddUint64(&counter, 1))
}
