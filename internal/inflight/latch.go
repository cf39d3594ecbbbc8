// Package inflight provides the "disable the button while pending" guard
// used by forms and pagers.
//
// A Latch is a mutual-exclusion flag, not a queue: a second caller that
// finds it held is turned away immediately instead of waiting its turn.
// That matches how a UI control behaves once it is disabled.
package inflight

import "sync/atomic"

type Latch struct {
	held atomic.Bool
}

// TryAcquire takes the latch and reports whether it succeeded.
func (l *Latch) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

// Release frees the latch. Releasing a free latch is a no-op.
func (l *Latch) Release() {
	l.held.Store(false)
}

// Held reports whether a request is currently pending.
func (l *Latch) Held() bool {
	return l.held.Load()
}
