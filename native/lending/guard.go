package lending

import "sync/atomic"

// reentrancyGuard is a non-blocking exclusive lock held for the duration of
// one top-level engine operation. A nested call observing the lock fails
// immediately instead of blocking; this covers the case where an outbound
// asset transfer triggers a callback that re-invokes the engine before the
// first operation finished mutating state.
type reentrancyGuard struct {
	busy atomic.Bool
}

func (g *reentrancyGuard) enter() error {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

func (g *reentrancyGuard) exit() {
	g.busy.Store(false)
}
