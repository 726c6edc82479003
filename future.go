package transport

import (
	"context"
	"runtime"
)

// Future is the completion handle returned by Send / Recv
// (spec §4.5). It is a spin-based future: there is no channel or condvar
// backing it, because the only way the backend ever makes progress is a
// caller explicitly invoking WorkerProgress, so blocking on anything but a
// progress-driven poll would simply hang.
type Future struct {
	state    *requestState
	progress func()
	cancel   func() bool
}

func newFuture(state *requestState, progress func()) Future {
	return Future{state: state, progress: progress}
}

func newCancellableFuture(state *requestState, progress func(), cancel func() bool) Future {
	return Future{state: state, progress: progress, cancel: cancel}
}

// Ready advances the owning worker once and reports whether the operation
// is now complete (spec §4.5's ready()): a non-blocking probe with local
// progress.
func (f Future) Ready() bool {
	if f.state == nil {
		return true
	}
	if !f.state.ready.Load() {
		f.progress()
	}
	return f.state.ready.Load()
}

// TestOnly reports whether the operation has completed, without progressing
// anything (spec §4.5's test_only()). Use Ready to both check and advance.
func (f Future) TestOnly() bool {
	if f.state == nil {
		return true
	}
	return f.state.ready.Load()
}

// Wait blocks (by spinning and yielding, never sleeping on a channel) until
// the operation completes or ctx is done. Returns ctx.Err() in the latter
// case.
func (f Future) Wait(ctx context.Context) error {
	if f.state == nil {
		return nil
	}
	for !f.state.ready.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		f.progress()
		runtime.Gosched()
	}
	return nil
}

// Cancel attempts to cancel the underlying operation (spec §4.5's
// cancel()). Returns false if the operation had already completed, or if
// this Future does not support cancellation (a send, which this transport
// always completes inline, has nothing left to cancel).
func (f Future) Cancel() bool {
	if f.cancel == nil || f.state == nil || f.state.ready.Load() {
		return false
	}
	return f.cancel()
}

// N returns the byte count delivered by a completed receive. Only
// meaningful once Ready() is true.
func (f Future) N() int {
	if f.state == nil {
		return 0
	}
	return f.state.n
}

// Err returns the completion error, if any. Only meaningful once Ready() is
// true.
func (f Future) Err() error {
	if f.state == nil {
		return nil
	}
	return f.state.err
}
