package transport

import "sync/atomic"

// requestState is the shared completion cell a Future and its backend
// callback both hold a pointer to (spec §4.5). The callback, invoked from
// WorkerProgress, stores the outcome and flips ready; Ready/Wait/TestOnly
// only ever read it, so a Future can be polled from a different goroutine
// than the one driving progress, as long as that goroutine does not also
// touch the originating Worker concurrently with the one making progress.
type requestState struct {
	ready     atomic.Bool
	cancelled atomic.Bool
	n         int
	err       error
}

func (s *requestState) complete(n int, err error) {
	s.n = n
	s.err = err
	s.ready.Store(true)
}

// RequestState is the shared completion cell spec.md §4.6 calls
// "RequestState": {ready bool}, written once (false -> true) with release
// semantics. It is distinct from the backend-level requestState a Future
// wraps: this one belongs to the continuation layer and, per invariant,
// only flips to ready *after* the submission's user callback has returned,
// never when the underlying backend operation merely completes. Its
// lifetime is shared between a ContinuationCommunicator's internal Element
// and the Request handle returned to the submitter.
type RequestState struct {
	ready atomic.Bool
}

// NewRequestState returns a fresh, not-yet-ready RequestState.
func NewRequestState() *RequestState { return &RequestState{} }

// Ready reports whether this RequestState's owning callback has returned.
func (s *RequestState) Ready() bool { return s.ready.Load() }

// MarkReady flips this RequestState to ready. Called exactly once, by the
// ContinuationCommunicator that owns the submission, after its callback
// returns.
func (s *RequestState) MarkReady() { s.ready.Store(true) }

// Request is the lightweight completion handle spec.md §4.6's overview
// promises ("exposes a lightweight completion handle"): a thin, pollable
// view over a shared RequestState, returned alongside (or instead of) a
// bare error by ContinuationCommunicator's Send/Recv/SendMulti/
// SendMultiShared.
type Request struct {
	state *RequestState
}

// NewRequest wraps state in a Request handle.
func NewRequest(state *RequestState) *Request { return &Request{state: state} }

// Ready reports whether this request's callback has already run.
func (r *Request) Ready() bool {
	if r == nil || r.state == nil {
		return true
	}
	return r.state.Ready()
}
