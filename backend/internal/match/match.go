// Package match implements the tag-matching core shared by backend/memory
// and backend/stream: a posted-receive queue, an unexpected-message queue,
// and an inbound "wire" staging queue that only WorkerProgress drains. Both
// concrete backends differ only in how bytes get onto the wire (an in-proc
// handoff for memory, a framed net.Conn read loop for stream); the matching
// discipline itself is identical, so it lives here once.
package match

import "sync"

// Envelope is one arrived, not-yet-matched message.
type Envelope struct {
	Data []byte
	Tag  uint64
}

// Recv is a posted receive. It satisfies backend.Op via the owning
// package's wrapper (match intentionally has no dependency on package
// backend, to stay reusable and keep the dependency direction backend ->
// match, not the reverse).
type Recv struct {
	Buf  []byte
	Tag  uint64
	Mask uint64
	CB   func(n int, err error)

	mu        sync.Mutex
	done      bool
	cancelled bool
}

func (r *Recv) markDone() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done || r.cancelled {
		return false
	}
	r.done = true
	return true
}

// Done reports whether the receive has already completed (matched).
func (r *Recv) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Cancel marks the receive cancelled if it has not yet matched. Returns
// false if it had already completed (too late to cancel).
func (r *Recv) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done || r.cancelled {
		return false
	}
	r.cancelled = true
	return true
}

// Matcher is the per-worker matching state: a FIFO of posted receives, a
// pool of unexpected arrivals, and a staging queue ("wire") that Deliver
// appends to and Progress drains. Deliver is called by whatever moves bytes
// in (a direct peer handoff, a socket reader goroutine); Progress is called
// by the worker's WorkerProgress, matching spec §5's requirement that
// completion discovery only happens under an explicit progress call.
type Matcher struct {
	mu          sync.Mutex
	wire        []Envelope
	unexpected  []Envelope
	postedRecvs []*Recv
}

// New returns an empty Matcher.
func New() *Matcher { return &Matcher{} }

// Deliver stages an arrived message. Safe to call from any goroutine.
func (m *Matcher) Deliver(e Envelope) {
	m.mu.Lock()
	m.wire = append(m.wire, e)
	m.mu.Unlock()
}

// PostRecv posts a receive. If an unexpected message already matches, it is
// consumed immediately and PostRecv returns (n, true): the caller should
// treat this as an inline completion and never register the returned *Recv
// with the backend's outstanding-op bookkeeping.
func (m *Matcher) PostRecv(r *Recv) (n int, inline bool) {
	m.mu.Lock()
	for i, e := range m.unexpected {
		if matches(e.Tag, r.Tag, r.Mask) {
			m.unexpected = append(m.unexpected[:i], m.unexpected[i+1:]...)
			m.mu.Unlock()
			return copy(r.Buf, e.Data), true
		}
	}
	m.postedRecvs = append(m.postedRecvs, r)
	m.mu.Unlock()
	return 0, false
}

type completion struct {
	r *Recv
	n int
}

// Progress drains the wire, matching each arrival against posted receives
// (oldest posted first) and stashing the rest as unexpected. Matched
// receives' callbacks are invoked after the lock is released, so a
// callback that re-enters the Matcher (posting another receive, say)
// cannot deadlock.
func (m *Matcher) Progress() {
	m.mu.Lock()
	if len(m.wire) == 0 {
		m.mu.Unlock()
		return
	}
	wire := m.wire
	m.wire = nil

	var ready []completion
	for _, e := range wire {
		idx := -1
		for i, r := range m.postedRecvs {
			if r.cancelled {
				continue
			}
			if matches(e.Tag, r.Tag, r.Mask) {
				idx = i
				break
			}
		}
		if idx < 0 {
			m.unexpected = append(m.unexpected, e)
			continue
		}
		r := m.postedRecvs[idx]
		m.postedRecvs = append(m.postedRecvs[:idx], m.postedRecvs[idx+1:]...)
		n := copy(r.Buf, e.Data)
		if r.markDone() {
			ready = append(ready, completion{r, n})
		}
	}
	m.mu.Unlock()

	for _, c := range ready {
		c.r.CB(c.n, nil)
	}
}

// CancelRecv removes r from the posted-receive queue if it has not yet
// matched. Returns the same value as r.Cancel.
func (m *Matcher) CancelRecv(r *Recv) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !r.Cancel() {
		return false
	}
	for i, p := range m.postedRecvs {
		if p == r {
			m.postedRecvs = append(m.postedRecvs[:i], m.postedRecvs[i+1:]...)
			break
		}
	}
	return true
}

func matches(wireTag, recvTag, mask uint64) bool {
	return wireTag&mask == recvTag&mask
}
