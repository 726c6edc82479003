package continuation

import (
	"sync"
	"sync/atomic"

	transport "github.com/ghex-go/transport"
	"github.com/ghex-go/transport/metrics"
	"github.com/ghex-go/transport/pool"
)

// Callback is the completion handler a submitted operation runs exactly
// once (spec §4.4, invariant P2): msg is the payload for a completed recv
// (zero-valued for a send), peer/tag identify the operation, and err is nil
// on success.
type Callback func(msg transport.AnyMessage, peer int32, tag uint32, err error)

// ContinuationCommunicator is a thread-safe dispatcher layered over a
// Communicator: Send/Recv/SendMulti submit operations and return
// immediately, each handing back a Request completion handle; Progress
// drains completions and invokes their callbacks. Submission and progress
// may run on different goroutines concurrently, which is the entire reason
// its two queues are the lock-free queue in queue.go rather than
// mutex-guarded slices: one queue for sends, one for recvs (spec §4.6).
type ContinuationCommunicator struct {
	comm transport.Communicator

	sendQueue      *queue[*Element]
	recvQueue      *queue[*Element]
	elemPool       pool.Pool
	inflight       atomic.Int64
	completed      atomic.Uint64
	earlyCompleted atomic.Uint64

	metrics struct {
		sent      metrics.Counter
		recv      metrics.Counter
		inflight  metrics.UpDownCounter
		callbacks metrics.Counter
	}

	closeOnce sync.Once
}

// New returns a ContinuationCommunicator layered over comm. provider may be
// metrics.NewNoopProvider() if metrics are not wanted.
func New(comm transport.Communicator, provider metrics.Provider) *ContinuationCommunicator {
	return NewWithCapacity(comm, provider, 0)
}

// NewWithCapacity is New, but bounds the Element pool to capacity entries
// (spec EXPANDED C14's Config.RequestQueueCapacity) using a fixed pool
// instead of New's dynamic one. capacity <= 0 behaves exactly like New.
func NewWithCapacity(comm transport.Communicator, provider metrics.Provider, capacity uint) *ContinuationCommunicator {
	if provider == nil {
		provider = metrics.NewNoopProvider()
	}
	newElem := func() interface{} { return &Element{} }
	elemPool := pool.NewDynamic(newElem)
	if capacity > 0 {
		elemPool = pool.NewFixed(capacity, newElem)
	}
	cc := &ContinuationCommunicator{
		comm:      comm,
		sendQueue: newQueue[*Element](),
		recvQueue: newQueue[*Element](),
		elemPool:  elemPool,
	}
	cc.metrics.sent = provider.Counter("messages_sent_total")
	cc.metrics.recv = provider.Counter("messages_received_total")
	cc.metrics.inflight = provider.UpDownCounter("operations_inflight")
	cc.metrics.callbacks = provider.Counter("callbacks_invoked_total")
	return cc
}

// Inflight returns the number of operations submitted but not yet
// completed.
func (cc *ContinuationCommunicator) Inflight() int64 { return cc.inflight.Load() }

// Completed returns the lifetime count of invoked callbacks.
func (cc *ContinuationCommunicator) Completed() uint64 { return cc.completed.Load() }

// EarlyCompleted returns how many submissions hit the early-complete fast
// path (the backend had already finished the operation by the time Send/
// Recv/SendMulti returned), per spec §4.6.
func (cc *ContinuationCommunicator) EarlyCompleted() uint64 { return cc.earlyCompleted.Load() }

func (cc *ContinuationCommunicator) queueFor(e *Element) *queue[*Element] {
	if e.kind == transport.OpRecv {
		return cc.recvQueue
	}
	return cc.sendQueue
}

func (cc *ContinuationCommunicator) submit(e *Element) *transport.Request {
	state := transport.NewRequestState()
	e.state = state
	cc.inflight.Add(1)
	cc.metrics.inflight.Add(1)
	if e.future.TestOnly() {
		// Early-complete fast path: the backend already finished this
		// operation inline (backend/memory and backend/stream's TagSendNB,
		// or a TagRecvNB that matched an already-unexpected message), so the
		// callback runs synchronously here rather than round-tripping
		// through a queue at all.
		cc.earlyCompleted.Add(1)
		cc.complete(e)
	} else {
		cc.queueFor(e).push(e)
	}
	return transport.NewRequest(state)
}

func (cc *ContinuationCommunicator) complete(e *Element) {
	err := e.future.Err()
	cb := e.onDone
	peer, tag := e.peer, e.tag
	msg := e.msg
	state := e.state
	e.reset()
	cc.elemPool.Put(e)

	cc.inflight.Add(-1)
	cc.metrics.inflight.Add(-1)
	cc.completed.Add(1)
	cc.metrics.callbacks.Add(1)
	if cb != nil {
		cb(msg, peer, tag, err)
	}
	// Invariant (spec §4.6): the element's RequestState flips to ready only
	// after the user callback has returned, not when the backend operation
	// itself completed.
	if state != nil {
		state.MarkReady()
	}
}

// Send submits a non-blocking tagged send of an owned buffer, returning a
// Request completion handle. cb runs exactly once, either inline (if
// Progress was not required) or from a future Progress call.
func Send[T any](cc *ContinuationCommunicator, ep *transport.Endpoint, msg transport.OwnedBuffer[T], tag uint32, cb Callback) (*transport.Request, error) {
	future, err := transport.Send(cc.comm.Worker(), ep, msg, tag)
	if err != nil {
		return nil, err
	}
	cc.metrics.sent.Add(1)
	e := cc.elemPool.Get().(*Element)
	e.future, e.peer, e.tag, e.kind, e.onDone = future, ep.PeerRank, tag, transport.OpSend, cb
	return cc.submit(e), nil
}

// Recv submits a non-blocking tagged receive into buf, returning a Request
// completion handle. cb runs exactly once, receiving an AnyMessage view
// over buf.
func Recv[T any](cc *ContinuationCommunicator, src int32, tag uint32, buf []T, cb Callback) (*transport.Request, error) {
	future, err := transport.Recv(cc.comm.Worker(), src, tag, buf)
	if err != nil {
		return nil, err
	}
	cc.metrics.recv.Add(1)
	e := cc.elemPool.Get().(*Element)
	e.future, e.peer, e.tag, e.kind, e.onDone = future, src, tag, transport.OpRecv, cb
	e.msg = transport.NewOwnedBuffer(buf).AsAny()
	return cc.submit(e), nil
}

// SendMulti fans msg out to every Endpoint in eps (spec §4.7), returning
// ErrUnsafeAsyncBorrow immediately (before submitting anything) if msg
// borrows and cb is non-nil (Open Question 3, DESIGN.md: Go cannot express
// "caller must outlive all N sends" the way a C++ lifetime could). A nil cb
// is therefore the only accepted one: on success it returns N independent
// Request handles, one per Endpoint, each becoming ready once its own send
// completes. Use SendMultiShared for a per-Endpoint callback.
func SendMulti[T any](cc *ContinuationCommunicator, eps []*transport.Endpoint, msg transport.RefMessage[T], tag uint32, cb Callback) ([]*transport.Request, error) {
	if cb != nil {
		return nil, transport.ErrUnsafeAsyncBorrow
	}
	requests := make([]*transport.Request, 0, len(eps))
	for _, ep := range eps {
		future, err := transport.SendRef(cc.comm.Worker(), ep, msg, tag)
		if err != nil {
			return requests, err
		}
		cc.metrics.sent.Add(1)
		e := cc.elemPool.Get().(*Element)
		e.future, e.peer, e.tag, e.kind = future, ep.PeerRank, tag, transport.OpSendMulti
		requests = append(requests, cc.submit(e))
	}
	return requests, nil
}

// SendMultiShared fans a refcounted SharedBuffer out to every Endpoint in
// eps; unlike SendMulti this accepts an async callback, since
// SharedBuffer's refcounting is exactly the mechanism that makes outliving
// every send safe. Returns N independent Request handles, per spec §4.7.
func SendMultiShared[T any](cc *ContinuationCommunicator, eps []*transport.Endpoint, msg transport.SharedBuffer[T], tag uint32, cb Callback) ([]*transport.Request, error) {
	requests := make([]*transport.Request, 0, len(eps))
	for _, ep := range eps {
		clone := msg.Clone()
		future, err := transport.SendShared(cc.comm.Worker(), ep, clone, tag)
		if err != nil {
			clone.Release()
			return requests, err
		}
		cc.metrics.sent.Add(1)
		e := cc.elemPool.Get().(*Element)
		e.future, e.peer, e.tag, e.kind = future, ep.PeerRank, tag, transport.OpSendMulti
		e.onDone = func(m transport.AnyMessage, peer int32, tag uint32, err error) {
			clone.Release()
			if cb != nil {
				cb(m, peer, tag, err)
			}
		}
		requests = append(requests, cc.submit(e))
	}
	return requests, nil
}

// Progress is cooperative (spec §4.6): it pops at most one element from
// each of the send and recv queues, tests it (which also drives the
// underlying Worker's backend progress), completes it if ready, and
// re-pushes it at the back of its queue otherwise. Progress must be called
// repeatedly for any operation that was not inline-completed at submission
// time to ever invoke its callback. Returns the number of callbacks invoked
// this call (0, 1, or 2 — at most one per queue), matching spec §4.6's
// "Progress returns the number of callbacks invoked this call".
func (cc *ContinuationCommunicator) Progress() int {
	invoked := 0
	if cc.popAndComplete(cc.sendQueue) {
		invoked++
	}
	if cc.popAndComplete(cc.recvQueue) {
		invoked++
	}
	return invoked
}

func (cc *ContinuationCommunicator) popAndComplete(q *queue[*Element]) bool {
	e, ok := q.pop()
	if !ok {
		return false
	}
	if e.future.Ready() {
		cc.complete(e)
		return true
	}
	q.push(e)
	return false
}

// ContinuationCommunicator has no Cancel method. No element handle is
// exposed to callers (cb identity is the only thing a caller could match
// against), so cancellation lives at the Future level
// (transport.Future.Cancel); a Future obtained from transport.Recv directly
// can be cancelled that way, but the Future inside a submitted Element is
// not reachable from outside this package.

// Close abandons the Continuation Communicator: it calls Progress a small,
// fixed number of times (matching the original's destructor, which calls
// progress() three times) and returns without waiting for any remaining
// elements to complete or invoking their callbacks (DESIGN.md Open Question
// 2). Safe to call more than once.
func (cc *ContinuationCommunicator) Close() {
	cc.closeOnce.Do(func() {
		for i := 0; i < 3; i++ {
			cc.Progress()
		}
	})
}
