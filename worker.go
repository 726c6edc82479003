package transport

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ghex-go/transport/backend"
)

// spinLock is a CAS-based mutual-exclusion lock with no OS-level blocking,
// matching this transport's "progress only ever happens via an explicit
// call, never a blocking wait" concurrency model (spec §5): a Worker shared
// across goroutines serializes access with this instead of sync.Mutex so a
// caller spinning on Future.Wait and a caller holding the lock are both
// making forward progress via the same Gosched-yielding discipline.
type spinLock struct {
	held atomic.Bool
}

func (l *spinLock) Lock() {
	for !l.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (l *spinLock) TryLock() bool { return l.held.CompareAndSwap(false, true) }

func (l *spinLock) Unlock() { l.held.Store(false) }

// Worker is a tag-matching endpoint for point-to-point sends and receives
// (spec §3, §4.4). A Worker created ThreadModeSingle must only ever be
// touched by one goroutine; a ThreadModeSerialized ("shared") Worker may be
// touched by several if they serialize through its spinLock. The Worker does
// not take that lock itself: Send, Recv, Progress and Future polling run
// unlocked, and only SendTS/RecvTS or a caller holding Lock serialize access.
type Worker struct {
	ctx    *Context
	index  int
	shared bool
	mode   backend.ThreadMode

	bw      backend.Worker
	addr    Address
	lock    spinLock
	cpu     int // PinToCPU target; -1 if unset
	epMu    sync.Mutex
	epCache map[int32]*Endpoint
}

// Index is the Worker's position in its owning Context's worker set.
func (w *Worker) Index() int { return w.index }

// Shared reports whether this Worker was created with ThreadModeSerialized.
func (w *Worker) Shared() bool { return w.shared }

// Address is this Worker's locally bound address, as published through the
// address database so peers can connect to it.
func (w *Worker) Address() Address { return w.addr }

// Lock acquires the Worker's serialization lock. A no-op cost-wise is not
// provided for ThreadModeSingle workers: callers that know a Worker is
// single-threaded simply never call Lock, matching spec §5's "no locking
// unless the worker is shared" rule.
func (w *Worker) Lock() { w.lock.Lock() }

// TryLock attempts to acquire the lock without blocking.
func (w *Worker) TryLock() bool { return w.lock.TryLock() }

// Unlock releases the lock acquired by Lock/TryLock.
func (w *Worker) Unlock() { w.lock.Unlock() }

// Progress drives the backend forward once, dispatching any completions it
// observes. Must be called for any non-inline Recv to ever complete (spec
// §5).
func (w *Worker) Progress() {
	w.ctx.bc.WorkerProgress(w.bw)
}

// Connect resolves rank to a connected Endpoint, consulting the owning
// Context's AddressDB on a cache miss and caching the result for reuse
// (spec §4.2, §4.4).
func (w *Worker) Connect(rank int32) (*Endpoint, error) {
	w.epMu.Lock()
	if ep, ok := w.epCache[rank]; ok {
		w.epMu.Unlock()
		return ep, nil
	}
	w.epMu.Unlock()

	id, ok := w.ctx.db.FindRank(rank, 0)
	if !ok {
		return nil, newTaggedError(ErrPeerUnknown, rank, 0, OpConnect)
	}
	addr, ok := w.ctx.db.Find(id)
	if !ok {
		return nil, newTaggedError(ErrPeerUnknown, rank, 0, OpConnect)
	}
	conn, err := w.ctx.bc.EndpointConnect(w.bw, addr)
	if err != nil {
		return nil, newTaggedError(err, rank, 0, OpConnect)
	}
	ep := &Endpoint{PeerRank: rank, PeerUUID: id, PeerAddress: addr, conn: conn}

	w.epMu.Lock()
	if w.epCache == nil {
		w.epCache = make(map[int32]*Endpoint)
	}
	w.epCache[rank] = ep
	w.epMu.Unlock()
	return ep, nil
}

// Flush requests a graceful drain of this Worker's outstanding sends,
// returning a Future that completes once the backend reports them all
// delivered.
func (w *Worker) Flush() (Future, error) {
	state := &requestState{}
	_, err := w.ctx.bc.WorkerFlushNB(w.bw, func(e error) { state.complete(0, e) })
	if err != nil && !errors.Is(err, backend.ErrInline) {
		return Future{}, newTaggedError(err, -1, 0, OpFlush)
	}
	return newFuture(state, w.Progress), nil
}

// Close flushes the backend worker (Flush, spinning until its Future is
// ready) and then destroys it. Callers must not submit further operations
// afterward.
func (w *Worker) Close() error {
	f, err := w.Flush()
	if err != nil {
		return err
	}
	if err := f.Wait(context.Background()); err != nil {
		return err
	}
	return w.ctx.bc.WorkerDestroy(w.bw)
}

// Send posts a non-blocking tagged send of an owned buffer to ep (spec
// §4.4). The returned Future has no working Cancel: a submitted send in
// this transport always completes inline, so there is nothing left to
// cancel by the time Send returns.
func Send[T any](w *Worker, ep *Endpoint, msg OwnedBuffer[T], tag uint32) (Future, error) {
	return sendBytes(w, ep, msg.Bytes(), tag)
}

// SendShared posts a send of a SharedBuffer, suitable for fanning the same
// clone out to several Endpoints via repeated calls (spec §4.7).
func SendShared[T any](w *Worker, ep *Endpoint, msg SharedBuffer[T], tag uint32) (Future, error) {
	return sendBytes(w, ep, msg.Bytes(), tag)
}

// SendRef posts a send of a borrowed message. The caller must keep msg's
// backing array alive and unmodified until the returned Future is Ready.
func SendRef[T any](w *Worker, ep *Endpoint, msg RefMessage[T], tag uint32) (Future, error) {
	return sendBytes(w, ep, msg.Bytes(), tag)
}

func sendBytes(w *Worker, ep *Endpoint, data []byte, tag uint32) (Future, error) {
	wireTag := EncodeTag(tag, w.ctx.cfg.Rank)
	state := &requestState{}
	_, err := w.ctx.bc.TagSendNB(ep.conn, data, wireTag, func(e error) { state.complete(len(data), e) })
	if err != nil && !errors.Is(err, backend.ErrInline) {
		return Future{}, newTaggedError(fmt.Errorf("%w: %w", ErrSubmissionFailed, err), ep.PeerRank, tag, OpSend)
	}
	return newFuture(state, w.Progress), nil
}

// Recv posts a non-blocking tagged receive into buf, matching tag from src
// (or AnySource) under the appropriate mask (spec §4.4, §4.1). buf must
// stay alive and unmodified until the returned Future is Ready.
func Recv[T any](w *Worker, src int32, tag uint32, buf []T) (Future, error) {
	mask := maskFor(src)
	wireTag := EncodeTag(tag, src)
	data := asBytes(buf)
	state := &requestState{}
	op, err := w.ctx.bc.TagRecvNB(w.bw, data, wireTag, mask, func(n int, e error) { state.complete(n, e) })
	if err != nil && !errors.Is(err, backend.ErrInline) {
		return Future{}, newTaggedError(fmt.Errorf("%w: %w", ErrSubmissionFailed, err), src, tag, OpRecv)
	}
	if op == nil {
		return newFuture(state, w.Progress), nil
	}
	cancel := func() bool { return w.ctx.bc.CancelRequest(op) }
	return newCancellableFuture(state, w.Progress, cancel), nil
}
