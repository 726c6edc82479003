// Package memory implements backend.Contract as an in-process loopback:
// every Worker is a Go struct, every Endpoint a direct pointer to its peer
// worker, and "the wire" is the match.Matcher staging queue. It stands in
// for an MPI-style tag-matching backend in tests and single-process
// examples; no goroutines, sockets, or serialization are involved.
//
// Multiple ranks in the same process share a *Fabric, which is simply the
// address -> worker registry EndpointConnect resolves against.
package memory

import (
	"fmt"
	"sync"

	"github.com/ghex-go/transport/backend"
	"github.com/ghex-go/transport/backend/internal/match"
)

// Fabric is the shared registry a set of in-process ranks connect through.
// Tests typically create one Fabric and one Contract per simulated rank.
type Fabric struct {
	mu       sync.Mutex
	registry map[string]*worker
}

// NewFabric returns an empty, ready-to-use Fabric.
func NewFabric() *Fabric {
	return &Fabric{registry: make(map[string]*worker)}
}

func (f *Fabric) register(w *worker) {
	f.mu.Lock()
	f.registry[string(w.addr)] = w
	f.mu.Unlock()
}

func (f *Fabric) unregister(w *worker) {
	f.mu.Lock()
	delete(f.registry, string(w.addr))
	f.mu.Unlock()
}

func (f *Fabric) lookup(addr backend.Address) (*worker, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.registry[string(addr)]
	return w, ok
}

// Contract is a memory-backend instance for a single rank.
type Contract struct {
	fabric *Fabric
	rank   int32

	mu   sync.Mutex
	next int
}

// New returns a Contract for rank, connected through fabric. Multiple
// Contracts sharing a Fabric simulate multiple ranks in one process.
func New(fabric *Fabric, rank int32) *Contract {
	return &Contract{fabric: fabric, rank: rank}
}

func (c *Contract) Init(p backend.Params) (backend.Capabilities, error) {
	if p.Features&backend.FeatureTagMatching == 0 {
		return backend.Capabilities{}, fmt.Errorf("memory: backend requires FeatureTagMatching")
	}
	return backend.Capabilities{RequestSize: 64, ThreadMode: backend.ThreadModeSerialized}, nil
}

func (c *Contract) Shutdown() error { return nil }

type worker struct {
	addr    backend.Address
	fabric  *Fabric
	matcher *match.Matcher
}

func (w *worker) isWorker() {}

func (c *Contract) WorkerCreate(_ backend.ThreadMode) (backend.Worker, backend.Address, error) {
	c.mu.Lock()
	idx := c.next
	c.next++
	c.mu.Unlock()

	addr := backend.Address(fmt.Sprintf("memory:%d:%d", c.rank, idx))
	w := &worker{addr: addr, fabric: c.fabric, matcher: match.New()}
	c.fabric.register(w)
	return w, addr, nil
}

type endpoint struct {
	peer *worker
}

func (e *endpoint) isEndpoint() {}

func (c *Contract) EndpointConnect(_ backend.Worker, addr backend.Address) (backend.Endpoint, error) {
	peer, ok := c.fabric.lookup(addr)
	if !ok {
		return nil, fmt.Errorf("memory: no worker registered at address %q", addr)
	}
	return &endpoint{peer: peer}, nil
}

type sendOp struct{}

func (sendOp) isOp() {}

// TagSendNB always completes inline: the payload is copied onto the
// destination's wire before this returns, so the caller's buffer is safe to
// reuse immediately, mirroring the eager small-message fast path of a real
// tag-matching transport.
func (c *Contract) TagSendNB(ep backend.Endpoint, buf []byte, tag uint64, cb func(error)) (backend.Op, error) {
	e := ep.(*endpoint)
	data := make([]byte, len(buf))
	copy(data, buf)
	e.peer.matcher.Deliver(match.Envelope{Data: data, Tag: tag})
	cb(nil)
	return nil, backend.ErrInline
}

type recvOp struct {
	r  *match.Recv
	wk *worker
}

func (recvOp) isOp() {}

func (c *Contract) TagRecvNB(w backend.Worker, buf []byte, tag, mask uint64, cb func(n int, err error)) (backend.Op, error) {
	wk := w.(*worker)
	r := &match.Recv{Buf: buf, Tag: tag, Mask: mask, CB: cb}
	n, inline := wk.matcher.PostRecv(r)
	if inline {
		cb(n, nil)
		return nil, backend.ErrInline
	}
	return recvOp{r: r, wk: wk}, nil
}

func (c *Contract) RequestCheckStatus(op backend.Op) backend.Status {
	r, ok := op.(recvOp)
	if !ok {
		return backend.StatusOK
	}
	if r.r.Done() {
		return backend.StatusOK
	}
	return backend.StatusInProgress
}

func (c *Contract) RequestFree(backend.Op) {}

func (c *Contract) WorkerProgress(w backend.Worker) {
	w.(*worker).matcher.Progress()
}

func (c *Contract) WorkerFlushNB(_ backend.Worker, cb func(error)) (backend.Op, error) {
	cb(nil)
	return nil, backend.ErrInline
}

func (c *Contract) WorkerDestroy(w backend.Worker) error {
	wk := w.(*worker)
	wk.fabric.unregister(wk)
	return nil
}

func (c *Contract) CancelRequest(op backend.Op) bool {
	r, ok := op.(recvOp)
	if !ok {
		return false
	}
	return r.wk.matcher.CancelRecv(r.r)
}

var _ backend.Contract = (*Contract)(nil)
