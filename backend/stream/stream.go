// Package stream implements backend.Contract over net.Conn/TCP: a worker
// listens on one socket, endpoints are outbound dials, and each connection
// has a background reader goroutine that frames incoming messages and
// stages them on the worker's match.Matcher. It stands in for a UCX-style
// reliable-datagram backend.
//
// Wire format per message: 8-byte big-endian tag, 4-byte big-endian
// length, then the payload. No other framing or handshake is performed;
// this is a deliberately minimal reliable-stream backend, not a production
// wire protocol.
package stream

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/ghex-go/transport/backend"
	"github.com/ghex-go/transport/backend/internal/match"
)

const headerLen = 8 + 4

// Contract is a stream-backend instance for one rank.
type Contract struct {
	mu      sync.Mutex
	workers []*worker
}

// New returns an empty stream Contract.
func New() *Contract { return &Contract{} }

func (c *Contract) Init(p backend.Params) (backend.Capabilities, error) {
	if p.Features&backend.FeatureTagMatching == 0 {
		return backend.Capabilities{}, fmt.Errorf("stream: backend requires FeatureTagMatching")
	}
	return backend.Capabilities{RequestSize: 64, ThreadMode: backend.ThreadModeSerialized}, nil
}

func (c *Contract) Shutdown() error { return nil }

type worker struct {
	ln      net.Listener
	matcher *match.Matcher

	mu      sync.Mutex
	conns   []net.Conn
	onError func(error)
}

func (w *worker) isWorker() {}

// WorkerCreate opens a TCP listener on an ephemeral port and returns its
// dial-able address ("host:port") plus a background accept loop that frames
// and stages every inbound connection's messages.
func (c *Contract) WorkerCreate(_ backend.ThreadMode) (backend.Worker, backend.Address, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, nil, fmt.Errorf("stream: listen: %w", err)
	}
	w := &worker{ln: ln, matcher: match.New()}

	c.mu.Lock()
	c.workers = append(c.workers, w)
	c.mu.Unlock()

	go w.acceptLoop()
	return w, backend.Address(ln.Addr().String()), nil
}

func (w *worker) acceptLoop() {
	for {
		conn, err := w.ln.Accept()
		if err != nil {
			return // listener closed: WorkerDestroy
		}
		w.trackConn(conn)
		go readLoop(conn, w.matcher, w.forwardError)
	}
}

func (w *worker) trackConn(conn net.Conn) {
	w.mu.Lock()
	w.conns = append(w.conns, conn)
	w.mu.Unlock()
}

func (w *worker) forwardError(err error) {
	w.mu.Lock()
	cb := w.onError
	w.mu.Unlock()
	if cb != nil && err != io.EOF {
		cb(err)
	}
}

// readLoop decodes framed messages off conn and stages them on m until the
// connection is closed or a frame error occurs. One goroutine per
// connection, adapted from the accept-loop-plus-forwarder shape of a
// worker-pool error forwarder: reads happen off the caller's goroutine
// entirely, and any terminal error is reported through onError rather than
// panicking or silently dropping the connection.
func readLoop(conn net.Conn, m *match.Matcher, onError func(error)) {
	defer conn.Close()
	hdr := make([]byte, headerLen)
	for {
		if _, err := io.ReadFull(conn, hdr); err != nil {
			onError(err)
			return
		}
		tag := binary.BigEndian.Uint64(hdr[0:8])
		n := binary.BigEndian.Uint32(hdr[8:12])
		data := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(conn, data); err != nil {
				onError(err)
				return
			}
		}
		m.Deliver(match.Envelope{Data: data, Tag: tag})
	}
}

type endpoint struct {
	mu   sync.Mutex
	conn net.Conn
}

func (e *endpoint) isEndpoint() {}

// EndpointConnect dials addr and also starts a reader on the dialed
// connection, since a stream backend's connections are full-duplex: the
// peer may send back over the same socket.
func (c *Contract) EndpointConnect(w backend.Worker, addr backend.Address) (backend.Endpoint, error) {
	wk := w.(*worker)
	conn, err := net.Dial("tcp", string(addr))
	if err != nil {
		return nil, fmt.Errorf("stream: dial %q: %w", addr, err)
	}
	wk.trackConn(conn)
	go readLoop(conn, wk.matcher, wk.forwardError)
	return &endpoint{conn: conn}, nil
}

func (c *Contract) TagSendNB(ep backend.Endpoint, buf []byte, tag uint64, cb func(error)) (backend.Op, error) {
	e := ep.(*endpoint)
	hdr := make([]byte, headerLen)
	binary.BigEndian.PutUint64(hdr[0:8], tag)
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(buf)))

	e.mu.Lock()
	_, err := e.conn.Write(hdr)
	if err == nil {
		_, err = e.conn.Write(buf)
	}
	e.mu.Unlock()

	cb(err)
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

// OnError registers a callback invoked whenever a worker's background
// reader loops observe a non-EOF connection error. Not part of
// backend.Contract; it is a stream-specific extension WorkerDestroy does
// not need and the core does not depend on, exposed for callers that want
// to surface transport-level faults (a peer crashing mid-stream) outside
// the tag-matching completion path.
func (c *Contract) OnError(w backend.Worker, cb func(error)) {
	wk := w.(*worker)
	wk.mu.Lock()
	wk.onError = cb
	wk.mu.Unlock()
}

func (c *Contract) WorkerDestroy(w backend.Worker) error {
	wk := w.(*worker)
	wk.mu.Lock()
	conns := wk.conns
	wk.conns = nil
	wk.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	return wk.ln.Close()
}

func (c *Contract) CancelRequest(op backend.Op) bool {
	r, ok := op.(recvOp)
	if !ok {
		return false
	}
	return r.wk.matcher.CancelRecv(r.r)
}

var _ backend.Contract = (*Contract)(nil)
