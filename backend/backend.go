// Package backend defines the Backend Contract (spec §6.1, §9): the
// dynamic-dispatch boundary the core transport package is generic over. A
// backend owns the actual wire: worker handles, endpoints, and tag-matched
// non-blocking send/recv primitives. The core never depends on a concrete
// backend; it only depends on Contract.
//
// Two implementations ship in sibling packages: backend/memory (an
// in-process loopback with no goroutines of its own, standing in for an MPI-style
// tag-matching backend) and backend/stream (a net.Conn/TCP backend,
// standing in for a UCX-style reliable-datagram backend). Both satisfy the
// same Contract, so the core above them is fully backend-agnostic.
package backend

import "errors"

// ThreadMode is the thread-safety level a Worker is created with.
type ThreadMode int

const (
	// ThreadModeSingle: the worker is bound to exactly one calling
	// goroutine; the backend performs no internal locking for it.
	ThreadModeSingle ThreadMode = iota
	// ThreadModeSerialized: the worker may be called from multiple
	// goroutines, serialized by a caller-held lock (the backend itself
	// assumes calls are already serialized; it adds no locking of its own).
	ThreadModeSerialized
)

func (m ThreadMode) String() string {
	if m == ThreadModeSerialized {
		return "serialized"
	}
	return "single"
}

// Features enumerate optional backend capabilities requested at Init.
type Features int

const (
	// FeatureTagMatching is the only feature the core requires.
	FeatureTagMatching Features = 1 << iota
)

// Params configures Contract.Init (spec §6.1).
type Params struct {
	Features        Features
	RequestSize     int
	TagSenderMask   uint64
	MTWorkersShared bool
	EstimatedNumEPs int
}

// Capabilities is what Contract.Init reports back: the actual internal
// request size and the thread-mode actually granted (which may exceed, but
// must not fall below, what the core requires).
type Capabilities struct {
	RequestSize int
	ThreadMode  ThreadMode
}

// Status is the result of RequestCheckStatus.
type Status int

const (
	StatusOK Status = iota
	StatusInProgress
	StatusError
)

// Address is an opaque, variable-length peer address (spec §3). The core
// package re-exports this as transport.Address (a type alias) since a
// Contract implementation is the only thing that knows how to construct one.
type Address []byte

// Clone returns a copy of the address bytes, safe to retain beyond the
// lifetime of the buffer a is backed by.
func (a Address) Clone() Address {
	if a == nil {
		return nil
	}
	out := make(Address, len(a))
	copy(out, a)
	return out
}

// Worker is an opaque backend-level worker handle.
type Worker interface{ isWorker() }

// Endpoint is an opaque backend-level connected-endpoint handle.
type Endpoint interface{ isEndpoint() }

// Op is an opaque backend-level in-progress operation handle, as returned by
// TagSendNB / TagRecvNB / WorkerFlushNB. A nil Op paired with a non-nil,
// non-ErrInline error means the submission failed outright.
type Op interface{ isOp() }

// ErrInline is returned (with a nil Op) by TagSendNB / TagRecvNB /
// WorkerFlushNB when the operation completed before the call returned. Go
// has no "null-pointer-as-status" convention, so a sentinel error plays that
// role explicitly (spec §6.1's "inline completion").
var ErrInline = errors.New("backend: operation completed inline")

// Contract is the Backend Contract (spec §6.1). Implementations must be
// safe for the concurrency discipline spec/§5 requires of the core: a
// ThreadModeSingle worker is only ever touched by one goroutine; a
// ThreadModeSerialized worker's calls are already serialized by the caller.
type Contract interface {
	// Init prepares the backend runtime and reports the capabilities
	// actually granted.
	Init(Params) (Capabilities, error)
	// Shutdown tears down the backend runtime. Must be called only after
	// every Worker created from this Contract has been closed.
	Shutdown() error

	// WorkerCreate creates a worker with the requested thread mode,
	// returning the worker handle and its local Address.
	WorkerCreate(mode ThreadMode) (Worker, Address, error)
	// EndpointConnect connects from w to the peer at addr.
	EndpointConnect(w Worker, addr Address) (Endpoint, error)

	// TagSendNB posts a non-blocking tagged send. cb is invoked exactly
	// once when the operation completes (successfully or not): from within
	// TagSendNB itself when it returns ErrInline (as backend/memory and
	// backend/stream always do), otherwise from a backend-internal
	// goroutine or from within WorkerProgress.
	TagSendNB(ep Endpoint, buf []byte, tag uint64, cb func(error)) (Op, error)
	// TagRecvNB posts a non-blocking tagged receive matching tag under
	// mask. cb is invoked exactly once on completion, receiving the number
	// of bytes written into buf.
	TagRecvNB(w Worker, buf []byte, tag, mask uint64, cb func(n int, err error)) (Op, error)

	// RequestCheckStatus probes an in-progress Op without blocking.
	RequestCheckStatus(op Op) Status
	// RequestFree releases an Op that TagSendNB/TagRecvNB/WorkerFlushNB
	// returned with a nil error. Package transport never calls it: a Future
	// drops its Op without freeing it. backend/memory and backend/stream
	// keep nothing per Op and implement RequestFree as a no-op.
	RequestFree(op Op)

	// WorkerProgress advances the backend by some unit of work; may invoke
	// completion callbacks registered on that worker.
	WorkerProgress(w Worker)
	// WorkerFlushNB requests a graceful drain of w's outstanding sends.
	WorkerFlushNB(w Worker, cb func(error)) (Op, error)
	// WorkerDestroy releases a worker and its resources. Must be called
	// after WorkerFlushNB has completed.
	WorkerDestroy(w Worker) error

	// CancelRequest attempts to cancel an in-progress Op, returning true if
	// the backend accepted the cancellation (spec §4.5's best-effort
	// cancel()).
	CancelRequest(op Op) bool
}
