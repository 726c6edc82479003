package transport

import "errors"

// Namespace prefixes every sentinel error message in this package, mirroring
// how backend-specific errors are namespaced (e.g. "transport/backend/stream: ...").
const Namespace = "transport"

// Error taxonomy (spec §7).
var (
	// ErrConfigurationError reports a Context that cannot be constructed as
	// configured: no backend, DefaultWorkers < 1, a failed backend Init or
	// WorkerCreate, or a thread mode the backend did not grant. Fatal at
	// Context construction.
	ErrConfigurationError = errors.New(Namespace + ": invalid configuration")

	// ErrSubmissionFailed reports that the backend rejected a send/recv post;
	// Send and Recv wrap the backend's own error with it.
	ErrSubmissionFailed = errors.New(Namespace + ": submission to backend failed")

	// ErrShutdown names a Context that is being or has been torn down. Send
	// and Recv do not check whether their Context is closed, so no function
	// in this package returns it.
	ErrShutdown = errors.New(Namespace + ": context is shutting down")

	// ErrPeerUnknown reports that connect(rank) found no address DB entry.
	ErrPeerUnknown = errors.New(Namespace + ": peer not found in address database")

	// ErrCancelledMatched names a receive cancelled after it was already
	// matched by the backend. backend/memory and backend/stream never produce
	// it: their cancel only succeeds before a match, and Future.Cancel then
	// returns false instead (DESIGN.md Open Question 4).
	ErrCancelledMatched = errors.New(Namespace + ": receive cancelled after match")

	// ErrUsageError names a caller-detectable misuse (nil message, etc.). No
	// function in this package returns it; tag range is enforced by the
	// uint32 tag parameter type.
	ErrUsageError = errors.New(Namespace + ": invalid usage")

	// ErrNoCollectiveBootstrap is returned by SimpleDB.Synchronize, which has
	// no collective channel to synchronize over.
	ErrNoCollectiveBootstrap = errors.New(Namespace + ": address db has no collective bootstrap")

	// ErrUnsafeAsyncBorrow is returned by SendMulti when a borrowed message
	// is combined with a non-nil callback (Open Question 3, see DESIGN.md).
	ErrUnsafeAsyncBorrow = errors.New(Namespace + ": borrowed message cannot be used with an asynchronous send_multi callback")
)
