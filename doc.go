// Package transport is a tagged point-to-point transport layer for
// high-performance, multi-threaded (goroutine-based) message exchange over a
// pluggable wire backend.
//
// The package provides the concurrency and completion machinery that sits
// above a backend.Contract implementation (see transport/backend):
//
//   - Context / Worker / Communicator: bootstrap, own the backend runtime and
//     its workers, and expose a cheap-to-copy Communicator bound to a single
//     Worker that carries both its sends and its receives.
//   - Future: a non-blocking completion handle for a single submitted send
//     or recv, with Ready/Wait/TestOnly/Cancel.
//   - continuation.ContinuationCommunicator (transport/continuation): a
//     thread-safe dispatcher that accepts send/recv submissions together
//     with a user callback, drives them to completion, and invokes the
//     callback on whichever goroutine calls Progress.
//
// Constructors
//   - NewContext(cfg Config, backend.Contract, AddressDB): plain constructor.
//   - NewContextOptions(opts ...Option): functional-options constructor;
//     prefer this in new code.
//
// Tag encoding
// Every submitted operation composes a 64-bit wire tag from a 32-bit user
// tag and the sender's rank (see tag.go). Receives posted for a known
// source use an exact-match mask; receives posted for AnySource use a
// wildcard mask over the lower 32 bits.
//
// Concurrency
// Thread-private workers are bound to exactly one goroutine and require no
// locking. The shared worker may be used from any goroutine and serializes
// access with a spin-lock. Future.Wait and
// ContinuationCommunicator.Progress-loops are the only suspension points,
// and both spin (via runtime.Gosched) rather than block on a channel or
// condition variable, matching the backend's progress-driven completion
// model.
//
// Logging
// Context accepts a *zap.Logger via WithLogger (zap.NewNop by default) and
// uses it for worker lifecycle and teardown events, tagged with RunID for
// cross-rank correlation.
package transport
