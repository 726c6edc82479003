package transport

import "github.com/ghex-go/transport/backend"

// Address is an opaque, variable-length peer address (spec §3), defined by
// the backend package since constructing one requires backend-specific
// knowledge (a TCP host:port, an in-process worker slot, ...). It is
// copyable; lookup is always by UUID or rank, never by comparing address
// bytes, so Address intentionally does not implement any ordering or
// equality contract beyond Go's native slice semantics.
type Address = backend.Address

// EndpointInfo is the exchange unit named in spec §4.2: a peer's UUID and
// Address, as exchanged by Bootstrap.AllGather and passed to NewCollectiveDB
// for this rank's own workers.
type EndpointInfo struct {
	UUID    UUID
	Address Address
}
