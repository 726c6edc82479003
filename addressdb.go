package transport

import "context"

// AddressDB resolves UUIDs and ranks to EndpointInfo (spec §3, §4.2). A
// rank may own more than one UUID-identified endpoint (one per Worker it
// exposes), so the model is {rank -> ordered sequence of UUID}, plus a
// {UUID -> Address} lookup table. Two implementations are provided:
// CollectiveDB (backed by an all-gather Bootstrap) and SimpleDB (local-only,
// populated by out-of-band Insert calls).
type AddressDB interface {
	// Rank returns the rank this AddressDB instance belongs to.
	Rank() int32
	// Size returns the job size (total rank count) this AddressDB was
	// configured with.
	Size() int32
	// EstSize returns the estimated number of endpoints this AddressDB
	// expects to eventually hold, used to pre-size backend-internal
	// endpoint tables (spec §4.2, §6.1).
	EstSize() int32
	// Find returns id's Address, or false if id has not been learned yet.
	Find(id UUID) (Address, bool)
	// FindRank returns the index-th UUID registered for rank (in
	// registration order), or false if rank has fewer than index+1
	// registered endpoints.
	FindRank(rank int32, index int) (UUID, bool)
	// Insert records id/addr locally, making it visible to subsequent Find/
	// FindRank calls (and, for CollectiveDB, to the next Synchronize
	// round).
	Insert(id UUID, addr Address)
	// Synchronize exchanges newly Inserted entries with peers. SimpleDB
	// returns ErrNoCollectiveBootstrap: it has no collective channel.
	Synchronize(ctx context.Context) error
}
