package transport

import "sync/atomic"

// UUID is a process-local, run-wide unique identifier (spec §3). The upper
// 32 bits are the owning rank; the lower 32 bits are a process-local counter
// incremented atomically on each generation. It is globally unique across a
// run provided fewer than 2^32 workers are created per rank (P5).
type UUID uint64

// Rank returns the rank that minted this UUID.
func (u UUID) Rank() int32 { return int32(uint64(u) >> 32) }

// Counter returns the process-local sequence number component.
func (u UUID) Counter() uint32 { return uint32(uint64(u)) }

func newUUID(rank int32, counter uint32) UUID {
	return UUID(uint64(uint32(rank))<<32 | uint64(counter))
}

// uuidGenerator mints UUIDs salted with a fixed rank. Safe for concurrent use.
type uuidGenerator struct {
	rank    int32
	counter atomic.Uint32
}

func newUUIDGenerator(rank int32) *uuidGenerator {
	return &uuidGenerator{rank: rank}
}

// Next returns the next UUID for this generator's rank. Each call observes a
// strictly increasing counter value, so no two calls (on this generator, and
// by construction no two generators salted with different ranks) ever
// produce the same UUID.
func (g *uuidGenerator) Next() UUID {
	c := g.counter.Add(1)
	return newUUID(g.rank, c)
}
