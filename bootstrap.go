package transport

import (
	"context"
	"sync"
)

// Bootstrap is the collective all-gather channel CollectiveDB.Synchronize
// exchanges entries over (spec §4.2's "collective bootstrap"). A real
// deployment would implement this over MPI_Allgather or an equivalent
// rendezvous service; LocalBootstrap below is the in-process stand-in used
// by tests and single-binary examples running multiple simulated ranks as
// goroutines.
type Bootstrap interface {
	// AllGather exchanges local (this participant's currently Inserted
	// endpoints, one rank may own several) with every other participant and
	// returns every participant's contribution, local included, indexed by
	// arrival order. A rank may contribute more than one EndpointInfo (one
	// per Worker it exposes), hence the nested slice.
	AllGather(ctx context.Context, local []EndpointInfo) ([][]EndpointInfo, error)
}

// LocalBootstrap is a barrier-synchronized, in-process Bootstrap for size
// participants. Every participant must call AllGather exactly once per
// round; AllGather blocks until all size contributions for that round have
// arrived, then returns the same result to everyone.
type LocalBootstrap struct {
	size int

	mu    sync.Mutex
	round *bootstrapRound
}

type bootstrapRound struct {
	mu      sync.Mutex
	entries [][]EndpointInfo
	ready   chan struct{}
	result  [][]EndpointInfo
}

func newBootstrapRound() *bootstrapRound {
	return &bootstrapRound{ready: make(chan struct{})}
}

// NewLocalBootstrap returns a LocalBootstrap for size participants.
func NewLocalBootstrap(size int) *LocalBootstrap {
	return &LocalBootstrap{size: size, round: newBootstrapRound()}
}

func (b *LocalBootstrap) AllGather(ctx context.Context, local []EndpointInfo) ([][]EndpointInfo, error) {
	b.mu.Lock()
	r := b.round
	b.mu.Unlock()

	r.mu.Lock()
	r.entries = append(r.entries, append([]EndpointInfo(nil), local...))
	if len(r.entries) == b.size {
		r.result = append([][]EndpointInfo(nil), r.entries...)
		close(r.ready)

		b.mu.Lock()
		b.round = newBootstrapRound()
		b.mu.Unlock()
	}
	r.mu.Unlock()

	select {
	case <-r.ready:
		return r.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
