package transport

import (
	"context"
	"sync"
)

// SimpleDB is a local-only AddressDB (spec §4.2): peers are registered via
// out-of-band EndpointInfo exchange (e.g. an external rendezvous file or
// command-line argument), never collectively. Synchronize always fails with
// ErrNoCollectiveBootstrap.
type SimpleDB struct {
	rank    int32
	size    int32
	estSize int32

	mu        sync.RWMutex
	addresses map[UUID]Address
	byRank    map[int32][]UUID
}

// NewSimpleDB returns an empty SimpleDB for rank within a job of size,
// expecting roughly estSize endpoints to eventually be Inserted.
func NewSimpleDB(rank, size, estSize int32) *SimpleDB {
	return &SimpleDB{
		rank:      rank,
		size:      size,
		estSize:   estSize,
		addresses: make(map[UUID]Address),
		byRank:    make(map[int32][]UUID),
	}
}

func (d *SimpleDB) Rank() int32    { return d.rank }
func (d *SimpleDB) Size() int32    { return d.size }
func (d *SimpleDB) EstSize() int32 { return d.estSize }

func (d *SimpleDB) Find(id UUID) (Address, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	addr, ok := d.addresses[id]
	return addr, ok
}

func (d *SimpleDB) FindRank(rank int32, index int) (UUID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := d.byRank[rank]
	if index < 0 || index >= len(ids) {
		return 0, false
	}
	return ids[index], true
}

func (d *SimpleDB) Insert(id UUID, addr Address) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.addresses[id]; !exists {
		rank := id.Rank()
		d.byRank[rank] = append(d.byRank[rank], id)
	}
	d.addresses[id] = addr
}

func (d *SimpleDB) Synchronize(context.Context) error { return ErrNoCollectiveBootstrap }

var _ AddressDB = (*SimpleDB)(nil)
