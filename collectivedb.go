package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ghex-go/transport/internal/fanout"
)

// CollectiveDB is an AddressDB backed by a Bootstrap all-gather (spec
// §4.2). Synchronize exchanges every participant's currently Inserted
// entries and merges in only the ones this rank has not already learned
// (tracked as a golang-set of known UUIDs, diffed each round so repeated
// Synchronize calls do only incremental work), mirroring the
// insert-then-periodically-sync pattern of a real collective address
// exchange. The data model is spec §3's {rank -> ordered sequence of UUID}
// plus {UUID -> Address}, so a rank that exposes several Workers (and
// therefore several UUID-identified endpoints) is represented faithfully.
// Entries learned through Synchronize are also marshaled into a fastcache
// byte cache keyed by UUID, which Find consults only when the addresses map
// has no entry for the UUID.
type CollectiveDB struct {
	bootstrap Bootstrap
	rank      int32
	size      int32
	estSize   int32

	mu        sync.RWMutex
	addresses map[UUID]Address
	byRank    map[int32][]UUID
	known     mapset.Set[UUID]
	cache     *fastcache.Cache
}

// NewCollectiveDB returns a CollectiveDB for rank within a job of size,
// expecting roughly estSize endpoints total, that gathers over bootstrap.
// self lists this rank's own EndpointInfo entries (one per locally exposed
// Worker), included in every AllGather round. cacheSizeBytes sizes the
// fastcache byte cache (spec EXPANDED C11's dependency wiring); a small
// value like 1<<20 is plenty for UUID/address-sized entries.
func NewCollectiveDB(bootstrap Bootstrap, rank, size, estSize int32, self []EndpointInfo, cacheSizeBytes int) *CollectiveDB {
	d := &CollectiveDB{
		bootstrap: bootstrap,
		rank:      rank,
		size:      size,
		estSize:   estSize,
		addresses: make(map[UUID]Address),
		byRank:    make(map[int32][]UUID),
		known:     mapset.NewSet[UUID](),
		cache:     fastcache.New(cacheSizeBytes),
	}
	for _, info := range self {
		d.insertLocked(info.UUID, info.Address)
		d.known.Add(info.UUID)
	}
	return d
}

func (d *CollectiveDB) Rank() int32    { return d.rank }
func (d *CollectiveDB) Size() int32    { return d.size }
func (d *CollectiveDB) EstSize() int32 { return d.estSize }

func (d *CollectiveDB) Find(id UUID) (Address, bool) {
	d.mu.RLock()
	addr, ok := d.addresses[id]
	d.mu.RUnlock()
	if ok {
		return addr, true
	}

	if buf := d.cache.Get(nil, uuidKey(id)); buf != nil {
		addr, err := unmarshalAddress(buf)
		if err == nil {
			return addr, true
		}
	}
	return nil, false
}

func (d *CollectiveDB) FindRank(rank int32, index int) (UUID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := d.byRank[rank]
	if index < 0 || index >= len(ids) {
		return 0, false
	}
	return ids[index], true
}

func (d *CollectiveDB) Insert(id UUID, addr Address) {
	d.mu.Lock()
	d.insertLocked(id, addr)
	d.mu.Unlock()
}

func (d *CollectiveDB) insertLocked(id UUID, addr Address) {
	if _, exists := d.addresses[id]; !exists {
		rank := id.Rank()
		d.byRank[rank] = append(d.byRank[rank], id)
	}
	d.addresses[id] = addr
}

// localEntries returns every EndpointInfo this rank has Inserted so far,
// for contribution to the next AllGather round.
func (d *CollectiveDB) localEntries() []EndpointInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := d.byRank[d.rank]
	out := make([]EndpointInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, EndpointInfo{UUID: id, Address: d.addresses[id]})
	}
	return out
}

// Synchronize runs one AllGather round and merges in every entry this
// CollectiveDB has not already seen. New entries are marshaled in parallel
// via internal/fanout, then merged and cached.
func (d *CollectiveDB) Synchronize(ctx context.Context) error {
	local := d.localEntries()

	perParticipant, err := d.bootstrap.AllGather(ctx, local)
	if err != nil {
		return fmt.Errorf("collectivedb: all-gather: %w", err)
	}

	var all []EndpointInfo
	for _, entries := range perParticipant {
		all = append(all, entries...)
	}

	d.mu.Lock()
	fresh := make([]EndpointInfo, 0, len(all))
	for _, info := range all {
		if !d.known.Contains(info.UUID) {
			fresh = append(fresh, info)
		}
	}
	d.mu.Unlock()
	if len(fresh) == 0 {
		return nil
	}

	marshaled, errs := fanout.Run(ctx, fresh, 4, func(_ context.Context, info EndpointInfo) ([]byte, error) {
		return marshalAddress(info.Address), nil
	})
	for _, e := range errs {
		if e != nil {
			return fmt.Errorf("collectivedb: marshal: %w", e)
		}
	}

	d.mu.Lock()
	for i, info := range fresh {
		d.insertLocked(info.UUID, info.Address)
		d.known.Add(info.UUID)
		d.cache.Set(uuidKey(info.UUID), marshaled[i])
	}
	d.mu.Unlock()
	return nil
}

// KnownRanks returns every rank this CollectiveDB has learned at least one
// endpoint for.
func (d *CollectiveDB) KnownRanks() []int32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ranks := make([]int32, 0, len(d.byRank))
	for rank := range d.byRank {
		ranks = append(ranks, rank)
	}
	return ranks
}

func uuidKey(id UUID) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func marshalAddress(addr Address) []byte {
	return append([]byte(nil), addr...)
}

func unmarshalAddress(buf []byte) (Address, error) {
	return Address(buf).Clone(), nil
}

var _ AddressDB = (*CollectiveDB)(nil)
