package transport

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUUID_RankAndCounterRoundtrip(t *testing.T) {
	u := newUUID(7, 42)
	require.Equal(t, int32(7), u.Rank())
	require.Equal(t, uint32(42), u.Counter())
}

func TestUUIDGenerator_Uniqueness(t *testing.T) {
	const n = 10_000
	g := newUUIDGenerator(3)
	seen := make(map[UUID]struct{}, n)
	for i := 0; i < n; i++ {
		u := g.Next()
		_, dup := seen[u]
		require.False(t, dup, "UUID %v generated twice", u)
		seen[u] = struct{}{}
		require.Equal(t, int32(3), u.Rank())
	}
}

func TestUUIDGenerator_ConcurrentUniqueness(t *testing.T) {
	const goroutines = 32
	const perGoroutine = 500

	g := newUUIDGenerator(1)
	results := make(chan UUID, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				results <- g.Next()
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[UUID]struct{}, goroutines*perGoroutine)
	for u := range results {
		_, dup := seen[u]
		require.False(t, dup, "duplicate UUID %v under concurrent generation", u)
		seen[u] = struct{}{}
	}
}

func TestUUIDGenerator_DistinctRanksNeverCollide(t *testing.T) {
	a := newUUIDGenerator(0)
	b := newUUIDGenerator(1)
	require.NotEqual(t, a.Next(), b.Next())
}
