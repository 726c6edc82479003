package continuation

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueue_FIFOSingleThreaded(t *testing.T) {
	q := newQueue[int]()
	for i := 0; i < 10; i++ {
		q.push(i)
	}
	for i := 0; i < 10; i++ {
		v, ok := q.pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	_, ok := q.pop()
	require.False(t, ok)
}

func TestQueue_ConcurrentPushPopNoLoss(t *testing.T) {
	q := newQueue[int]()
	const producers = 8
	const perProducer = 2000
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.push(p*perProducer + i)
			}
		}()
	}
	wg.Wait()

	var got []int
	var mu sync.Mutex
	var consumers sync.WaitGroup
	for c := 0; c < 4; c++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				v, ok := q.pop()
				if !ok {
					return
				}
				mu.Lock()
				got = append(got, v)
				mu.Unlock()
			}
		}()
	}
	consumers.Wait()

	require.Len(t, got, producers*perProducer)
	sort.Ints(got)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}
