// Package fanout runs a bounded number of tasks concurrently over a worker
// pool, adapted from ygrebnov-workers' dispatcher/worker/task split: a
// dispatcher reads items off a channel and hands each to a pooled worker,
// inflight count tracked by a WaitGroup, a worker recovering from task
// panics instead of taking the whole pool down with it. Used by
// CollectiveDB.Synchronize (parallel marshal of a bootstrap round's new
// entries).
package fanout

import (
	"context"
	"fmt"
	"sync"

	"github.com/ghex-go/transport/pool"
)

// Task is one unit of work: given ctx and its index in the original input,
// produce a result or an error.
type Task[T any, R any] struct {
	Index int
	Item  T
}

type result[R any] struct {
	index int
	value R
	err   error
}

type worker[T any, R any] struct {
	fn func(context.Context, T) (R, error)
}

func (w *worker[T, R]) execute(ctx context.Context, t Task[T, R]) (out result[R]) {
	out.index = t.Index
	defer func() {
		if p := recover(); p != nil {
			out.err = fmt.Errorf("fanout: task %d panicked: %v", t.Index, p)
		}
	}()
	out.value, out.err = w.fn(ctx, t.Item)
	return out
}

// Run executes fn over every element of items with at most concurrency
// goroutines in flight at once, returning results (and, parallel to them,
// errors) in input order. ctx cancellation stops dispatching new tasks but
// does not abort ones already started.
func Run[T any, R any](ctx context.Context, items []T, concurrency int, fn func(context.Context, T) (R, error)) ([]R, []error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency > len(items) {
		concurrency = len(items)
	}
	if len(items) == 0 {
		return nil, nil
	}

	tasks := make(chan Task[T, R])
	results := make([]R, len(items))
	errs := make([]error, len(items))

	p := pool.NewDynamic(func() interface{} { return &worker[T, R]{fn: fn} })

	var inflight sync.WaitGroup
	var dispatchWG sync.WaitGroup
	dispatchWG.Add(1)
	go func() {
		defer dispatchWG.Done()
		defer close(tasks)
		for i, item := range items {
			select {
			case <-ctx.Done():
				return
			case tasks <- Task[T, R]{Index: i, Item: item}:
			}
		}
	}()

	resultsCh := make(chan result[R], len(items))
	for i := 0; i < concurrency; i++ {
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			for t := range tasks {
				w := p.Get().(*worker[T, R])
				resultsCh <- w.execute(ctx, t)
				p.Put(w)
			}
		}()
	}

	dispatchWG.Wait()
	inflight.Wait()
	close(resultsCh)

	for r := range resultsCh {
		results[r.index] = r.value
		errs[r.index] = r.err
	}
	return results, errs
}
