package transport

import "sync"

// lifecycleCoordinator encapsulates Context's shutdown sequence: drain
// in-flight operations, destroy every Worker, then tear down the backend
// runtime. It is a wiring helper, not an owner of any of those resources;
// Close() is safe for concurrent calls and the sequence executes exactly
// once.
type lifecycleCoordinator struct {
	drainInflight   func()
	destroyWorkers  func() []error
	teardownBackend func() error

	once sync.Once
	err  error
}

func newLifecycleCoordinator(drainInflight func(), destroyWorkers func() []error, teardownBackend func() error) *lifecycleCoordinator {
	return &lifecycleCoordinator{
		drainInflight:   drainInflight,
		destroyWorkers:  destroyWorkers,
		teardownBackend: teardownBackend,
	}
}

// Close executes the shutdown sequence exactly once:
//  1. drain in-flight operations (best effort; spec §4.4 does not require
//     blocking for stragglers, see ContinuationCommunicator.Close)
//  2. destroy every Worker
//  3. tear down the backend runtime
//
// Returns the first error encountered, if any, on every call.
func (lc *lifecycleCoordinator) Close() error {
	lc.once.Do(func() {
		if lc.drainInflight != nil {
			lc.drainInflight()
		}
		var errs []error
		if lc.destroyWorkers != nil {
			errs = lc.destroyWorkers()
		}
		if lc.teardownBackend != nil {
			if err := lc.teardownBackend(); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			lc.err = errs[0]
		}
	})
	return lc.err
}
