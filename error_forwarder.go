package transport

import (
	"context"
	"sync"
)

// errorForwarder consumes backend-level faults (in) — the only source today
// is backend/stream's per-connection read-loop errors, reported through its
// OnError hook — and, on each one, calls cancel (Context passes the
// CancelFunc of an internal context that no other code observes), and
// forwards only the first error to the Context's outward Errors() channel. If the
// channel isn't immediately readable, delivery continues from a detached
// goroutine tracked by sendWG that either delivers later or drops on
// Close(). The owner (Context) controls channel lifecycles; errorForwarder
// never closes any channel itself.
type errorForwarder struct {
	in      <-chan error
	out     chan<- error
	closeCh <-chan struct{}
	cancel  context.CancelFunc
	sendWG  *sync.WaitGroup
}

func newErrorForwarder(in <-chan error, out chan<- error, closeCh <-chan struct{}, cancel context.CancelFunc, sendWG *sync.WaitGroup) *errorForwarder {
	return &errorForwarder{in: in, out: out, closeCh: closeCh, cancel: cancel, sendWG: sendWG}
}

func (f *errorForwarder) run() {
	forwardedFirst := false
	for {
		select {
		case e := <-f.in:
			f.cancel()
			if !forwardedFirst {
				forwardedFirst = true
				select {
				case f.out <- e:
				default:
					f.sendWG.Add(1)
					go func(err error) {
						defer f.sendWG.Done()
						select {
						case f.out <- err:
						case <-f.closeCh:
						}
					}(e)
				}
			}
		case <-f.closeCh:
			for {
				select {
				case <-f.in:
				default:
					return
				}
			}
		}
	}
}
