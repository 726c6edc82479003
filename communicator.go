package transport

// Communicator is the lightweight, copyable handle spec §3/§4.4 call the
// "Continuation Communicator's" plain synchronous counterpart: obtained
// from a Worker, cheap to pass around by value (it holds only a pointer
// back to its Worker), and the thing Send/Recv/SendTS/RecvTS are actually
// methods on. Worker itself stays the owner of backend resources;
// Communicator is just a handle onto it, mirroring how GHEX hands out
// communicator objects bound to (but not owning) a worker.
type Communicator struct {
	w *Worker
}

// NewCommunicator returns a Communicator bound to w.
func NewCommunicator(w *Worker) Communicator { return Communicator{w: w} }

// Worker returns the underlying Worker.
func (c Communicator) Worker() *Worker { return c.w }

// Progress drives the underlying Worker forward once.
func (c Communicator) Progress() { c.w.Progress() }

// Connect resolves and connects to rank via the underlying Worker.
func (c Communicator) Connect(rank int32) (*Endpoint, error) { return c.w.Connect(rank) }

// CommSend posts a non-blocking tagged send, as the package-level Send
// function.
func CommSend[T any](c Communicator, ep *Endpoint, msg OwnedBuffer[T], tag uint32) (Future, error) {
	return Send(c.w, ep, msg, tag)
}

// CommRecv posts a non-blocking tagged receive, as the package-level Recv
// function.
func CommRecv[T any](c Communicator, src int32, tag uint32, buf []T) (Future, error) {
	return Recv(c.w, src, tag, buf)
}

// SendTS behaves like CommSend but first takes the Worker's serialization
// lock, for use on a ThreadModeSerialized (shared) Worker touched by
// several goroutines; on a single-threaded Worker this only adds needless
// CAS overhead, so callers that know their Worker is private should prefer
// CommSend.
func SendTS[T any](c Communicator, ep *Endpoint, msg OwnedBuffer[T], tag uint32) (Future, error) {
	c.w.Lock()
	defer c.w.Unlock()
	return Send(c.w, ep, msg, tag)
}

// RecvTS is SendTS's receive counterpart.
func RecvTS[T any](c Communicator, src int32, tag uint32, buf []T) (Future, error) {
	c.w.Lock()
	defer c.w.Unlock()
	return Recv(c.w, src, tag, buf)
}
