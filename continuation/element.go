package continuation

import transport "github.com/ghex-go/transport"

// Element is one outstanding operation tracked by a ContinuationCommunicator
// (spec §4.6): the Future the backend is completing, the peer/tag/kind it
// was submitted with (peer and tag are passed to the callback; kind picks
// the send or recv queue), the callback to run
// exactly once on completion, and the shared RequestState backing the
// Request handle returned to the submitter.
type Element struct {
	future transport.Future
	peer   int32
	tag    uint32
	kind   transport.OpKind
	onDone func(msg transport.AnyMessage, peer int32, tag uint32, err error)
	msg    transport.AnyMessage
	state  *transport.RequestState
}

func (e *Element) reset() {
	e.future = transport.Future{}
	e.peer = 0
	e.tag = 0
	e.onDone = nil
	e.msg = transport.AnyMessage{}
	e.state = nil
}
