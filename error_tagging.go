package transport

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// OpKind names the submission kind a TaggedError originated from, for
// correlation in logs and tests.
type OpKind int

const (
	OpSend OpKind = iota
	OpRecv
	OpSendMulti
	OpConnect
	OpFlush
)

func (k OpKind) String() string {
	switch k {
	case OpSend:
		return "send"
	case OpRecv:
		return "recv"
	case OpSendMulti:
		return "send_multi"
	case OpConnect:
		return "connect"
	case OpFlush:
		return "flush"
	default:
		return "unknown"
	}
}

// TaggedError exposes correlation metadata for a submission failure: the
// peer rank and user tag involved, and which kind of operation raised it.
type TaggedError interface {
	error
	Unwrap() error
	Peer() (int32, bool)
	Tag() (uint32, bool)
	Kind() OpKind
}

type opTaggedError struct {
	err  error
	peer int32
	tag  uint32
	kind OpKind
}

// newTaggedError wraps err (with a stack trace via pkg/errors, the same
// library ghjramos-aistore reaches for) and attaches submission metadata.
// Returns nil if err is nil.
func newTaggedError(err error, peer int32, tag uint32, kind OpKind) error {
	if err == nil {
		return nil
	}
	return &opTaggedError{err: pkgerrors.WithStack(err), peer: peer, tag: tag, kind: kind}
}

func (e *opTaggedError) Error() string { return e.err.Error() }
func (e *opTaggedError) Unwrap() error { return e.err }

func (e *opTaggedError) Peer() (int32, bool) { return e.peer, true }
func (e *opTaggedError) Tag() (uint32, bool) { return e.tag, true }
func (e *opTaggedError) Kind() OpKind        { return e.kind }

func (e *opTaggedError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "%s(peer=%d,tag=%d): %+v", e.kind, e.peer, e.tag, e.err)
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// ExtractPeer returns the peer rank from err if it carries one.
func ExtractPeer(err error) (int32, bool) {
	var te TaggedError
	if errors.As(err, &te) {
		return te.Peer()
	}
	return 0, false
}

// ExtractTag returns the user tag from err if it carries one.
func ExtractTag(err error) (uint32, bool) {
	var te TaggedError
	if errors.As(err, &te) {
		return te.Tag()
	}
	return 0, false
}
