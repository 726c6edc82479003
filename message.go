package transport

import (
	"sync/atomic"
	"unsafe"
)

// Message ownership model (spec §4.6). C++ distinguishes an rvalue (moved,
// uniquely owned) message from an lvalue (borrowed) one at the type level;
// Go has no move semantics, so the same distinction is modeled as three
// distinct generic types instead of one type with two calling conventions:
//
//   - OwnedBuffer[T]:  uniquely owned, always safe to hand to an async send.
//   - SharedBuffer[T]: reference-counted, safe to fan out to send_multi.
//   - RefMessage[T]:   borrowed; the caller must outlive the operation,
//     which is why SendMulti rejects it when combined with a callback
//     (Open Question 3, DESIGN.md).
//
// AnyMessage type-erases any of the three down to a byte view, which is
// what a backend.Contract's TagSendNB/TagRecvNB actually move.

// asBytes reinterprets a typed slice as its backing bytes without copying,
// the same unsafe.Slice reinterpret-cast idiom ethereum-go-ethereum's
// bitutil/arena helpers use for zero-copy typed buffer views.
func asBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	sz := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*sz)
}

// OwnedBuffer is a uniquely owned message of element type T. Passing one to
// Send or continuation.Send transfers it; the caller must not reuse it
// afterward.
type OwnedBuffer[T any] struct {
	Data []T
}

// NewOwnedBuffer takes ownership of data.
func NewOwnedBuffer[T any](data []T) OwnedBuffer[T] { return OwnedBuffer[T]{Data: data} }

// Bytes returns the byte-level view Send/Recv hand to the backend.
func (b OwnedBuffer[T]) Bytes() []byte { return asBytes(b.Data) }

// AsAny type-erases b for storage alongside messages of other element
// types (the Continuation Communicator's element queue holds AnyMessage,
// not a generic OwnedBuffer[T]).
func (b OwnedBuffer[T]) AsAny() AnyMessage { return AnyMessage{bytes: b.Bytes()} }

// SharedBuffer is a reference-counted message: multiple sends (send_multi,
// spec §4.7) may hold a clone concurrently, and the backing storage is
// freed only once every clone has been released.
type SharedBuffer[T any] struct {
	ref *sharedRef[T]
}

type sharedRef[T any] struct {
	data  []T
	count int32
}

// NewSharedBuffer wraps data in a fresh, single-owner reference.
func NewSharedBuffer[T any](data []T) SharedBuffer[T] {
	return SharedBuffer[T]{ref: &sharedRef[T]{data: data, count: 1}}
}

// Clone returns a new handle to the same backing storage, incrementing the
// refcount. Safe to call concurrently from multiple sends of a send_multi
// fan-out.
func (b SharedBuffer[T]) Clone() SharedBuffer[T] {
	atomic.AddInt32(&b.ref.count, 1)
	return b
}

// Release decrements the refcount. The backing slice is not explicitly
// freed (Go is garbage collected); Release exists so SharedBuffer's
// lifecycle is symmetric with the owning C++ type it mirrors: SendMultiShared
// releases each per-endpoint clone, and tests can check the count falls back.
func (b SharedBuffer[T]) Release() int32 {
	return atomic.AddInt32(&b.ref.count, -1)
}

// Bytes returns the byte-level view of the shared data.
func (b SharedBuffer[T]) Bytes() []byte { return asBytes(b.ref.data) }

func (b SharedBuffer[T]) AsAny() AnyMessage { return AnyMessage{bytes: b.Bytes()} }

// RefMessage borrows data: the caller retains ownership and must keep it
// alive and unmodified for the duration of the operation. SendMulti refuses
// a RefMessage paired with an async callback (ErrUnsafeAsyncBorrow) since
// nothing in the type prevents the caller from freeing it early.
type RefMessage[T any] struct {
	Data []T
}

// NewRefMessage borrows data without taking ownership.
func NewRefMessage[T any](data []T) RefMessage[T] { return RefMessage[T]{Data: data} }

func (b RefMessage[T]) Bytes() []byte { return asBytes(b.Data) }

func (b RefMessage[T]) AsAny() AnyMessage { return AnyMessage{bytes: b.Bytes(), borrowed: true} }

// AnyMessage is a type-erased byte view of any of the three message kinds
// above, used internally wherever messages of heterogeneous element types
// must share a queue (the Continuation Communicator's Element).
type AnyMessage struct {
	bytes    []byte
	borrowed bool
}

// Bytes returns the underlying byte view.
func (m AnyMessage) Bytes() []byte { return m.bytes }

// Borrowed reports whether m type-erased a RefMessage.
func (m AnyMessage) Borrowed() bool { return m.borrowed }
