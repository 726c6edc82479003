package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOwnedBuffer_Bytes(t *testing.T) {
	b := NewOwnedBuffer([]byte("abcd"))
	require.Equal(t, []byte("abcd"), b.Bytes())
}

func TestSharedBuffer_RefcountRoundtrip(t *testing.T) {
	b := NewSharedBuffer([]byte("shared"))
	c1 := b.Clone()
	c2 := b.Clone()
	require.Equal(t, "shared", string(c1.Bytes()))
	require.Equal(t, int32(2), c1.Release())
	require.Equal(t, int32(1), c2.Release())
	require.Equal(t, int32(0), b.Release())
}

func TestRefMessage_BorrowedAnyMessage(t *testing.T) {
	data := []byte("ref")
	m := NewRefMessage(data).AsAny()
	require.True(t, m.Borrowed())
	require.Equal(t, "ref", string(m.Bytes()))
}

func TestAsBytes_TypedSlice(t *testing.T) {
	ints := []int32{1, 2, 3}
	b := NewOwnedBuffer(ints).AsAny()
	require.False(t, b.Borrowed())
	require.Len(t, b.Bytes(), 12)
}

func TestAsBytes_EmptySlice(t *testing.T) {
	var empty []byte
	b := NewOwnedBuffer(empty)
	require.Nil(t, b.Bytes())
}
