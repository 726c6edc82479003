package memory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ghex-go/transport/backend"
)

func TestMemoryBackend_SendRecvRoundtrip(t *testing.T) {
	fabric := NewFabric()
	c0 := New(fabric, 0)
	c1 := New(fabric, 1)

	_, err := c0.Init(backend.Params{Features: backend.FeatureTagMatching})
	require.NoError(t, err)
	_, err = c1.Init(backend.Params{Features: backend.FeatureTagMatching})
	require.NoError(t, err)

	w0, _, err := c0.WorkerCreate(backend.ThreadModeSingle)
	require.NoError(t, err)
	w1, addr1, err := c1.WorkerCreate(backend.ThreadModeSingle)
	require.NoError(t, err)

	ep, err := c0.EndpointConnect(w0, addr1)
	require.NoError(t, err)

	recvBuf := make([]byte, 8)
	var recvN int
	var recvErr error
	recvDone := false
	_, err = c1.TagRecvNB(w1, recvBuf, 0x1, ^uint64(0), func(n int, e error) {
		recvN, recvErr, recvDone = n, e, true
	})
	require.NoError(t, err)
	require.False(t, recvDone, "recv should not be inline: no unexpected message waiting")

	sendDone := false
	_, sendErr := c0.TagSendNB(ep, []byte("hello!!!"), 0x1, func(e error) {
		sendDone = true
		require.NoError(t, e)
	})
	require.ErrorIs(t, sendErr, backend.ErrInline)
	require.True(t, sendDone)
	require.False(t, recvDone, "match requires an explicit WorkerProgress on the receiver")

	c1.WorkerProgress(w1)
	require.True(t, recvDone)
	require.NoError(t, recvErr)
	require.Equal(t, 8, recvN)
	require.Equal(t, "hello!!!", string(recvBuf))
}

func TestMemoryBackend_PostRecvFirstThenSend_CompletesOnReceiverProgress(t *testing.T) {
	fabric := NewFabric()
	c0 := New(fabric, 0)
	c1 := New(fabric, 1)
	w0, _, _ := c0.WorkerCreate(backend.ThreadModeSingle)
	w1, addr1, _ := c1.WorkerCreate(backend.ThreadModeSingle)
	ep, _ := c0.EndpointConnect(w0, addr1)

	buf := make([]byte, 4)
	done := false
	_, err := c1.TagRecvNB(w1, buf, 0x2, ^uint64(0), func(n int, e error) { done = true })
	require.NoError(t, err)

	_, sendErr := c0.TagSendNB(ep, []byte("ping"), 0x2, func(error) {})
	require.ErrorIs(t, sendErr, backend.ErrInline)
	require.False(t, done)

	c1.WorkerProgress(w1)
	require.True(t, done)
}

func TestMemoryBackend_UnexpectedMessageMatchesInlineOnPost(t *testing.T) {
	fabric := NewFabric()
	c0 := New(fabric, 0)
	c1 := New(fabric, 1)
	w0, _, _ := c0.WorkerCreate(backend.ThreadModeSingle)
	w1, addr1, _ := c1.WorkerCreate(backend.ThreadModeSingle)
	ep, _ := c0.EndpointConnect(w0, addr1)

	c0.TagSendNB(ep, []byte("x"), 0x5, func(error) {})
	c1.WorkerProgress(w1) // drains wire into "unexpected" since no recv posted yet

	buf := make([]byte, 1)
	inlineDone := false
	op, err := c1.TagRecvNB(w1, buf, 0x5, ^uint64(0), func(n int, e error) { inlineDone = true })
	require.Nil(t, op)
	require.ErrorIs(t, err, backend.ErrInline)
	require.True(t, inlineDone)
}

func TestMemoryBackend_CancelUnmatchedRecv(t *testing.T) {
	fabric := NewFabric()
	c1 := New(fabric, 1)
	w1, _, _ := c1.WorkerCreate(backend.ThreadModeSingle)

	buf := make([]byte, 4)
	fired := false
	op, err := c1.TagRecvNB(w1, buf, 0x999, ^uint64(0), func(int, error) { fired = true })
	require.NoError(t, err)
	require.NotNil(t, op)

	require.True(t, c1.CancelRequest(op))
	for i := 0; i < 1000; i++ {
		c1.WorkerProgress(w1)
	}
	require.False(t, fired)
	require.Equal(t, backend.StatusInProgress, c1.RequestCheckStatus(op))
}
