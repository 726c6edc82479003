package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ghex-go/transport/backend"
)

func waitUntil(t *testing.T, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func TestStreamBackend_SendRecvRoundtrip(t *testing.T) {
	c0 := New()
	c1 := New()
	_, err := c0.Init(backend.Params{Features: backend.FeatureTagMatching})
	require.NoError(t, err)
	_, err = c1.Init(backend.Params{Features: backend.FeatureTagMatching})
	require.NoError(t, err)

	w0, _, err := c0.WorkerCreate(backend.ThreadModeSingle)
	require.NoError(t, err)
	w1, addr1, err := c1.WorkerCreate(backend.ThreadModeSingle)
	require.NoError(t, err)
	defer c0.WorkerDestroy(w0)
	defer c1.WorkerDestroy(w1)

	ep, err := c0.EndpointConnect(w0, addr1)
	require.NoError(t, err)

	recvBuf := make([]byte, 5)
	recvDone := false
	_, err = c1.TagRecvNB(w1, recvBuf, 0x7, ^uint64(0), func(n int, e error) {
		require.NoError(t, e)
		require.Equal(t, 5, n)
		recvDone = true
	})
	require.NoError(t, err)

	_, sendErr := c0.TagSendNB(ep, []byte("hello"), 0x7, func(e error) { require.NoError(t, e) })
	require.ErrorIs(t, sendErr, backend.ErrInline)

	waitUntil(t, func() bool {
		c1.WorkerProgress(w1)
		return recvDone
	})
	require.Equal(t, "hello", string(recvBuf))
}

func TestStreamBackend_CancelUnmatchedRecv(t *testing.T) {
	c1 := New()
	w1, _, err := c1.WorkerCreate(backend.ThreadModeSingle)
	require.NoError(t, err)
	defer c1.WorkerDestroy(w1)

	buf := make([]byte, 4)
	fired := false
	op, err := c1.TagRecvNB(w1, buf, 0x42, ^uint64(0), func(int, error) { fired = true })
	require.NoError(t, err)
	require.True(t, c1.CancelRequest(op))

	for i := 0; i < 50; i++ {
		c1.WorkerProgress(w1)
		time.Sleep(time.Millisecond)
	}
	require.False(t, fired)
}
