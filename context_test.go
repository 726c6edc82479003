package transport_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	transport "github.com/ghex-go/transport"
	"github.com/ghex-go/transport/backend/memory"
)

func newConnectedPair(t *testing.T) (c0, c1 *transport.Context, ep01, ep10 *transport.Endpoint) {
	t.Helper()
	fabric := memory.NewFabric()
	var err error
	c0, err = transport.NewContextOptions(
		transport.WithRank(0), transport.WithSize(2), transport.WithWorkers(1),
		transport.WithBackend(memory.New(fabric, 0)),
	)
	require.NoError(t, err)
	c1, err = transport.NewContextOptions(
		transport.WithRank(1), transport.WithSize(2), transport.WithWorkers(1),
		transport.WithBackend(memory.New(fabric, 1)),
	)
	require.NoError(t, err)

	c0.AddressDB().Insert(c1.UUID(), c1.Worker(0).Address())
	c1.AddressDB().Insert(c0.UUID(), c0.Worker(0).Address())

	ep01, err = c0.Worker(0).Connect(1)
	require.NoError(t, err)
	ep10, err = c1.Worker(0).Connect(0)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, c0.Close())
		require.NoError(t, c1.Close())
	})
	return c0, c1, ep01, ep10
}

func TestContext_RequiresBackend(t *testing.T) {
	_, err := transport.NewContextOptions(transport.WithRank(0))
	require.ErrorIs(t, err, transport.ErrConfigurationError)
}

func TestContext_ConnectUnknownPeerFails(t *testing.T) {
	fabric := memory.NewFabric()
	c, err := transport.NewContextOptions(transport.WithBackend(memory.New(fabric, 0)))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Worker(0).Connect(42)
	require.ErrorIs(t, err, transport.ErrPeerUnknown)
}

func TestContext_SendRecvEndToEnd(t *testing.T) {
	c0, c1, ep01, _ := newConnectedPair(t)

	buf := make([]byte, 4)
	recvFuture, err := transport.Recv(c1.Worker(0), 0, 7, buf)
	require.NoError(t, err)
	require.False(t, recvFuture.Ready())

	sendFuture, err := transport.Send(c0.Worker(0), ep01, transport.NewOwnedBuffer([]byte("ping")), 7)
	require.NoError(t, err)
	require.True(t, sendFuture.Ready(), "sends complete inline on this transport")

	require.True(t, recvFuture.Ready())
	require.NoError(t, recvFuture.Err())
	require.Equal(t, 4, recvFuture.N())
	require.Equal(t, "ping", string(buf))
}

func TestContext_RecvWait_BlocksUntilProgressed(t *testing.T) {
	c0, c1, ep01, _ := newConnectedPair(t)

	buf := make([]byte, 2)
	recvFuture, err := transport.Recv(c1.Worker(0), 0, 1, buf)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = transport.Send(c0.Worker(0), ep01, transport.NewOwnedBuffer([]byte("hi")), 1)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, recvFuture.Wait(ctx))
	require.Equal(t, "hi", string(buf))
}

func TestContext_CancelUnmatchedRecv(t *testing.T) {
	_, c1, _, _ := newConnectedPair(t)

	buf := make([]byte, 4)
	future, err := transport.Recv(c1.Worker(0), transport.AnySource, 999, buf)
	require.NoError(t, err)
	require.True(t, future.Cancel())
	require.False(t, future.Cancel(), "cancelling twice reports false the second time")
}

func TestContext_WithLogger_EmitsWorkerLifecycleEvents(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	fabric := memory.NewFabric()
	c, err := transport.NewContextOptions(
		transport.WithBackend(memory.New(fabric, 0)),
		transport.WithLogger(zap.New(core)),
	)
	require.NoError(t, err)
	require.NotEmpty(t, c.RunID())

	require.NoError(t, c.Close())

	messages := make([]string, 0, logs.Len())
	for _, entry := range logs.All() {
		messages = append(messages, entry.Message)
	}
	require.Contains(t, messages, "worker created")
	require.Contains(t, messages, "worker shut down")
	require.Contains(t, messages, "context closed")
}

func TestContext_AnySourceMatchesAnySender(t *testing.T) {
	c0, c1, ep01, _ := newConnectedPair(t)

	buf := make([]byte, 3)
	recvFuture, err := transport.Recv(c1.Worker(0), transport.AnySource, 4, buf)
	require.NoError(t, err)

	_, err = transport.Send(c0.Worker(0), ep01, transport.NewOwnedBuffer([]byte("abc")), 4)
	require.NoError(t, err)

	require.True(t, recvFuture.Ready())
	require.Equal(t, "abc", string(buf))
}
