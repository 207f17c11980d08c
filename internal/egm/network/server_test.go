package network

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoHandler replies with the datagram prefixed by "ack:"; empty datagrams
// produce no reply.
type echoHandler struct{}

func (echoHandler) HandleDatagram(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	return append([]byte("ack:"), data...)
}

func startServer(t *testing.T, handler Handler) (*Server, *net.UDPAddr, context.CancelFunc) {
	t.Helper()

	server := NewServer(ServerConfig{Address: "127.0.0.1:0"}, handler)
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 1)
	go func() { errs <- server.Start(ctx) }()

	require.Eventually(t, server.Initialized, 2*time.Second, 10*time.Millisecond)
	addr, ok := server.LocalAddr().(*net.UDPAddr)
	require.True(t, ok)

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop after cancellation")
		}
	})
	return server, addr, cancel
}

func TestServer_RequestReply(t *testing.T) {
	t.Parallel()

	_, addr, _ := startServer(t, echoHandler{})

	conn, err := net.DialUDP("udp", nil, addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ack:ping", string(buf[:n]))
}

func TestServer_EmptyReplyMeansNoDatagram(t *testing.T) {
	t.Parallel()

	_, addr, _ := startServer(t, echoHandler{})

	conn, err := net.DialUDP("udp", nil, addr)
	require.NoError(t, err)
	defer conn.Close()

	// A datagram the handler declines must not produce a reply; a later
	// answered one still must. Reading once then finds only the second
	// reply.
	_, err = conn.Write(nil)
	require.NoError(t, err)
	_, err = conn.Write([]byte("second"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ack:second", string(buf[:n]))
}

func TestServer_InitializedLifecycle(t *testing.T) {
	t.Parallel()

	server := NewServer(ServerConfig{Address: "127.0.0.1:0"}, echoHandler{})
	assert.False(t, server.Initialized())
	assert.Nil(t, server.LocalAddr())

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- server.Start(ctx) }()
	require.Eventually(t, server.Initialized, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_BadAddress(t *testing.T) {
	t.Parallel()

	server := NewServer(ServerConfig{Address: "not-an-address:::"}, echoHandler{})
	err := server.Start(context.Background())
	require.Error(t, err)
	assert.False(t, server.Initialized())
}
