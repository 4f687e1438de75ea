package server

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hamrelay/aprsis/internal/aprs"
	"github.com/hamrelay/aprsis/internal/metrics"
	"github.com/hamrelay/aprsis/internal/upgrade"
)

func TestHandshakeVerifiedLogin(t *testing.T) {
	cfg := DefaultConfig("FIRST", "")
	s := New(cfg, nil, nil, nil)
	local, remote := net.Pipe()
	defer local.Close()
	c := newClient(remote, 0, 0, 4, 50, 100)

	login, verified := s.handshake(c, []byte("user N0CALL pass 12345 vers testclient 1.0 filter m/50"))
	require.Equal(t, "N0CALL", login)
	require.True(t, verified)
	require.NotNil(t, c.Filter)
	require.Equal(t, "m/50", c.FilterExpr)
}

func TestHandshakeUnverifiedLogin(t *testing.T) {
	cfg := DefaultConfig("FIRST", "")
	s := New(cfg, nil, nil, nil)
	local, remote := net.Pipe()
	defer local.Close()
	c := newClient(remote, 0, 0, 4, 50, 100)

	login, verified := s.handshake(c, []byte("user N0CALL pass -1 vers testclient 1.0"))
	require.Equal(t, "N0CALL", login)
	require.False(t, verified)
}

func TestIngestAttributesQConstructAndFansOut(t *testing.T) {
	cfg := DefaultConfig("FIRST", "")
	s := New(cfg, nil, nil, nil)

	senderLocal, senderRemote := net.Pipe()
	defer senderLocal.Close()
	sender := newClient(senderRemote, 0, 0, 4, 50, 100)
	sender.Login, sender.Verified = "N0CALL", true

	receiverConn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer receiverConn.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		rc, _ := receiverConn.Accept()
		accepted <- rc
	}()
	clientSide, err := net.Dial("tcp", receiverConn.Addr().String())
	require.NoError(t, err)
	defer clientSide.Close()
	serverSide := <-accepted

	receiver := newClient(serverSide, 0, 0, 4, 50, 100)
	receiver.Login = "N1CALL"
	go receiver.writer()
	s.addClient(receiver)

	s.ingest(sender, []byte("N0CALL>APRS,TCPIP*:!6028.51N/02505.68E-Test"))

	clientSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(clientSide)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "N0CALL>APRS")
	require.Contains(t, line, "qAR,FIRST")
}

func TestReassembleRoundTripsFrame(t *testing.T) {
	p, err := aprs.Parse([]byte("N0CALL>APRS,WIDE1-1:>status text"), 0, 0)
	require.NoError(t, err)
	out := reassemble(p)
	require.True(t, bytes.HasPrefix(out, []byte("N0CALL>APRS,WIDE1-1:")))
}

func TestSweepDisconnectsIdleClients(t *testing.T) {
	cfg := DefaultConfig("FIRST", "")
	cfg.IdleTimeout = -1 * time.Second
	s := New(cfg, nil, nil, nil)

	local, remote := net.Pipe()
	defer local.Close()
	c := newClient(remote, 0, 0, 4, 50, 100)
	go c.writer()
	s.addClient(c)

	s.Sweep()
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.closed
	}, time.Second, 10*time.Millisecond)
}

func TestHandoffWritesConnectedClientState(t *testing.T) {
	cfg := DefaultConfig("FIRST", "")
	s := New(cfg, nil, nil, nil)

	local, remote := net.Pipe()
	defer local.Close()
	c := newClient(remote, 0, 0, 4, 50, 100)
	c.Login, c.Verified = "N0CALL", true
	go c.writer()
	s.addClient(c)

	path := filepath.Join(t.TempDir(), "liveupgrade.json")
	require.NoError(t, s.Handoff(path, -1, []string{"INV_SRCCALL"}))

	doc, err := upgrade.Load(path)
	require.NoError(t, err)
	require.Equal(t, -1, doc.ListenerFD)
	require.Equal(t, []string{"INV_SRCCALL"}, doc.RxErrs)
	require.Len(t, doc.Clients, 1)
	require.Equal(t, "N0CALL", doc.Clients[0].Login)
	require.True(t, doc.Clients[0].Verified)
	// remote is a net.Pipe conn, not a *net.TCPConn, so it has no
	// duplicable descriptor.
	require.Equal(t, -1, doc.Clients[0].FD)
}

func TestIngestCountsRxErrors(t *testing.T) {
	cfg := DefaultConfig("FIRST", "")
	met := metrics.New()
	s := New(cfg, nil, met, nil)

	senderLocal, senderRemote := net.Pipe()
	defer senderLocal.Close()
	sender := newClient(senderRemote, 0, 0, 4, 50, 100)
	sender.Login, sender.Verified = "N0CALL", true

	// No '>' separating source from destination: fails header parsing
	// with InvSrcCall rather than reaching any dispatch table entry.
	s.ingest(sender, []byte("N0CALLAPRSTCPIP:garbage"))

	counts := s.RxErrorCounts()
	require.NotEmpty(t, counts)
	var total uint64
	for _, n := range counts {
		total += n
	}
	require.Equal(t, uint64(1), total)
}

func TestServeRespectsContextCancellation(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(DefaultConfig("FIRST", ln.Addr().String()), nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}
