package aprsis

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestNewAppRejectsMissingConfig(t *testing.T) {
	_, err := NewApp(Config{})
	require.Error(t, err)

	_, err = NewApp(Config{ListenAddr: ":0"})
	require.Error(t, err)
}

func TestAppStartAcceptsClientsAndReportsStatus(t *testing.T) {
	relayAddr := freeAddr(t)
	adminAddr := freeAddr(t)

	app, err := NewApp(Config{
		ListenAddr:     relayAddr,
		AdminAddr:      adminAddr,
		ServerCallsign: "FIRST",
	})
	require.NoError(t, err)
	require.NoError(t, app.Start())
	defer app.Stop()

	conn, err := net.Dial("tcp", relayAddr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("user N0CALL pass -1 vers testclient 1.0\r\n"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "logresp N0CALL unverified")

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + adminAddr + "/status")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var doc statusDocument
		if json.NewDecoder(resp.Body).Decode(&doc) != nil {
			return false
		}
		return doc.Totals.ClientsConnected == 1 && doc.Server.Callsign == "FIRST"
	}, 2*time.Second, 20*time.Millisecond)
}
