//go:build unix

package aprsis

import (
	"fmt"
	"net"
	"os"
)

// listenerFile duplicates the underlying file descriptor of a TCP
// listener registered in the pool, for the live-upgrade handoff: the
// replacement process inherits this descriptor (via the platform's
// normal fd-passing mechanism, an external collaborator per §4.7) and
// never re-binds the port, avoiding the brief window where new
// connections would otherwise be refused during the handoff.
func listenerFile(addr string) (*os.File, error) {
	pool.mu.Lock()
	ln, ok := pool.listeners[addr]
	pool.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("listen_unix: no listener registered for %s", addr)
	}

	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		return nil, fmt.Errorf("listen_unix: listener for %s is not TCP", addr)
	}
	return tcpLn.File()
}
