package aprsis

import (
	"fmt"
	"net"
	"sync"
)

// listenerPool tracks every listener the process has opened, the way
// the teacher's listeners.go keeps a registry of listen addresses so
// a config reload can diff old against new and only touch what
// changed. This core only ever opens two listeners (the relay socket
// and, optionally, the admin HTTP socket), but the registry is what
// listen_unix.go's graceful handoff walks to pass descriptors on.
type listenerPool struct {
	mu        sync.Mutex
	listeners map[string]net.Listener
}

var pool = &listenerPool{listeners: make(map[string]net.Listener)}

// listen opens (or reuses, if already open under this address) a
// listener, registering it in the pool so a subsequent live-upgrade
// handoff can find it by address.
func listen(network, addr string) (net.Listener, error) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	if ln, ok := pool.listeners[addr]; ok {
		return ln, nil
	}
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	pool.listeners[addr] = ln
	return ln, nil
}

// closeListener closes and deregisters addr's listener, if any.
func closeListener(addr string) error {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	ln, ok := pool.listeners[addr]
	if !ok {
		return nil
	}
	delete(pool.listeners, addr)
	return ln.Close()
}
