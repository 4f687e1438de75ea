//go:build unix

package server

import "net"

// connFD duplicates the file descriptor behind a client's TCP
// connection so the replacement process named in C7's live-upgrade
// handoff can inherit the already-established socket directly, rather
// than the client needing to reconnect. Returns -1 if conn isn't a
// *net.TCPConn (e.g. in tests using net.Pipe) or the dup fails.
func connFD(conn net.Conn) int {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return -1
	}
	f, err := tcpConn.File()
	if err != nil {
		return -1
	}
	return int(f.Fd())
}
