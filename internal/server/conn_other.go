//go:build !unix

package server

import "net"

// connFD has no portable fd-duplication mechanism outside unix, so the
// replacement process always re-accepts the connection instead.
func connFD(conn net.Conn) int { return -1 }
