//go:build !unix

package aprsis

import (
	"fmt"
	"os"
)

// listenerFile has no portable fd-duplication mechanism outside unix;
// the replacement process falls back to rebinding the port.
func listenerFile(addr string) (*os.File, error) {
	return nil, fmt.Errorf("listen_other: fd handoff unsupported on this platform")
}
