package upgrade

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)

	doc := Document{
		Clients: []ClientState{
			{FD: 7, RemoteAddr: "203.0.113.5:12345", Login: "N0CALL", Verified: true,
				FilterExpr: "r/49.05/-72.03/50", Heard: []string{"N9ZZZ"}, Courtesy: []string{"N9ZZZ"}},
		},
		RxErrs: []string{"INV_SRCCALL", "INV_DSTCALL"},
	}

	require.NoError(t, Write(path, doc))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, doc, loaded)

	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err), "original file should have been renamed away")

	_, err = os.Stat(path + ".old")
	require.NoError(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
