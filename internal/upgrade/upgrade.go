// Package upgrade implements the live-upgrade handoff (C7): on a
// graceful shutdown for upgrade, the exiting process serializes every
// surviving client's state and the receive-error label table to a
// JSON file; Load reads it back and renames it out of the way. This
// package does not rebuild client state from the loaded Document.
// Socket descriptors themselves
// are assumed inherited via platform file-descriptor passing, which is
// outside this package's scope (an external collaborator per §4.7).
package upgrade

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultFileName is the conventional name of the handoff document
// inside the server's run directory.
const DefaultFileName = "liveupgrade.json"

// ClientState is everything needed to resume one client connection
// under the replacement process.
type ClientState struct {
	FD            int      `json:"fd"`
	RemoteAddr    string   `json:"remote_addr"`
	Login         string   `json:"login"`
	Verified      bool     `json:"verified"`
	FilterExpr    string   `json:"filter_expr"`
	Heard         []string `json:"heard"`
	Courtesy      []string `json:"courtesy"`
	WriteBuffered []byte   `json:"write_buffered,omitempty"`
}

// Document is the full handoff file contents.
type Document struct {
	ListenerFD int           `json:"listener_fd"`
	Clients    []ClientState `json:"clients"`
	RxErrs     []string      `json:"rx_errs"`
}

// Write serializes doc to path. The file is written to a temporary
// name in the same directory and renamed into place, so a crash
// mid-write never leaves a truncated handoff document for the
// replacement process to trip over.
func Write(path string, doc Document) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("upgrade: create %s: %w", tmp, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("upgrade: encode %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("upgrade: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("upgrade: rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

// Load reads and parses the handoff document at path, then renames it
// to path+".old" so a subsequent startup (after a load failure, or a
// second upgrade) doesn't mistake a stale file for a fresh one.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("upgrade: read %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("upgrade: parse %s: %w", path, err)
	}
	if err := os.Rename(path, path+".old"); err != nil {
		return Document{}, fmt.Errorf("upgrade: rename %s to .old: %w", path, err)
	}
	return doc, nil
}
