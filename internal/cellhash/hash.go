// Package cellhash provides the stable, case-folded hashing primitives
// and the fixed-size cell allocator shared by the history database and
// the per-client heard/courtesy tables.
package cellhash

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeyHash returns a stable hash of key, case-folded so that keys that
// differ only in letter case hash alike (APRS callsigns are
// conventionally upper case, but clients and digipeaters are
// inconsistent about it). The tables that use it still compare the
// stored key itself exactly, case included.
func KeyHash(key string) uint32 {
	if needsFold(key) {
		key = strings.ToUpper(key)
	}
	return uint32(xxhash.Sum64String(key))
}

func needsFold(s string) bool {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'a' && c <= 'z' {
			return true
		}
	}
	return false
}

// FoldHistory folds a 32-bit hash down for the history database's
// 8192-bucket table, per the original keyhash folding rule
// (h ^ h>>13 ^ h>>26).
func FoldHistory(h uint32, modulo uint32) uint32 {
	return (h ^ (h >> 13) ^ (h >> 26)) % modulo
}

// FoldHeard folds a 32-bit hash down for a client's 16-bucket heard or
// courtesy table, per the original keyhash folding rule (h ^ h>>16).
func FoldHeard(h uint32, modulo uint32) uint32 {
	return (h ^ (h >> 16)) % modulo
}
