// Package dedup implements the duplicate-suppression engine: a short
// sliding-window store that recognizes a packet as "already seen"
// under a closed set of normalizations, so that digipeater-introduced
// whitespace or byte-level noise does not make a relay re-deliver the
// same report many times over.
package dedup

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Variant names a normalization that produced a duplicate match. The
// zero value, VariantNone, is never returned as a hit.
type Variant int

const (
	VariantNone Variant = iota
	VariantExact
	VariantSpaceTrim
	VariantStrip8Bit
	VariantClear8Bit
	VariantSpaced8Bit
	VariantLowDataStrip
	VariantLowDataSpaced
	VariantDelStrip
	VariantDelSpaced
	variantCount
)

func (v Variant) String() string {
	switch v {
	case VariantExact:
		return "exact"
	case VariantSpaceTrim:
		return "SPACE_TRIM"
	case VariantStrip8Bit:
		return "STRIP_8BIT"
	case VariantClear8Bit:
		return "CLEAR_8BIT"
	case VariantSpaced8Bit:
		return "SPACED_8BIT"
	case VariantLowDataStrip:
		return "LOWDATA_STRIP"
	case VariantLowDataSpaced:
		return "LOWDATA_SPACED"
	case VariantDelStrip:
		return "DEL_STRIP"
	case VariantDelSpaced:
		return "DEL_SPACED"
	}
	return "none"
}

// allVariants is the order in which normalizations are tried. Exact
// goes first since it is by far the common case and cheapest to
// compute.
var allVariants = []Variant{
	VariantExact, VariantSpaceTrim, VariantStrip8Bit, VariantClear8Bit,
	VariantSpaced8Bit, VariantLowDataStrip, VariantLowDataSpaced,
	VariantDelStrip, VariantDelSpaced,
}

type key struct {
	source  string
	variant Variant
	hash    uint64
}

type entry struct {
	expiresAt int64
}

// Engine is a bucketed, time-windowed store of recently seen
// (source-callsign, normalized-body) pairs. It never performs I/O or
// blocks on anything but its own mutex, so a lookup never suspends a
// caller on the ingest hot path.
type Engine struct {
	windowSeconds int64

	mu      sync.Mutex
	entries map[key]entry
	ring    [][]key // ring[tick%windowSeconds] = keys inserted at that tick
	cursor  int64   // last tick cleanup() advanced through, -1 until first call

	DupesDropped uint64
	UniquesOut   uint64
	ByVariant    [variantCount]uint64
}

// New creates an Engine with the given window, in seconds. A window of
// 0 selects a 30 second default, matching the "tens of seconds" window
// real APRS-IS digipeater duplication settles within.
func New(windowSeconds int64) *Engine {
	if windowSeconds <= 0 {
		windowSeconds = 30
	}
	return &Engine{
		windowSeconds: windowSeconds,
		entries:       make(map[key]entry),
		ring:          make([][]key, windowSeconds),
		cursor:        -1,
	}
}

// Check reports whether body, from source, has been seen within the
// window under any of the recognized normalizations. Each variant's
// normalized form is stored and looked up in its own namespace, so a
// hit is attributed to the specific transform that equated the two
// bodies rather than collapsing onto VariantExact whenever any stored
// variant happens to match. If it has not been seen, Check inserts it
// under every variant's normalized form, so a later arrival lands on
// the same key whichever side of the transform it arrives from, and
// returns (false, VariantNone). If it has, it increments the
// appropriate counters and returns (true, variant).
func (e *Engine) Check(source string, body []byte, tick int64) (bool, Variant) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cleanupLocked(tick)

	for _, v := range allVariants {
		k := key{source: source, variant: v, hash: xxhash.Sum64(normalize(body, v))}
		if ent, ok := e.entries[k]; ok && ent.expiresAt > tick {
			e.DupesDropped++
			e.ByVariant[v]++
			return true, v
		}
	}

	expiresAt := tick + e.windowSeconds
	slot := tick % e.windowSeconds
	for _, v := range allVariants {
		k := key{source: source, variant: v, hash: xxhash.Sum64(normalize(body, v))}
		if _, exists := e.entries[k]; !exists {
			e.entries[k] = entry{expiresAt: expiresAt}
			e.ring[slot] = append(e.ring[slot], k)
		}
	}
	e.UniquesOut++
	return false, VariantNone
}

// cleanupLocked evicts every bucket whose tick has fallen out of the
// window. Amortized O(1) per call: at most windowSeconds buckets are
// swept across the lifetime of the process between any two ticks that
// are one second apart.
func (e *Engine) cleanupLocked(tick int64) {
	if e.cursor < 0 {
		e.cursor = tick
		return
	}
	if tick-e.cursor > e.windowSeconds {
		// Caller has been idle longer than the window; no point
		// replaying every intermediate tick, just drop everything.
		for i := range e.ring {
			e.ring[i] = e.ring[i][:0]
		}
		e.entries = make(map[key]entry)
		e.cursor = tick
		return
	}
	for t := e.cursor + 1; t <= tick; t++ {
		slot := t % e.windowSeconds
		for _, k := range e.ring[slot] {
			if ent, ok := e.entries[k]; ok && ent.expiresAt <= tick {
				delete(e.entries, k)
			}
		}
		e.ring[slot] = e.ring[slot][:0]
	}
	e.cursor = tick
}

// Stats is a point-in-time snapshot for the admin status JSON's
// "dupecheck" section.
type Stats struct {
	DupesDropped uint64
	UniquesOut   uint64
	ByVariant    map[string]uint64
}

func (e *Engine) Snapshot() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	byVariant := make(map[string]uint64, variantCount-1)
	for v := VariantExact; v < variantCount; v++ {
		if e.ByVariant[v] > 0 {
			byVariant[v.String()] = e.ByVariant[v]
		}
	}
	return Stats{
		DupesDropped: e.DupesDropped,
		UniquesOut:   e.UniquesOut,
		ByVariant:    byVariant,
	}
}
