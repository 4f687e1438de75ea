// Package history implements the history database (C4): a fixed
// 8192-bucket hash table recording the most recent position for every
// station, object and item seen, used to answer "where is this
// callsign right now" queries.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/hamrelay/aprsis/internal/aprs"
	"github.com/hamrelay/aprsis/internal/cellhash"
)

// HashModulo is the bucket count. Keys are folded into it with
// cellhash.FoldHistory, matching the original's 13/26-bit XOR fold.
const HashModulo = 8192

// DefaultStoreTime is how long an entry is retained after its last
// update, in seconds, absent an explicit configuration. Four hours
// matches the original daemon's default lastposition_storetime.
const DefaultStoreTime = 4 * 60 * 60

type cell struct {
	key      string
	keyHash  uint32
	lat, lng float64
	cosLat   float64

	arrivalTick int64
	packetType  aprs.TypeFlags
	flags       aprs.TypeFlags

	next *cell
}

// Entry is a point-in-time copy of a history record, safe to retain
// after the table's lock is released.
type Entry struct {
	Key         string
	Lat, Lng    float64
	CosLat      float64
	ArrivalTick int64
	PacketType  aprs.TypeFlags
	Flags       aprs.TypeFlags
}

// Result reports what Insert did with a packet.
type Result int

const (
	Skipped Result = iota
	Inserted
	Updated
	Killed
)

func (r Result) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Killed:
		return "killed"
	}
	return "skipped"
}

// Table is the 8192-bucket history database. A single RWMutex guards
// the whole table: readers (Lookup, Dump) run concurrently with each
// other, writers (Insert, Cleanup, Load) exclude everyone. A writer
// may incidentally evict stale chain entries it walks past, which is
// covered by the same write lock it already holds.
type Table struct {
	storeTimeSeconds int64

	mu      sync.RWMutex
	buckets [HashModulo]*cell
	pool    *cellhash.Pool[cell]

	Inserts      uint64
	Lookups      uint64
	NoPos        uint64
	Uninterested uint64
}

// New creates a Table with the given retention window, in seconds. A
// storeTimeSeconds of 0 selects DefaultStoreTime.
func New(storeTimeSeconds int64) *Table {
	if storeTimeSeconds <= 0 {
		storeTimeSeconds = DefaultStoreTime
	}
	return &Table{
		storeTimeSeconds: storeTimeSeconds,
		pool:             cellhash.NewPool[cell](0),
	}
}

// Insert records p's position under the key its packet type implies:
// the object/item name for OBJECT/ITEM packets (killed instead of
// stored if the name carries a kill character), the source callsign
// for plain positions. Packets without a decoded position, or whose
// type carries none of these keys, are skipped.
//
// For a third-party-wrapped position, the key is the unwrapped inner
// source (p.EffectiveSource()), not the outer relay's callsign: the
// history database answers "where is this station", and a relay's own
// callsign is never the right answer to that question.
func (t *Table) Insert(p *aprs.Packet, tick int64) Result {
	if !p.HasPos {
		t.NoPos++
		return Skipped
	}

	key, isDead, ok := extractKey(p)
	if !ok {
		t.Uninterested++
		return Skipped
	}

	t.Inserts++
	h1 := cellhash.KeyHash(key)
	idx := cellhash.FoldHistory(h1, HashModulo)
	expiry := tick - t.storeTimeSeconds

	t.mu.Lock()
	defer t.mu.Unlock()

	hp := &t.buckets[idx]
	for *hp != nil {
		cp := *hp
		if cp.arrivalTick < expiry {
			*hp = cp.next
			cp.next = nil
			t.pool.Free(cp)
			continue
		}
		if cp.keyHash == h1 && cp.key == key {
			if isDead {
				*hp = cp.next
				cp.next = nil
				t.pool.Free(cp)
				return Killed
			}
			cp.lat, cp.lng, cp.cosLat = p.Lat, p.Lng, p.CosLat
			cp.arrivalTick = p.ArrivalTick
			cp.packetType = p.Flags
			cp.flags = p.Flags
			return Updated
		}
		hp = &cp.next
	}

	if isDead {
		return Skipped
	}

	fresh := t.pool.Alloc()
	if fresh == nil {
		return Skipped
	}
	fresh.key = key
	fresh.keyHash = h1
	fresh.lat, fresh.lng, fresh.cosLat = p.Lat, p.Lng, p.CosLat
	fresh.arrivalTick = p.ArrivalTick
	fresh.packetType = p.Flags
	fresh.flags = p.Flags
	fresh.next = t.buckets[idx]
	t.buckets[idx] = fresh
	return Inserted
}

// Lookup returns the entry for key, if it is present and arrived within
// the table's retention window less five minutes: an entry stops
// answering lookups five minutes before Cleanup would discard it.
func (t *Table) Lookup(key string, tick int64) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	t.Lookups++
	validity := tick - t.storeTimeSeconds + 5*60
	h1 := cellhash.KeyHash(key)
	idx := cellhash.FoldHistory(h1, HashModulo)

	for cp := t.buckets[idx]; cp != nil; cp = cp.next {
		if cp.keyHash == h1 && cp.key == key && cp.arrivalTick > validity {
			return Entry{
				Key:         cp.key,
				Lat:         cp.lat,
				Lng:         cp.lng,
				CosLat:      cp.cosLat,
				ArrivalTick: cp.arrivalTick,
				PacketType:  cp.packetType,
				Flags:       cp.flags,
			}, true
		}
	}
	return Entry{}, false
}

// Position is a convenience wrapper around Lookup for consumers (the
// filter engine's f/ and m/ terms) that only need the coordinates,
// matching the filter.PositionLookup interface shape.
func (t *Table) Position(key string, tick int64) (lat, lng float64, ok bool) {
	e, found := t.Lookup(key, tick)
	if !found {
		return 0, 0, false
	}
	return e.Lat, e.Lng, true
}

// EntryCount returns the number of entries currently held, for the
// admin status surface's "historydb" section.
func (t *Table) EntryCount() int {
	return t.pool.Snapshot().Allocated
}

// PoolStats returns the underlying cell allocator's usage snapshot,
// for the admin status surface's "memory" section.
func (t *Table) PoolStats() cellhash.Stats {
	return t.pool.Snapshot()
}

// Cleanup evicts every entry older than the retention window from
// every bucket. Intended to be called about once a minute.
func (t *Table) Cleanup(tick int64) int {
	expiry := tick - t.storeTimeSeconds

	t.mu.Lock()
	defer t.mu.Unlock()

	cleaned := 0
	for i := range t.buckets {
		hp := &t.buckets[i]
		for *hp != nil {
			cp := *hp
			if cp.arrivalTick < expiry {
				*hp = cp.next
				cp.next = nil
				t.pool.Free(cp)
				cleaned++
				continue
			}
			hp = &cp.next
		}
	}
	return cleaned
}

type dumpRecord struct {
	ArrivalTime int64   `json:"arrivaltime"`
	Key         string  `json:"key"`
	PacketType  uint32  `json:"packettype"`
	Flags       uint32  `json:"flags"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// Dump writes every non-expired entry to w, one JSON object per line,
// for live-upgrade handoff to a successor process.
func (t *Table) Dump(w io.Writer, tick int64) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	expiry := tick - t.storeTimeSeconds
	enc := json.NewEncoder(w)
	for _, head := range t.buckets {
		for cp := head; cp != nil; cp = cp.next {
			if cp.arrivalTick <= expiry {
				continue
			}
			rec := dumpRecord{
				ArrivalTime: cp.arrivalTick,
				Key:         cp.key,
				PacketType:  uint32(cp.packetType),
				Flags:       uint32(cp.flags),
				Lat:         cp.lat,
				Lon:         cp.lng,
			}
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("history: dump entry %q: %w", cp.key, err)
			}
		}
	}
	return nil
}

// Load reads dump records from r and inserts every one newer than the
// retention window, returning how many of the total lines were kept.
// Records are appended without the update/kill reconciliation Insert
// performs, matching the source daemon's straight-line load path.
func (t *Table) Load(r io.Reader, tick int64) (loaded, total int, err error) {
	expiry := tick - t.storeTimeSeconds

	t.mu.Lock()
	defer t.mu.Unlock()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 32*1024), 1<<20)
	for scanner.Scan() {
		total++
		var rec dumpRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if rec.Key == "" || rec.ArrivalTime < expiry {
			continue
		}
		h1 := cellhash.KeyHash(rec.Key)
		idx := cellhash.FoldHistory(h1, HashModulo)

		fresh := t.pool.Alloc()
		if fresh == nil {
			continue
		}
		fresh.key = rec.Key
		fresh.keyHash = h1
		fresh.lat, fresh.lng = rec.Lat, rec.Lon
		fresh.cosLat = math.Cos(rec.Lat)
		fresh.arrivalTick = rec.ArrivalTime
		fresh.packetType = aprs.TypeFlags(rec.PacketType)
		fresh.flags = aprs.TypeFlags(rec.Flags)
		fresh.next = t.buckets[idx]
		t.buckets[idx] = fresh
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return loaded, total, fmt.Errorf("history: load: %w", err)
	}
	return loaded, total, nil
}

// extractKey re-derives the history key directly from the packet's
// info field, independent of anything the parser already extracted,
// matching the source daemon's own independent rescan: the key
// extraction needs the raw kill-character position, which a decoded
// Packet does not otherwise retain once parsing succeeds.
func extractKey(p *aprs.Packet) (key string, isDead bool, ok bool) {
	switch {
	case p.Flags.Has(aprs.Object):
		info := p.Info
		if len(info) < 11 {
			return "", false, false
		}
		name := strings.TrimRight(string(info[1:10]), " ")
		if name == "" {
			return "", false, false
		}
		return name, info[10] == '_', true

	case p.Flags.Has(aprs.Item):
		info := p.Info
		if len(info) < 2 {
			return "", false, false
		}
		body := info[1:]
		i := 0
		for ; i < 9 && i < len(body) && body[i] != '!' && body[i] != '_'; i++ {
		}
		if i == 0 || i >= len(body) {
			return "", false, false
		}
		return string(body[:i]), body[i] == '_', true

	case p.Flags.Has(aprs.Position):
		if p.EffectiveSource() == "" {
			return "", false, false
		}
		return p.EffectiveSource(), false, true

	default:
		return "", false, false
	}
}
