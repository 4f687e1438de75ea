// Package heard implements a client's heard and courtesy lists (C5):
// per-connection records of which callsigns have recently been seen
// through that client, used for message routing and for deciding when
// to inject a courtesy position ahead of a relayed message.
//
// A List belongs to exactly one client connection and is only ever
// touched by the goroutine driving that connection's read/write loop,
// so unlike the shared history database it needs no locking at all.
package heard

import "github.com/hamrelay/aprsis/internal/cellhash"

// Buckets is the hash table width. A single igate client typically has
// on the order of a few hundred heard stations at once, so 16 buckets
// of linked entries, checked hash-first, is plenty.
const Buckets = 16

// DefaultStoreTime is how long an entry survives without being
// refreshed, in seconds, absent explicit configuration.
const DefaultStoreTime = 3600

type entry struct {
	callsign  string
	hash      uint32
	lastHeard int64
	prev      *entry // nil when entry is list[bucket]'s head
	next      *entry
}

// List is one heard or courtesy table. The zero value is usable.
type List struct {
	storeTimeSeconds int64
	buckets          [Buckets]*entry
	count            int
}

// New creates a List with the given retention window, in seconds. A
// storeTimeSeconds of 0 selects DefaultStoreTime.
func New(storeTimeSeconds int64) *List {
	if storeTimeSeconds <= 0 {
		storeTimeSeconds = DefaultStoreTime
	}
	return &List{storeTimeSeconds: storeTimeSeconds}
}

func bucketFor(hash uint32) uint32 { return cellhash.FoldHeard(hash, Buckets) }

// Update marks callsign as heard at tick, inserting a new entry if it
// isn't already present. An existing entry is moved to the front of
// its bucket, since digipeating makes a just-heard station likely to
// be heard again immediately, and keeping it near the head of the
// chain keeps the common case cheap.
func (l *List) Update(callsign string, tick int64) {
	hash := cellhash.KeyHash(callsign)
	idx := bucketFor(hash)

	for e := l.buckets[idx]; e != nil; e = e.next {
		if e.hash == hash && e.callsign == callsign {
			e.lastHeard = tick
			l.moveToFront(idx, e)
			return
		}
	}

	e := &entry{callsign: callsign, hash: hash, lastHeard: tick, next: l.buckets[idx]}
	if e.next != nil {
		e.next.prev = e
	}
	l.buckets[idx] = e
	l.count++
}

func (l *List) moveToFront(idx uint32, e *entry) {
	if l.buckets[idx] == e {
		return
	}
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	e.prev = nil
	e.next = l.buckets[idx]
	if e.next != nil {
		e.next.prev = e
	}
	l.buckets[idx] = e
}

// Check reports whether callsign is currently present, without
// modifying the list.
func (l *List) Check(callsign string) bool {
	hash := cellhash.KeyHash(callsign)
	idx := bucketFor(hash)
	for e := l.buckets[idx]; e != nil; e = e.next {
		if e.hash == hash && e.callsign == callsign {
			return true
		}
	}
	return false
}

// TakeIfPresent reports whether callsign is present and, if so,
// removes it. This is the courtesy-list primitive: a courtesy position
// for a source is sent at most once per time it appears in the list,
// so finding it consumes the entry.
func (l *List) TakeIfPresent(callsign string) bool {
	hash := cellhash.KeyHash(callsign)
	idx := bucketFor(hash)
	for e := l.buckets[idx]; e != nil; e = e.next {
		if e.hash == hash && e.callsign == callsign {
			l.remove(idx, e)
			return true
		}
	}
	return false
}

func (l *List) remove(idx uint32, e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.buckets[idx] = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	l.count--
}

// Expire drops every entry last heard before tick-storeTimeSeconds, or
// implausibly in the future (a clock regression on the source of the
// tick counter).
func (l *List) Expire(tick int64) {
	expireBelow := tick - l.storeTimeSeconds
	for i := range l.buckets {
		e := l.buckets[i]
		for e != nil {
			next := e.next
			if e.lastHeard < expireBelow || e.lastHeard > tick {
				l.remove(uint32(i), e)
			}
			e = next
		}
	}
}

// Len returns the number of entries currently held.
func (l *List) Len() int { return l.count }

// Callsigns returns every callsign currently held, in no particular
// order, for live-upgrade dump.
func (l *List) Callsigns() []string {
	out := make([]string, 0, l.count)
	for _, head := range l.buckets {
		for e := head; e != nil; e = e.next {
			out = append(out, e.callsign)
		}
	}
	return out
}

// LoadCallsigns repopulates the list from a prior Callsigns dump, all
// marked heard at tick.
func (l *List) LoadCallsigns(callsigns []string, tick int64) {
	for _, c := range callsigns {
		l.Update(c, tick)
	}
}
