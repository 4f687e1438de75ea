// Package filter implements the APRS-IS client filter engine (C6): a
// per-client filter expression, parsed once at login time, evaluated
// against every packet the server considers forwarding to that client.
//
// A filter expression is a space-separated list of terms; a packet is
// forwarded if it matches any term (the terms are OR'd), matching the
// real protocol's inclusive filter semantics.
package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hamrelay/aprsis/internal/aprs"
)

const earthRadiusKm = 6371.0

// PositionLookup is the read-only history access the f/ and m/ terms
// need: "where was this callsign last seen". internal/server adapts
// history.Table.Position to it, so filter does not import history.
type PositionLookup interface {
	Lookup(key string, tick int64) (lat, lng float64, ok bool)
}

// Context carries the per-evaluation inputs a Filter needs beyond the
// packet itself.
type Context struct {
	History     PositionLookup
	Tick        int64
	OwnCallsign string // the filtering client's own login callsign, for m/
}

// Filter is a parsed, ready-to-evaluate client filter expression.
type Filter struct {
	terms []term
}

type term interface {
	match(p *aprs.Packet, ctx Context) bool
}

// Parse parses a space-separated filter expression into a Filter.
// Unrecognized or malformed terms are reported with the offending
// token, matching the original's practice of rejecting a bad filter
// at login time rather than silently ignoring part of it.
func Parse(expr string) (*Filter, error) {
	f := &Filter{}
	for _, tok := range strings.Fields(expr) {
		t, err := parseTerm(tok)
		if err != nil {
			return nil, err
		}
		f.terms = append(f.terms, t)
	}
	return f, nil
}

// Match reports whether p passes any term of f. An empty Filter (no
// terms) matches nothing, matching the "no filter configured" case
// being handled separately by the caller (full firehose, or nothing).
func (f *Filter) Match(p *aprs.Packet, ctx Context) bool {
	for _, t := range f.terms {
		if t.match(p, ctx) {
			return true
		}
	}
	return false
}

func parseTerm(tok string) (term, error) {
	if len(tok) < 2 || tok[1] != '/' {
		return nil, fmt.Errorf("filter: malformed term %q", tok)
	}
	fields := strings.Split(tok[2:], "/")
	switch tok[0] {
	case 'r':
		return parseRange(fields, tok)
	case 'a':
		return parseArea(fields, tok)
	case 'b':
		return budlistTerm{calls: fields}, nil
	case 'p':
		return prefixTerm{prefixes: fields}, nil
	case 'd':
		return digipeaterTerm{calls: fields}, nil
	case 't':
		return parseType(fields, tok)
	case 'f':
		return parseFriendRange(fields, tok)
	case 'm':
		return parseMyRange(fields, tok)
	default:
		return nil, fmt.Errorf("filter: unrecognized term %q", tok)
	}
}

func parseFloat(s, tok string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("filter: bad number in %q: %w", tok, err)
	}
	return v, nil
}

// rangeTerm is "r/lat/lon/dist": packets within dist kilometers of a
// fixed point.
type rangeTerm struct {
	lat, lng, cosLat float64
	km               float64
}

func parseRange(fields []string, tok string) (term, error) {
	if len(fields) != 3 {
		return nil, fmt.Errorf("filter: %q wants lat/lon/dist", tok)
	}
	lat, err := parseFloat(fields[0], tok)
	if err != nil {
		return nil, err
	}
	lng, err := parseFloat(fields[1], tok)
	if err != nil {
		return nil, err
	}
	km, err := parseFloat(fields[2], tok)
	if err != nil {
		return nil, err
	}
	latRad := lat * math.Pi / 180
	return rangeTerm{lat: latRad, lng: lng * math.Pi / 180, cosLat: math.Cos(latRad), km: km}, nil
}

func (t rangeTerm) match(p *aprs.Packet, _ Context) bool {
	if !p.HasPos {
		return false
	}
	return greatCircleKm(t.lat, t.lng, t.cosLat, p.Lat, p.Lng, p.CosLat) <= t.km
}

// greatCircleKm is the spherical law of cosines distance between two
// points given in radians, with precomputed cos(lat) for each. The
// packet side always passes its stored CosLat; the f/ and m/ terms
// compute the cosine of the looked-up position on each call.
func greatCircleKm(lat1, lng1, cosLat1, lat2, lng2, cosLat2 float64) float64 {
	cosAngle := math.Sin(lat1)*math.Sin(lat2) + cosLat1*cosLat2*math.Cos(lng2-lng1)
	// Guard against tiny float overshoot past [-1, 1] from two nearly
	// identical points, which would make Acos return NaN.
	if cosAngle > 1 {
		cosAngle = 1
	} else if cosAngle < -1 {
		cosAngle = -1
	}
	return earthRadiusKm * math.Acos(cosAngle)
}

// areaTerm is "a/latN/lonW/latS/lonE": a fixed bounding box.
type areaTerm struct {
	latN, lonW, latS, lonE float64
}

func parseArea(fields []string, tok string) (term, error) {
	if len(fields) != 4 {
		return nil, fmt.Errorf("filter: %q wants latN/lonW/latS/lonE", tok)
	}
	vals := make([]float64, 4)
	for i, s := range fields {
		v, err := parseFloat(s, tok)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return areaTerm{latN: vals[0], lonW: vals[1], latS: vals[2], lonE: vals[3]}, nil
}

func (t areaTerm) match(p *aprs.Packet, _ Context) bool {
	if !p.HasPos {
		return false
	}
	lat := p.Lat * 180 / math.Pi
	lng := p.Lng * 180 / math.Pi
	return lat <= t.latN && lat >= t.latS && lng >= t.lonW && lng <= t.lonE
}

// budlistTerm is "b/call1/call2/...": matches the packet's effective
// source callsign, trailing '*' acting as a prefix wildcard.
type budlistTerm struct {
	calls []string
}

func (t budlistTerm) match(p *aprs.Packet, _ Context) bool {
	return matchesAnyCallPattern(t.calls, p.EffectiveSource())
}

// prefixTerm is "p/prefix1/prefix2/...": matches the packet's source
// callsign by plain prefix, no wildcard character needed.
type prefixTerm struct {
	prefixes []string
}

func (t prefixTerm) match(p *aprs.Packet, _ Context) bool {
	src := p.EffectiveSource()
	for _, prefix := range t.prefixes {
		if prefix != "" && strings.HasPrefix(src, prefix) {
			return true
		}
	}
	return false
}

// digipeaterTerm is "d/digi1/digi2/...": matches if any digipeater
// used in the path appears (by wildcard-capable callsign pattern).
type digipeaterTerm struct {
	calls []string
}

func (t digipeaterTerm) match(p *aprs.Packet, _ Context) bool {
	for _, hop := range p.Path {
		if matchesAnyCallPattern(t.calls, strings.TrimSuffix(hop, "*")) {
			return true
		}
	}
	return false
}

func matchesAnyCallPattern(patterns []string, call string) bool {
	for _, pat := range patterns {
		if pat == "" {
			continue
		}
		if strings.HasSuffix(pat, "*") {
			if strings.HasPrefix(call, pat[:len(pat)-1]) {
				return true
			}
		} else if call == pat {
			return true
		}
	}
	return false
}

// typeTerm is "t/poimqstuw": a set of one-letter packet-type codes.
type typeTerm struct {
	flags aprs.TypeFlags
}

var typeLetters = map[byte]aprs.TypeFlags{
	'p': aprs.Position,
	'o': aprs.Object,
	'i': aprs.Item,
	'm': aprs.Message,
	'q': aprs.Query,
	's': aprs.Status | aprs.StatCapa,
	't': aprs.Telemetry,
	'u': aprs.UserDef,
	'w': aprs.WX | aprs.NWS,
	'n': aprs.NWS,
}

func parseType(fields []string, tok string) (term, error) {
	if len(fields) == 0 || fields[0] == "" {
		return nil, fmt.Errorf("filter: %q wants at least one type letter", tok)
	}
	var flags aprs.TypeFlags
	for i := 0; i < len(fields[0]); i++ {
		f, ok := typeLetters[fields[0][i]]
		if !ok {
			return nil, fmt.Errorf("filter: %q has unknown type letter %q", tok, fields[0][i])
		}
		flags |= f
	}
	return typeTerm{flags: flags}, nil
}

func (t typeTerm) match(p *aprs.Packet, _ Context) bool {
	return p.Flags.Any(t.flags)
}

// friendRangeTerm is "f/call/dist": packets within dist kilometers of
// call's last known position, looked up in the history database.
type friendRangeTerm struct {
	call string
	km   float64
}

func parseFriendRange(fields []string, tok string) (term, error) {
	if len(fields) != 2 {
		return nil, fmt.Errorf("filter: %q wants call/dist", tok)
	}
	km, err := parseFloat(fields[1], tok)
	if err != nil {
		return nil, err
	}
	return friendRangeTerm{call: fields[0], km: km}, nil
}

func (t friendRangeTerm) match(p *aprs.Packet, ctx Context) bool {
	if !p.HasPos || ctx.History == nil {
		return false
	}
	lat, lng, ok := ctx.History.Lookup(t.call, ctx.Tick)
	if !ok {
		return false
	}
	return greatCircleKm(lat, lng, math.Cos(lat), p.Lat, p.Lng, p.CosLat) <= t.km
}

// myRangeTerm is "m/dist": packets within dist kilometers of the
// filtering client's own last reported position.
type myRangeTerm struct {
	km float64
}

func parseMyRange(fields []string, tok string) (term, error) {
	if len(fields) != 1 {
		return nil, fmt.Errorf("filter: %q wants dist", tok)
	}
	km, err := parseFloat(fields[0], tok)
	if err != nil {
		return nil, err
	}
	return myRangeTerm{km: km}, nil
}

func (t myRangeTerm) match(p *aprs.Packet, ctx Context) bool {
	if !p.HasPos || ctx.History == nil || ctx.OwnCallsign == "" {
		return false
	}
	lat, lng, ok := ctx.History.Lookup(ctx.OwnCallsign, ctx.Tick)
	if !ok {
		return false
	}
	return greatCircleKm(lat, lng, math.Cos(lat), p.Lat, p.Lng, p.CosLat) <= t.km
}
