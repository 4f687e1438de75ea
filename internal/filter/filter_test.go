package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hamrelay/aprsis/internal/aprs"
)

func mustParsePacket(t *testing.T, raw string) *aprs.Packet {
	t.Helper()
	p, err := aprs.Parse([]byte(raw), 1, 1)
	require.NoError(t, err)
	return p
}

type fakeHistory map[string][2]float64

func (f fakeHistory) Lookup(key string, tick int64) (float64, float64, bool) {
	v, ok := f[key]
	return v[0], v[1], ok
}

func TestRangeFilterMatches(t *testing.T) {
	f, err := Parse("r/49.05/-72.03/50")
	require.NoError(t, err)
	p := mustParsePacket(t, "N0CALL>APRS:!4903.50N/07201.75W-test")
	require.True(t, f.Match(p, Context{}))
}

func TestRangeFilterRejectsFarAway(t *testing.T) {
	f, err := Parse("r/0/0/50")
	require.NoError(t, err)
	p := mustParsePacket(t, "N0CALL>APRS:!4903.50N/07201.75W-test")
	require.False(t, f.Match(p, Context{}))
}

func TestAreaFilter(t *testing.T) {
	f, err := Parse("a/50/-73/48/-71")
	require.NoError(t, err)
	p := mustParsePacket(t, "N0CALL>APRS:!4903.50N/07201.75W-test")
	require.True(t, f.Match(p, Context{}))
}

func TestBudlistFilterExactAndWildcard(t *testing.T) {
	f, err := Parse("b/N0CALL")
	require.NoError(t, err)
	p := mustParsePacket(t, "N0CALL>APRS:!4903.50N/07201.75W-test")
	require.True(t, f.Match(p, Context{}))

	f2, err := Parse("b/N0*")
	require.NoError(t, err)
	require.True(t, f2.Match(p, Context{}))

	f3, err := Parse("b/N9ZZZ")
	require.NoError(t, err)
	require.False(t, f3.Match(p, Context{}))
}

func TestPrefixFilter(t *testing.T) {
	f, err := Parse("p/N0")
	require.NoError(t, err)
	p := mustParsePacket(t, "N0CALL>APRS:!4903.50N/07201.75W-test")
	require.True(t, f.Match(p, Context{}))
}

func TestDigipeaterFilter(t *testing.T) {
	f, err := Parse("d/WIDE2*")
	require.NoError(t, err)
	p := mustParsePacket(t, "N0CALL>APRS,WIDE1-1,WIDE2-2:!4903.50N/07201.75W-test")
	require.True(t, f.Match(p, Context{}))
}

func TestTypeFilter(t *testing.T) {
	f, err := Parse("t/m")
	require.NoError(t, err)
	p := mustParsePacket(t, "N0CALL>APRS::N0CALL   :Hello there{42")
	require.True(t, f.Match(p, Context{}))

	p2 := mustParsePacket(t, "N0CALL>APRS:!4903.50N/07201.75W-test")
	require.False(t, f.Match(p2, Context{}))
}

func TestFriendRangeFilter(t *testing.T) {
	f, err := Parse("f/N9ZZZ/50")
	require.NoError(t, err)
	p := mustParsePacket(t, "N0CALL>APRS:!4903.50N/07201.75W-test")

	hist := fakeHistory{"N9ZZZ": [2]float64{p.Lat, p.Lng}}
	require.True(t, f.Match(p, Context{History: hist, Tick: 1}))

	require.False(t, f.Match(p, Context{History: fakeHistory{}, Tick: 1}))
}

func TestMyRangeFilter(t *testing.T) {
	f, err := Parse("m/50")
	require.NoError(t, err)
	p := mustParsePacket(t, "N0CALL>APRS:!4903.50N/07201.75W-test")

	hist := fakeHistory{"W1GW": [2]float64{p.Lat, p.Lng}}
	require.True(t, f.Match(p, Context{History: hist, Tick: 1, OwnCallsign: "W1GW"}))
}

func TestOrSemanticsAcrossTerms(t *testing.T) {
	f, err := Parse("b/N9ZZZ p/N0")
	require.NoError(t, err)
	p := mustParsePacket(t, "N0CALL>APRS:!4903.50N/07201.75W-test")
	require.True(t, f.Match(p, Context{}))
}

func TestParseRejectsMalformedTerm(t *testing.T) {
	_, err := Parse("zzz")
	require.Error(t, err)
}

func TestParseRejectsUnknownLetter(t *testing.T) {
	_, err := Parse("x/foo")
	require.Error(t, err)
}
