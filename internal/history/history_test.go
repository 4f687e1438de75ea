package history

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hamrelay/aprsis/internal/aprs"
)

func mustParse(t *testing.T, raw string, tick int64) *aprs.Packet {
	t.Helper()
	p, err := aprs.Parse([]byte(raw), tick, tick)
	require.NoError(t, err)
	return p
}

func TestInsertAndLookupPlainPosition(t *testing.T) {
	tbl := New(3600)
	p := mustParse(t, "N0CALL>APRS,TCPIP*:!4903.50N/07201.75W-test", 100)

	require.Equal(t, Inserted, tbl.Insert(p, 100))

	e, ok := tbl.Lookup("N0CALL", 100)
	require.True(t, ok)
	require.InDelta(t, p.Lat, e.Lat, 1e-9)
	require.InDelta(t, p.Lng, e.Lng, 1e-9)

	p2 := mustParse(t, "N0CALL>APRS,TCPIP*:!4900.00N/07200.00W-test", 101)
	require.Equal(t, Updated, tbl.Insert(p2, 101))

	e2, ok := tbl.Lookup("N0CALL", 101)
	require.True(t, ok)
	require.InDelta(t, p2.Lat, e2.Lat, 1e-9)
}

func TestInsertSkipsPacketsWithoutPosition(t *testing.T) {
	tbl := New(3600)
	p := mustParse(t, "N0CALL>APRS::N0CALL   :Hello there{42", 100)
	require.Equal(t, Skipped, tbl.Insert(p, 100))
	require.EqualValues(t, 1, tbl.NoPos)
}

func TestInsertObjectThenKill(t *testing.T) {
	tbl := New(3600)
	create := mustParse(t, "N0CALL>APRS:;TESTOBJ  *092345z4903.50N/07201.75W-test", 100)
	require.Equal(t, Inserted, tbl.Insert(create, 100))

	_, ok := tbl.Lookup("TESTOBJ", 100)
	require.True(t, ok)

	kill := mustParse(t, "N0CALL>APRS:;TESTOBJ  _092345z4903.50N/07201.75W-test", 101)
	require.Equal(t, Killed, tbl.Insert(kill, 101))

	_, ok = tbl.Lookup("TESTOBJ", 101)
	require.False(t, ok)
}

func TestLookupRespectsValidityGrace(t *testing.T) {
	// Lookup's validity window closes 5 minutes before cleanup would
	// physically evict the entry, so with a 1000 second retention
	// window a lookup for this entry stops succeeding at tick 700
	// even though cleanup won't remove it until tick 1001.
	tbl := New(1000)
	p := mustParse(t, "N0CALL>APRS,TCPIP*:!4903.50N/07201.75W-test", 0)
	require.Equal(t, Inserted, tbl.Insert(p, 0))

	_, ok := tbl.Lookup("N0CALL", 500)
	require.True(t, ok)

	_, ok = tbl.Lookup("N0CALL", 699)
	require.True(t, ok)

	_, ok = tbl.Lookup("N0CALL", 700)
	require.False(t, ok)
}

func TestCleanupEvictsExpiredEntries(t *testing.T) {
	tbl := New(100)
	p := mustParse(t, "N0CALL>APRS,TCPIP*:!4903.50N/07201.75W-test", 0)
	require.Equal(t, Inserted, tbl.Insert(p, 0))

	require.Equal(t, 0, tbl.Cleanup(50))
	require.Equal(t, 1, tbl.Cleanup(200))

	_, ok := tbl.Lookup("N0CALL", 200)
	require.False(t, ok)
}

func TestDumpLoadRoundTrip(t *testing.T) {
	src := New(3600)
	p := mustParse(t, "N0CALL>APRS,TCPIP*:!4903.50N/07201.75W-test", 100)
	require.Equal(t, Inserted, src.Insert(p, 100))

	var buf bytes.Buffer
	require.NoError(t, src.Dump(&buf, 100))
	require.Contains(t, buf.String(), "N0CALL")

	dst := New(3600)
	loaded, total, err := dst.Load(&buf, 100)
	require.NoError(t, err)
	require.Equal(t, 1, loaded)
	require.Equal(t, 1, total)

	e, ok := dst.Lookup("N0CALL", 100)
	require.True(t, ok)
	require.InDelta(t, p.Lat, e.Lat, 1e-9)
}

func TestLoadSkipsExpiredRecords(t *testing.T) {
	src := New(3600)
	p := mustParse(t, "N0CALL>APRS,TCPIP*:!4903.50N/07201.75W-test", 0)
	require.Equal(t, Inserted, src.Insert(p, 0))

	var buf bytes.Buffer
	require.NoError(t, src.Dump(&buf, 0))

	dst := New(3600)
	loaded, total, err := dst.Load(&buf, 10000)
	require.NoError(t, err)
	require.Equal(t, 0, loaded)
	require.Equal(t, 1, total)
}
