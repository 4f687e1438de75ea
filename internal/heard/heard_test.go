package heard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpdateAndCheck(t *testing.T) {
	l := New(3600)
	l.Update("N0CALL", 100)
	require.True(t, l.Check("N0CALL"))
	require.False(t, l.Check("N9ZZZ"))
	require.Equal(t, 1, l.Len())
}

func TestUpdateRefreshesExistingEntry(t *testing.T) {
	l := New(3600)
	l.Update("N0CALL", 100)
	l.Update("N0CALL", 200)
	require.Equal(t, 1, l.Len())
}

func TestTakeIfPresentConsumesEntry(t *testing.T) {
	l := New(3600)
	l.Update("N0CALL", 100)

	require.True(t, l.TakeIfPresent("N0CALL"))
	require.False(t, l.Check("N0CALL"))
	require.False(t, l.TakeIfPresent("N0CALL"))
	require.Equal(t, 0, l.Len())
}

func TestExpireDropsStaleEntries(t *testing.T) {
	l := New(100)
	l.Update("OLD", 0)
	l.Update("FRESH", 150)

	l.Expire(200)

	require.False(t, l.Check("OLD"))
	require.True(t, l.Check("FRESH"))
	require.Equal(t, 1, l.Len())
}

func TestExpireDropsFutureTimestamps(t *testing.T) {
	l := New(3600)
	l.Update("BOGUS", 5000)
	l.Expire(100)
	require.False(t, l.Check("BOGUS"))
}

func TestManyEntriesAcrossBuckets(t *testing.T) {
	l := New(3600)
	calls := []string{"N0CALL", "N1AAA", "N2BBB", "N3CCC", "N4DDD", "N5EEE", "N6FFF", "N7GGG",
		"N8HHH", "N9III", "NAJJJ", "NBKKK", "NCLLL", "NDMMM", "NENNN", "NFOOO", "NGPPP", "NHQQQ"}
	for _, c := range calls {
		l.Update(c, 100)
	}
	require.Equal(t, len(calls), l.Len())
	for _, c := range calls {
		require.True(t, l.Check(c))
	}
}

func TestCallsignsDumpAndLoadRoundTrip(t *testing.T) {
	src := New(3600)
	src.Update("N0CALL", 100)
	src.Update("N9ZZZ", 100)

	dump := src.Callsigns()
	require.Len(t, dump, 2)

	dst := New(3600)
	dst.LoadCallsigns(dump, 200)
	require.True(t, dst.Check("N0CALL"))
	require.True(t, dst.Check("N9ZZZ"))
}
