package alarm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRaiseAndActive(t *testing.T) {
	b := NewBoard()
	b.Raise("historydb.cellmalloc", "arena exhausted", 100, 60)

	active := b.Active(110)
	require.Len(t, active, 1)
	require.Equal(t, "historydb.cellmalloc", active[0].Name)
}

func TestAlarmExpires(t *testing.T) {
	b := NewBoard()
	b.Raise("uplink.down", "peer unreachable", 100, 60)
	require.Empty(t, b.Active(200))
}

func TestRaiseRefreshesInPlace(t *testing.T) {
	b := NewBoard()
	b.Raise("x", "first", 0, 10)
	b.Raise("x", "second", 5, 10)

	active := b.Active(5)
	require.Len(t, active, 1)
	require.Equal(t, "second", active[0].Message)
}

func TestClearRemovesAlarm(t *testing.T) {
	b := NewBoard()
	b.Raise("x", "msg", 0, 1000)
	b.Clear("x")
	require.Empty(t, b.Active(0))
}
