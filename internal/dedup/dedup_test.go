package dedup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckExactDuplicate(t *testing.T) {
	e := New(30)
	dup, v := e.Check("N0CALL", []byte("!4903.50N/07201.75W-test"), 10)
	require.False(t, dup)
	require.Equal(t, VariantNone, v)

	dup, v = e.Check("N0CALL", []byte("!4903.50N/07201.75W-test"), 10)
	require.True(t, dup)
	require.Equal(t, VariantExact, v)
	require.EqualValues(t, 1, e.DupesDropped)
	require.EqualValues(t, 1, e.UniquesOut)
}

func TestCheckSpaceTrimVariant(t *testing.T) {
	e := New(30)
	_, _ = e.Check("N0CALL", []byte("hello  world"), 10)
	dup, v := e.Check("N0CALL", []byte("hello world"), 11)
	require.True(t, dup)
	require.Equal(t, VariantSpaceTrim, v)
}

func TestCheckDifferentSourceNotDuplicate(t *testing.T) {
	e := New(30)
	_, _ = e.Check("N0CALL", []byte("same body"), 10)
	dup, _ := e.Check("N9ZZZ", []byte("same body"), 10)
	require.False(t, dup)
}

func TestEntriesExpireAfterWindow(t *testing.T) {
	e := New(5)
	_, _ = e.Check("N0CALL", []byte("expiring body"), 0)
	dup, _ := e.Check("N0CALL", []byte("expiring body"), 4)
	require.True(t, dup)

	dup, _ = e.Check("N0CALL", []byte("expiring body"), 20)
	require.False(t, dup, "entry should have expired and been evicted by the ring")
}

func TestCheck8BitStripVariant(t *testing.T) {
	e := New(30)
	_, _ = e.Check("N0CALL", []byte{'h', 'i', 0xC1}, 10)
	dup, v := e.Check("N0CALL", []byte{'h', 'i'}, 11)
	require.True(t, dup)
	require.Equal(t, VariantStrip8Bit, v)
}
