package qconstruct

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAttributeVerifiedClientOwnPosition(t *testing.T) {
	construct, call := Attribute(Input{
		ConnType:       Client,
		Verified:       true,
		SourceCallsign: "N0CALL",
		LoginCallsign:  "N0CALL",
		ServerCallsign: "FIRST",
	})
	require.Equal(t, "qAR", construct)
	require.Equal(t, "FIRST", call)
}

func TestAttributeVerifiedClientGatingOther(t *testing.T) {
	construct, call := Attribute(Input{
		ConnType:       Client,
		Verified:       true,
		SourceCallsign: "W1AW-9",
		LoginCallsign:  "N0CALL",
		ServerCallsign: "FIRST",
	})
	require.Equal(t, "qAo", construct)
	require.Equal(t, "FIRST", call)
}

func TestAttributeUnverifiedOwnCallsign(t *testing.T) {
	construct, _ := Attribute(Input{
		ConnType:       Client,
		Verified:       false,
		SourceCallsign: "N0CALL",
		LoginCallsign:  "N0CALL",
		ServerCallsign: "FIRST",
	})
	require.Equal(t, "qAU", construct)
}

func TestAttributeUnverifiedOtherCallsign(t *testing.T) {
	construct, _ := Attribute(Input{
		ConnType:       Client,
		Verified:       false,
		SourceCallsign: "W1AW-9",
		LoginCallsign:  "N0CALL",
		ServerCallsign: "FIRST",
	})
	require.Equal(t, "qAo", construct)
}

func TestAttributeServerConnVerified(t *testing.T) {
	construct, call := Attribute(Input{
		ConnType:          Server,
		Verified:          true,
		PeerLoginCallsign: "SECOND",
		ServerCallsign:    "FIRST",
	})
	require.Equal(t, "qAC", construct)
	require.Equal(t, "SECOND", call)
}

func TestAttributeServerConnUnverified(t *testing.T) {
	construct, call := Attribute(Input{
		ConnType:       Server,
		Verified:       false,
		ServerCallsign: "FIRST",
	})
	require.Equal(t, "qAX", construct)
	require.Equal(t, "FIRST", call)
}

func TestAttributeServerInjected(t *testing.T) {
	construct, call := Attribute(Input{ServerInjected: true, ServerCallsign: "FIRST"})
	require.Equal(t, "qAS", construct)
	require.Equal(t, "FIRST", call)
}

func TestHasConstructDetectsExisting(t *testing.T) {
	require.True(t, HasConstruct([]string{"N0CALL-1", "qAR", "FIRST"}))
	require.True(t, HasConstruct([]string{"WIDE1-1*", "qAo", "SECOND"}))
	require.False(t, HasConstruct([]string{"WIDE1-1", "WIDE2-2"}))
}

func TestAppendIfNeededSkipsWhenAlreadyAttributed(t *testing.T) {
	path := []string{"N0CALL-1", "qAR", "UPSTREAM"}
	out := AppendIfNeeded(path, Input{ConnType: Client, Verified: true, SourceCallsign: "X", LoginCallsign: "X", ServerCallsign: "FIRST"})
	require.Equal(t, path, out)
}

func TestAppendIfNeededAppendsWhenAbsent(t *testing.T) {
	path := []string{"WIDE1-1"}
	out := AppendIfNeeded(path, Input{ConnType: Client, Verified: true, SourceCallsign: "N0CALL", LoginCallsign: "N0CALL", ServerCallsign: "FIRST"})
	require.Equal(t, []string{"WIDE1-1", "qAR", "FIRST"}, out)
}
