// Package qconstruct implements the APRS-IS Q construct: the
// "qAR,SERVERID"-shaped path element a receiving server appends to a
// packet to record who verified it and how. The rule table is defined
// by the APRS-IS Q construct specification (not the original_source
// pack, which predates the construct reaching its current form); it
// is reproduced here exactly rather than re-derived, per §4.7's
// "bit-for-bit" requirement.
package qconstruct

import "strings"

// ConnectionType distinguishes a client connection (an end-user
// station or IGate) from a server connection (another full-feed
// APRS-IS server peered with this one).
type ConnectionType int

const (
	Client ConnectionType = iota
	Server
)

// Input is everything Attribute needs to decide which construct
// applies to one packet as it is received on one connection.
type Input struct {
	ConnType ConnectionType

	// Verified is whether the connection's login passcode validated
	// against its claimed callsign.
	Verified bool

	// SourceCallsign is the packet's wire source callsign.
	SourceCallsign string
	// LoginCallsign is the callsign the connection logged in as.
	LoginCallsign string

	// ServerCallsign is this server's own ID, appended as the
	// construct's second field in every case except qAC.
	ServerCallsign string
	// PeerLoginCallsign is the login the far-end server presented,
	// used only when ConnType is Server.
	PeerLoginCallsign string

	// ServerInjected is true when this server itself originated the
	// packet (a status message, not anything received from a client).
	ServerInjected bool
}

// Attribute returns the two-token Q construct ("qAR", "N0CALL") for
// the given input. Callers should only call this for packets that do
// not already carry a Q construct in their path; see HasConstruct.
func Attribute(in Input) (construct, appendedCall string) {
	switch {
	case in.ServerInjected:
		return "qAS", in.ServerCallsign

	case in.ConnType == Server:
		if !in.Verified {
			return "qAX", in.ServerCallsign
		}
		return "qAC", in.PeerLoginCallsign

	case !in.Verified:
		if in.SourceCallsign == in.LoginCallsign {
			return "qAU", in.ServerCallsign
		}
		return "qAo", in.ServerCallsign

	case in.SourceCallsign != in.LoginCallsign:
		// A verified client relaying someone else's traffic (an
		// IGate gating heard RF packets under its own login).
		return "qAo", in.ServerCallsign

	default:
		// The common case: a verified client reporting its own
		// position or status directly.
		return "qAR", in.ServerCallsign
	}
}

// HasConstruct reports whether path already contains a Q construct
// token ("q" followed by exactly two letters). A packet that already
// carries one was already attributed by an upstream server and must
// be forwarded unchanged, never re-attributed.
func HasConstruct(path []string) bool {
	for _, hop := range path {
		if isQToken(hop) {
			return true
		}
	}
	return false
}

func isQToken(hop string) bool {
	hop = strings.TrimSuffix(hop, "*")
	if len(hop) != 3 || hop[0] != 'q' {
		return false
	}
	return isLetter(hop[1]) && isLetter(hop[2])
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// AppendIfNeeded returns path with a Q construct appended, unless path
// already carries one, in which case it is returned unchanged.
func AppendIfNeeded(path []string, in Input) []string {
	if HasConstruct(path) {
		return path
	}
	construct, appendedCall := Attribute(in)
	out := make([]string, 0, len(path)+2)
	out = append(out, path...)
	return append(out, construct, appendedCall)
}
