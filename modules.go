// Package aprsis is the root of the APRS-IS fan-out relay core: it
// wires the C1–C7 components in internal/ into a runnable App, the
// way the teacher's caddy.go/context.go/modules.go wire Caddy's
// modules into a runnable Config, even though this core has exactly
// one App (the relay server) rather than an open module registry.
package aprsis

// Lifecycle is a component the core's startup/shutdown path drives
// through Start and Stop, mirroring the teacher's caddy.App interface.
// *App is the only implementation this core ships, but keeping the
// interface separate from the concrete type is what would let a
// future second top-level component (a server-to-server uplink,
// say) join the same Start/Stop sequencing without App growing a
// case-by-case switch.
type Lifecycle interface {
	Start() error
	Stop() error
}

var _ Lifecycle = (*App)(nil)
