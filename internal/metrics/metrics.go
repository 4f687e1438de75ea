// Package metrics registers the Prometheus counters and gauges behind
// both the /metrics scrape endpoint and the admin status JSON's
// numeric fields, following the teacher's promauto registration
// pattern (one struct of named metric handles, built by an explicit
// init function rather than package-level globals tied to the default
// registry).
package metrics

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aprsis"

// Registry holds every counter and gauge the server exposes, bound to
// its own prometheus.Registry rather than the global default so that
// multiple server instances (as in tests) never collide on
// registration.
type Registry struct {
	Reg *prometheus.Registry

	PacketsReceived  *prometheus.CounterVec
	RxErrors         *prometheus.CounterVec
	DupesDropped     prometheus.Counter
	UniquesOut       prometheus.Counter
	DedupByVariant   *prometheus.CounterVec
	HistoryInserts   prometheus.Counter
	HistoryLookups   prometheus.Counter
	HistoryEntries   prometheus.Gauge
	ClientsConnected prometheus.Gauge
	WorkerQueueDepth *prometheus.GaugeVec
}

// New builds a Registry with every metric registered against a fresh
// prometheus.Registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	fac := promauto.With(reg)

	return &Registry{
		Reg: reg,
		PacketsReceived: fac.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "packets_received_total",
			Help:      "Packets received from client or uplink sockets, before parsing.",
		}, []string{"source"}),
		RxErrors: fac.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "rx_errors_total",
			Help:      "Rejected frames by error code.",
		}, []string{"code"}),
		DupesDropped: fac.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "dupes_dropped_total",
			Help:      "Packets recognized as duplicates and suppressed.",
		}),
		UniquesOut: fac.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "uniques_out_total",
			Help:      "Packets that passed duplicate suppression.",
		}),
		DedupByVariant: fac.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "dupe_variant_total",
			Help:      "Duplicate matches by the normalization variant that produced them.",
		}, []string{"variant"}),
		HistoryInserts: fac.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "historydb",
			Name:      "inserts_total",
			Help:      "History database insert/update/kill operations.",
		}),
		HistoryLookups: fac.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "historydb",
			Name:      "lookups_total",
			Help:      "History database lookups.",
		}),
		HistoryEntries: fac.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "historydb",
			Name:      "entries",
			Help:      "Entries currently held in the history database.",
		}),
		ClientsConnected: fac.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "clients_connected",
			Help:      "Currently connected client sockets.",
		}),
		WorkerQueueDepth: fac.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "worker_queue_depth",
			Help:      "Pending packets in a worker's inbox.",
		}, []string{"worker"}),
	}
}

// RxErrorCounts reads back the current rx_errors_total counter values
// by error code, for the admin status surface's "rx_errs" section.
// CounterVec has no direct accessor for its accumulated label set, so
// this collects and decodes the vector's own metric family, the
// standard way to introspect a Prometheus vector from the process
// that owns it.
func (r *Registry) RxErrorCounts() map[string]uint64 {
	ch := make(chan prometheus.Metric, 16)
	go func() {
		r.RxErrors.Collect(ch)
		close(ch)
	}()

	counts := make(map[string]uint64)
	for m := range ch {
		var pb dto.Metric
		if err := m.Write(&pb); err != nil {
			continue
		}
		var code string
		for _, lp := range pb.GetLabel() {
			if lp.GetName() == "code" {
				code = lp.GetValue()
			}
		}
		if code != "" {
			counts[code] = uint64(pb.GetCounter().GetValue())
		}
	}
	return counts
}
