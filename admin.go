package aprsis

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hamrelay/aprsis/internal/alarm"
	"github.com/hamrelay/aprsis/internal/upgrade"
)

const upgradeDefaultPath = upgrade.DefaultFileName

// statusDocument is the admin HTTP status surface, with the section
// names status.c's JSON fixes (server, memory, historydb, dupecheck,
// totals, listeners, workers, uplinks, peers, clients, rx_errs,
// alarms) carried exactly, per SPEC_FULL.md's original_source note.
type statusDocument struct {
	Server    serverSection      `json:"server"`
	Memory    memorySection      `json:"memory"`
	HistoryDB historyDBSection   `json:"historydb"`
	DupeCheck dupeCheckSection   `json:"dupecheck"`
	Totals    totalsSection      `json:"totals"`
	Listeners []listenerSection  `json:"listeners"`
	Workers   []workerSection    `json:"workers"`
	Uplinks   []string           `json:"uplinks"`
	Peers     []string           `json:"peers"`
	Clients   []clientSection    `json:"clients"`
	RxErrs    map[string]uint64  `json:"rx_errs"`
	Alarms    []alarm.Alarm      `json:"alarms"`
}

type serverSection struct {
	Callsign      string `json:"callsign"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type memorySection struct {
	HistoryCells         int    `json:"historydb_cells"`
	HistoryCellsHuman    string `json:"historydb_cells_human"`
	HistoryBlocks        int    `json:"historydb_blocks"`
	HistoryCapacityCells int    `json:"historydb_capacity_cells"`
}

type historyDBSection struct {
	Entries int `json:"entries"`
}

type dupeCheckSection struct {
	DupesDropped uint64            `json:"dupes_dropped"`
	UniquesOut   uint64            `json:"uniques_out"`
	ByVariant    map[string]uint64 `json:"by_variant"`
}

type totalsSection struct {
	ClientsConnected int `json:"clients_connected"`
}

type listenerSection struct {
	Addr string `json:"addr"`
}

type workerSection struct {
	Name       string `json:"name"`
	QueueDepth int    `json:"queue_depth"`
}

type clientSection struct {
	RemoteAddr string `json:"remote_addr"`
	Login      string `json:"login"`
	Verified   bool   `json:"verified"`
	FilterExpr string `json:"filter_expr,omitempty"`
	HeardCount int    `json:"heard_count"`
}

// snapshot builds the current statusDocument from the App's live
// state. It never mutates anything, so it's safe to call from
// concurrent HTTP requests.
func (a *App) snapshot() statusDocument {
	dstats := a.srv.DedupStats()
	pool := a.srv.HistoryPoolStats()

	srvClients := a.srv.Clients()
	clients := make([]clientSection, 0, len(srvClients))
	for _, c := range srvClients {
		clients = append(clients, clientSection{
			RemoteAddr: c.RemoteAddr,
			Login:      c.Login,
			Verified:   c.Verified,
			FilterExpr: c.FilterExpr,
			HeardCount: c.HeardCount,
		})
	}

	return statusDocument{
		Server: serverSection{
			Callsign:      a.cfg.ServerCallsign,
			UptimeSeconds: int64(a.srv.Uptime() / time.Second),
		},
		Memory: memorySection{
			HistoryCells:         pool.Allocated,
			HistoryCellsHuman:    humanize.Comma(int64(pool.Allocated)),
			HistoryBlocks:        pool.Blocks,
			HistoryCapacityCells: pool.CapacityCells,
		},
		HistoryDB: historyDBSection{Entries: a.srv.HistoryEntryCount()},
		DupeCheck: dupeCheckSection{
			DupesDropped: dstats.DupesDropped,
			UniquesOut:   dstats.UniquesOut,
			ByVariant:    dstats.ByVariant,
		},
		Totals:    totalsSection{ClientsConnected: a.srv.ClientCount()},
		Listeners: []listenerSection{{Addr: a.cfg.ListenAddr}},
		Clients:   clients,
		RxErrs:    a.srv.RxErrorCounts(),
		Alarms:    a.Alarms.Active(a.srv.Tick()),
	}
}

// adminServer is the HTTP status/metrics surface: an external
// collaborator per §1/§6, but the JSON document it serves is the
// core's own data, so it lives alongside the App that owns that data
// rather than in a separate package.
type adminServer struct {
	addr string
	app  *App

	mu  sync.Mutex
	srv *http.Server
}

func newAdminServer(addr string, app *App) *adminServer {
	return &adminServer{addr: addr, app: app}
}

func (s *adminServer) start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/upgrade", s.handleUpgrade)
	mux.Handle("/metrics", s.app.metricsHandler())

	s.mu.Lock()
	s.srv = &http.Server{Addr: s.addr, Handler: mux}
	srv := s.srv
	s.mu.Unlock()

	ln, err := listen("tcp", s.addr)
	if err != nil {
		return err
	}
	go func() {
		_ = srv.Serve(ln)
	}()
	return nil
}

func (s *adminServer) stop() error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	err := srv.Close()
	_ = closeListener(s.addr)
	return err
}

func (s *adminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	doc := s.app.snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

// handleUpgrade triggers the live-upgrade handoff (C7): it serializes
// every connected client's state to the handoff file and reports the
// path back to the caller, who is responsible for starting the
// replacement process (an external collaborator per §4.7).
func (s *adminServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		path = upgradeDefaultPath
	}
	// The duplicated descriptor is intentionally left open: closing it
	// here would invalidate it before the replacement process (started
	// out of band, per §4.7) can inherit it.
	listenerFD := -1
	if f, err := listenerFile(s.app.cfg.ListenAddr); err == nil {
		listenerFD = int(f.Fd())
	}
	if err := s.app.srv.Handoff(path, listenerFD, nil); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"path": path})
}
