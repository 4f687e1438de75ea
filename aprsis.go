package aprsis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hamrelay/aprsis/internal/alarm"
	"github.com/hamrelay/aprsis/internal/metrics"
	"github.com/hamrelay/aprsis/internal/server"
)

// Config is the root, JSON-documented configuration a caller builds
// programmatically (on-disk config parsing is out of scope per §1).
// It mirrors the shape of the teacher's caddy.Config: a handful of
// top-level sections, each optional with a documented default.
type Config struct {
	ListenAddr     string `json:"listen_addr"`
	AdminAddr      string `json:"admin_addr,omitempty"`
	ServerCallsign string `json:"server_callsign"`

	IdleTimeoutSeconds      int64 `json:"idle_timeout_seconds,omitempty"`
	MaxWriteBytes           int   `json:"max_write_bytes,omitempty"`
	DedupWindowSeconds      int64 `json:"dedup_window_seconds,omitempty"`
	LastPositionStoreTime   int64 `json:"lastposition_storetime,omitempty"`
	HeardListStoreTime      int64 `json:"heard_list_storetime,omitempty"`
	CourtesyListStoreTime   int64 `json:"courtesy_list_storetime,omitempty"`

	Logging *Logging `json:"logging,omitempty"`
}

func (c *Config) serverConfig() server.Config {
	sc := server.DefaultConfig(c.ServerCallsign, c.ListenAddr)
	if c.IdleTimeoutSeconds > 0 {
		sc.IdleTimeout = time.Duration(c.IdleTimeoutSeconds) * time.Second
	}
	if c.MaxWriteBytes > 0 {
		sc.MaxWriteBytes = c.MaxWriteBytes
	}
	if c.DedupWindowSeconds > 0 {
		sc.DedupWindowSec = c.DedupWindowSeconds
	}
	if c.LastPositionStoreTime > 0 {
		sc.HistoryStoreSec = c.LastPositionStoreTime
	}
	if c.HeardListStoreTime > 0 {
		sc.HeardStoreSec = c.HeardListStoreTime
	}
	if c.CourtesyListStoreTime > 0 {
		sc.CourtesyStoreSec = c.CourtesyListStoreTime
	}
	sc.ReadRatePerSec = rate.Limit(50)
	sc.ReadBurst = 100
	return sc
}

// App is the running relay: the server's accept loop, its periodic
// sweep, and (when AdminAddr is set) the admin HTTP surface.
type App struct {
	cfg Config
	Context
	srv *server.Server

	admin *adminServer

	cancel context.CancelFunc
	done   chan struct{}
}

// NewApp validates cfg and builds an App ready to Start.
func NewApp(cfg Config) (*App, error) {
	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("aprsis: listen_addr is required")
	}
	if cfg.ServerCallsign == "" {
		return nil, fmt.Errorf("aprsis: server_callsign is required")
	}

	log, err := buildLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("aprsis: %w", err)
	}
	met := metrics.New()
	alarms := alarm.NewBoard()
	srv := server.New(cfg.serverConfig(), log, met, alarms)

	a := &App{cfg: cfg, Context: newContext(log, met, alarms), srv: srv}
	if cfg.AdminAddr != "" {
		a.admin = newAdminServer(cfg.AdminAddr, a)
	}
	return a, nil
}

// Start begins accepting connections and returns once the listener is
// bound; the accept loop and periodic sweep run in background
// goroutines until Stop is called.
func (a *App) Start() error {
	ln, err := listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("aprsis: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})

	go func() {
		defer close(a.done)
		if err := a.srv.Serve(ctx, ln); err != nil {
			a.Log.Error("accept loop exited", zap.Error(err))
		}
	}()

	go a.sweepLoop(ctx)

	if a.admin != nil {
		if err := a.admin.start(); err != nil {
			a.Log.Error("admin surface failed to start", zap.Error(err))
		}
	}

	a.Log.Info("aprsis started", zap.String("listen_addr", a.cfg.ListenAddr), zap.String("server_callsign", a.cfg.ServerCallsign))
	return nil
}

func (a *App) sweepLoop(ctx context.Context) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.srv.Sweep()
		}
	}
}

// Stop signals the accept loop and sweeper to exit and waits for the
// accept loop to finish.
func (a *App) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.admin != nil {
		_ = a.admin.stop()
	}
	if a.done != nil {
		<-a.done
	}
	_ = closeListener(a.cfg.ListenAddr)
	return nil
}
