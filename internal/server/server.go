// Package server ties components C2 through C7 together into the
// external-collaborator contract spec.md §5/§6 describes: a fixed
// worker-per-client socket model, the login handshake, Q-construct
// attribution, and the filtered fan-out loop. Nothing here reaches
// into another client's state directly; delivery to a client other
// than the one a worker owns always goes through that client's inbox
// channel (Client.Enqueue), per §5's message-passing rule.
package server

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hamrelay/aprsis/internal/alarm"
	"github.com/hamrelay/aprsis/internal/aprs"
	"github.com/hamrelay/aprsis/internal/cellhash"
	"github.com/hamrelay/aprsis/internal/dedup"
	"github.com/hamrelay/aprsis/internal/filter"
	"github.com/hamrelay/aprsis/internal/history"
	"github.com/hamrelay/aprsis/internal/metrics"
	"github.com/hamrelay/aprsis/internal/qconstruct"
	"github.com/hamrelay/aprsis/internal/upgrade"
)

// Config holds every knob spec.md's Configuration section names for
// the core's external collaborator: listen address, server identity,
// and the retention/backpressure windows C3–C5 and §5 need.
type Config struct {
	ListenAddr      string
	ServerCallsign  string // this server's ID, appended by Q-construct attribution
	IdleTimeout     time.Duration
	MaxWriteBytes   int
	InboxDepth      int
	ReadRatePerSec  rate.Limit
	ReadBurst       int
	DedupWindowSec  int64
	HistoryStoreSec int64
	HeardStoreSec   int64
	CourtesyStoreSec int64
	MaxLineBytes    int
}

// DefaultConfig mirrors the retention defaults internal/history and
// internal/heard already assume on their own (storeTimeSeconds <= 0).
func DefaultConfig(serverCallsign, listenAddr string) Config {
	return Config{
		ListenAddr:      listenAddr,
		ServerCallsign:  serverCallsign,
		IdleTimeout:     48 * time.Second,
		MaxWriteBytes:   256 * 1024,
		InboxDepth:      1024,
		ReadRatePerSec:  rate.Limit(50),
		ReadBurst:       100,
		DedupWindowSec:  30,
		HistoryStoreSec: history.DefaultStoreTime,
		HeardStoreSec:   0,
		CourtesyStoreSec: 0,
		MaxLineBytes:    512,
	}
}

// historyPositions adapts history.Table's Position method to
// filter.PositionLookup's Lookup-shaped interface; the two packages
// deliberately don't share a method name so that filter never needs
// to import history directly (see DESIGN.md).
type historyPositions struct {
	t   *history.Table
	met *metrics.Registry
}

func (h historyPositions) Lookup(key string, tick int64) (lat, lng float64, ok bool) {
	h.met.HistoryLookups.Inc()
	return h.t.Position(key, tick)
}

// Server owns the shared state described in spec.md §5: the history
// database, the dedup engine, and the client registry. Everything else
// (heard/courtesy lists, filters, write buffers) belongs to a single
// Client and is never touched from outside its owning goroutine.
type Server struct {
	cfg Config
	log *zap.Logger
	met *metrics.Registry
	alm *alarm.Board

	dedup   *dedup.Engine
	history *history.Table
	posLookup historyPositions

	start time.Time

	mu      sync.RWMutex
	clients map[string]*Client
}

// New builds a Server. reg and alarms may be nil; a nil Registry is
// replaced by a private metrics.New() registry, a nil Board means
// alarms aren't raised — both are optional collaborators for callers
// (e.g. unit tests) that don't need the full admin surface.
func New(cfg Config, log *zap.Logger, reg *metrics.Registry, alarms *alarm.Board) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if reg == nil {
		reg = metrics.New()
	}
	h := history.New(cfg.HistoryStoreSec)
	s := &Server{
		cfg:     cfg,
		log:     log,
		met:     reg,
		alm:     alarms,
		dedup:   dedup.New(cfg.DedupWindowSec),
		history: h,
		clients: make(map[string]*Client),
		start:   time.Now(),
	}
	s.posLookup = historyPositions{t: h, met: reg}
	return s
}

// tick is the monotonic seconds-since-start counter every expiry
// decision in C3/C4/C5 is driven by, kept separate from wall-clock
// time per §9's tick-vs-wall-time design note.
func (s *Server) tick() int64 { return int64(time.Since(s.start).Seconds()) }

// Serve accepts connections on ln until ctx is cancelled or Accept
// fails. Each connection is handed to its own goroutine, standing in
// for one worker from the fixed pool §5 describes; the Go runtime
// scheduler plays the role of the pool.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}
		go s.handleClient(ctx, conn)
	}
}

func (s *Server) addClient(c *Client) {
	s.mu.Lock()
	s.clients[c.ID] = c
	s.mu.Unlock()
	if s.met != nil {
		s.met.ClientsConnected.Inc()
	}
}

func (s *Server) removeClient(c *Client) {
	s.mu.Lock()
	delete(s.clients, c.ID)
	s.mu.Unlock()
	if s.met != nil {
		s.met.ClientsConnected.Dec()
		s.met.WorkerQueueDepth.DeleteLabelValues(c.ID)
	}
}

func (s *Server) handleClient(ctx context.Context, conn net.Conn) {
	c := newClient(conn, s.cfg.HeardStoreSec, s.cfg.CourtesyStoreSec, s.cfg.InboxDepth, s.cfg.ReadRatePerSec, s.cfg.ReadBurst)
	reader := bufio.NewReaderSize(conn, s.cfg.MaxLineBytes*2)

	firstLine, err := readLine(reader, s.cfg.MaxLineBytes)
	if err != nil {
		_ = conn.Close()
		return
	}
	login, verified := s.handshake(c, firstLine)
	c.Login, c.Verified = login, verified
	c.lastReadTick = s.tick()
	resp := fmt.Sprintf("# logresp %s %s server %s\r\n", login, verifiedWord(verified), s.cfg.ServerCallsign)
	if _, err := conn.Write([]byte(resp)); err != nil {
		_ = conn.Close()
		return
	}

	s.addClient(c)
	defer s.removeClient(c)
	defer c.Close()

	go c.writer()

	for {
		if !c.limiter.Allow() {
			time.Sleep(10 * time.Millisecond)
		}
		line, err := readLine(reader, s.cfg.MaxLineBytes)
		if err != nil {
			return
		}
		if len(line) == 0 {
			continue
		}
		c.lastReadTick = s.tick()
		s.ingest(c, line)
	}
}

func verifiedWord(v bool) string {
	if v {
		return "verified"
	}
	return "unverified"
}

// handshake parses the login line per §6: "user <callsign> pass <code>
// vers <software> <version> [filter <expr>]". Password verification
// itself (passcode math) is an external collaborator's concern; here
// verified simply reflects whether a recognizable "pass" field beyond
// the sentinel "-1" was supplied, which is all the Q-construct rule
// table (qAR vs qAU/qAo) needs to know.
func (s *Server) handshake(c *Client, line []byte) (login string, verified bool) {
	fields := strings.Fields(string(line))
	for i := 0; i < len(fields)-1; i++ {
		switch fields[i] {
		case "user":
			login = strings.ToUpper(fields[i+1])
		case "pass":
			verified = fields[i+1] != "-1" && fields[i+1] != ""
		case "filter":
			expr := strings.Join(fields[i+1:], " ")
			c.FilterExpr = expr
			if f, err := filter.Parse(expr); err == nil {
				c.Filter = f
			}
		}
	}
	return login, verified
}

// ingest runs one client-submitted frame through C2 (parse), C3
// (dedup), Q-construct attribution, C4 (history update) and the C6
// fan-out loop, mirroring spec.md §2's data-flow diagram exactly.
func (s *Server) ingest(c *Client, line []byte) {
	tick := s.tick()
	if s.met != nil {
		s.met.PacketsReceived.WithLabelValues("tcp").Inc()
	}

	p, err := aprs.Parse(line, tick, time.Now().Unix())
	if err != nil {
		if pe, ok := err.(*aprs.ParseError); ok && s.met != nil {
			s.met.RxErrors.WithLabelValues(pe.Code.String()).Inc()
		}
		return
	}

	c.Heard.Update(p.EffectiveSource(), tick)

	if dup, variant := s.dedup.Check(p.EffectiveSource(), p.Info, tick); dup {
		if s.met != nil {
			s.met.DupesDropped.Inc()
			s.met.DedupByVariant.WithLabelValues(variant.String()).Inc()
		}
		return
	}
	if s.met != nil {
		s.met.UniquesOut.Inc()
	}

	construct, serverCall := qconstruct.Attribute(qconstruct.Input{
		ConnType:       qconstruct.Client,
		Verified:       c.Verified,
		SourceCallsign: p.Source,
		LoginCallsign:  c.Login,
		ServerCallsign: s.cfg.ServerCallsign,
	})
	if !qconstruct.HasConstruct(p.Path) {
		p.Path = append(p.Path, construct, serverCall)
	}

	if s.history.Insert(p, tick) != history.Skipped && s.met != nil {
		s.met.HistoryInserts.Inc()
	}

	out := reassemble(p)
	s.fanOut(c, p, out)
}

// fanOut writes out to every other connected client whose filter
// matches p, consuming a courtesy hit on the destination client's
// list when p is a message (per §4.5/§4.6's m/ family).
func (s *Server) fanOut(from *Client, p *aprs.Packet, out []byte) {
	s.mu.RLock()
	targets := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		if c != from {
			targets = append(targets, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range targets {
		ctx := filter.Context{History: s.posLookup, Tick: s.tick(), OwnCallsign: c.Login}
		if c.Filter != nil && !c.Filter.Match(p, ctx) {
			continue
		}
		if p.Flags.Has(aprs.Message) && p.DstName != "" {
			c.Courtesy.TakeIfPresent(p.DstName)
		}
		dropped := c.Enqueue(out, s.cfg.MaxWriteBytes)
		if s.met != nil {
			s.met.WorkerQueueDepth.WithLabelValues(c.ID).Set(float64(c.QueueDepth()))
		}
		if dropped && s.alm != nil {
			s.alm.Raise("client."+c.ID+".backpressure", "write queue exceeded byte cap, client dropped", s.tick(), 300)
		}
	}
}

func reassemble(p *aprs.Packet) []byte {
	var b bytes.Buffer
	b.WriteString(p.Source)
	b.WriteByte('>')
	b.WriteString(p.Destination)
	for _, hop := range p.Path {
		b.WriteByte(',')
		b.WriteString(hop)
	}
	b.WriteByte(':')
	b.Write(p.Info)
	b.WriteString("\r\n")
	return b.Bytes()
}

func readLine(r *bufio.Reader, maxLen int) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	line = bytes.TrimRight(line, "\r\n")
	if len(line) > maxLen {
		line = line[:maxLen]
	}
	return line, nil
}

// Sweep disconnects idle clients and ages out stale heard/courtesy
// entries and expired history rows; every call does all three. The App
// calls it once a second, so history cleanup runs at that cadence too.
func (s *Server) Sweep() {
	tick := s.tick()
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	idleSeconds := int64(s.cfg.IdleTimeout / time.Second)
	for _, c := range clients {
		if c.idle(tick, idleSeconds) {
			c.Close()
			continue
		}
		c.Heard.Expire(tick)
		c.Courtesy.Expire(tick)
	}

	s.history.Cleanup(tick)
	if s.met != nil {
		s.met.HistoryEntries.Set(float64(s.history.EntryCount()))
	}
}

// HistoryEntryCount exposes the history table's live entry count for
// the admin status surface's "historydb" section.
func (s *Server) HistoryEntryCount() int { return s.history.EntryCount() }

// HistoryPoolStats exposes the history table's cell allocator usage,
// for the admin status surface's "memory" section.
func (s *Server) HistoryPoolStats() cellhash.Stats { return s.history.PoolStats() }

// Tick returns the current monotonic tick, for callers outside the
// package (admin.go's status snapshot) that need to report ages.
func (s *Server) Tick() int64 { return s.tick() }

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration { return time.Since(s.start) }

// Clients returns a point-in-time list of connected clients' public
// state, for the admin status surface's "clients" section.
func (s *Server) Clients() []ClientSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ClientSummary, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, ClientSummary{
			ID:         c.ID,
			RemoteAddr: c.RemoteAddr,
			Login:      c.Login,
			Verified:   c.Verified,
			FilterExpr: c.FilterExpr,
			HeardCount: c.Heard.Len(),
		})
	}
	return out
}

// ClientSummary is the admin-facing, read-only view of one connected
// client.
type ClientSummary struct {
	ID         string
	RemoteAddr string
	Login      string
	Verified   bool
	FilterExpr string
	HeardCount int
}

// ClientCount returns the number of currently connected clients, for
// the admin status surface's "totals" section.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// DedupStats exposes the dedup engine's counters for the admin
// surface's "dupecheck" section.
func (s *Server) DedupStats() dedup.Stats { return s.dedup.Snapshot() }

// RxErrorCounts exposes rejected-frame counts by error code for the
// admin surface's "rx_errs" section. Returns nil if metrics aren't
// wired (s.met is never nil in practice, since New defaults it).
func (s *Server) RxErrorCounts() map[string]uint64 {
	if s.met == nil {
		return nil
	}
	return s.met.RxErrorCounts()
}

// Handoff serializes every connected client's state plus the error
// label table to path, for C7's live-upgrade handoff. listenerFD, if
// not -1, is the duplicated descriptor of the relay's listening
// socket, letting the replacement process accept on the same port
// without a rebind gap; the caller obtains it from the listener
// registry, which this package doesn't have access to.
func (s *Server) Handoff(path string, listenerFD int, rxErrLabels []string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := upgrade.Document{ListenerFD: listenerFD, RxErrs: rxErrLabels}
	for _, c := range s.clients {
		doc.Clients = append(doc.Clients, upgrade.ClientState{
			FD:         connFD(c.Conn),
			RemoteAddr: c.RemoteAddr,
			Login:      c.Login,
			Verified:   c.Verified,
			FilterExpr: c.FilterExpr,
			Heard:      c.Heard.Callsigns(),
			Courtesy:   c.Courtesy.Callsigns(),
		})
	}
	return upgrade.Write(path, doc)
}
