package server

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hamrelay/aprsis/internal/filter"
	"github.com/hamrelay/aprsis/internal/heard"
)

// Client is one connected socket and everything only its owning
// worker goroutine may touch: read/write buffers, heard/courtesy
// lists, and the parsed filter. Per §5, nothing outside the owning
// goroutine reaches into a Client directly; cross-client delivery goes
// through inbox, a buffered channel any goroutine may send to.
type Client struct {
	ID         string
	Conn       net.Conn
	RemoteAddr string

	Login      string
	Verified   bool
	Software   string
	SoftwareVs string

	Filter   *filter.Filter
	FilterExpr string

	Heard    *heard.List
	Courtesy *heard.List

	limiter *rate.Limiter

	inbox chan []byte // packets queued for this client by other workers

	lastReadTick int64

	mu         sync.Mutex
	writeBytes int
	closed     bool
}

// newClient wraps an accepted connection. heardStore/courtesyStore are
// the per-client retention windows in seconds (0 selects the package
// defaults).
func newClient(conn net.Conn, heardStore, courtesyStore int64, inboxDepth int, readRatePerSec rate.Limit, readBurst int) *Client {
	return &Client{
		ID:         uuid.NewString(),
		Conn:       conn,
		RemoteAddr: conn.RemoteAddr().String(),
		Heard:      heard.New(heardStore),
		Courtesy:   heard.New(courtesyStore),
		limiter:    rate.NewLimiter(readRatePerSec, readBurst),
		inbox:      make(chan []byte, inboxDepth),
	}
}

// Enqueue offers a server-formatted line (already terminated) to the
// client's inbox for delivery by its owning worker. It never blocks: a
// full inbox or a write-queue over maxWriteBytes closes the client,
// per §5's bounded write-queue backpressure rule. The bool return
// reports whether the client was dropped as a result, so a caller can
// raise an alarm without Client needing to know about the alarm board.
func (c *Client) Enqueue(line []byte, maxWriteBytes int) (dropped bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return true
	}
	if c.writeBytes+len(line) > maxWriteBytes {
		c.mu.Unlock()
		c.closeLocked()
		return true
	}
	c.mu.Unlock()

	select {
	case c.inbox <- line:
		c.mu.Lock()
		c.writeBytes += len(line)
		c.mu.Unlock()
		return false
	default:
		c.closeLocked()
		return true
	}
}

func (c *Client) ackWrite(n int) {
	c.mu.Lock()
	c.writeBytes -= n
	if c.writeBytes < 0 {
		c.writeBytes = 0
	}
	c.mu.Unlock()
}

func (c *Client) closeLocked() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.inbox)
	_ = c.Conn.Close()
}

// Close closes the connection and marks the client done, safe to call
// more than once or concurrently with the owning worker's loop.
func (c *Client) Close() { c.closeLocked() }

// QueueDepth reports how many packets are currently buffered in the
// client's inbox, for the worker_queue_depth gauge.
func (c *Client) QueueDepth() int {
	return len(c.inbox)
}

func (c *Client) idle(tick, idleTimeoutSeconds int64) bool {
	return tick-c.lastReadTick > idleTimeoutSeconds
}

// writeTimeout bounds a single flush to the client socket. Per §5, the
// byte-cap backpressure rule catches a slow reader that's merely
// behind; it does nothing for one that has stopped reading from its
// side of the TCP connection entirely, since the kernel send buffer
// absorbs writes for a long time before Write ever blocks. The
// deadline catches that case instead.
const writeTimeout = 10 * time.Second

// writer drains inbox to the socket until it's closed or write fails.
// Run by the client's owning worker goroutine alongside its read loop.
func (c *Client) writer() {
	w := bufio.NewWriter(c.Conn)
	for line := range c.inbox {
		c.setWriteDeadline(writeTimeout)
		if _, err := w.Write(line); err != nil {
			c.Close()
			return
		}
		if err := w.Flush(); err != nil {
			c.Close()
			return
		}
		c.ackWrite(len(line))
	}
}

func (c *Client) setWriteDeadline(d time.Duration) {
	_ = c.Conn.SetWriteDeadline(time.Now().Add(d))
}
