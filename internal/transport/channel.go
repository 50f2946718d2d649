// internal/transport/channel.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hexfellow/liftlink/internal/metrics"
)

// SessionState is the channel's connection lifecycle state.
// Only the channel itself transitions it.
type SessionState int32

const (
	Disconnected SessionState = iota
	Connecting
	Connected
	Closing
)

func (s SessionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// ErrNotConnected is returned by Send/Receive when no session is established.
var ErrNotConnected = errors.New("transport: not connected")

// ErrRetriesExceeded is returned by Reconnect after the attempt budget
// is spent without re-establishing a session.
var ErrRetriesExceeded = errors.New("transport: reconnect retries exceeded")

// Config is the channel's immutable runtime configuration.
type Config struct {
	URL string

	DialTimeout  time.Duration // per connection attempt
	WriteTimeout time.Duration // per outbound frame
	PingInterval time.Duration // keepalive ping cadence
	PongWait     time.Duration // read deadline extension window

	MaxReconnects int           // attempts per Reconnect call
	ReconnectBase time.Duration // backoff base, doubled per attempt
}

// frameBuffer bounds the inbound queue between the read pump and
// Receive. Newer frames evict the oldest; freshness over completeness.
const frameBuffer = 32

// maxBackoffShift caps the exponential backoff doubling so a large
// attempt budget cannot overflow the delay into zero or negative.
const maxBackoffShift = 6

// Channel owns one WebSocket session to the lift endpoint.
// Inbound binary frames are pumped into a bounded queue so Receive
// never blocks the control cycle.
type Channel struct {
	cfg    Config
	dialer *websocket.Dialer
	log    *slog.Logger
	met    *metrics.Set

	state atomic.Int32

	mu      sync.Mutex
	conn    *websocket.Conn
	frames  chan []byte
	readErr chan error
	done    chan struct{}
}

// New validates the endpoint and builds a disconnected channel.
// Zero timeouts take conservative defaults.
func New(cfg Config, log *slog.Logger, met *metrics.Set) (*Channel, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid url %q: %w", cfg.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("transport: url %q: scheme must be ws or wss", cfg.URL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("transport: url %q: host required", cfg.URL)
	}

	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = 5
	}
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = time.Second
	}

	if log == nil {
		log = slog.Default()
	}

	return &Channel{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		log:    log.With("component", "transport"),
		met:    met,
	}, nil
}

// State returns the current session state.
func (c *Channel) State() SessionState {
	return SessionState(c.state.Load())
}

// Connect establishes the WebSocket session.
// Idempotent while a session is up.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}
	return c.dialLocked(ctx)
}

// dialLocked performs one dial attempt and starts the pumps.
// Caller holds c.mu.
func (c *Channel) dialLocked(ctx context.Context) error {
	c.state.Store(int32(Connecting))

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.state.Store(int32(Disconnected))
		return fmt.Errorf("transport: connect %s: %w", c.cfg.URL, err)
	}

	c.conn = conn
	c.frames = make(chan []byte, frameBuffer)
	c.readErr = make(chan error, 1)
	c.done = make(chan struct{})

	go c.readPump(conn, c.frames, c.readErr)
	go c.pingPump(conn, c.done)

	c.state.Store(int32(Connected))
	return nil
}

// readPump owns all reads on conn. Text frames are ignored; binary
// frames go to the queue, evicting the oldest when full. The first
// read error ends the session and is parked for Receive to surface.
func (c *Channel) readPump(conn *websocket.Conn, frames chan []byte, readErr chan error) {
	conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway) {
				c.log.Warn("read failed", "error", err)
			}
			readErr <- fmt.Errorf("transport: receive: %w", err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))

		if typ != websocket.BinaryMessage {
			continue
		}

		select {
		case frames <- msg:
		default:
			// Queue full: evict the oldest frame.
			select {
			case <-frames:
			default:
			}
			frames <- msg
		}
	}
}

// pingPump keeps the session alive until done closes.
func (c *Channel) pingPump(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// Send writes one binary frame.
// A write failure tears the session down; the caller decides whether
// to reconnect.
func (c *Channel) Send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		c.teardownLocked()
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

// Receive returns the next queued inbound frame, or (nil, nil) when
// none has arrived yet. A parked read-pump error tears the session
// down and is returned exactly once.
func (c *Channel) Receive() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}

	select {
	case b := <-c.frames:
		return b, nil
	default:
	}

	select {
	case b := <-c.frames:
		return b, nil
	case err := <-c.readErr:
		c.teardownLocked()
		return nil, err
	default:
		return nil, nil
	}
}

// Reconnect tears down any half-dead session and retries the dial with
// exponential backoff, at most MaxReconnects times. Persistent failure
// is reported as ErrRetriesExceeded; it is never retried forever.
func (c *Channel) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked()

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxReconnects; attempt++ {
		c.met.IncReconnect()

		if err := c.dialLocked(ctx); err == nil {
			if attempt > 0 {
				c.log.Info("reconnected", "attempts", attempt+1)
			}
			return nil
		} else {
			lastErr = err
		}

		if attempt == c.cfg.MaxReconnects-1 {
			break
		}

		delay := c.backoffDelay(attempt)
		c.log.Warn("reconnect failed",
			"attempt", attempt+1,
			"max", c.cfg.MaxReconnects,
			"retry_in", delay,
			"error", lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrRetriesExceeded, ctx.Err())
		case <-timer.C:
		}
	}

	c.state.Store(int32(Disconnected))
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExceeded, c.cfg.MaxReconnects, lastErr)
}

// backoffDelay returns the capped exponential delay for an attempt.
func (c *Channel) backoffDelay(attempt int) time.Duration {
	shift := attempt
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return c.cfg.ReconnectBase << shift
}

// Close releases the session on all paths and leaves the channel
// Disconnected. Safe to call repeatedly.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		c.state.Store(int32(Disconnected))
		return nil
	}

	c.state.Store(int32(Closing))

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	c.teardownLocked()
	return nil
}

// teardownLocked closes the socket and stops the pumps.
// Caller holds c.mu.
func (c *Channel) teardownLocked() {
	if c.conn == nil {
		c.state.Store(int32(Disconnected))
		return
	}
	close(c.done)
	c.conn.Close()
	c.conn = nil
	c.frames = nil
	c.readErr = nil
	c.done = nil
	c.state.Store(int32(Disconnected))
}
