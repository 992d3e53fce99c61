package live

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"vatop/stats"
)

// maxFrameBytes bounds a single websocket message.
const maxFrameBytes = 1 << 20

// Sink receives decoded events and connection transitions.
type Sink interface {
	ApplyLive(Event)
	SetConnection(State)
}

// Config holds the dial target and reconnect tunables.
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	MinReconnect     time.Duration
	MaxReconnect     time.Duration
}

// Channel owns the websocket link. It dials, reads push frames, decodes
// them, and hands exactly one event per decoded frame to the sink. Lost
// connections reconnect forever with doubling backoff until Stop. The
// channel never writes to the socket.
type Channel struct {
	cfg     Config
	sink    Sink
	tracker *stats.Tracker
	logger  *log.Logger

	onDetection func(Detection)

	state atomic.Int32

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewChannel creates a channel for the given push origin. Events and
// state transitions go to sink; tracker and logger may be nil.
func NewChannel(cfg Config, sink Sink, tracker *stats.Tracker, logger *log.Logger) *Channel {
	if cfg.MinReconnect <= 0 {
		cfg.MinReconnect = time.Second
	}
	if cfg.MaxReconnect < cfg.MinReconnect {
		cfg.MaxReconnect = cfg.MinReconnect
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &Channel{cfg: cfg, sink: sink, tracker: tracker, logger: logger}
}

// OnDetection registers a hook invoked for every detection event, after
// the sink has seen it. Must be set before Start.
func (c *Channel) OnDetection(fn func(Detection)) {
	c.onDetection = fn
}

// State returns the current link state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Start begins dialing in the background. A second Start is a no-op.
func (c *Channel) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx, c.done)
}

// Stop tears the link down and waits for the background goroutine to
// exit. Safe to call more than once.
func (c *Channel) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	// Closing the conn unblocks a reader stuck in ReadMessage. The conn
	// capture must come after cancel so storeConn can't race a fresh
	// connection past us.
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}

	if done != nil {
		<-done
	}
}

func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	delay := c.cfg.MinReconnect
	for {
		if ctx.Err() != nil {
			return
		}
		c.setState(Connecting)
		dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
		conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			c.setState(Disconnected)
			if ctx.Err() != nil {
				return
			}
			c.logf("live: connect %s failed: %v (retry in %s)", c.cfg.URL, err, delay)
			if !c.sleep(ctx, delay) {
				return
			}
			delay = nextBackoff(delay, c.cfg.MaxReconnect)
			continue
		}

		delay = c.cfg.MinReconnect
		if !c.storeConn(ctx, conn) {
			conn.Close()
			c.setState(Disconnected)
			return
		}
		c.setState(Connected)
		readErr := c.readLoop(conn)
		c.clearConn()
		conn.Close()
		c.setState(Disconnected)
		if ctx.Err() != nil {
			return
		}
		c.logf("live: connection lost: %v", readErr)
		if !c.sleep(ctx, c.cfg.MinReconnect) {
			return
		}
	}
}

// readLoop consumes frames until the connection dies. Decode problems
// never tear the link down.
func (c *Channel) readLoop(conn *websocket.Conn) error {
	conn.SetReadLimit(maxFrameBytes)
	loggedUnrecognized := false
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		ev, err := decodeFrame(data, time.Now())
		if err != nil {
			if errors.Is(err, errUnrecognized) {
				if c.tracker != nil {
					c.tracker.IncrementLiveDropped()
				}
				if !loggedUnrecognized {
					loggedUnrecognized = true
					c.logf("live: ignoring unrecognized frame shape")
				}
				continue
			}
			if c.tracker != nil {
				c.tracker.IncrementLiveDecodeError()
			}
			c.logf("live: frame decode failed: %v", err)
			continue
		}
		if c.tracker != nil {
			c.tracker.IncrementLiveFrame()
		}
		if c.sink != nil {
			c.sink.ApplyLive(ev)
		}
		if ev.Kind == KindDetection && ev.Detection != nil && c.onDetection != nil {
			c.onDetection(*ev.Detection)
		}
	}
}

// storeConn publishes the connection for Stop to close. Returns false
// when the channel was stopped while the dial was in flight.
func (c *Channel) storeConn(ctx context.Context, conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	c.conn = conn
	return true
}

func (c *Channel) clearConn() {
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
}

// setState records a transition and publishes it to the sink exactly
// once per change.
func (c *Channel) setState(next State) {
	prev := State(c.state.Swap(int32(next)))
	if prev == next {
		return
	}
	if c.tracker != nil {
		if next == Connected {
			c.tracker.IncrementLiveConnect()
		} else if prev == Connected {
			c.tracker.IncrementLiveDisconnect()
		}
	}
	if c.sink != nil {
		c.sink.SetConnection(next)
	}
}

func (c *Channel) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return false
	case <-timer.C:
		return true
	}
}

// nextBackoff doubles the delay up to ceiling.
func nextBackoff(current, ceiling time.Duration) time.Duration {
	next := current * 2
	if next > ceiling {
		return ceiling
	}
	return next
}

func (c *Channel) logf(format string, args ...any) {
	if c == nil || c.logger == nil {
		return
	}
	c.logger.Printf(format, args...)
}
