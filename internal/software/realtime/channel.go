package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"courier-driver/internal/general/contracts"
	"courier-driver/internal/general/logger"
	"courier-driver/internal/general/websocket"
	"courier-driver/internal/software/session"
)

var (
	ErrNoSession = errors.New("realtime: no session to connect with")
	ErrNotClosed = errors.New("realtime: channel is already connecting or open")
)

// Config is the realtime endpoint.
type Config struct {
	URL          string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// transport is the slice of *websocket.Conn the channel uses.
type transport interface {
	Send(event string, data any) error
	ReadLoop(ctx context.Context, handle func(contracts.Frame)) error
	Close() error
}

type dialFunc func(ctx context.Context, cfg websocket.DialConfig, log *logger.Logger) (transport, error)

func dialWebSocket(ctx context.Context, cfg websocket.DialConfig, log *logger.Logger) (transport, error) {
	conn, err := websocket.Dial(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Channel is the session-driven realtime connection. It never reconnects on
// its own: after a drop it stays Closed until the next session change or an
// explicit Retry.
type Channel struct {
	logger *logger.Logger
	cfg    Config
	dial   dialFunc

	mu         sync.Mutex
	state      State
	gen        uint64 // bumps on every open or close request
	conn       transport
	cancelDial context.CancelFunc
	driverID   string
	token      string

	lmu       sync.RWMutex
	listeners []*Listener
}

func NewChannel(cfg Config, log *logger.Logger) *Channel {
	return &Channel{logger: log, cfg: cfg, dial: dialWebSocket}
}

// Subscribe registers l and returns its cancel func.
func (c *Channel) Subscribe(l Listener) func() {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	p := &l
	c.listeners = append(c.listeners, p)
	return func() {
		c.lmu.Lock()
		defer c.lmu.Unlock()
		for i, x := range c.listeners {
			if x == p {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// State is the current channel state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnSession follows the session: a session opens the channel, nil closes it.
// It matches session.Observer.
func (c *Channel) OnSession(ctx context.Context, s *session.Session) {
	if s == nil {
		c.Close(ctx)
		return
	}

	c.mu.Lock()
	same := c.token == s.Token && c.driverID == s.UserID() && c.state != StateClosed
	c.mu.Unlock()
	if same {
		return
	}

	c.teardown(ctx)
	c.mu.Lock()
	c.token = s.Token
	c.driverID = s.UserID()
	c.mu.Unlock()

	if err := c.open(ctx); err != nil {
		c.logger.Warn(ctx, "realtime_open_skipped", "Realtime channel not opened", map[string]any{"reason": err.Error()})
	}
}

// Retry is the caller-driven reconnect. It only acts on a Closed channel with
// a known session.
func (c *Channel) Retry(ctx context.Context) error {
	return c.open(ctx)
}

// Close forces the channel Closed synchronously and forgets the session, so a
// later Retry has nothing to connect with. In-flight dials are abandoned and
// their connection, if any, is discarded on arrival.
func (c *Channel) Close(ctx context.Context) {
	c.mu.Lock()
	c.token, c.driverID = "", ""
	c.mu.Unlock()
	c.teardown(ctx)
}

func (c *Channel) teardown(ctx context.Context) {
	c.mu.Lock()
	if c.state == StateClosed && c.conn == nil && c.cancelDial == nil {
		c.mu.Unlock()
		return
	}
	c.gen++
	conn := c.conn
	cancel := c.cancelDial
	c.conn, c.cancelDial = nil, nil
	c.state = StateClosed
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	c.logger.Info(ctx, "realtime_closed", "Realtime channel closed", nil)
	c.emitState(ctx, StateClosed)
}

func (c *Channel) open(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateClosed {
		c.mu.Unlock()
		return ErrNotClosed
	}
	if c.token == "" {
		c.mu.Unlock()
		return ErrNoSession
	}
	c.gen++
	gen := c.gen
	base := context.WithoutCancel(ctx)
	var (
		dialCtx context.Context
		cancel  context.CancelFunc
	)
	if c.cfg.DialTimeout > 0 {
		dialCtx, cancel = context.WithTimeout(base, c.cfg.DialTimeout)
	} else {
		dialCtx, cancel = context.WithCancel(base)
	}
	c.cancelDial = cancel
	c.state = StateConnecting
	cfg := websocket.DialConfig{
		URL:          c.cfg.URL,
		Token:        c.token,
		DialTimeout:  c.cfg.DialTimeout,
		WriteTimeout: c.cfg.WriteTimeout,
	}
	c.mu.Unlock()

	c.emitState(ctx, StateConnecting)
	go c.connect(base, dialCtx, cancel, gen, cfg)
	return nil
}

func (c *Channel) connect(ctx, dialCtx context.Context, cancel context.CancelFunc, gen uint64, cfg websocket.DialConfig) {
	conn, err := c.dial(dialCtx, cfg, c.logger)
	cancel()

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	c.cancelDial = nil
	if err != nil {
		c.state = StateClosed
		c.mu.Unlock()
		c.logger.Warn(ctx, "realtime_connect_failed", "Realtime connection failed; not retrying", map[string]any{"error": err.Error()})
		c.emitState(ctx, StateClosed)
		return
	}
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	c.logger.Info(ctx, "realtime_open", "Realtime channel open", map[string]any{"url": cfg.URL})
	c.emitState(ctx, StateOpen)

	err = conn.ReadLoop(ctx, func(f contracts.Frame) { c.dispatch(ctx, f) })

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.conn = nil
	c.state = StateClosed
	c.mu.Unlock()

	details := map[string]any{}
	if err != nil {
		details["error"] = err.Error()
	}
	c.logger.Warn(ctx, "realtime_disconnected", "Realtime channel disconnected; waiting for an explicit retry", details)
	c.emitState(ctx, StateClosed)
}

func (c *Channel) snapshotListeners() []*Listener {
	c.lmu.RLock()
	defer c.lmu.RUnlock()
	out := make([]*Listener, len(c.listeners))
	copy(out, c.listeners)
	return out
}

func (c *Channel) emitState(ctx context.Context, s State) {
	for _, l := range c.snapshotListeners() {
		if l.OnState != nil {
			l.OnState(ctx, s)
		}
	}
}
