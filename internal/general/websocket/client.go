package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"courier-driver/internal/general/contracts"
	"courier-driver/internal/general/jwt"
	"courier-driver/internal/general/logger"

	"github.com/gorilla/websocket"
)

const (
	wsCloseAckWindow = 2 * time.Second
	ctrlTimeout      = 5 * time.Second
	readIdleTimeout  = 60 * time.Second
	pingInterval     = 30 * time.Second
	maxFrameBytes    = 1 << 20 // 1 MiB
)

var (
	ErrEmptyToken = errors.New("realtime: refusing to dial without a token")
	ErrClosed     = errors.New("realtime: connection closed")
)

// DialConfig describes one authenticated realtime connection.
type DialConfig struct {
	URL          string
	Token        string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// Conn is a client-side realtime connection. Writes are serialized by a
// per-connection mutex; reads happen only inside ReadLoop.
type Conn struct {
	logger       *logger.Logger
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to cfg.URL and sends the auth frame as the first message.
// An empty token is rejected before any network activity.
func Dial(ctx context.Context, cfg DialConfig, log *logger.Logger) (*Conn, error) {
	if cfg.Token == "" {
		return nil, ErrEmptyToken
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.DialTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}

	ws, resp, err := dialer.DialContext(ctx, cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	c := &Conn{
		logger:       log,
		conn:         ws,
		writeTimeout: cfg.WriteTimeout,
		done:         make(chan struct{}),
	}
	ws.SetReadLimit(maxFrameBytes)

	if err := c.writeJSON(jwt.NewAuthMessage(cfg.Token)); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("send auth frame: %w", err)
	}

	return c, nil
}

// Send writes one {"event","data"} frame.
func (c *Conn) Send(event string, data any) error {
	frame, err := contracts.NewFrame(event, data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	return c.writeJSON(frame)
}

// ReadLoop reads frames until the connection ends and hands each decoded frame
// to handle. It returns nil on a normal close and the read error otherwise.
// A ping loop runs for the lifetime of the read loop.
func (c *Conn) ReadLoop(ctx context.Context, handle func(contracts.Frame)) error {
	defer c.shutdown()

	_ = c.conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
	})

	go c.pingLoop(ctx)

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || c.isClosed() {
				c.logger.Info(ctx, "ws_connection_closed", "Realtime connection closed", nil)
				return nil
			}
			c.logger.Warn(ctx, "ws_unexpected_close", "Realtime connection dropped", map[string]any{"error": err.Error()})
			return err
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(readIdleTimeout))

		var frame contracts.Frame
		if err := json.Unmarshal(payload, &frame); err != nil || frame.Event == "" {
			c.logger.Warn(ctx, "ws_bad_frame", "Dropping undecodable realtime frame", map[string]any{"bytes": len(payload)})
			continue
		}
		handle(frame)
	}
}

// Close sends a normal close frame and tears the socket down. Safe to call twice.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(wsCloseAckWindow),
		)
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// Done is closed once the connection is shut down from either side.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Conn) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout))
			c.writeMu.Unlock()
			if err != nil {
				// Close socket to unblock reader.
				c.logger.Warn(ctx, "ws_ping_failed", "Failed to send ping", map[string]any{"error": err.Error()})
				_ = c.conn.Close()
				return
			}
		}
	}
}

// writeJSON marshals v and writes a single TextMessage under the write lock.
func (c *Conn) writeJSON(v any) error {
	if c.isClosed() {
		return ErrClosed
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}
