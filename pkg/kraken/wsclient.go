package kraken

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"papertrader/config"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// ErrConnectionFailed wraps any failure to dial or subscribe.
	ErrConnectionFailed = errors.New("kraken: connection failed")
	// ErrRetriesExhausted is returned by Run once MaxRetries consecutive
	// connection attempts have failed. Prices stop updating from then on.
	ErrRetriesExhausted = errors.New("kraken: reconnect retries exhausted")
)

// stableAfter is how long a connection must stay up before a drop no
// longer counts towards the reconnect backoff.
const stableAfter = 30 * time.Second

// WSClient handles the WebSocket connection to Kraken and message routing.
type WSClient struct {
	cfg     config.WSConfig
	dialer  *websocket.Dialer
	handler func([]byte)
	logger  *zap.Logger

	// owned by the Run/Listen goroutine
	backoff *backoff.ExponentialBackOff

	mu          sync.Mutex
	conn        *websocket.Conn
	connectedAt time.Time
}

// NewWSClient creates a new WebSocket client for the configured endpoint and symbols.
func NewWSClient(cfg config.WSConfig, logger *zap.Logger) *WSClient {
	if cfg.URL == "" {
		cfg.URL = DefaultWSURL
	}
	c := &WSClient{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: logger,
	}
	c.backoff = c.newBackOff()
	return c
}

// SetMessageHandler sets the function to handle incoming messages.
// The handler runs on the read loop and must not block.
func (c *WSClient) SetMessageHandler(h func([]byte)) {
	c.handler = h
}

// Connect establishes the WebSocket connection and sends the ticker
// subscription for the configured symbols. It does not start the listener.
func (c *WSClient) Connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.logger.Error("Failed to connect to WebSocket", zap.String("url", c.cfg.URL), zap.Error(err))
		return fmt.Errorf("%w: dial %s: %v", ErrConnectionFailed, c.cfg.URL, err)
	}

	c.extendDeadline(conn)
	conn.SetPongHandler(func(string) error {
		c.extendDeadline(conn)
		return nil
	})

	// Subscriptions are per connection, so this runs on every reconnect.
	if err := conn.WriteJSON(NewTickerSubscription(c.cfg.Symbols)); err != nil {
		_ = conn.Close()
		c.logger.Error("Failed to send subscription", zap.Error(err))
		return fmt.Errorf("%w: subscribe: %v", ErrConnectionFailed, err)
	}

	c.swapConn(conn)
	c.logger.Info("WebSocket connected",
		zap.String("url", c.cfg.URL),
		zap.Int("symbols", len(c.cfg.Symbols)))

	if c.cfg.PingInterval > 0 {
		go c.pingLoop(ctx, conn)
	}
	return nil
}

// Run connects (with backoff) and then listens until ctx is cancelled or
// reconnect retries are exhausted.
func (c *WSClient) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, c.closeConn)
	defer stop()

	if err := c.connectWithRetry(ctx); err != nil {
		return err
	}
	return c.Listen(ctx)
}

// Listen reads frames from the current connection and hands them to the
// message handler. An unexpected read error triggers a reconnect with
// backoff; a cancelled ctx closes the socket and returns ctx.Err().
func (c *WSClient) Listen(ctx context.Context) error {
	stop := context.AfterFunc(ctx, c.closeConn)
	defer stop()

	for {
		if ctx.Err() != nil {
			c.closeConn()
			return ctx.Err()
		}

		conn := c.currentConn()
		if conn == nil {
			if err := c.connectWithRetry(ctx); err != nil {
				return err
			}
			continue
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			uptime := c.dropConn(conn)
			if uptime >= stableAfter {
				c.backoff.Reset()
			}
			wait := c.backoff.NextBackOff()
			c.logger.Warn("WebSocket read error, reconnecting",
				zap.Duration("uptime", uptime),
				zap.Duration("backoff", wait),
				zap.Error(err))
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
			continue // next iteration reconnects
		}
		c.extendDeadline(conn)

		if c.handler != nil {
			c.handler(msg)
		}
	}
}

// Close closes the active connection, if any.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}

// connectWithRetry dials until it succeeds, ctx is done or MaxRetries
// consecutive attempts fail. The backoff carries over from earlier drops so
// a flapping endpoint is not redialed in a tight loop.
func (c *WSClient) connectWithRetry(ctx context.Context) error {
	maxRetries := c.cfg.Backoff.MaxRetries

	for attempt := 1; ; attempt++ {
		err := c.Connect(ctx)
		if err == nil {
			if ctx.Err() != nil {
				c.closeConn()
				return ctx.Err()
			}
			if attempt > 1 {
				c.logger.Info("Reconnected successfully", zap.Int("attempts", attempt))
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if maxRetries > 0 && attempt >= maxRetries {
			c.logger.Error("Giving up on WebSocket connection", zap.Int("attempts", attempt), zap.Error(err))
			return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, attempt, err)
		}

		wait := c.backoff.NextBackOff()
		c.logger.Warn("Retrying connect...", zap.Int("attempt", attempt), zap.Duration("backoff", wait))

		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *WSClient) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if c.cfg.Backoff.InitialInterval > 0 {
		b.InitialInterval = c.cfg.Backoff.InitialInterval
	}
	if c.cfg.Backoff.MaxInterval > 0 {
		b.MaxInterval = c.cfg.Backoff.MaxInterval
	}
	if c.cfg.Backoff.Multiplier > 1 {
		b.Multiplier = c.cfg.Backoff.Multiplier
	}
	if c.cfg.Backoff.Jitter >= 0 && c.cfg.Backoff.Jitter < 1 {
		b.RandomizationFactor = c.cfg.Backoff.Jitter
	}
	b.Reset()
	return b
}

func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.PingInterval)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				// Closed or replaced connection; the read loop handles recovery.
				return
			}
		}
	}
}

func (c *WSClient) extendDeadline(conn *websocket.Conn) {
	if c.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
}

func (c *WSClient) currentConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *WSClient) swapConn(conn *websocket.Conn) {
	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.connectedAt = time.Now()
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}

// dropConn closes conn and clears it if it is still the active connection.
// It returns how long the connection was up.
func (c *WSClient) dropConn(conn *websocket.Conn) time.Duration {
	c.mu.Lock()
	uptime := time.Since(c.connectedAt)
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
	return uptime
}

func (c *WSClient) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}
