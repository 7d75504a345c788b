package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/execlab/tradecost/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// DeltaHandler is called for every depth update decoded from the stream.
type DeltaHandler func(symbol string, delta domain.DepthDelta)

// DepthClient is a websocket client for one symbol's depth stream. It
// manages the connection lifecycle, decodes depth messages, and dispatches
// them to registered handlers, reconnecting with backoff on disconnect.
type DepthClient struct {
	wsURL  string
	symbol string
	logger *slog.Logger

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool

	handlerMu sync.RWMutex
	handlers  []DeltaHandler

	// lastReceive and latency track message arrival spacing for telemetry.
	statMu      sync.Mutex
	lastReceive time.Time
	latency     time.Duration

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewDepthClient creates a client for the given symbol's depth stream URL,
// e.g. "wss://stream.example.com/depth/BTC-USDT".
func NewDepthClient(wsURL, symbol string, logger *slog.Logger) *DepthClient {
	return &DepthClient{
		wsURL:  wsURL,
		symbol: symbol,
		logger: logger.With(
			slog.String("component", "depth_ws"),
			slog.String("symbol", symbol),
		),
		done: make(chan struct{}),
	}
}

// OnDelta registers a handler that is called for every decoded depth update.
func (c *DepthClient) OnDelta(handler DeltaHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handlers = append(c.handlers, handler)
}

// Connect establishes the websocket connection and starts the read and ping
// loops.
func (c *DepthClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("feed: %s: %w", c.symbol, domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: connect %s: %w", c.symbol, err)
	}

	c.conn = conn

	// Set up pong handler for keep-alive.
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readLoop()
	go c.pingLoop()

	c.logger.Info("depth stream connected")
	return nil
}

// Close shuts down the connection and stops the read loop.
func (c *DepthClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)

	if c.conn != nil {
		_ = c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return c.conn.Close()
	}

	return nil
}

// Latency returns the spacing between the two most recent messages.
func (c *DepthClient) Latency() time.Duration {
	c.statMu.Lock()
	defer c.statMu.Unlock()
	return c.latency
}

// readLoop continuously reads messages and dispatches decoded deltas. On
// disconnect it attempts to reconnect with exponential backoff.
func (c *DepthClient) readLoop() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}

			c.logger.Warn("depth stream read failed, reconnecting",
				slog.String("error", err.Error()),
			)
			c.reconnect()
			return // readLoop is restarted by reconnect -> Connect
		}

		c.handleMessage(message)
	}
}

// pingLoop sends periodic ping messages to keep the connection alive.
func (c *DepthClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()

			if conn == nil {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage decodes one raw message and fans it out to the handlers.
func (c *DepthClient) handleMessage(raw []byte) {
	now := time.Now()
	c.statMu.Lock()
	if !c.lastReceive.IsZero() {
		c.latency = now.Sub(c.lastReceive)
	}
	c.lastReceive = now
	c.statMu.Unlock()

	delta, err := ParseDepthMessage(raw)
	if err != nil {
		c.logger.Warn("dropping undecodable depth message",
			slog.Int("payload_len", len(raw)),
		)
		return
	}

	c.handlerMu.RLock()
	handlers := c.handlers
	c.handlerMu.RUnlock()

	for _, h := range handlers {
		h(c.symbol, delta)
	}
}

// reconnect re-establishes the connection with exponential backoff. It
// blocks until successful or the client is closed.
func (c *DepthClient) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-c.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := c.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
