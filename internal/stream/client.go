// Package stream manages the persistent push channel that delivers
// opportunity snapshots and trade updates. It owns the connection lifecycle
// (connect, authenticate, reconnect with backoff) and remembers subscription
// intent across reconnects, so a transport drop is invisible to callers.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"arbdash/internal/domain"
	"arbdash/internal/session"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// handshakeTimeout bounds the websocket dial.
	handshakeTimeout = 15 * time.Second

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// Status is the transport state of the channel.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// Client is the push channel manager. At most one channel exists per client;
// inbound events are dispatched from a single read loop in arrival order.
type Client struct {
	wsURL  string
	store  *session.Store
	logger *slog.Logger

	mu         sync.RWMutex
	conn       *websocket.Conn
	status     Status
	subscribed bool // transport-level: a subscribe was sent on the current connection
	wantOpps   bool // intent: survives reconnects until explicitly cleared
	closed     bool

	handlerMu      sync.RWMutex
	oppHandlers    []OpportunitiesHandler
	tradeHandlers  []TradeUpdateHandler
	alertHandlers  []AlertHandler
	systemHandlers []SystemMessageHandler

	// Reconnect backoff; tests shrink these.
	baseDelay time.Duration
	maxDelay  time.Duration

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewClient creates a push channel client for the given websocket URL, e.g.
// "ws://localhost:5000/ws". The credential is read from the session store at
// every (re)connect; an absent credential connects anonymously and the
// backend decides what that session may receive.
func NewClient(wsURL string, store *session.Store, logger *slog.Logger) *Client {
	return &Client{
		wsURL:     wsURL,
		store:     store,
		logger:    logger.With(slog.String("component", "stream")),
		status:    StatusDisconnected,
		baseDelay: reconnectDelay,
		maxDelay:  maxReconnectDelay,
		done:      make(chan struct{}),
	}
}

// Status returns the current transport state.
func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Subscribed reports whether a subscribe has been sent on the current
// connection.
func (c *Client) Subscribed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscribed
}

// Connect dials the push channel. On success the read and ping loops are
// started and, if subscription intent is set, the subscribe request is
// re-issued automatically. Transport drops after a successful Connect are
// handled internally with backoff; Connect does not need to be called again.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("stream: connect: %w", domain.ErrChannelClosed)
	}
	if c.status == StatusConnected {
		return nil
	}

	c.status = StatusConnecting

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	header := http.Header{}
	if cred, ok := c.store.Get(); ok && cred.AccessToken != "" {
		header.Set("Authorization", "Bearer "+cred.AccessToken)
	}

	conn, _, err := dialer.DialContext(ctx, c.wsURL, header)
	if err != nil {
		c.status = StatusDisconnected
		return fmt.Errorf("stream: connect: %w", err)
	}

	c.conn = conn
	c.status = StatusConnected
	c.subscribed = false

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readLoop(conn)
	go c.pingLoop(conn)

	c.logger.Info("channel connected", slog.String("url", c.wsURL))

	// Restore subscription intent after (re)connect.
	if c.wantOpps {
		c.sendSubscribeLocked()
	}

	return nil
}

// SubscribeOpportunities records the intent to receive opportunity snapshots
// and, when connected, emits the subscribe request. Fire-and-forget: send
// failures are logged, never returned, and the intent is replayed on the
// next reconnect. Calling it while already subscribed is a no-op.
func (c *Client) SubscribeOpportunities() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.wantOpps = true
	if c.status != StatusConnected || c.subscribed {
		return
	}
	c.sendSubscribeLocked()
}

// UnsubscribeOpportunities clears the subscription intent and, when
// connected and subscribed, emits the unsubscribe request. A later reconnect
// will not re-subscribe.
func (c *Client) UnsubscribeOpportunities() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.wantOpps = false
	if c.status != StatusConnected || !c.subscribed {
		return
	}

	c.subscribed = false
	if err := c.sendEnvelope(envelope{Event: eventUnsubscribeOpportunities}); err != nil {
		c.logger.Warn("unsubscribe send failed", slog.String("error", err.Error()))
	}
}

// Close shuts the channel down permanently.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.status = StatusDisconnected
	c.subscribed = false
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

// OnOpportunities registers a handler for full snapshot updates.
func (c *Client) OnOpportunities(h OpportunitiesHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.oppHandlers = append(c.oppHandlers, h)
}

// OnTradeUpdate registers a handler for asynchronous trade status updates.
func (c *Client) OnTradeUpdate(h TradeUpdateHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.tradeHandlers = append(c.tradeHandlers, h)
}

// OnAlert registers a handler for alert notifications.
func (c *Client) OnAlert(h AlertHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.alertHandlers = append(c.alertHandlers, h)
}

// OnSystemMessage registers a handler for system broadcasts.
func (c *Client) OnSystemMessage(h SystemMessageHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.systemHandlers = append(c.systemHandlers, h)
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// sendSubscribeLocked emits the subscribe request. Caller must hold c.mu.
func (c *Client) sendSubscribeLocked() {
	if err := c.sendEnvelope(envelope{Event: eventSubscribeOpportunities, Data: json.RawMessage(`{}`)}); err != nil {
		c.logger.Warn("subscribe send failed", slog.String("error", err.Error()))
		return
	}
	c.subscribed = true
	c.logger.Info("subscribed to opportunity stream")
}

// sendEnvelope writes a JSON frame to the connection. Caller must hold c.mu.
func (c *Client) sendEnvelope(env envelope) error {
	if c.conn == nil {
		return fmt.Errorf("stream: not connected")
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("stream: marshal envelope: %w", err)
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads frames from conn and dispatches them in arrival order. On
// a read error it marks the channel disconnected and hands off to the
// reconnect loop.
func (c *Client) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}

			c.logger.Warn("channel read failed, reconnecting", slog.String("error", err.Error()))
			c.markDisconnected(conn)
			go c.reconnect()
			return
		}

		c.handleMessage(message)
	}
}

// pingLoop keeps the connection alive. It stops when the connection it was
// started for goes away.
func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// markDisconnected resets transport state after a drop. Subscription intent
// is preserved; only the per-connection subscribed flag resets.
func (c *Client) markDisconnected(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.conn = nil
		c.status = StatusDisconnected
		c.subscribed = false
	}
}

// reconnect re-establishes the channel with exponential backoff. It blocks
// until successful or the client is closed.
func (c *Client) reconnect() {
	delay := c.baseDelay

	for {
		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		err := c.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		c.logger.Warn("reconnect attempt failed",
			slog.String("error", err.Error()),
			slog.Duration("next_delay", delay),
		)

		delay *= 2
		if delay > c.maxDelay {
			delay = c.maxDelay
		}
	}
}

// handleMessage parses one inbound frame and routes it to the registered
// handlers. Malformed frames are logged and dropped; they never take the
// channel down.
func (c *Client) handleMessage(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Warn("dropping unparseable frame", slog.String("error", err.Error()))
		return
	}

	switch env.Event {
	case eventOpportunitiesUpdate:
		var payload opportunitiesPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			c.logger.Warn("dropping malformed opportunities update", slog.String("error", err.Error()))
			return
		}

		c.handlerMu.RLock()
		handlers := c.oppHandlers
		c.handlerMu.RUnlock()

		for _, h := range handlers {
			h(payload.Data)
		}

	case eventTradeUpdate:
		var trade domain.Trade
		if err := json.Unmarshal(env.Data, &trade); err != nil {
			c.logger.Warn("dropping malformed trade update", slog.String("error", err.Error()))
			return
		}

		c.handlerMu.RLock()
		handlers := c.tradeHandlers
		c.handlerMu.RUnlock()

		for _, h := range handlers {
			h(trade)
		}

	case eventAlertNotification:
		var alert Notification
		if err := json.Unmarshal(env.Data, &alert); err != nil {
			c.logger.Warn("dropping malformed alert", slog.String("error", err.Error()))
			return
		}

		c.handlerMu.RLock()
		handlers := c.alertHandlers
		c.handlerMu.RUnlock()

		for _, h := range handlers {
			h(alert)
		}

	case eventSystemMessage:
		var msg SystemMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			c.logger.Warn("dropping malformed system message", slog.String("error", err.Error()))
			return
		}

		c.handlerMu.RLock()
		handlers := c.systemHandlers
		c.handlerMu.RUnlock()

		for _, h := range handlers {
			h(msg)
		}

	default:
		c.logger.Debug("ignoring unknown event", slog.String("event", env.Event))
	}
}
