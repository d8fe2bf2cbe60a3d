package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message. Binance
	// pings every 20s, so this also covers server-initiated pings.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff.
	maxReconnectDelay = 60 * time.Second
)

// BarHandler is called for every kline update received via WebSocket.
// closed is true when the bar's interval has completed.
type BarHandler func(bar domain.Bar, closed bool)

// WSClient is a WebSocket client for real-time Binance kline streams.
type WSClient struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.RWMutex
	closed bool

	// Tracked subscriptions for reconnection.
	streams []string
	cmdID   int64

	barHandlers []BarHandler
	handlerMu   sync.RWMutex

	// done is closed when the client shuts down.
	done chan struct{}
}

// NewWSClient creates a new Binance WebSocket client.
//
// wsURL is the stream endpoint, e.g. "wss://stream.binance.com:9443".
func NewWSClient(wsURL string) *WSClient {
	return &WSClient{
		wsURL: wsURL,
		done:  make(chan struct{}),
	}
}

// Connect establishes a WebSocket connection to the combined stream endpoint.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("binance/ws: client is closed")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL+"/stream", nil)
	if err != nil {
		return fmt.Errorf("binance/ws: connect: %w", err)
	}

	w.conn = conn

	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	// Binance pings the client; answer to keep the connection open.
	w.conn.SetPingHandler(func(appData string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		w.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return w.conn.WriteMessage(websocket.PongMessage, []byte(appData))
	})

	go w.readLoop()
	go w.pingLoop()

	// Re-subscribe to any previously tracked streams.
	if len(w.streams) > 0 {
		if err := w.sendSubscribe(w.streams); err != nil {
			return fmt.Errorf("binance/ws: restore subscriptions: %w", err)
		}
	}

	return nil
}

// SubscribeKlines subscribes to kline updates for the given symbols at the
// given interval.
func (w *WSClient) SubscribeKlines(ctx context.Context, symbols []string, interval domain.Interval) error {
	if !interval.Valid() {
		return domain.ErrInvalidInterval
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("binance/ws: not connected")
	}

	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		streams = append(streams, fmt.Sprintf("%s@kline_%s", strings.ToLower(s), interval))
	}

	if err := w.sendSubscribe(streams); err != nil {
		return fmt.Errorf("binance/ws: subscribe: %w", err)
	}

	existing := make(map[string]struct{}, len(w.streams))
	for _, s := range w.streams {
		existing[s] = struct{}{}
	}
	for _, s := range streams {
		if _, ok := existing[s]; !ok {
			w.streams = append(w.streams, s)
		}
	}

	return nil
}

// OnBar registers a handler that is called for every kline update.
func (w *WSClient) OnBar(handler func(bar domain.Bar, closed bool)) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.barHandlers = append(w.barHandlers, handler)
}

// Close shuts down the WebSocket connection.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}

	return nil
}

// sendSubscribe sends a SUBSCRIBE command. Caller must hold w.mu.
func (w *WSClient) sendSubscribe(streams []string) error {
	w.cmdID++

	cmd := struct {
		Method string   `json:"method"`
		Params []string `json:"params"`
		ID     int64    `json:"id"`
	}{
		Method: "SUBSCRIBE",
		Params: streams,
		ID:     w.cmdID,
	}

	w.conn.SetWriteDeadline(time.Now().Add(writeWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal subscribe: %w", err)
	}

	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop continuously reads messages from the WebSocket and dispatches
// them to handlers. On disconnect it attempts reconnection.
func (w *WSClient) readLoop() {
	defer func() {
		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}

			w.reconnect()
			return
		}

		w.handleMessage(message)
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func (w *WSClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.RLock()
			conn := w.conn
			w.mu.RUnlock()

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

// handleMessage parses a combined-stream envelope and routes kline events.
func (w *WSClient) handleMessage(raw []byte) {
	var envelope struct {
		Stream string          `json:"stream"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return
	}
	if !strings.Contains(envelope.Stream, "@kline_") {
		return
	}

	var event wsKlineEvent
	if err := json.Unmarshal(envelope.Data, &event); err != nil {
		return
	}
	if event.EventType != "kline" {
		return
	}

	bar, err := event.Kline.toBar()
	if err != nil {
		return
	}

	w.handlerMu.RLock()
	handlers := w.barHandlers
	w.handlerMu.RUnlock()

	for _, h := range handlers {
		h(bar, event.Kline.Closed)
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff.
func (w *WSClient) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
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
