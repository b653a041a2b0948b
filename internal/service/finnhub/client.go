package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"MacroChain/internal/domain/models"
	drepo "MacroChain/internal/domain/repository"
	applogger "MacroChain/pkg/logger"

	"github.com/gorilla/websocket"
)

// SourceName tags documents produced by this stream.
const SourceName = "finnhub"

// Client implements a DocumentStream backed by the Finnhub news WebSocket.
type Client struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *applogger.Logger

	mu        sync.Mutex // guards conn and serializes writers
	conn      *websocket.Conn
	connected atomic.Bool
}

// New creates a new Finnhub news DocumentStream.
func New(apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration) *Client {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		l:              applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (c *Client) SetLogger(l *applogger.Logger) { c.l = l }

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := c.websocketURL
	if c.apiKey != "" {
		u = fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("finnhub connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)
	c.l.Info("finnhub: connected")
	return nil
}

// Subscribe subscribes to news for the configured symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected.Load() {
		return fmt.Errorf("finnhub not connected")
	}
	for _, s := range c.symbols {
		msg := map[string]string{"type": "subscribe-news", "symbol": s}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		c.l.Debug("finnhub: subscribed", applogger.String("symbol", s))
	}
	return nil
}

type fhNews struct {
	ID       int64  `json:"id"`
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

type fhMessage struct {
	Type string   `json:"type"`
	Data []fhNews `json:"data"`
}

func (n fhNews) document() *models.Document {
	ts := n.Datetime
	if ts > 1e11 { // ms
		ts /= 1000
	}
	return &models.Document{
		ID:          SourceName + "-" + strconv.FormatInt(n.ID, 10),
		Title:       strings.TrimSpace(n.Headline),
		Body:        strings.TrimSpace(n.Summary),
		Source:      SourceName,
		URL:         n.URL,
		PublishedAt: time.Unix(ts, 0).UTC(),
	}
}

// Read streams news documents and errors. Both channels close when the
// connection fails or ctx ends.
func (c *Client) Read(ctx context.Context) (<-chan *models.Document, <-chan error) {
	docs := make(chan *models.Document, 256)
	errs := make(chan error, 1)
	done := make(chan struct{})

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	// ping loop
	go func() {
		if c.pingInterval <= 0 || conn == nil {
			return
		}
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	// read loop
	go func() {
		defer close(done)
		defer close(docs)
		defer close(errs)
		if conn == nil {
			errs <- fmt.Errorf("finnhub conn nil")
			return
		}
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		defer stop()
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					c.connected.Store(false)
					errs <- fmt.Errorf("finnhub read: %w", err)
				}
				return
			}
			var m fhMessage
			if err := json.Unmarshal(b, &m); err != nil {
				// ignore non-news frames
				continue
			}
			if m.Type != "news" {
				continue
			}
			for _, n := range m.Data {
				d := n.document()
				if d.Body == "" && d.Title == "" {
					continue
				}
				select {
				case docs <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return docs, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-time.After(c.reconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected.Store(false)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected.Load() }

var _ drepo.DocumentStream = (*Client)(nil)
