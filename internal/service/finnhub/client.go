package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"RegimeChain/internal/domain/models"
	drepo "RegimeChain/internal/domain/repository"
	applogger "RegimeChain/pkg/logger"
)

// Config for the Finnhub trade websocket.
type Config struct {
	APIKey       string
	URL          string
	Symbols      []string
	PingInterval time.Duration
	// Reconnect waits ReconnectDelay, doubling per consecutive failure up to MaxReconnectDelay.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	Buffer            int
}

// Client streams trades for a fixed symbol set.
type Client struct {
	cfg Config
	log *applogger.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	failures int
}

func New(cfg Config, log *applogger.Logger) drepo.TradeStream {
	if log == nil {
		log = applogger.Nop()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = 30 * cfg.ReconnectDelay
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}
	return &Client{cfg: cfg, log: log.With(applogger.String("component", "finnhub"))}
}

func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("finnhub url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.cfg.APIKey)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("finnhub dial %s: %w", c.cfg.URL, err)
	}
	// the server answers pings; a silent link fails the next read
	pongWait := 2 * c.cfg.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.log.Info("connected", applogger.Int("symbols", len(c.cfg.Symbols)))
	return nil
}

func (c *Client) Subscribe(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("finnhub: not connected")
	}
	for _, s := range c.cfg.Symbols {
		if err := c.conn.WriteJSON(subscribe{Type: "subscribe", Symbol: s}); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	return nil
}

type subscribe struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

type frame struct {
	Type string `json:"type"`
	Data []struct {
		S string  `json:"s"`
		P float64 `json:"p"`
		V float64 `json:"v"`
		T int64   `json:"t"`
	} `json:"data"`
}

// decodeTrades parses one frame. Non-trade frames and trades without a
// symbol, a positive finite price or a non-negative volume are skipped.
func decodeTrades(b []byte) []*models.Trade {
	var f frame
	if err := json.Unmarshal(b, &f); err != nil || f.Type != "trade" {
		return nil
	}
	out := make([]*models.Trade, 0, len(f.Data))
	for _, d := range f.Data {
		sym := strings.TrimSpace(d.S)
		if sym == "" || !(d.P > 0) || math.IsInf(d.P, 0) || d.V < 0 {
			continue
		}
		out = append(out, &models.Trade{
			Symbol:    sym,
			Timestamp: time.UnixMilli(d.T).UTC(),
			Price:     d.P,
			Volume:    d.V,
		})
	}
	return out
}

// Read pumps trades until the connection fails or ctx ends. The error channel
// carries at most one error and both channels close when reading stops.
func (c *Client) Read(ctx context.Context) (<-chan *models.Trade, <-chan error) {
	trades := make(chan *models.Trade, c.cfg.Buffer)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		errs <- errors.New("finnhub: not connected")
		close(errs)
		close(trades)
		return trades, errs
	}

	done := make(chan struct{})
	go c.keepalive(ctx, conn, done)

	go func() {
		defer close(done)
		defer close(trades)
		defer close(errs)
		for ctx.Err() == nil {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("finnhub read: %w", err)
				}
				return
			}
			c.mu.Lock()
			c.failures = 0
			c.mu.Unlock()
			for _, t := range decodeTrades(b) {
				select {
				case trades <- t:
				default:
					c.log.Warn("trade buffer full, dropping", applogger.String("symbol", t.Symbol))
				}
			}
		}
	}()
	return trades, errs
}

func (c *Client) keepalive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// unblock ReadMessage
			_ = conn.Close()
			return
		case <-done:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.conn == conn {
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
			c.mu.Unlock()
		}
	}
}

// Reconnect drops the current connection, waits out the backoff and dials again.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()

	c.mu.Lock()
	wait := backoff(c.cfg.ReconnectDelay, c.cfg.MaxReconnectDelay, c.failures)
	c.failures++
	c.mu.Unlock()

	c.log.Info("reconnecting", applogger.Duration("wait", wait))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

func backoff(base, max time.Duration, failures int) time.Duration {
	if failures > 16 {
		failures = 16
	}
	d := base << failures
	if d > max || d <= 0 {
		return max
	}
	return d
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}
