package usecase

import (
	"context"
	"errors"
	"time"

	"RegimeChain/internal/domain/models"
	drepo "RegimeChain/internal/domain/repository"
	mid "RegimeChain/internal/middleware"
	applogger "RegimeChain/pkg/logger"
)

// BarWriter persists accepted bars so a restart can warm up from them.
type BarWriter interface {
	SaveBars(ctx context.Context, bars []models.Bar, tf drepo.Timeframe) error
}

// TradeCollector turns a live trade stream into bars and feeds them through the gate.
type TradeCollector struct {
	stream  drepo.TradeStream
	agg     *BarAggregator
	gate    mid.BarProcessor
	metrics drepo.Metrics
	log     *applogger.Logger
	flush   time.Duration
	writer  BarWriter
	tf      drepo.Timeframe
}

type CollectorOption func(*TradeCollector)

// WithFlushInterval sets how often stale buckets are closed.
func WithFlushInterval(d time.Duration) CollectorOption {
	return func(c *TradeCollector) {
		if d > 0 {
			c.flush = d
		}
	}
}

// WithBarWriter persists every bar the gate accepts into the tf table.
func WithBarWriter(w BarWriter, tf drepo.Timeframe) CollectorOption {
	return func(c *TradeCollector) {
		c.writer = w
		c.tf = tf
	}
}

// NewTradeCollector creates a new TradeCollector instance.
func NewTradeCollector(stream drepo.TradeStream, agg *BarAggregator, gate mid.BarProcessor, metrics drepo.Metrics, log *applogger.Logger, opts ...CollectorOption) *TradeCollector {
	c := &TradeCollector{stream: stream, agg: agg, gate: gate, metrics: metrics, log: log, flush: time.Second}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = applogger.Nop()
	}
	return c
}

// IsConnected returns true if the market stream is connected.
func (c *TradeCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *TradeCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	go c.run(ctx)
	return nil
}

// Stop closes the stream; the run loop exits with ctx.
func (c *TradeCollector) Stop() error {
	return c.stream.Close()
}

func (c *TradeCollector) run(ctx context.Context) {
	ticker := time.NewTicker(c.flush)
	defer ticker.Stop()
	trCh, errCh := c.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, b := range c.agg.Flush(now.UTC()) {
				c.forward(ctx, b)
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			c.metrics.RecordError("stream")
			c.log.Warn("trade stream failed, reconnecting", applogger.Error(err))
			if rerr := c.stream.Reconnect(ctx); rerr != nil {
				c.log.Error("reconnect failed", applogger.Error(rerr))
				if ctx.Err() != nil {
					return
				}
			}
			trCh, errCh = c.stream.Read(ctx)
		case t, ok := <-trCh:
			if !ok {
				trCh = nil
				continue
			}
			if t == nil {
				continue
			}
			if bar, closed := c.agg.Add(*t); closed {
				c.forward(ctx, bar)
			}
		}
	}
}

func (c *TradeCollector) forward(ctx context.Context, bar models.Bar) {
	if _, err := c.gate.Process(ctx, bar); err != nil {
		lvl := c.log.Warn
		if errors.Is(err, models.ErrOutOfOrder) {
			lvl = c.log.Debug
		}
		lvl("bar rejected", applogger.String("symbol", bar.Symbol), applogger.Error(err))
		return
	}
	if c.writer != nil {
		if err := c.writer.SaveBars(ctx, []models.Bar{bar}, c.tf); err != nil {
			c.metrics.RecordError("bar_persist")
			c.log.Warn("bar persist failed", applogger.String("symbol", bar.Symbol), applogger.Error(err))
		}
	}
}
