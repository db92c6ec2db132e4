package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"RegimeChain/internal/domain/models"
	domrepo "RegimeChain/internal/domain/repository"
)

// BarProcessor is the downstream the gate feeds.
type BarProcessor interface {
	Process(ctx context.Context, bar models.Bar) (models.Prediction, error)
}

// BarGate sits between ingestion and the engine. It validates bars, enforces
// strictly increasing timestamps per symbol and optionally rewrites bars first.
type BarGate struct {
	proc      BarProcessor
	metrics   domrepo.Metrics
	mu        sync.Mutex
	lastSeen  map[string]time.Time
	transform func(models.Bar) models.Bar
}

type GateOption func(*BarGate)

// WithTransform sets a hook applied to every bar before validation.
func WithTransform(fn func(models.Bar) models.Bar) GateOption {
	return func(g *BarGate) { g.transform = fn }
}

func NewBarGate(proc BarProcessor, metrics domrepo.Metrics, opts ...GateOption) *BarGate {
	g := &BarGate{proc: proc, metrics: metrics, lastSeen: make(map[string]time.Time)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Process validates bar and forwards it downstream.
func (g *BarGate) Process(ctx context.Context, bar models.Bar) (models.Prediction, error) {
	start := time.Now()
	if g.transform != nil {
		bar = g.transform(bar)
	}
	if err := ValidateBar(bar); err != nil {
		g.metrics.RecordRejectedBar("invalid")
		return models.Prediction{}, err
	}
	if err := g.advance(bar); err != nil {
		g.metrics.RecordRejectedBar("out_of_order")
		return models.Prediction{}, err
	}
	p, err := g.proc.Process(ctx, bar)
	if err != nil {
		g.metrics.RecordError("gate_downstream")
		return models.Prediction{}, fmt.Errorf("gate downstream: %w", err)
	}
	g.metrics.RecordLatency("gate_process", time.Since(start).Seconds())
	return p, nil
}

func (g *BarGate) advance(bar models.Bar) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.lastSeen[bar.Symbol]
	if ok && !bar.Timestamp.After(last) {
		return fmt.Errorf("%s at %s not after %s: %w", bar.Symbol,
			bar.Timestamp.Format(time.RFC3339), last.Format(time.RFC3339), models.ErrOutOfOrder)
	}
	g.lastSeen[bar.Symbol] = bar.Timestamp
	return nil
}

// ValidateBar rejects bars the engine cannot reason about.
func ValidateBar(b models.Bar) error {
	invalid := func(reason string) error {
		return fmt.Errorf("%s %s: %w", b.Symbol, reason, models.ErrInvalidBar)
	}
	if b.Symbol == "" {
		return invalid("symbol empty")
	}
	if b.Timestamp.IsZero() {
		return invalid("timestamp missing")
	}
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid("non-finite field")
		}
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return invalid("non-positive price")
	}
	if b.Volume < 0 {
		return invalid("negative volume")
	}
	if b.High < math.Max(b.Open, b.Close) || b.Low > math.Min(b.Open, b.Close) {
		return invalid("high/low do not bound open/close")
	}
	return nil
}
