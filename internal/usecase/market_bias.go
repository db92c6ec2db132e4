package usecase

import (
	"context"
	"sync"

	"RegimeChain/internal/domain/models"
)

// ManualBias is an operator-set market bias.
type ManualBias struct {
	mu   sync.RWMutex
	bias models.Bias
	set  bool
}

func NewManualBias() *ManualBias { return &ManualBias{} }

func (m *ManualBias) Set(b models.Bias) {
	m.mu.Lock()
	m.bias, m.set = b, true
	m.mu.Unlock()
}

func (m *ManualBias) Clear() {
	m.mu.Lock()
	m.bias, m.set = models.BiasNeutral, false
	m.mu.Unlock()
}

func (m *ManualBias) MarketBias(context.Context) (models.Bias, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bias, m.set
}

// RegimeSource exposes the latest regime of every tracked symbol.
type RegimeSource interface {
	Regimes() map[string]models.Regime
}

// BreadthBias derives the market bias from the share of tracked symbols in
// bullish or bearish regimes.
type BreadthBias struct {
	src       RegimeSource
	threshold float64
}

func NewBreadthBias(src RegimeSource, threshold float64) *BreadthBias {
	if threshold <= 0.5 || threshold > 1 {
		threshold = 0.6
	}
	return &BreadthBias{src: src, threshold: threshold}
}

func (b *BreadthBias) MarketBias(context.Context) (models.Bias, bool) {
	regimes := b.src.Regimes()
	if len(regimes) == 0 {
		return models.BiasNeutral, false
	}
	var bull, bear int
	for _, r := range regimes {
		switch r.Bias() {
		case models.BiasBullish:
			bull++
		case models.BiasBearish:
			bear++
		}
	}
	total := float64(len(regimes))
	switch {
	case float64(bull)/total >= b.threshold:
		return models.BiasBullish, true
	case float64(bear)/total >= b.threshold:
		return models.BiasBearish, true
	default:
		return models.BiasNeutral, false
	}
}

// MarketBias prefers the manual override and falls back to breadth.
type MarketBias struct {
	Manual  *ManualBias
	Breadth *BreadthBias
}

func (m *MarketBias) MarketBias(ctx context.Context) (models.Bias, bool) {
	if m.Manual != nil {
		if b, ok := m.Manual.MarketBias(ctx); ok {
			return b, true
		}
	}
	if m.Breadth != nil {
		return m.Breadth.MarketBias(ctx)
	}
	return models.BiasNeutral, false
}
