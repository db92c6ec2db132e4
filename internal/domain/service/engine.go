package service

import (
	"context"

	"RegimeChain/internal/domain/models"
)

// MetricsExtractor reduces a bar and its trailing history to a metrics bundle.
type MetricsExtractor interface {
	Extract(current models.Bar, history []models.Bar) models.MetricsBundle
}

// RegimeClassifier maps a metrics bundle to exactly one regime.
type RegimeClassifier interface {
	Classify(m models.MetricsBundle) models.Regime
}

// CorrelationReader is the read side of the cross-symbol tracker.
type CorrelationReader interface {
	Influential(symbol string) []models.CorrelationSnapshot
	Snapshots() []models.CorrelationSnapshot
}

// MarketBiasProvider supplies the aggregate market bias used for regime consistency.
// ok is false when no bias can be determined.
type MarketBiasProvider interface {
	MarketBias(ctx context.Context) (bias models.Bias, ok bool)
}
