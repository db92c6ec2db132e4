package repository

import (
	"context"

	"RegimeChain/internal/domain/models"
)

// TradeStream is a live venue feed of trades.
type TradeStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Trade, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// PredictionPublisher fans predictions and transitions out to downstream consumers.
type PredictionPublisher interface {
	PublishPrediction(ctx context.Context, p *models.Prediction) error
	PublishTransition(ctx context.Context, r *models.TransitionRecord) error
	Close() error
}

// PredictionCache keeps the latest prediction per symbol for other services.
type PredictionCache interface {
	SetPrediction(ctx context.Context, p *models.Prediction) error
	GetPrediction(ctx context.Context, symbol string) (*models.Prediction, error)
}

// TransitionStore persists transition records and predictions.
type TransitionStore interface {
	StoreTransition(ctx context.Context, r *models.TransitionRecord) error
	StorePrediction(ctx context.Context, p *models.Prediction) error
	Health(ctx context.Context) error
	Close() error
}

// Metrics records engine and ingestion telemetry.
type Metrics interface {
	RecordBar(symbol string)
	RecordRejectedBar(reason string)
	RecordTransition(symbol string, from, to models.Regime)
	RecordPrediction(symbol string, confidence float64, seconds float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
