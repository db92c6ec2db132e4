package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RegimeChain/internal/domain/models"
	"RegimeChain/internal/domain/repository"
	"RegimeChain/pkg/cache"
)

// ErrPredictionNotCached is returned when no prediction exists for a symbol.
var ErrPredictionNotCached = errors.New("prediction not cached")

// CachedPredictions keeps the latest prediction per symbol in a cache.Service.
type CachedPredictions struct {
	svc cache.Service
	ttl time.Duration
}

func NewCachedPredictions(svc cache.Service, ttl time.Duration) repository.PredictionCache {
	return &CachedPredictions{svc: svc, ttl: ttl}
}

func (c *CachedPredictions) SetPrediction(ctx context.Context, p *models.Prediction) error {
	if err := c.svc.Set(ctx, predictionKey(p.Symbol), p, c.ttl); err != nil {
		return fmt.Errorf("cache prediction %s: %w", p.Symbol, err)
	}
	return nil
}

func (c *CachedPredictions) GetPrediction(ctx context.Context, symbol string) (*models.Prediction, error) {
	var p models.Prediction
	if err := c.svc.Get(ctx, predictionKey(symbol), &p); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrPredictionNotCached
		}
		return nil, fmt.Errorf("get cached prediction %s: %w", symbol, err)
	}
	return &p, nil
}

func predictionKey(symbol string) string {
	return cache.Key("prediction", symbol)
}
