package repository

import (
	"context"
	"time"

	"RegimeChain/internal/domain/models"
)

// BarStore provides read-only access to historical bars for warm-up and replay.
type BarStore interface {
	GetBars(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Bar, error)
	GetLatestNBars(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Bar, error)
}
