package usecase

import (
	"sort"
	"sync"
	"time"

	"RegimeChain/internal/domain/models"
)

// BarAggregator buckets trades into fixed-interval OHLCV bars per symbol.
type BarAggregator struct {
	interval time.Duration

	mu     sync.Mutex
	open   map[string]*models.Bar
	closed map[string]time.Time
}

func NewBarAggregator(interval time.Duration) *BarAggregator {
	if interval <= 0 {
		interval = time.Minute
	}
	return &BarAggregator{
		interval: interval,
		open:     make(map[string]*models.Bar),
		closed:   make(map[string]time.Time),
	}
}

// Add folds t into its bucket. A trade for a later bucket closes the open bar
// and returns it. Trades older than the open bucket, or for a bucket already
// closed by Flush, are dropped.
func (a *BarAggregator) Add(t models.Trade) (models.Bar, bool) {
	if t.Symbol == "" || t.Price <= 0 {
		return models.Bar{}, false
	}
	bucket := t.Timestamp.UTC().Truncate(a.interval)

	a.mu.Lock()
	defer a.mu.Unlock()
	if last, seen := a.closed[t.Symbol]; seen && !bucket.After(last) {
		return models.Bar{}, false
	}
	cur, ok := a.open[t.Symbol]
	switch {
	case !ok:
		a.open[t.Symbol] = newBar(t, bucket)
		return models.Bar{}, false
	case bucket.Before(cur.Timestamp):
		return models.Bar{}, false
	case bucket.Equal(cur.Timestamp):
		cur.High = max(cur.High, t.Price)
		cur.Low = min(cur.Low, t.Price)
		cur.Close = t.Price
		cur.Volume += t.Volume
		return models.Bar{}, false
	}
	done := *cur
	a.closed[t.Symbol] = done.Timestamp
	a.open[t.Symbol] = newBar(t, bucket)
	return done, true
}

// Flush closes every bucket whose interval ended at or before now, sorted by symbol.
func (a *BarAggregator) Flush(now time.Time) []models.Bar {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.Bar
	for sym, b := range a.open {
		if !now.Before(b.Timestamp.Add(a.interval)) {
			out = append(out, *b)
			a.closed[sym] = b.Timestamp
			delete(a.open, sym)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func newBar(t models.Trade, bucket time.Time) *models.Bar {
	return &models.Bar{
		Symbol:    t.Symbol,
		Timestamp: bucket,
		Open:      t.Price,
		High:      t.Price,
		Low:       t.Price,
		Close:     t.Price,
		Volume:    t.Volume,
	}
}
