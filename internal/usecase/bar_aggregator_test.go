package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeChain/internal/domain/models"
)

func trade(sym string, at time.Duration, price, vol float64) models.Trade {
	return models.Trade{Symbol: sym, Timestamp: t0.Add(at), Price: price, Volume: vol}
}

func TestBarAggregator_BuildsOHLCV(t *testing.T) {
	agg := NewBarAggregator(time.Minute)

	for _, tr := range []models.Trade{
		trade("AAPL", 1*time.Second, 100, 1),
		trade("AAPL", 10*time.Second, 102, 2),
		trade("AAPL", 20*time.Second, 99, 3),
		trade("AAPL", 50*time.Second, 101, 4),
	} {
		_, closed := agg.Add(tr)
		require.False(t, closed)
	}

	bar, closed := agg.Add(trade("AAPL", 61*time.Second, 103, 1))
	require.True(t, closed)
	assert.Equal(t, models.Bar{
		Symbol: "AAPL", Timestamp: t0, Open: 100, High: 102, Low: 99, Close: 101, Volume: 10,
	}, bar)
}

func TestBarAggregator_DropsLateAndInvalidTrades(t *testing.T) {
	agg := NewBarAggregator(time.Minute)

	agg.Add(trade("AAPL", 70*time.Second, 100, 1))
	_, closed := agg.Add(trade("AAPL", 5*time.Second, 90, 1))
	assert.False(t, closed)
	_, closed = agg.Add(models.Trade{Symbol: "AAPL", Timestamp: t0.Add(75 * time.Second), Price: 0})
	assert.False(t, closed)
	_, closed = agg.Add(models.Trade{Timestamp: t0.Add(75 * time.Second), Price: 5})
	assert.False(t, closed)

	bars := agg.Flush(t0.Add(2 * time.Minute))
	require.Len(t, bars, 1)
	assert.Equal(t, 100.0, bars[0].Low)
	assert.Equal(t, 1.0, bars[0].Volume)
}

func TestBarAggregator_FlushClosesStaleBuckets(t *testing.T) {
	agg := NewBarAggregator(time.Minute)
	agg.Add(trade("MSFT", 10*time.Second, 300, 1))
	agg.Add(trade("AAPL", 20*time.Second, 100, 1))
	agg.Add(trade("NVDA", 70*time.Second, 500, 1))

	assert.Empty(t, agg.Flush(t0.Add(59*time.Second)))

	bars := agg.Flush(t0.Add(time.Minute))
	require.Len(t, bars, 2)
	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Equal(t, "MSFT", bars[1].Symbol)

	// a straggler for a flushed bucket must not reopen it
	_, closed := agg.Add(trade("AAPL", 30*time.Second, 101, 1))
	assert.False(t, closed)
	assert.Len(t, agg.Flush(t0.Add(2*time.Minute)), 1)
}
