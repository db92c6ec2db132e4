package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeChain/internal/domain/models"
	domrepo "RegimeChain/internal/domain/repository"
)

type memBarStore struct {
	bars map[string][]models.Bar
	fail map[string]error
	asks []int
}

func (m *memBarStore) GetBars(context.Context, string, time.Time, time.Time, domrepo.Timeframe) ([]models.Bar, error) {
	return nil, errors.New("not used")
}

func (m *memBarStore) GetLatestNBars(_ context.Context, symbol string, n int, _ domrepo.Timeframe) ([]models.Bar, error) {
	m.asks = append(m.asks, n)
	if err := m.fail[symbol]; err != nil {
		return nil, err
	}
	bars := m.bars[symbol]
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

func TestWarmup_ReplaysHistoryWithoutEmitting(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	eng := NewRegimeEngine(EngineConfig{}, WithSinks(sink))

	aapl := walk("AAPL", 30, 100, 101, 99, 102)
	bad := aapl[10]
	bad.High = bad.Low - 1
	aapl[10] = bad
	aapl = append(aapl, aapl[5]) // stale duplicate at the tail

	store := &memBarStore{
		bars: map[string][]models.Bar{"AAPL": aapl, "MSFT": walk("MSFT", 10, 300, 301)},
		fail: map[string]error{"TSLA": errors.New("clickhouse down")},
	}

	res, err := NewWarmup(store, eng, domrepo.TF1m, 500, nil).Run(context.Background(), []string{"AAPL", "MSFT", "TSLA"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TSLA")

	assert.Equal(t, 31, res.Loaded["AAPL"])
	assert.Equal(t, 29, res.Replayed["AAPL"])
	assert.Equal(t, 2, res.Skipped["AAPL"])
	assert.Equal(t, 10, res.Replayed["MSFT"])
	assert.Equal(t, []int{500, 500, 500}, store.asks)

	preds, _ := sink.counts()
	assert.Zero(t, preds)

	p, ok := eng.LatestPrediction("AAPL")
	require.True(t, ok)
	assert.Equal(t, aapl[29].Timestamp, p.Timestamp)
}

func TestWarmup_Disabled(t *testing.T) {
	store := &memBarStore{}
	res, err := NewWarmup(store, NewRegimeEngine(EngineConfig{}), domrepo.TF1m, 0, nil).Run(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	assert.Empty(t, res.Loaded)
	assert.Empty(t, store.asks)
}
