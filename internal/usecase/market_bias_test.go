package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"RegimeChain/internal/domain/models"
)

type staticRegimes map[string]models.Regime

func (s staticRegimes) Regimes() map[string]models.Regime { return s }

func TestBreadthBias(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name    string
		regimes staticRegimes
		want    models.Bias
		known   bool
	}{
		{"empty", staticRegimes{}, models.BiasNeutral, false},
		{"bullish majority", staticRegimes{
			"A": models.StrongUptrendHighVolume, "B": models.BuyingClimax, "C": models.WeakBullishBreakout, "D": models.Whipsaw,
		}, models.BiasBullish, true},
		{"bearish majority", staticRegimes{
			"A": models.SellingClimax, "B": models.StrongDowntrendLowVolume, "C": models.MiddayLull,
		}, models.BiasBearish, true},
		{"split", staticRegimes{
			"A": models.StrongUptrendHighVolume, "B": models.SellingClimax, "C": models.MiddayLull, "D": models.Whipsaw,
		}, models.BiasNeutral, false},
		{"neutral regimes count in the denominator", staticRegimes{
			"A": models.StrongUptrendHighVolume, "B": models.MiddayLull,
		}, models.BiasNeutral, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NewBreadthBias(tc.regimes, 0.6).MarketBias(ctx)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.known, ok)
		})
	}
}

func TestMarketBias_ManualWins(t *testing.T) {
	ctx := context.Background()
	manual := NewManualBias()
	breadth := NewBreadthBias(staticRegimes{"A": models.BuyingClimax}, 0.6)
	mb := &MarketBias{Manual: manual, Breadth: breadth}

	b, ok := mb.MarketBias(ctx)
	assert.True(t, ok)
	assert.Equal(t, models.BiasBullish, b)

	manual.Set(models.BiasBearish)
	b, ok = mb.MarketBias(ctx)
	assert.True(t, ok)
	assert.Equal(t, models.BiasBearish, b)

	manual.Clear()
	b, _ = mb.MarketBias(ctx)
	assert.Equal(t, models.BiasBullish, b)

	_, ok = (&MarketBias{}).MarketBias(ctx)
	assert.False(t, ok)
}
