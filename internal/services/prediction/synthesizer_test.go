package prediction

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeChain/internal/domain/models"
	"RegimeChain/internal/services/markov"
)

func bullishPeer(w float64) models.CorrelationSnapshot {
	return models.CorrelationSnapshot{
		Symbol: "AAA", Partner: "BBB", Coefficient: w, Influence: math.Abs(w),
		Observations: 50, PartnerRegime: models.StrongUptrendHighVolume, HasRegime: true,
	}
}

func TestAdjustTiltsTowardPeerBias(t *testing.T) {
	s := NewSynthesizer(DefaultConfig())
	base := markov.NewLearner("AAA", markov.DefaultConfig()).Row(models.WeakUptrendLowVolume)

	adj, applied := s.Adjust(base, []models.CorrelationSnapshot{bullishPeer(0.6)})
	require.Equal(t, 1, applied)
	assert.InDelta(t, 1.0, adj.Sum(), 1e-9)
	assert.Greater(t, adj.MassFor(models.BiasBullish), base.MassFor(models.BiasBullish))
	assert.Less(t, adj.MassFor(models.BiasBearish), base.MassFor(models.BiasBearish))
	assert.Greater(t, TotalVariation(base, adj), 0.0)

	// base is untouched
	assert.InDelta(t, 1.0/28, base[0], 1e-12)
}

func TestAdjustNegativeCorrelationFlipsBias(t *testing.T) {
	s := NewSynthesizer(DefaultConfig())
	base := markov.NewLearner("AAA", markov.DefaultConfig()).Row(models.WeakUptrendLowVolume)

	adj, _ := s.Adjust(base, []models.CorrelationSnapshot{bullishPeer(-0.8)})
	assert.Greater(t, adj.MassFor(models.BiasBearish), base.MassFor(models.BiasBearish))
}

func TestAdjustIgnoresWeakAndNeutralPeers(t *testing.T) {
	s := NewSynthesizer(DefaultConfig())
	base := markov.NewLearner("AAA", markov.DefaultConfig()).Row(models.Whipsaw)

	weak := bullishPeer(0.2)
	neutral := bullishPeer(0.9)
	neutral.PartnerRegime = models.TightRangeLowVolume
	unknown := bullishPeer(0.9)
	unknown.HasRegime = false

	adj, applied := s.Adjust(base, []models.CorrelationSnapshot{weak, neutral, unknown})
	assert.Zero(t, applied)
	assert.Equal(t, base, adj)
	assert.Zero(t, TotalVariation(base, adj))
}

func TestAdjustRenormalisesAcrossManyPeers(t *testing.T) {
	s := NewSynthesizer(DefaultConfig())
	l := markov.NewLearner("AAA", markov.DefaultConfig())
	for i := 0; i < 15; i++ {
		l.Record(models.TransitionRecord{From: models.Whipsaw, To: models.Regime(i % models.NumRegimes)})
	}
	base := l.Row(models.Whipsaw)

	peers := make([]models.CorrelationSnapshot, 0, 50)
	for i := 0; i < 50; i++ {
		coef := 0.35 + float64(i%13)*0.05
		if i%3 == 0 {
			coef = -coef
		}
		p := bullishPeer(coef)
		if i%2 == 0 {
			p.PartnerRegime = models.StrongDowntrendHighVolume
		}
		peers = append(peers, p)
	}

	adj, applied := s.Adjust(base, peers)
	assert.Equal(t, 50, applied)
	assert.InDelta(t, 1.0, adj.Sum(), 1e-9)
	for _, p := range adj {
		assert.Greater(t, p, 0.0)
	}
}

func TestZeroImpactWeightDisablesAdjustment(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ImpactWeight = 0
	s := NewSynthesizer(cfg)
	base := markov.NewLearner("AAA", markov.DefaultConfig()).Row(models.WeakUptrendLowVolume)

	adj, _ := s.Adjust(base, []models.CorrelationSnapshot{bullishPeer(0.9)})
	assert.InDeltaSlice(t, []float64(base), []float64(adj), 1e-12)
	assert.InDelta(t, 0.0, TotalVariation(base, adj), 1e-12)
}

func TestSynthesizeFromLearner(t *testing.T) {
	l := markov.NewLearner("AAA", markov.DefaultConfig())
	from, to := models.TightRangeLowVolume, models.WeakBullishBreakout
	for i := 0; i < 20; i++ {
		l.Record(models.TransitionRecord{From: from, To: to, RealizedReturn: 0.01, DurationMinutes: 200})
	}
	bar := models.Bar{Symbol: "AAA", Timestamp: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), Close: 101}
	l.Observe(bar, from, models.MetricsBundle{}, nil)

	p := NewSynthesizer(DefaultConfig()).Synthesize(Input{
		Bar: bar, Regime: from, History: l, MarketBias: models.BiasBullish, HasMarketBias: true,
	})

	assert.Equal(t, "AAA", p.Symbol)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, to, p.MostLikelyNext)
	assert.InDelta(t, 1.0, p.AdjustedDistribution.Sum(), 1e-9)
	assert.Equal(t, p.BaseDistribution, p.AdjustedDistribution)
	assert.Zero(t, p.CorrelationAdjustment)
	assert.InDelta(t, 0.7*0.5+0.3*21.0/48, p.Confidence, 1e-9)
	assert.InDelta(t, 0.1, p.Stability, 1e-12)
	assert.Greater(t, p.TransitionRisk, 0.0)
	assert.LessOrEqual(t, p.TransitionRisk, 0.9)
	assert.Equal(t, 120.0, p.OptimalHoldingMinutes)
	assert.Equal(t, 0.5, p.RegimeConsistency)
	// only the range has realized returns, weighted by the chance of staying in it
	assert.InDelta(t, 0.01/48, p.ExpectedReturn, 1e-12)
}

func TestSynthesizeDefaultsWithoutHistory(t *testing.T) {
	l := markov.NewLearner("AAA", markov.DefaultConfig())
	bar := models.Bar{Symbol: "AAA", Close: 10}
	l.Observe(bar, models.Whipsaw, models.MetricsBundle{}, nil)

	p := NewSynthesizer(Config{}).Synthesize(Input{Bar: bar, Regime: models.Whipsaw, History: l})
	assert.Equal(t, 30.0, p.OptimalHoldingMinutes)
	assert.Zero(t, p.ExpectedReturn)
	assert.InDelta(t, 0.3/28, p.Confidence, 1e-12)
	assert.InDelta(t, 0.9, p.TransitionRisk, 1e-9)
	assert.Equal(t, 0.3, p.RegimeConsistency)
}

func TestConsistency(t *testing.T) {
	assert.Equal(t, 0.9, Consistency(models.StrongUptrendHighVolume, models.BiasBullish, true))
	assert.Equal(t, 0.1, Consistency(models.StrongUptrendHighVolume, models.BiasBearish, true))
	assert.Equal(t, 0.5, Consistency(models.StrongUptrendHighVolume, models.BiasBullish, false))
	assert.Equal(t, 0.5, Consistency(models.TightRangeLowVolume, models.BiasBullish, true))
	assert.Equal(t, 0.3, Consistency(models.VolatilitySqueeze, models.BiasBullish, true))
}

func TestNormalizedEntropy(t *testing.T) {
	uniform := make(models.Distribution, models.NumRegimes)
	for i := range uniform {
		uniform[i] = 1.0 / float64(models.NumRegimes)
	}
	assert.InDelta(t, 1.0, NormalizedEntropy(uniform), 1e-9)

	point := make(models.Distribution, models.NumRegimes)
	point[3] = 1
	assert.Zero(t, NormalizedEntropy(point))
}
