package models

import "time"

// Distribution is a probability per regime, indexed by Regime.
type Distribution []float64

// Sum returns the total probability mass.
func (d Distribution) Sum() float64 {
	s := 0.0
	for _, p := range d {
		s += p
	}
	return s
}

// ArgMax returns the most likely regime and its probability.
func (d Distribution) ArgMax() (Regime, float64) {
	best, bestP := Regime(0), -1.0
	for i, p := range d {
		if p > bestP {
			best, bestP = Regime(i), p
		}
	}
	return best, bestP
}

// MassFor sums the probability of regimes within the given bias family.
func (d Distribution) MassFor(b Bias) float64 {
	s := 0.0
	for i, p := range d {
		if Regime(i).Bias() == b {
			s += p
		}
	}
	return s
}

// Named renders the distribution keyed by regime name.
func (d Distribution) Named() map[string]float64 {
	out := make(map[string]float64, len(d))
	for i, p := range d {
		out[Regime(i).String()] = p
	}
	return out
}

// Clone returns an independent copy.
func (d Distribution) Clone() Distribution {
	if d == nil {
		return nil
	}
	return append(Distribution(nil), d...)
}

// Prediction is the per-bar output for one symbol. It is replaced, never mutated.
type Prediction struct {
	ID                    string        `json:"id"`
	Symbol                string        `json:"symbol"`
	Timestamp             time.Time     `json:"timestamp"`
	Price                 float64       `json:"price"`
	CurrentRegime         Regime        `json:"current_regime"`
	BaseDistribution      Distribution  `json:"base_distribution"`
	AdjustedDistribution  Distribution  `json:"adjusted_distribution"`
	CorrelationAdjustment float64       `json:"correlation_adjustment"`
	InfluentialPeers      int           `json:"influential_peers"`
	MostLikelyNext        Regime        `json:"most_likely_next"`
	ExpectedReturn        float64       `json:"expected_return"`
	Confidence            float64       `json:"confidence"`
	Stability             float64       `json:"stability"`
	TransitionRisk        float64       `json:"transition_risk"`
	OptimalHoldingMinutes float64       `json:"optimal_holding_minutes"`
	RegimeConsistency     float64       `json:"regime_consistency"`
	Transitioned          bool          `json:"transitioned"`
	Metrics               MetricsBundle `json:"metrics"`
}

// Clone copies p so callers cannot reach the distributions held by the engine.
func (p Prediction) Clone() Prediction {
	p.BaseDistribution = p.BaseDistribution.Clone()
	p.AdjustedDistribution = p.AdjustedDistribution.Clone()
	return p
}
