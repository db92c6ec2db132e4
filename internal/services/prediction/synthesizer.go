package prediction

import (
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"RegimeChain/internal/domain/models"
	"RegimeChain/internal/services/markov"
)

// Config weighs the inputs of a prediction.
type Config struct {
	ImpactWeight       float64 // scale of the correlation adjustment
	MinInfluence       float64
	MinSamples         int
	StabilityBars      int
	CountWeight        float64 // share of confidence from sample count, rest from peak probability
	MinHoldMinutes     float64
	MaxHoldMinutes     float64
	DefaultHoldMinutes float64
}

func DefaultConfig() Config {
	return Config{
		ImpactWeight:       0.3,
		MinInfluence:       0.3,
		MinSamples:         20,
		StabilityBars:      10,
		CountWeight:        0.7,
		MinHoldMinutes:     5,
		MaxHoldMinutes:     120,
		DefaultHoldMinutes: 30,
	}
}

// History is the learned state a prediction reads from.
type History interface {
	Row(from models.Regime) models.Distribution
	TransitionCount(from models.Regime) int
	ExpectedReturn(d models.Distribution) float64
	MedianDuration(from models.Regime) (float64, bool)
	BarsInRegime() int
}

// Input is everything known about a symbol after its latest bar.
type Input struct {
	Bar           models.Bar
	Regime        models.Regime
	Metrics       models.MetricsBundle
	History       History
	Peers         []models.CorrelationSnapshot
	MarketBias    models.Bias
	HasMarketBias bool
	Transitioned  bool
}

// Synthesizer turns learned transitions and peer regimes into a Prediction.
type Synthesizer struct {
	cfg Config
}

func NewSynthesizer(cfg Config) *Synthesizer {
	def := DefaultConfig()
	// zero is meaningful for both: no adjustment, every peer influential
	if cfg.ImpactWeight < 0 {
		cfg.ImpactWeight = def.ImpactWeight
	}
	if cfg.MinInfluence < 0 {
		cfg.MinInfluence = def.MinInfluence
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.StabilityBars <= 0 {
		cfg.StabilityBars = def.StabilityBars
	}
	if cfg.CountWeight <= 0 || cfg.CountWeight > 1 {
		cfg.CountWeight = def.CountWeight
	}
	if cfg.MinHoldMinutes <= 0 {
		cfg.MinHoldMinutes = def.MinHoldMinutes
	}
	if cfg.MaxHoldMinutes < cfg.MinHoldMinutes {
		cfg.MaxHoldMinutes = math.Max(def.MaxHoldMinutes, cfg.MinHoldMinutes)
	}
	if cfg.DefaultHoldMinutes <= 0 {
		cfg.DefaultHoldMinutes = def.DefaultHoldMinutes
	}
	return &Synthesizer{cfg: cfg}
}

// Synthesize builds the prediction for in. It does not retain in.
func (s *Synthesizer) Synthesize(in Input) models.Prediction {
	base := in.History.Row(in.Regime)
	adjusted, applied := s.Adjust(base, in.Peers)
	next, peak := adjusted.ArgMax()
	stability := math.Min(1, float64(in.History.BarsInRegime())/float64(s.cfg.StabilityBars))

	return models.Prediction{
		ID:                    uuid.NewString(),
		Symbol:                in.Bar.Symbol,
		Timestamp:             in.Bar.Timestamp,
		Price:                 in.Bar.Close,
		CurrentRegime:         in.Regime,
		BaseDistribution:      base,
		AdjustedDistribution:  adjusted,
		CorrelationAdjustment: TotalVariation(base, adjusted),
		InfluentialPeers:      applied,
		MostLikelyNext:        next,
		ExpectedReturn:        in.History.ExpectedReturn(adjusted),
		Confidence: s.cfg.CountWeight*markov.Confidence(in.History.TransitionCount(in.Regime), s.cfg.MinSamples) +
			(1-s.cfg.CountWeight)*peak,
		Stability:             stability,
		TransitionRisk:        NormalizedEntropy(adjusted) * (1 - stability),
		OptimalHoldingMinutes: s.holding(in.History, in.Regime),
		RegimeConsistency:     Consistency(in.Regime, in.MarketBias, in.HasMarketBias),
		Transitioned:          in.Transitioned,
		Metrics:               in.Metrics,
	}
}

// Adjust tilts base toward the bias of influential peers and renormalises.
// For each peer with weight w a candidate sharing the peer's effective bias is
// scaled by 1+w*impact*w, an opposed candidate by 1-0.5w*impact*w; neutral
// candidates and neutral peers are left alone. Negative correlation flips the
// peer's bias. It returns the adjusted copy and the number of peers applied.
func (s *Synthesizer) Adjust(base models.Distribution, peers []models.CorrelationSnapshot) (models.Distribution, int) {
	adj := make(models.Distribution, len(base))
	copy(adj, base)

	applied := 0
	for _, p := range peers {
		if !p.HasRegime || p.Influence < s.cfg.MinInfluence {
			continue
		}
		bias := p.PartnerRegime.Bias()
		if p.Coefficient < 0 {
			bias = bias.Opposite()
		}
		if bias == models.BiasNeutral {
			continue
		}
		w := math.Min(1, p.Influence)
		for i := range adj {
			var factor float64
			switch models.Regime(i).Bias() {
			case bias:
				factor = w
			case bias.Opposite():
				factor = -0.5 * w
			default:
				continue
			}
			adj[i] *= math.Max(0, 1+factor*s.cfg.ImpactWeight*w)
		}
		applied++
	}

	sum := adj.Sum()
	if applied == 0 || sum <= 0 {
		copy(adj, base)
		return adj, 0
	}
	for i := range adj {
		adj[i] /= sum
	}
	return adj, applied
}

func (s *Synthesizer) holding(h History, from models.Regime) float64 {
	med, ok := h.MedianDuration(from)
	if !ok {
		return s.cfg.DefaultHoldMinutes
	}
	return math.Max(s.cfg.MinHoldMinutes, math.Min(s.cfg.MaxHoldMinutes, med))
}

// TotalVariation is half the L1 distance between two distributions.
func TotalVariation(a, b models.Distribution) float64 {
	d := 0.0
	for i := range a {
		if i < len(b) {
			d += math.Abs(a[i] - b[i])
		}
	}
	return d / 2
}

// NormalizedEntropy is the Shannon entropy of d divided by its maximum, in [0, 1].
func NormalizedEntropy(d models.Distribution) float64 {
	if len(d) < 2 {
		return 0
	}
	return math.Min(1, stat.Entropy(d)/math.Log(float64(len(d))))
}

// Consistency scores how well a regime agrees with the market bias.
func Consistency(r models.Regime, market models.Bias, known bool) float64 {
	switch {
	case r.IsTransitional():
		return 0.3
	case !known || market == models.BiasNeutral || r.Bias() == models.BiasNeutral:
		return 0.5
	case r.Bias() == market:
		return 0.9
	default:
		return 0.1
	}
}
