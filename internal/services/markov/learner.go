package markov

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"RegimeChain/internal/domain/models"
	"RegimeChain/pkg/util"
)

const n = models.NumRegimes

// Config bounds the learner's memory.
type Config struct {
	MaxRecords   int     // transition records kept per symbol
	MaxReturns   int     // realized returns kept per source regime
	MaxDurations int     // holding durations kept per source regime
	MinSamples   int     // samples at which confidence reaches one half
	LowRatio     float64 // relative volume/volatility below this is "low"
	HighRatio    float64 // above this is "high"
}

func DefaultConfig() Config {
	return Config{
		MaxRecords:   5000,
		MaxReturns:   100,
		MaxDurations: 100,
		MinSamples:   20,
		LowRatio:     0.7,
		HighRatio:    1.3,
	}
}

// Confidence maps a sample count to [0, 0.99], reaching 0.5 at minSamples.
func Confidence(samples, minSamples int) float64 {
	if samples <= 0 {
		return 0
	}
	if minSamples <= 0 {
		minSamples = DefaultConfig().MinSamples
	}
	c := 1 - math.Exp(-float64(samples)/float64(minSamples)*math.Ln2)
	return math.Min(0.99, c)
}

// Learner keeps the transition counts and realized outcomes of one symbol.
// It is not safe for concurrent use; callers serialise access per symbol.
type Learner struct {
	symbol string
	cfg    Config

	counts [n][n]int
	totals [n]int
	table  models.TransitionTable

	records   *util.Ring[models.TransitionRecord]
	returns   [n]*util.Ring[float64]
	durations [n]*util.Ring[float64]

	started      bool
	current      models.Regime
	enteredAt    time.Time
	entryPrice   float64
	barsInRegime int
}

func NewLearner(symbol string, cfg Config) *Learner {
	def := DefaultConfig()
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = def.MaxRecords
	}
	if cfg.MaxReturns <= 0 {
		cfg.MaxReturns = def.MaxReturns
	}
	if cfg.MaxDurations <= 0 {
		cfg.MaxDurations = def.MaxDurations
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.LowRatio <= 0 {
		cfg.LowRatio = def.LowRatio
	}
	if cfg.HighRatio <= 0 {
		cfg.HighRatio = def.HighRatio
	}
	l := &Learner{
		symbol:  symbol,
		cfg:     cfg,
		records: util.NewRing[models.TransitionRecord](cfg.MaxRecords),
	}
	for i := 0; i < n; i++ {
		l.returns[i] = util.NewRing[float64](cfg.MaxReturns)
		l.durations[i] = util.NewRing[float64](cfg.MaxDurations)
		l.recompute(models.Regime(i))
	}
	return l
}

func (l *Learner) Symbol() string { return l.symbol }

// Observe feeds the classified regime of a bar. On a regime change it records
// the transition and returns it.
func (l *Learner) Observe(bar models.Bar, regime models.Regime, m models.MetricsBundle, peers map[string]models.Regime) (models.TransitionRecord, bool) {
	if !l.started {
		l.enter(bar, regime)
		return models.TransitionRecord{}, false
	}
	if regime == l.current {
		l.barsInRegime++
		return models.TransitionRecord{}, false
	}

	ret := 0.0
	if l.entryPrice > 0 {
		ret = (bar.Close - l.entryPrice) / l.entryPrice
	}
	var snapshot map[string]models.Regime
	if len(peers) > 0 {
		snapshot = make(map[string]models.Regime, len(peers))
		for k, v := range peers {
			snapshot[k] = v
		}
	}
	rec := models.TransitionRecord{
		ID:                uuid.NewString(),
		Symbol:            l.symbol,
		Timestamp:         bar.Timestamp,
		From:              l.current,
		To:                regime,
		FromPrice:         l.entryPrice,
		ToPrice:           bar.Close,
		RealizedReturn:    ret,
		DurationMinutes:   bar.Timestamp.Sub(l.enteredAt).Minutes(),
		VolumeContext:     l.context(m.Volume.Relative),
		VolatilityContext: l.context(m.Volatility.Relative),
		SessionContext:    m.Session.Session,
		CorrelatedRegimes: snapshot,
	}
	l.Record(rec)
	l.enter(bar, regime)
	return rec, true
}

func (l *Learner) enter(bar models.Bar, regime models.Regime) {
	l.started = true
	l.current = regime
	l.enteredAt = bar.Timestamp
	l.entryPrice = bar.Close
	l.barsInRegime = 1
}

func (l *Learner) context(ratio float64) models.ContextLevel {
	switch {
	case ratio < l.cfg.LowRatio:
		return models.ContextLow
	case ratio > l.cfg.HighRatio:
		return models.ContextHigh
	default:
		return models.ContextNormal
	}
}

// Record stores a transition and updates the affected row. When the record
// buffer is full the oldest record's count is withdrawn first.
func (l *Learner) Record(rec models.TransitionRecord) {
	if !rec.From.Valid() || !rec.To.Valid() {
		return
	}
	if old, evicted := l.records.Push(rec); evicted {
		l.counts[old.From][old.To]--
		l.totals[old.From]--
		if old.From != rec.From {
			l.recompute(old.From)
		}
	}
	l.counts[rec.From][rec.To]++
	l.totals[rec.From]++
	l.returns[rec.From].Push(rec.RealizedReturn)
	l.durations[rec.From].Push(rec.DurationMinutes)
	l.recompute(rec.From)
}

// recompute applies add-one smoothing over the whole state space.
func (l *Learner) recompute(from models.Regime) {
	denom := float64(l.totals[from] + n)
	for to := 0; to < n; to++ {
		l.table[from][to] = float64(l.counts[from][to]+1) / denom
	}
}

// Row is the smoothed outgoing distribution for from.
func (l *Learner) Row(from models.Regime) models.Distribution {
	return models.Distribution(l.table.Row(from))
}

// Table returns a copy of the full matrix.
func (l *Learner) Table() models.TransitionTable { return l.table }

// TransitionCount is the number of retained transitions leaving from.
func (l *Learner) TransitionCount(from models.Regime) int { return l.totals[from] }

// Counts returns the retained transition totals per source regime.
func (l *Learner) Counts() [n]int { return l.totals }

// Current returns the regime the symbol is in.
func (l *Learner) Current() (models.Regime, bool) { return l.current, l.started }

// BarsInRegime counts bars since the last regime change, current bar included.
func (l *Learner) BarsInRegime() int { return l.barsInRegime }

// MeanReturn is the average realized return leaving r, 0 when unseen.
func (l *Learner) MeanReturn(r models.Regime) float64 {
	vals := l.returns[r].Values()
	if len(vals) == 0 {
		return 0
	}
	return stat.Mean(vals, nil)
}

// ExpectedReturn weights each regime's mean realized return by its probability.
func (l *Learner) ExpectedReturn(d models.Distribution) float64 {
	sum := 0.0
	for i, p := range d {
		if i >= n || p == 0 {
			continue
		}
		sum += p * l.MeanReturn(models.Regime(i))
	}
	return sum
}

// MedianDuration is the median holding time in minutes before leaving from.
func (l *Learner) MedianDuration(from models.Regime) (float64, bool) {
	vals := l.durations[from].Values()
	if len(vals) == 0 {
		return 0, false
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid], true
	}
	return (vals[mid-1] + vals[mid]) / 2, true
}

// ReturnDistributions returns the retained realized returns per source regime,
// omitting regimes with no history.
func (l *Learner) ReturnDistributions() map[models.Regime][]float64 {
	out := make(map[models.Regime][]float64)
	for i := 0; i < n; i++ {
		if l.returns[i].Len() > 0 {
			out[models.Regime(i)] = l.returns[i].Values()
		}
	}
	return out
}

// Records returns up to limit of the most recent transitions, oldest first.
func (l *Learner) Records(limit int) []models.TransitionRecord {
	if limit <= 0 {
		return l.records.Values()
	}
	return l.records.Tail(limit)
}
