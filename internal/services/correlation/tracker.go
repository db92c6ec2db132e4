package correlation

import (
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"RegimeChain/internal/domain/models"
	"RegimeChain/pkg/util"
)

// Config controls the rolling correlation window.
type Config struct {
	Window          int     // aligned returns per pair
	MinObservations int     // below this a pair has no influence
	MinInfluence    float64 // weight at which a partner becomes influential
}

func DefaultConfig() Config {
	return Config{Window: 100, MinObservations: 20, MinInfluence: 0.3}
}

type observation struct {
	at  int64
	ret float64
}

type series struct {
	lastClose float64
	hasClose  bool
	obs       *util.Ring[observation]
}

type pairKey struct{ a, b string }

// Tracker maintains pairwise return correlations and the latest regime of every
// symbol. Reads take a shared lock; updates are serialised.
type Tracker struct {
	cfg Config

	mu      sync.RWMutex
	series  map[string]*series
	regimes map[string]models.Regime
	pairs   map[pairKey]models.CorrelationSnapshot
}

func NewTracker(cfg Config) *Tracker {
	def := DefaultConfig()
	if cfg.Window < 2 {
		cfg.Window = def.Window
	}
	if cfg.MinObservations < 2 {
		cfg.MinObservations = def.MinObservations
	}
	if cfg.MinInfluence < 0 {
		cfg.MinInfluence = def.MinInfluence
	}
	return &Tracker{
		cfg:     cfg,
		series:  make(map[string]*series),
		regimes: make(map[string]models.Regime),
		pairs:   make(map[pairKey]models.CorrelationSnapshot),
	}
}

// Update appends the bar's return and refreshes every pair involving its symbol.
func (t *Tracker) Update(bar models.Bar) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.series[bar.Symbol]
	if !ok {
		// twice the window leaves room for bars the partner did not print
		s = &series{obs: util.NewRing[observation](t.cfg.Window * 2)}
		t.series[bar.Symbol] = s
	}
	if s.hasClose && s.lastClose > 0 {
		s.obs.Push(observation{at: bar.Timestamp.Unix(), ret: bar.Close/s.lastClose - 1})
	}
	s.lastClose, s.hasClose = bar.Close, true

	for other := range t.series {
		if other != bar.Symbol {
			t.refresh(bar.Symbol, other, bar.Timestamp)
		}
	}
}

func (t *Tracker) refresh(a, b string, at time.Time) {
	x, y := t.aligned(t.series[a], t.series[b])
	var coef, influence float64
	if len(x) >= t.cfg.MinObservations {
		// constant series give NaN
		if c := stat.Correlation(x, y, nil); !math.IsNaN(c) {
			coef = math.Max(-1, math.Min(1, c))
		}
		influence = math.Abs(coef)
	}
	t.pairs[pairKey{a, b}] = models.CorrelationSnapshot{
		Symbol: a, Partner: b, Coefficient: coef, Influence: influence, Observations: len(x), UpdatedAt: at,
	}
	t.pairs[pairKey{b, a}] = models.CorrelationSnapshot{
		Symbol: b, Partner: a, Coefficient: coef, Influence: influence, Observations: len(x), UpdatedAt: at,
	}
}

// aligned pairs returns sharing a bar timestamp, keeping the most recent Window.
func (t *Tracker) aligned(a, b *series) (x, y []float64) {
	byTime := make(map[int64]float64, b.obs.Len())
	for _, o := range b.obs.Values() {
		byTime[o.at] = o.ret
	}
	for _, o := range a.obs.Values() {
		if r, ok := byTime[o.at]; ok {
			x = append(x, o.ret)
			y = append(y, r)
		}
	}
	if len(x) > t.cfg.Window {
		x, y = x[len(x)-t.cfg.Window:], y[len(y)-t.cfg.Window:]
	}
	return x, y
}

// SetRegime publishes a symbol's latest regime to its partners.
func (t *Tracker) SetRegime(symbol string, r models.Regime) {
	t.mu.Lock()
	t.regimes[symbol] = r
	t.mu.Unlock()
}

// Regimes returns the latest regime of every symbol seen.
func (t *Tracker) Regimes() map[string]models.Regime {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]models.Regime, len(t.regimes))
	for k, v := range t.regimes {
		out[k] = v
	}
	return out
}

// Influential lists partners of symbol whose weight reaches the influence
// threshold and whose regime is known, sorted by partner.
func (t *Tracker) Influential(symbol string) []models.CorrelationSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []models.CorrelationSnapshot
	for k, snap := range t.pairs {
		if k.a != symbol || snap.Influence < t.cfg.MinInfluence {
			continue
		}
		r, ok := t.regimes[k.b]
		if !ok {
			continue
		}
		snap.PartnerRegime, snap.HasRegime = r, true
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Partner < out[j].Partner })
	return out
}

// Snapshots returns every tracked pair, sorted by symbol then partner.
func (t *Tracker) Snapshots() []models.CorrelationSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.CorrelationSnapshot, 0, len(t.pairs))
	for k, snap := range t.pairs {
		if r, ok := t.regimes[k.b]; ok {
			snap.PartnerRegime, snap.HasRegime = r, true
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Partner < out[j].Partner
	})
	return out
}

// PeerRegimes flattens influential partners into a symbol→regime map.
func PeerRegimes(peers []models.CorrelationSnapshot) map[string]models.Regime {
	if len(peers) == 0 {
		return nil
	}
	out := make(map[string]models.Regime, len(peers))
	for _, p := range peers {
		if p.HasRegime {
			out[p.Partner] = p.PartnerRegime
		}
	}
	return out
}
