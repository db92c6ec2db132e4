package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"RegimeChain/internal/domain/models"
	domrepo "RegimeChain/internal/domain/repository"
	domsvc "RegimeChain/internal/domain/service"
	"RegimeChain/internal/services/correlation"
	"RegimeChain/internal/services/features"
	"RegimeChain/internal/services/markov"
	"RegimeChain/internal/services/prediction"
	"RegimeChain/internal/services/regime"
	applogger "RegimeChain/pkg/logger"
	"RegimeChain/pkg/metrics"
	"RegimeChain/pkg/util"
)

// CorrelationTracker is the shared cross-symbol state the engine feeds and reads.
type CorrelationTracker interface {
	domsvc.CorrelationReader
	Update(bar models.Bar)
	SetRegime(symbol string, r models.Regime)
}

// EngineConfig sizes the per-symbol state.
type EngineConfig struct {
	HistoryWindow int
	Learner       markov.Config
}

// TableSnapshot is a copy of a symbol's transition matrix with its row sample counts.
type TableSnapshot struct {
	Symbol string
	Table  models.TransitionTable
	Counts [models.NumRegimes]int
}

type symbolState struct {
	mu      sync.Mutex
	history *util.Ring[models.Bar]
	learner *markov.Learner
	latest  *models.Prediction
	lastTS  time.Time
}

// RegimeEngine runs the per-bar pipeline: extract, classify, learn, predict, emit.
// Bars of one symbol are processed one at a time; different symbols run in parallel.
type RegimeEngine struct {
	cfg        EngineConfig
	extractor  domsvc.MetricsExtractor
	classifier domsvc.RegimeClassifier
	tracker    CorrelationTracker
	synth      *prediction.Synthesizer
	bias       domsvc.MarketBiasProvider
	metrics    domrepo.Metrics
	log        *applogger.Logger
	sinks      []PredictionSink

	mu      sync.RWMutex
	symbols map[string]*symbolState
}

type EngineOption func(*RegimeEngine)

func WithExtractor(x domsvc.MetricsExtractor) EngineOption {
	return func(e *RegimeEngine) { e.extractor = x }
}

func WithClassifier(c domsvc.RegimeClassifier) EngineOption {
	return func(e *RegimeEngine) { e.classifier = c }
}

func WithTracker(t CorrelationTracker) EngineOption {
	return func(e *RegimeEngine) { e.tracker = t }
}

func WithSynthesizer(s *prediction.Synthesizer) EngineOption {
	return func(e *RegimeEngine) { e.synth = s }
}

func WithMarketBias(b domsvc.MarketBiasProvider) EngineOption {
	return func(e *RegimeEngine) { e.bias = b }
}

func WithEngineMetrics(m domrepo.Metrics) EngineOption {
	return func(e *RegimeEngine) { e.metrics = m }
}

func WithEngineLogger(l *applogger.Logger) EngineOption {
	return func(e *RegimeEngine) { e.log = l }
}

// WithSinks appends downstream consumers of predictions and transitions.
func WithSinks(s ...PredictionSink) EngineOption {
	return func(e *RegimeEngine) { e.sinks = append(e.sinks, s...) }
}

func NewRegimeEngine(cfg EngineConfig, opts ...EngineOption) *RegimeEngine {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = features.DefaultConfig().Window
	}
	e := &RegimeEngine{cfg: cfg, symbols: make(map[string]*symbolState)}
	for _, opt := range opts {
		opt(e)
	}
	if e.extractor == nil {
		e.extractor = features.NewExtractor(features.DefaultConfig())
	}
	if e.classifier == nil {
		e.classifier = regime.NewClassifier()
	}
	if e.tracker == nil {
		e.tracker = correlation.NewTracker(correlation.DefaultConfig())
	}
	if e.synth == nil {
		e.synth = prediction.NewSynthesizer(prediction.DefaultConfig())
	}
	if e.metrics == nil {
		e.metrics = metrics.Nop{}
	}
	if e.log == nil {
		e.log = applogger.Nop()
	}
	return e
}

func (e *RegimeEngine) state(symbol string) *symbolState {
	e.mu.RLock()
	st, ok := e.symbols[symbol]
	e.mu.RUnlock()
	if ok {
		return st
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok = e.symbols[symbol]; ok {
		return st
	}
	st = &symbolState{
		history: util.NewRing[models.Bar](e.cfg.HistoryWindow),
		learner: markov.NewLearner(symbol, e.cfg.Learner),
	}
	e.symbols[symbol] = st
	return st
}

func (e *RegimeEngine) lookup(symbol string) (*symbolState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.symbols[symbol]
	return st, ok
}

// Process runs the pipeline for one validated bar and emits the result to the sinks.
func (e *RegimeEngine) Process(ctx context.Context, bar models.Bar) (models.Prediction, error) {
	return e.process(ctx, bar, true)
}

// Warm runs the pipeline without emitting, to rebuild state from stored history.
func (e *RegimeEngine) Warm(ctx context.Context, bar models.Bar) (models.Prediction, error) {
	return e.process(ctx, bar, false)
}

func (e *RegimeEngine) process(ctx context.Context, bar models.Bar, emit bool) (models.Prediction, error) {
	start := time.Now()
	st := e.state(bar.Symbol)

	st.mu.Lock()
	if !st.lastTS.IsZero() && !bar.Timestamp.After(st.lastTS) {
		st.mu.Unlock()
		return models.Prediction{}, fmt.Errorf("%s at %s: %w", bar.Symbol, bar.Timestamp.Format(time.RFC3339), models.ErrOutOfOrder)
	}
	m := e.extractor.Extract(bar, st.history.Values())
	r := e.classifier.Classify(m)

	e.tracker.Update(bar)
	e.tracker.SetRegime(bar.Symbol, r)
	peers := e.tracker.Influential(bar.Symbol)

	rec, transitioned := st.learner.Observe(bar, r, m, correlation.PeerRegimes(peers))
	st.history.Push(bar)
	st.lastTS = bar.Timestamp

	var bias models.Bias
	var hasBias bool
	if e.bias != nil {
		bias, hasBias = e.bias.MarketBias(ctx)
	}
	pred := e.synth.Synthesize(prediction.Input{
		Bar:           bar,
		Regime:        r,
		Metrics:       m,
		History:       st.learner,
		Peers:         peers,
		MarketBias:    bias,
		HasMarketBias: hasBias,
		Transitioned:  transitioned,
	})
	st.latest = &pred
	st.mu.Unlock()

	e.metrics.RecordBar(bar.Symbol)
	e.metrics.RecordPrediction(bar.Symbol, pred.Confidence, time.Since(start).Seconds())
	if transitioned {
		e.metrics.RecordTransition(bar.Symbol, rec.From, rec.To)
		e.log.Debug("regime transition",
			applogger.String("symbol", bar.Symbol),
			applogger.String("from", rec.From.String()),
			applogger.String("to", rec.To.String()),
			applogger.Float64("return", rec.RealizedReturn),
		)
	}
	if emit {
		e.emit(ctx, &pred, rec, transitioned)
	}
	return pred, nil
}

func (e *RegimeEngine) emit(ctx context.Context, p *models.Prediction, rec models.TransitionRecord, transitioned bool) {
	for _, s := range e.sinks {
		if transitioned {
			if err := s.OnTransition(ctx, &rec); err != nil {
				e.sinkFailed(s, "transition", p.Symbol, err)
			}
		}
		if err := s.OnPrediction(ctx, p); err != nil {
			e.sinkFailed(s, "prediction", p.Symbol, err)
		}
	}
}

func (e *RegimeEngine) sinkFailed(s PredictionSink, kind, symbol string, err error) {
	e.metrics.RecordError("sink_" + s.Name())
	e.log.Warn("sink write failed",
		applogger.String("sink", s.Name()),
		applogger.String("kind", kind),
		applogger.String("symbol", symbol),
		applogger.Error(err),
	)
}

// Symbols lists every symbol with state, sorted.
func (e *RegimeEngine) Symbols() []string {
	e.mu.RLock()
	out := make([]string, 0, len(e.symbols))
	for s := range e.symbols {
		out = append(out, s)
	}
	e.mu.RUnlock()
	sort.Strings(out)
	return out
}

// LatestPrediction returns the prediction for the symbol's most recent bar.
func (e *RegimeEngine) LatestPrediction(symbol string) (models.Prediction, bool) {
	st, ok := e.lookup(symbol)
	if !ok {
		return models.Prediction{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.latest == nil {
		return models.Prediction{}, false
	}
	return st.latest.Clone(), true
}

// TransitionTable returns a copy of the symbol's transition matrix.
func (e *RegimeEngine) TransitionTable(symbol string) (TableSnapshot, bool) {
	st, ok := e.lookup(symbol)
	if !ok {
		return TableSnapshot{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return TableSnapshot{Symbol: symbol, Table: st.learner.Table(), Counts: st.learner.Counts()}, true
}

// ReturnDistributions returns the retained realized returns per source regime.
func (e *RegimeEngine) ReturnDistributions(symbol string) (map[models.Regime][]float64, bool) {
	st, ok := e.lookup(symbol)
	if !ok {
		return nil, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.learner.ReturnDistributions(), true
}

// Records returns up to limit of the symbol's most recent transitions.
func (e *RegimeEngine) Records(symbol string, limit int) ([]models.TransitionRecord, bool) {
	st, ok := e.lookup(symbol)
	if !ok {
		return nil, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	recs := st.learner.Records(limit)
	for i := range recs {
		recs[i] = recs[i].Clone()
	}
	return recs, true
}

// Correlations returns every tracked pair.
func (e *RegimeEngine) Correlations() []models.CorrelationSnapshot {
	return e.tracker.Snapshots()
}
