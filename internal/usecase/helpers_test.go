package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"RegimeChain/internal/domain/models"
	"RegimeChain/pkg/metrics"
)

var t0 = time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)

// scriptClassifier returns the scripted regimes in order, repeating the last one.
type scriptClassifier struct {
	mu  sync.Mutex
	seq []models.Regime
	i   int
}

func (s *scriptClassifier) Classify(models.MetricsBundle) models.Regime {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.seq[min(s.i, len(s.seq)-1)]
	s.i++
	return r
}

type recordingSink struct {
	name string
	err  error

	mu    sync.Mutex
	preds []models.Prediction
	trans []models.TransitionRecord
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) OnPrediction(_ context.Context, p *models.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preds = append(s.preds, *p)
	return s.err
}

func (s *recordingSink) OnTransition(_ context.Context, r *models.TransitionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trans = append(s.trans, *r)
	return s.err
}

func (s *recordingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.preds), len(s.trans)
}

type countingMetrics struct {
	metrics.Nop
	mu     sync.Mutex
	errors map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{errors: map[string]int{}}
}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *countingMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

// walk builds n one-minute bars for sym from the given closes, cycling them.
func walk(sym string, n int, closes ...float64) []models.Bar {
	out := make([]models.Bar, n)
	prev := closes[0]
	for i := range out {
		c := closes[i%len(closes)]
		out[i] = models.Bar{
			Symbol:    sym,
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
			Open:      prev,
			High:      max(prev, c) + 0.1,
			Low:       min(prev, c) - 0.1,
			Close:     c,
			Volume:    1000 + float64(i%7)*100,
		}
		prev = c
	}
	return out
}

var errSinkDown = errors.New("sink down")
