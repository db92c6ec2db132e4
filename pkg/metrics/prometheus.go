package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"RegimeChain/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	bars        *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	confidence  *prometheus.GaugeVec
	predictSecs prometheus.Histogram
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New registers the collectors on reg, or on the default registerer when reg is nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		bars: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimechain_bars_total",
				Help: "Bars accepted by the engine",
			},
			[]string{"symbol"},
		),
		rejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimechain_bars_rejected_total",
				Help: "Bars rejected at ingestion",
			},
			[]string{"reason"},
		),
		transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimechain_transitions_total",
				Help: "Observed regime transitions",
			},
			[]string{"symbol", "from", "to"},
		),
		confidence: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regimechain_prediction_confidence",
				Help: "Confidence of the latest prediction per symbol",
			},
			[]string{"symbol"},
		),
		predictSecs: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "regimechain_bar_processing_seconds",
				Help:    "Time from bar receipt to prediction",
				Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
			},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimechain_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "regimechain_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordBar(symbol string) {
	r.bars.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordRejectedBar(reason string) {
	r.rejected.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordTransition(symbol string, from, to models.Regime) {
	r.transitions.WithLabelValues(symbol, from.String(), to.String()).Inc()
}

func (r *Recorder) RecordPrediction(symbol string, confidence float64, seconds float64) {
	r.confidence.WithLabelValues(symbol).Set(confidence)
	r.predictSecs.Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop satisfies the metrics interface without recording anything.
type Nop struct{}

func (Nop) RecordBar(string)                                      {}
func (Nop) RecordRejectedBar(string)                              {}
func (Nop) RecordTransition(string, models.Regime, models.Regime) {}
func (Nop) RecordPrediction(string, float64, float64)             {}
func (Nop) RecordError(string)                                    {}
func (Nop) RecordLatency(string, float64)                         {}
