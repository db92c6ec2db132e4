package models

import (
	"maps"
	"time"
)

// ContextLevel buckets a ratio against its average.
type ContextLevel string

const (
	ContextLow    ContextLevel = "low"
	ContextNormal ContextLevel = "normal"
	ContextHigh   ContextLevel = "high"
)

// TransitionRecord captures one observed regime change for a symbol.
type TransitionRecord struct {
	ID                string            `json:"id"`
	Symbol            string            `json:"symbol"`
	Timestamp         time.Time         `json:"timestamp"`
	From              Regime            `json:"from"`
	To                Regime            `json:"to"`
	FromPrice         float64           `json:"from_price"`
	ToPrice           float64           `json:"to_price"`
	RealizedReturn    float64           `json:"realized_return"`
	DurationMinutes   float64           `json:"duration_minutes"`
	VolumeContext     ContextLevel      `json:"volume_context"`
	VolatilityContext ContextLevel      `json:"volatility_context"`
	SessionContext    Session           `json:"session_context"`
	CorrelatedRegimes map[string]Regime `json:"correlated_regimes,omitempty"`
}

// Clone returns r with its own copy of CorrelatedRegimes.
func (r TransitionRecord) Clone() TransitionRecord {
	r.CorrelatedRegimes = maps.Clone(r.CorrelatedRegimes)
	return r
}

// TransitionTable is a dense from→to probability matrix.
type TransitionTable [NumRegimes][NumRegimes]float64

// Row returns a copy of the outgoing distribution for from.
func (t *TransitionTable) Row(from Regime) []float64 {
	out := make([]float64, NumRegimes)
	copy(out, t[from][:])
	return out
}

// Map renders the table keyed by regime names, for export.
func (t *TransitionTable) Map() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, NumRegimes)
	for i := 0; i < NumRegimes; i++ {
		row := make(map[string]float64, NumRegimes)
		for j := 0; j < NumRegimes; j++ {
			row[Regime(j).String()] = t[i][j]
		}
		out[Regime(i).String()] = row
	}
	return out
}

// CorrelationSnapshot is the rolling relationship of Symbol to Partner.
type CorrelationSnapshot struct {
	Symbol        string    `json:"symbol"`
	Partner       string    `json:"partner"`
	Coefficient   float64   `json:"coefficient"`
	Influence     float64   `json:"influence"`
	Observations  int       `json:"observations"`
	PartnerRegime Regime    `json:"partner_regime"`
	HasRegime     bool      `json:"has_regime"`
	UpdatedAt     time.Time `json:"updated_at"`
}
