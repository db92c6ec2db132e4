package middleware

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeChain/internal/domain/models"
	"RegimeChain/pkg/metrics"
)

type recordingProc struct {
	bars []models.Bar
	err  error
}

func (p *recordingProc) Process(_ context.Context, b models.Bar) (models.Prediction, error) {
	if p.err != nil {
		return models.Prediction{}, p.err
	}
	p.bars = append(p.bars, b)
	return models.Prediction{Symbol: b.Symbol, Timestamp: b.Timestamp}, nil
}

var t0 = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

func goodBar(i int) models.Bar {
	return models.Bar{Symbol: "AAA", Timestamp: t0.Add(time.Duration(i) * time.Minute),
		Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100}
}

func TestValidateBar(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *models.Bar)
	}{
		{"empty symbol", func(b *models.Bar) { b.Symbol = "" }},
		{"zero timestamp", func(b *models.Bar) { b.Timestamp = time.Time{} }},
		{"nan close", func(b *models.Bar) { b.Close = math.NaN() }},
		{"zero open", func(b *models.Bar) { b.Open = 0 }},
		{"negative volume", func(b *models.Bar) { b.Volume = -1 }},
		{"high below close", func(b *models.Bar) { b.High = 10.2 }},
		{"low above open", func(b *models.Bar) { b.Low = 10.1 }},
	}
	require.NoError(t, ValidateBar(goodBar(0)))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := goodBar(0)
			tt.mutate(&b)
			assert.ErrorIs(t, ValidateBar(b), models.ErrInvalidBar)
		})
	}
}

func TestGateEnforcesOrder(t *testing.T) {
	proc := &recordingProc{}
	g := NewBarGate(proc, metrics.Nop{})
	ctx := context.Background()

	_, err := g.Process(ctx, goodBar(1))
	require.NoError(t, err)
	_, err = g.Process(ctx, goodBar(1))
	assert.ErrorIs(t, err, models.ErrOutOfOrder)
	_, err = g.Process(ctx, goodBar(0))
	assert.ErrorIs(t, err, models.ErrOutOfOrder)

	other := goodBar(0)
	other.Symbol = "BBB"
	_, err = g.Process(ctx, other)
	require.NoError(t, err)
	assert.Len(t, proc.bars, 2)
}

func TestGateTransformAndDownstreamError(t *testing.T) {
	proc := &recordingProc{}
	g := NewBarGate(proc, metrics.Nop{}, WithTransform(func(b models.Bar) models.Bar {
		b.Symbol = "X:" + b.Symbol
		return b
	}))
	p, err := g.Process(context.Background(), goodBar(0))
	require.NoError(t, err)
	assert.Equal(t, "X:AAA", p.Symbol)

	proc.err = errors.New("down")
	_, err = g.Process(context.Background(), goodBar(1))
	assert.ErrorContains(t, err, "gate downstream")
}
