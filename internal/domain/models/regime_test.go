package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegime_TextRoundTrip(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range AllRegimes() {
		name := r.String()
		assert.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true

		back, err := ParseRegime(name)
		require.NoError(t, err)
		assert.Equal(t, r, back)
	}
	assert.Len(t, seen, NumRegimes)

	_, err := ParseRegime("sideways")
	assert.Error(t, err)
	assert.Equal(t, "unknown", Regime(200).String())
	_, err = Regime(200).MarshalText()
	assert.Error(t, err)
}

func TestRegime_BiasFamilies(t *testing.T) {
	bull, bear := 0, 0
	for _, r := range AllRegimes() {
		switch r.Bias() {
		case BiasBullish:
			bull++
		case BiasBearish:
			bear++
		}
		if r.IsSession() {
			assert.Equal(t, BiasNeutral, r.Bias(), r.String())
		}
	}
	assert.Equal(t, bull, bear)
	assert.Equal(t, BiasBearish, BiasBullish.Opposite())
	assert.Equal(t, BiasNeutral, BiasNeutral.Opposite())
	assert.True(t, Whipsaw.IsTransitional())
	assert.False(t, StrongUptrendHighVolume.IsTransitional())
}

func TestDistribution_Helpers(t *testing.T) {
	d := make(Distribution, NumRegimes)
	d[StrongUptrendHighVolume] = 0.5
	d[SellingClimax] = 0.3
	d[Whipsaw] = 0.2

	r, p := d.ArgMax()
	assert.Equal(t, StrongUptrendHighVolume, r)
	assert.InDelta(t, 0.5, p, 1e-12)
	assert.InDelta(t, 1.0, d.Sum(), 1e-12)
	assert.InDelta(t, 0.5, d.MassFor(BiasBullish), 1e-12)
	assert.InDelta(t, 0.3, d.MassFor(BiasBearish), 1e-12)
	assert.InDelta(t, 0.2, d.Named()["whipsaw"], 1e-12)
}

func TestBias_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		B Bias   `json:"b"`
		R Regime `json:"r"`
	}{BiasBearish, BuyingClimax})
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":"bearish","r":"buying_climax"}`, string(b))

	var v struct {
		B Bias `json:"b"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"b":"sideways"}`), &v))
}
