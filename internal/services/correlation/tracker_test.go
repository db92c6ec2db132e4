package correlation

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeChain/internal/domain/models"
)

var t0 = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

// feed drives two symbols with returns derived from the same wave, b scaled by sign.
func feed(tr *Tracker, bars int, sign float64) {
	pa, pb := 100.0, 100.0
	for i := 0; i < bars; i++ {
		r := 0.01 * math.Sin(float64(i))
		pa *= 1 + r
		pb *= 1 + sign*r
		ts := t0.Add(time.Duration(i) * time.Minute)
		tr.Update(models.Bar{Symbol: "AAA", Timestamp: ts, Close: pa})
		tr.Update(models.Bar{Symbol: "BBB", Timestamp: ts, Close: pb})
	}
}

func TestTrackerPositiveCorrelation(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	feed(tr, 40, 1)
	tr.SetRegime("BBB", models.StrongUptrendHighVolume)

	peers := tr.Influential("AAA")
	require.Len(t, peers, 1)
	assert.Equal(t, "BBB", peers[0].Partner)
	assert.InDelta(t, 1.0, peers[0].Coefficient, 1e-9)
	assert.InDelta(t, 1.0, peers[0].Influence, 1e-9)
	assert.Equal(t, 39, peers[0].Observations)
	assert.Equal(t, models.StrongUptrendHighVolume, peers[0].PartnerRegime)
	assert.True(t, peers[0].HasRegime)

	// no regime known for AAA yet
	assert.Empty(t, tr.Influential("BBB"))
}

func TestTrackerNegativeCorrelation(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	feed(tr, 40, -1)
	tr.SetRegime("AAA", models.WeakBearishBreakout)

	peers := tr.Influential("BBB")
	require.Len(t, peers, 1)
	assert.InDelta(t, -1.0, peers[0].Coefficient, 1e-3)
	assert.Greater(t, peers[0].Influence, 0.99)
}

func TestTrackerNeedsMinimumObservations(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	feed(tr, 15, 1)
	tr.SetRegime("BBB", models.Whipsaw)

	assert.Empty(t, tr.Influential("AAA"))
	snaps := tr.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "AAA", snaps[0].Symbol)
	assert.Zero(t, snaps[0].Influence)
	assert.Equal(t, 14, snaps[0].Observations)
}

func TestTrackerZeroMinInfluenceKeepsEveryPeer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinInfluence = 0
	tr := NewTracker(cfg)
	feed(tr, 15, 1)
	tr.SetRegime("BBB", models.Whipsaw)

	peers := tr.Influential("AAA")
	require.Len(t, peers, 1)
	assert.Zero(t, peers[0].Influence)
	assert.Equal(t, models.Whipsaw, peers[0].PartnerRegime)
}

func TestTrackerIgnoresUnalignedBars(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	for i := 0; i < 30; i++ {
		tr.Update(models.Bar{Symbol: "AAA", Timestamp: t0.Add(time.Duration(2*i) * time.Minute), Close: 100 + float64(i%3)})
		tr.Update(models.Bar{Symbol: "BBB", Timestamp: t0.Add(time.Duration(2*i+1) * time.Minute), Close: 100 + float64(i%3)})
	}
	snaps := tr.Snapshots()
	require.Len(t, snaps, 2)
	assert.Zero(t, snaps[0].Observations)
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	var wg sync.WaitGroup
	for _, sym := range []string{"AAA", "BBB", "CCC"} {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				tr.Update(models.Bar{Symbol: sym, Timestamp: t0.Add(time.Duration(i) * time.Minute), Close: 100 + float64(i)})
				tr.SetRegime(sym, models.TightRangeLowVolume)
				_ = tr.Influential(sym)
				_ = tr.Snapshots()
			}
		}(sym)
	}
	wg.Wait()
	assert.Len(t, tr.Regimes(), 3)
	assert.Len(t, tr.Snapshots(), 6)
}

func TestPeerRegimes(t *testing.T) {
	assert.Nil(t, PeerRegimes(nil))
	got := PeerRegimes([]models.CorrelationSnapshot{
		{Partner: "BBB", PartnerRegime: models.Whipsaw, HasRegime: true},
		{Partner: "CCC"},
	})
	assert.Equal(t, map[string]models.Regime{"BBB": models.Whipsaw}, got)
}
