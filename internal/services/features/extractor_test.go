package features

import (
	"math"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeChain/internal/domain/models"
)

var londonMorning = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func risingBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		c := 100 * math.Pow(1.01, float64(i))
		bars[i] = models.Bar{
			Symbol:    "AAA",
			Timestamp: londonMorning.Add(time.Duration(i) * time.Minute),
			Open:      c / 1.005,
			High:      c * 1.003,
			Low:       c * 0.997,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

// zigzag alternates closes between 100.5 and 100 with flat volume.
func zigzag(n int) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		c := 100.0
		if i%2 == 0 {
			c = 100.5
		}
		bars[i] = models.Bar{
			Symbol:    "AAA",
			Timestamp: londonMorning.Add(time.Duration(i) * time.Minute),
			Open:      c,
			High:      c + 0.3,
			Low:       c - 0.3,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func TestExtractUptrend(t *testing.T) {
	bars := risingBars(30)
	e := NewExtractor(DefaultConfig())
	m := e.Extract(bars[len(bars)-1], bars[:len(bars)-1])

	assert.Equal(t, models.TrendUp, m.Trend.Direction)
	assert.Equal(t, 100.0, m.Trend.Consistency)
	assert.Greater(t, m.Trend.Strength, 50.0)
	assert.Equal(t, 10, m.Trend.Duration)
	assert.InDelta(t, 1.0, m.Volume.Relative, 1e-9)
	assert.Equal(t, models.ProfileAccumulation, m.Volume.Profile)
	assert.False(t, m.Range.Expanding)
	assert.False(t, m.Range.Contracting)
	assert.Equal(t, models.SessionLondon, m.Session.Session)
	assert.True(t, m.BarUp)
}

func TestExtractBreakoutBar(t *testing.T) {
	history := zigzag(20)
	cur := models.Bar{
		Symbol:    "AAA",
		Timestamp: londonMorning.Add(20 * time.Minute),
		Open:      100,
		High:      101.7,
		Low:       99.9,
		Close:     100.5,
		Volume:    2500,
	}
	m := NewExtractor(DefaultConfig()).Extract(cur, history)

	assert.Equal(t, models.TrendUp, m.Trend.Direction)
	assert.InDelta(t, 2.5, m.Volume.Relative, 1e-9)
	assert.InDelta(t, 3.0, m.Range.Relative, 1e-9)
	assert.True(t, m.Range.Expanding)
	assert.Equal(t, 50.0, m.Volatility.Rank)
}

func TestExtractShortHistoryIsNeutral(t *testing.T) {
	bars := risingBars(5)
	m := NewExtractor(DefaultConfig()).Extract(bars[4], bars[:4])

	assert.Equal(t, models.TrendSideways, m.Trend.Direction)
	assert.Zero(t, m.Trend.Strength)
	assert.Equal(t, models.StructureMetrics{}, m.Structure)
}

func TestExtractFirstBar(t *testing.T) {
	bar := risingBars(1)[0]
	m := NewExtractor(Config{}).Extract(bar, nil)

	assert.Equal(t, 1.0, m.Volume.Relative)
	assert.Equal(t, 1.0, m.Range.Relative)
	assert.Equal(t, 1.0, m.Volatility.Relative)
	assert.Equal(t, 50.0, m.Volatility.Rank)
	assert.False(t, math.IsNaN(m.Volatility.ATR))
}

func TestExtractIsDeterministic(t *testing.T) {
	bars := zigzag(60)
	e := NewExtractor(DefaultConfig())
	a := e.Extract(bars[59], bars[:59])
	b := e.Extract(bars[59], bars[:59])
	assert.Equal(t, a, b)
}

func TestStructureSwings(t *testing.T) {
	lowsSeq := []float64{10, 8, 9, 7, 9, 8, 10, 9, 11, 10, 12}
	bars := make([]models.Bar, len(lowsSeq))
	for i, l := range lowsSeq {
		bars[i] = models.Bar{Low: l, High: l + 1, Close: l + 0.5}
	}
	s := structure(bars)
	// last three swing lows are 8, 9, 10 and swing highs 10, 11, 12
	assert.True(t, s.HigherLows)
	assert.False(t, s.LowerLows)
	assert.True(t, s.HigherHighs)
}

func TestPercentileRank(t *testing.T) {
	assert.Equal(t, 50.0, PercentileRank(nil, 1))
	assert.Equal(t, 50.0, PercentileRank([]float64{3}, 3))
	assert.Equal(t, 87.5, PercentileRank([]float64{1, 2, 3, 4}, 4))
	assert.Equal(t, 100.0, PercentileRank([]float64{1, 2, 3, 4}, 5))
}

func TestIndicatorFallbacks(t *testing.T) {
	xs := []float64{1, 2, 3}
	assert.InDelta(t, 2.0, SMA(xs, 20), 1e-12)
	assert.InDelta(t, 2.0, EMA(xs, 9), 1e-12)
	assert.Zero(t, SMA(nil, 20))
	assert.Nil(t, RollingStdDev([]float64{0.1}, 20))
	require.Len(t, RollingStdDev([]float64{0.1, 0.2, 0.3}, 20), 1)
	assert.Len(t, RollingStdDev(make([]float64, 25), 20), 6)
}

func TestSessionSchedule(t *testing.T) {
	s := DefaultSchedule()
	at := func(h, m int) models.SessionMetrics {
		return s.Classify(time.Date(2024, 1, 2, h, m, 0, 0, time.UTC))
	}
	assert.Equal(t, models.SessionMetrics{Session: models.SessionAsia, MinutesSinceOpen: 30}, at(0, 30))
	assert.Equal(t, models.SessionMetrics{Session: models.SessionLondon, MinutesSinceOpen: 0}, at(8, 0))
	assert.Equal(t, models.SessionMetrics{Session: models.SessionNewYork, MinutesSinceOpen: 15}, at(13, 45))
	assert.Equal(t, models.SessionMetrics{Session: models.SessionOffHours, MinutesSinceOpen: 90}, at(21, 30))

	m, err := ParseClock("13:30")
	require.NoError(t, err)
	assert.Equal(t, 810, m)
	_, err = ParseClock("25:00")
	assert.Error(t, err)
}

func TestSessionScheduleFollowsDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	s := SessionSchedule{Windows: []SessionWindow{
		{Session: models.SessionNewYork, Start: 9*60 + 30, End: 16 * 60, Location: ny},
	}}

	// 09:45 local is 14:45 UTC in winter and 13:45 UTC in summer
	winter := s.Classify(time.Date(2024, 1, 10, 14, 45, 0, 0, time.UTC))
	summer := s.Classify(time.Date(2024, 7, 10, 13, 45, 0, 0, time.UTC))
	assert.Equal(t, models.SessionMetrics{Session: models.SessionNewYork, MinutesSinceOpen: 15}, winter)
	assert.Equal(t, winter, summer)

	// 17:00 local, one hour after the close
	off := s.Classify(time.Date(2024, 7, 10, 21, 0, 0, 0, time.UTC))
	assert.Equal(t, models.SessionMetrics{Session: models.SessionOffHours, MinutesSinceOpen: 60}, off)
}
