package features

import (
	"math"

	"RegimeChain/internal/domain/models"
)

// Config tunes the lookbacks of the metrics extractor.
type Config struct {
	Window           int // trailing bars considered, current bar included
	MinHistory       int // below this trend and structure are neutral
	TrendPeriod      int // SMA period
	FastEMA          int
	SlowEMA          int
	ConsistencyBars  int
	VolumePeriod     int
	PressureBars     int
	VolatilityPeriod int
	ATRPeriod        int
	RangePeriod      int
	Schedule         SessionSchedule
}

// DefaultConfig returns the production lookbacks.
func DefaultConfig() Config {
	return Config{
		Window:           100,
		MinHistory:       10,
		TrendPeriod:      20,
		FastEMA:          9,
		SlowEMA:          21,
		ConsistencyBars:  10,
		VolumePeriod:     20,
		PressureBars:     5,
		VolatilityPeriod: 20,
		ATRPeriod:        14,
		RangePeriod:      20,
		Schedule:         DefaultSchedule(),
	}
}

const (
	// strength reaches 100 at four ATRs from the SMA
	strengthPerATR = 25.0
	// fallback when ATR is zero: 5% from the SMA is full strength
	strengthPerDeviation = 2000.0
	// a 1% move on average volume adds 20 pressure points
	pressureScale    = 20.0
	profileGap       = 20.0
	expandingRatio   = 1.5
	contractingRatio = 0.5
	structureSwings  = 3
)

// Extractor derives a MetricsBundle from a bar and its trailing history.
// It is stateless and safe for concurrent use.
type Extractor struct {
	cfg Config
}

// NewExtractor creates an extractor, filling zero fields from DefaultConfig.
func NewExtractor(cfg Config) *Extractor {
	def := DefaultConfig()
	fill := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	fill(&cfg.Window, def.Window)
	fill(&cfg.MinHistory, def.MinHistory)
	fill(&cfg.TrendPeriod, def.TrendPeriod)
	fill(&cfg.FastEMA, def.FastEMA)
	fill(&cfg.SlowEMA, def.SlowEMA)
	fill(&cfg.ConsistencyBars, def.ConsistencyBars)
	fill(&cfg.VolumePeriod, def.VolumePeriod)
	fill(&cfg.PressureBars, def.PressureBars)
	fill(&cfg.VolatilityPeriod, def.VolatilityPeriod)
	fill(&cfg.ATRPeriod, def.ATRPeriod)
	fill(&cfg.RangePeriod, def.RangePeriod)
	if len(cfg.Schedule.Windows) == 0 {
		cfg.Schedule = def.Schedule
	}
	return &Extractor{cfg: cfg}
}

// Extract computes every metric block for current given history, oldest first.
func (e *Extractor) Extract(current models.Bar, history []models.Bar) models.MetricsBundle {
	series := make([]models.Bar, 0, min(len(history), e.cfg.Window-1)+1)
	series = append(series, lastN(history, e.cfg.Window-1)...)
	series = append(series, current)

	m := models.MetricsBundle{
		Volume:     e.volume(series),
		Volatility: e.volatility(series),
		Range:      e.rangeMetrics(series),
		Session:    e.cfg.Schedule.Classify(current.Timestamp),
		BarUp:      current.Close >= current.Open,
		Trend:      models.TrendMetrics{Direction: models.TrendSideways},
	}
	if len(series) < e.cfg.MinHistory {
		return m
	}
	m.Trend = e.trend(series)
	m.Structure = structure(series)
	return m
}

func (e *Extractor) trend(series []models.Bar) models.TrendMetrics {
	cl := closes(series)
	price := cl[len(cl)-1]
	sma := SMA(cl, e.cfg.TrendPeriod)
	fast := EMA(cl, e.cfg.FastEMA)
	slow := EMA(cl, e.cfg.SlowEMA)

	dir := models.TrendSideways
	switch {
	case price > sma && fast > slow:
		dir = models.TrendUp
	case price < sma && fast < slow:
		dir = models.TrendDown
	}

	var strength float64
	if atr := ATR(lastN(series, e.cfg.ATRPeriod*2), e.cfg.ATRPeriod); atr > 0 {
		strength = math.Abs(price-sma) / atr * strengthPerATR
	} else if sma > 0 {
		strength = math.Abs(price-sma) / sma * strengthPerDeviation
	}

	return models.TrendMetrics{
		Direction:   dir,
		Strength:    clamp(strength, 0, 100),
		Consistency: consistency(lastN(cl, e.cfg.ConsistencyBars+1), dir),
		Duration:    sideDuration(cl, sma),
	}
}

// consistency is the share of moves agreeing with dir. Sideways trends score
// how often consecutive moves keep the same sign.
func consistency(cl []float64, dir models.TrendDirection) float64 {
	if len(cl) < 2 {
		return 0
	}
	moves := make([]float64, len(cl)-1)
	for i := 1; i < len(cl); i++ {
		moves[i-1] = cl[i] - cl[i-1]
	}
	agree := 0
	switch dir {
	case models.TrendUp:
		for _, d := range moves {
			if d > 0 {
				agree++
			}
		}
		return 100 * float64(agree) / float64(len(moves))
	case models.TrendDown:
		for _, d := range moves {
			if d < 0 {
				agree++
			}
		}
		return 100 * float64(agree) / float64(len(moves))
	}
	if len(moves) < 2 {
		return 0
	}
	for i := 1; i < len(moves); i++ {
		if sign(moves[i]) != 0 && sign(moves[i]) == sign(moves[i-1]) {
			agree++
		}
	}
	return 100 * float64(agree) / float64(len(moves)-1)
}

// sideDuration counts trailing closes on the same side of ref as the last one.
func sideDuration(cl []float64, ref float64) int {
	side := sign(cl[len(cl)-1] - ref)
	if side == 0 {
		return 0
	}
	n := 0
	for i := len(cl) - 1; i >= 0 && sign(cl[i]-ref) == side; i-- {
		n++
	}
	return n
}

func (e *Extractor) volume(series []models.Bar) models.VolumeMetrics {
	vols := volumes(series)
	cur := vols[len(vols)-1]
	prior := lastN(vols[:len(vols)-1], e.cfg.VolumePeriod)
	avg := cur
	if len(prior) > 0 {
		avg = mean(prior)
	}
	rel := 1.0
	if avg > 0 {
		rel = cur / avg
	}

	var buy, sell float64
	start := max(1, len(series)-e.cfg.PressureBars)
	for i := start; i < len(series); i++ {
		prev := series[i-1].Close
		if prev <= 0 {
			continue
		}
		pct := (series[i].Close - prev) / prev * 100
		w := 1.0
		if avg > 0 {
			w = series[i].Volume / avg
		}
		if pct > 0 {
			buy += pct * w * pressureScale
		} else {
			sell -= pct * w * pressureScale
		}
	}
	buy, sell = clamp(buy, 0, 100), clamp(sell, 0, 100)

	profile := models.ProfileNeutral
	switch {
	case buy-sell > profileGap:
		profile = models.ProfileAccumulation
	case sell-buy > profileGap:
		profile = models.ProfileDistribution
	}
	return models.VolumeMetrics{
		Current:      cur,
		Average:      avg,
		Relative:     rel,
		BuyPressure:  buy,
		SellPressure: sell,
		Profile:      profile,
	}
}

func (e *Extractor) volatility(series []models.Bar) models.VolatilityMetrics {
	rolling := RollingStdDev(ComputeReturns(series), e.cfg.VolatilityPeriod)
	var cur, avg float64
	if len(rolling) > 0 {
		cur = rolling[len(rolling)-1]
		avg = mean(lastN(rolling, e.cfg.VolatilityPeriod))
	}
	rel := 1.0
	if avg > 0 {
		rel = cur / avg
	}
	return models.VolatilityMetrics{
		Current:  cur,
		Average:  avg,
		Relative: rel,
		ATR:      ATR(series, e.cfg.ATRPeriod),
		Rank:     PercentileRank(rolling, cur),
	}
}

func (e *Extractor) rangeMetrics(series []models.Bar) models.RangeMetrics {
	rs := ranges(series)
	cur := rs[len(rs)-1]
	avg := cur
	if prior := lastN(rs[:len(rs)-1], e.cfg.RangePeriod); len(prior) > 0 {
		avg = mean(prior)
	}
	rel := 1.0
	if avg > 0 {
		rel = cur / avg
	}
	support, resistance := levels(series)
	return models.RangeMetrics{
		Current:     cur,
		Average:     avg,
		Relative:    rel,
		Expanding:   rel >= expandingRatio,
		Contracting: rel <= contractingRatio,
		Support:     support,
		Resistance:  resistance,
	}
}

// swingHighs returns the highs that are strictly above both neighbours.
func swingHighs(series []models.Bar) []float64 {
	var out []float64
	for i := 1; i < len(series)-1; i++ {
		if series[i].High > series[i-1].High && series[i].High > series[i+1].High {
			out = append(out, series[i].High)
		}
	}
	return out
}

// swingLows returns the lows that are strictly below both neighbours.
func swingLows(series []models.Bar) []float64 {
	var out []float64
	for i := 1; i < len(series)-1; i++ {
		if series[i].Low < series[i-1].Low && series[i].Low < series[i+1].Low {
			out = append(out, series[i].Low)
		}
	}
	return out
}

// levels picks the nearest swing low below and swing high above the last close,
// falling back to the window extremes.
func levels(series []models.Bar) (support, resistance float64) {
	price := series[len(series)-1].Close
	support, resistance = math.Inf(1), math.Inf(-1)
	for _, b := range series {
		support = math.Min(support, b.Low)
		resistance = math.Max(resistance, b.High)
	}
	bestS, bestR := math.Inf(-1), math.Inf(1)
	for _, l := range swingLows(series) {
		if l < price && l > bestS {
			bestS = l
		}
	}
	for _, h := range swingHighs(series) {
		if h > price && h < bestR {
			bestR = h
		}
	}
	if !math.IsInf(bestS, -1) {
		support = bestS
	}
	if !math.IsInf(bestR, 1) {
		resistance = bestR
	}
	return support, resistance
}

func structure(series []models.Bar) models.StructureMetrics {
	sh := lastN(swingHighs(series), structureSwings)
	sl := lastN(swingLows(series), structureSwings)
	hh, lh := monotone(sh)
	hl, ll := monotone(sl)

	s := models.StructureMetrics{HigherHighs: hh, LowerHighs: lh, HigherLows: hl, LowerLows: ll}
	price := series[len(series)-1].Close
	dist := math.Inf(1)
	if len(sl) > 0 {
		if d := math.Abs(price - sl[len(sl)-1]); d < dist {
			dist, s.KeyLevel, s.KeyLevelType = d, sl[len(sl)-1], models.LevelSupport
		}
	}
	if len(sh) > 0 {
		if d := math.Abs(price - sh[len(sh)-1]); d < dist {
			s.KeyLevel, s.KeyLevelType = sh[len(sh)-1], models.LevelResistance
		}
	}
	return s
}

// monotone reports strictly rising and strictly falling sequences of at least two values.
func monotone(xs []float64) (rising, falling bool) {
	if len(xs) < 2 {
		return false, false
	}
	rising, falling = true, true
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			rising = false
		}
		if xs[i] >= xs[i-1] {
			falling = false
		}
	}
	return rising, falling
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
