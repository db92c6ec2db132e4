package regime

import "RegimeChain/internal/domain/models"

// Thresholds holds the classifier cut-offs.
type Thresholds struct {
	SessionOverrides bool

	OpeningDriveMinutes   int
	LateSessionStart      int
	LateSessionStrength   float64
	MiddayStart           int
	MiddayEnd             int
	MiddayMaxRelVolume    float64
	SqueezeMaxVolRelative float64
	ClimaxMinRelVolume    float64
	ClimaxMinVolRank      float64
	WhipsawMaxConsistency float64
	WhipsawMinVolRank     float64
	BreakoutMinRelVolume  float64
	ConfirmedRelVolume    float64
	StrongTrendStrength   float64
	StrongTrendConsist    float64
	HighRelVolume         float64
	TightRangeRelative    float64
}

// DefaultThresholds returns the production cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SessionOverrides:      true,
		OpeningDriveMinutes:   30,
		LateSessionStart:      330,
		LateSessionStrength:   50,
		MiddayStart:           120,
		MiddayEnd:             210,
		MiddayMaxRelVolume:    0.6,
		SqueezeMaxVolRelative: 0.7,
		ClimaxMinRelVolume:    2.0,
		ClimaxMinVolRank:      90,
		WhipsawMaxConsistency: 30,
		WhipsawMinVolRank:     80,
		BreakoutMinRelVolume:  1.5,
		ConfirmedRelVolume:    2.0,
		StrongTrendStrength:   50,
		StrongTrendConsist:    70,
		HighRelVolume:         1.2,
		TightRangeRelative:    0.8,
	}
}

// Rule is one step of the cascade. Resolve is only called when Match holds.
type Rule struct {
	Name    string
	Match   func(m models.MetricsBundle) bool
	Resolve func(m models.MetricsBundle) models.Regime
}

func fixed(r models.Regime) func(models.MetricsBundle) models.Regime {
	return func(models.MetricsBundle) models.Regime { return r }
}

func inNewYork(m models.MetricsBundle) bool {
	return m.Session.Session == models.SessionNewYork
}

// DefaultRules builds the cascade in priority order. The last rule always matches.
func DefaultRules(t Thresholds) []Rule {
	var rules []Rule
	if t.SessionOverrides {
		rules = append(rules,
			Rule{
				Name:    "off_hours",
				Match:   func(m models.MetricsBundle) bool { return m.Session.Session == models.SessionOffHours },
				Resolve: fixed(models.OffHoursDrift),
			},
			Rule{
				Name: "opening_drive",
				Match: func(m models.MetricsBundle) bool {
					return inNewYork(m) && m.Session.MinutesSinceOpen < t.OpeningDriveMinutes
				},
				Resolve: fixed(models.OpeningDrive),
			},
			Rule{
				Name: "late_session_push",
				Match: func(m models.MetricsBundle) bool {
					return inNewYork(m) && m.Session.MinutesSinceOpen >= t.LateSessionStart &&
						m.Trend.Strength > t.LateSessionStrength
				},
				Resolve: fixed(models.LateSessionPush),
			},
			Rule{
				Name: "midday_lull",
				Match: func(m models.MetricsBundle) bool {
					return inNewYork(m) && m.Session.MinutesSinceOpen >= t.MiddayStart &&
						m.Session.MinutesSinceOpen < t.MiddayEnd && m.Volume.Relative < t.MiddayMaxRelVolume
				},
				Resolve: fixed(models.MiddayLull),
			},
		)
	}

	return append(rules,
		Rule{
			Name: "squeeze",
			Match: func(m models.MetricsBundle) bool {
				return m.Range.Contracting && m.Volatility.Relative < t.SqueezeMaxVolRelative
			},
			Resolve: fixed(models.VolatilitySqueeze),
		},
		Rule{
			Name: "climax",
			Match: func(m models.MetricsBundle) bool {
				return m.Volume.Relative > t.ClimaxMinRelVolume && m.Volatility.Rank > t.ClimaxMinVolRank &&
					m.Trend.Direction != models.TrendSideways
			},
			Resolve: func(m models.MetricsBundle) models.Regime {
				if m.Trend.Direction == models.TrendUp {
					return models.BuyingClimax
				}
				return models.SellingClimax
			},
		},
		Rule{
			Name: "whipsaw",
			Match: func(m models.MetricsBundle) bool {
				return m.Trend.Consistency < t.WhipsawMaxConsistency && m.Volatility.Rank > t.WhipsawMinVolRank
			},
			Resolve: fixed(models.Whipsaw),
		},
		Rule{
			Name: "breakout",
			Match: func(m models.MetricsBundle) bool {
				return m.Range.Expanding && m.Volume.Relative > t.BreakoutMinRelVolume
			},
			Resolve: func(m models.MetricsBundle) models.Regime {
				confirmed := m.Volume.Relative > t.ConfirmedRelVolume
				bullish := m.Trend.Direction == models.TrendUp ||
					(m.Trend.Direction == models.TrendSideways && m.BarUp)
				switch {
				case bullish && confirmed:
					return models.ConfirmedBullishBreakout
				case bullish:
					return models.WeakBullishBreakout
				case confirmed:
					return models.ConfirmedBearishBreakout
				default:
					return models.WeakBearishBreakout
				}
			},
		},
		Rule{
			Name: "reversal",
			Match: func(m models.MetricsBundle) bool {
				return (m.Trend.Direction == models.TrendDown && m.Structure.HigherLows) ||
					(m.Trend.Direction == models.TrendUp && m.Structure.LowerHighs)
			},
			Resolve: func(m models.MetricsBundle) models.Regime {
				confirmed := m.Volume.Profile != models.ProfileNeutral
				bullish := m.Trend.Direction == models.TrendDown
				switch {
				case bullish && confirmed:
					return models.ConfirmedBullishReversal
				case bullish:
					return models.FormingBullishReversal
				case confirmed:
					return models.ConfirmedBearishReversal
				default:
					return models.FormingBearishReversal
				}
			},
		},
		Rule{
			Name:  "trending",
			Match: func(m models.MetricsBundle) bool { return m.Trend.Direction != models.TrendSideways },
			Resolve: func(m models.MetricsBundle) models.Regime {
				strong := m.Trend.Strength > t.StrongTrendStrength && m.Trend.Consistency > t.StrongTrendConsist
				high := m.Volume.Relative > t.HighRelVolume
				base := models.WeakDowntrendHighVolume
				if m.Trend.Direction == models.TrendUp {
					base = models.WeakUptrendHighVolume
				}
				if strong {
					base -= 2
				}
				if !high {
					base++
				}
				return base
			},
		},
		Rule{
			Name:  "ranging",
			Match: func(models.MetricsBundle) bool { return true },
			Resolve: func(m models.MetricsBundle) models.Regime {
				tight := m.Range.Relative < t.TightRangeRelative
				high := m.Volume.Relative > t.HighRelVolume
				switch {
				case tight && high:
					return models.TightRangeHighVolume
				case tight:
					return models.TightRangeLowVolume
				case high:
					return models.WideRangeHighVolume
				default:
					return models.WideRangeLowVolume
				}
			},
		},
	)
}
