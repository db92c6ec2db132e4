package models

import "fmt"

// Regime is one label of the closed market-regime taxonomy.
type Regime uint8

const (
	StrongUptrendHighVolume Regime = iota
	StrongUptrendLowVolume
	WeakUptrendHighVolume
	WeakUptrendLowVolume
	StrongDowntrendHighVolume
	StrongDowntrendLowVolume
	WeakDowntrendHighVolume
	WeakDowntrendLowVolume

	TightRangeHighVolume
	TightRangeLowVolume
	WideRangeHighVolume
	WideRangeLowVolume

	ConfirmedBullishBreakout
	WeakBullishBreakout
	ConfirmedBearishBreakout
	WeakBearishBreakout

	ConfirmedBullishReversal
	FormingBullishReversal
	ConfirmedBearishReversal
	FormingBearishReversal

	VolatilitySqueeze
	BuyingClimax
	SellingClimax
	Whipsaw

	OpeningDrive
	MiddayLull
	LateSessionPush
	OffHoursDrift

	numRegimes
)

// NumRegimes is the size of the state space.
const NumRegimes = int(numRegimes)

var regimeNames = [NumRegimes]string{
	"strong_uptrend_high_volume",
	"strong_uptrend_low_volume",
	"weak_uptrend_high_volume",
	"weak_uptrend_low_volume",
	"strong_downtrend_high_volume",
	"strong_downtrend_low_volume",
	"weak_downtrend_high_volume",
	"weak_downtrend_low_volume",
	"tight_range_high_volume",
	"tight_range_low_volume",
	"wide_range_high_volume",
	"wide_range_low_volume",
	"confirmed_bullish_breakout",
	"weak_bullish_breakout",
	"confirmed_bearish_breakout",
	"weak_bearish_breakout",
	"confirmed_bullish_reversal",
	"forming_bullish_reversal",
	"confirmed_bearish_reversal",
	"forming_bearish_reversal",
	"volatility_squeeze",
	"buying_climax",
	"selling_climax",
	"whipsaw",
	"opening_drive",
	"midday_lull",
	"late_session_push",
	"off_hours_drift",
}

var regimeByName = func() map[string]Regime {
	m := make(map[string]Regime, NumRegimes)
	for i, n := range regimeNames {
		m[n] = Regime(i)
	}
	return m
}()

// AllRegimes returns every regime in declaration order.
func AllRegimes() []Regime {
	out := make([]Regime, NumRegimes)
	for i := range out {
		out[i] = Regime(i)
	}
	return out
}

func (r Regime) String() string {
	if !r.Valid() {
		return "unknown"
	}
	return regimeNames[r]
}

// Valid reports whether r is inside the taxonomy.
func (r Regime) Valid() bool { return r < numRegimes }

// ParseRegime resolves a regime from its string form.
func ParseRegime(s string) (Regime, error) {
	if r, ok := regimeByName[s]; ok {
		return r, nil
	}
	return 0, fmt.Errorf("unknown regime %q", s)
}

func (r Regime) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid regime %d", r)
	}
	return []byte(r.String()), nil
}

func (r *Regime) UnmarshalText(b []byte) error {
	v, err := ParseRegime(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Bias is the bullish/bearish family a regime belongs to.
type Bias int8

const (
	BiasBearish Bias = -1
	BiasNeutral Bias = 0
	BiasBullish Bias = 1
)

func (b Bias) String() string {
	switch b {
	case BiasBullish:
		return "bullish"
	case BiasBearish:
		return "bearish"
	default:
		return "neutral"
	}
}

// Opposite flips bullish and bearish; neutral stays neutral.
func (b Bias) Opposite() Bias { return -b }

// ParseBias accepts bullish, bearish, neutral or an empty string (neutral).
func ParseBias(s string) (Bias, error) {
	switch s {
	case "bullish":
		return BiasBullish, nil
	case "bearish":
		return BiasBearish, nil
	case "neutral", "":
		return BiasNeutral, nil
	default:
		return BiasNeutral, fmt.Errorf("unknown bias %q", s)
	}
}

func (b Bias) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Bias) UnmarshalText(p []byte) error {
	v, err := ParseBias(string(p))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Bias returns the regime's bias family. Session tags, ranges, squeezes and
// whipsaws carry no directional bias.
func (r Regime) Bias() Bias {
	switch r {
	case StrongUptrendHighVolume, StrongUptrendLowVolume, WeakUptrendHighVolume, WeakUptrendLowVolume,
		ConfirmedBullishBreakout, WeakBullishBreakout,
		ConfirmedBullishReversal, FormingBullishReversal,
		BuyingClimax:
		return BiasBullish
	case StrongDowntrendHighVolume, StrongDowntrendLowVolume, WeakDowntrendHighVolume, WeakDowntrendLowVolume,
		ConfirmedBearishBreakout, WeakBearishBreakout,
		ConfirmedBearishReversal, FormingBearishReversal,
		SellingClimax:
		return BiasBearish
	default:
		return BiasNeutral
	}
}

// IsTransitional marks regimes that describe a market changing state.
func (r Regime) IsTransitional() bool {
	switch r {
	case FormingBullishReversal, FormingBearishReversal, VolatilitySqueeze, Whipsaw:
		return true
	default:
		return false
	}
}

// IsSession marks the four time-of-day override tags.
func (r Regime) IsSession() bool {
	return r >= OpeningDrive && r <= OffHoursDrift
}
