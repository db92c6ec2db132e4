package models

// TrendDirection is the declared direction of the trend block.
type TrendDirection string

const (
	TrendUp       TrendDirection = "up"
	TrendDown     TrendDirection = "down"
	TrendSideways TrendDirection = "sideways"
)

// VolumeProfile tags the recent volume/price relationship.
type VolumeProfile string

const (
	ProfileAccumulation VolumeProfile = "accumulation"
	ProfileDistribution VolumeProfile = "distribution"
	ProfileNeutral      VolumeProfile = "neutral"
)

// Session is a time-of-day bucket.
type Session string

const (
	SessionAsia     Session = "asia"
	SessionLondon   Session = "london"
	SessionNewYork  Session = "new_york"
	SessionOffHours Session = "off_hours"
)

// LevelType names a key structural level.
type LevelType string

const (
	LevelNone       LevelType = ""
	LevelSupport    LevelType = "support"
	LevelResistance LevelType = "resistance"
)

type TrendMetrics struct {
	Direction   TrendDirection `json:"direction"`
	Strength    float64        `json:"strength"`    // 0-100
	Consistency float64        `json:"consistency"` // 0-100
	Duration    int            `json:"duration"`    // bars
}

type VolumeMetrics struct {
	Current      float64       `json:"current"`
	Average      float64       `json:"average"`
	Relative     float64       `json:"relative"`
	BuyPressure  float64       `json:"buy_pressure"`  // 0-100
	SellPressure float64       `json:"sell_pressure"` // 0-100
	Profile      VolumeProfile `json:"profile"`
}

type VolatilityMetrics struct {
	Current  float64 `json:"current"`
	Average  float64 `json:"average"`
	Relative float64 `json:"relative"`
	ATR      float64 `json:"atr"`
	Rank     float64 `json:"rank"` // percentile 0-100
}

type RangeMetrics struct {
	Current     float64 `json:"current"`
	Average     float64 `json:"average"`
	Relative    float64 `json:"relative"`
	Expanding   bool    `json:"expanding"`
	Contracting bool    `json:"contracting"`
	Support     float64 `json:"support"`
	Resistance  float64 `json:"resistance"`
}

type SessionMetrics struct {
	Session          Session `json:"session"`
	MinutesSinceOpen int     `json:"minutes_since_open"`
}

type StructureMetrics struct {
	HigherHighs  bool      `json:"higher_highs"`
	HigherLows   bool      `json:"higher_lows"`
	LowerHighs   bool      `json:"lower_highs"`
	LowerLows    bool      `json:"lower_lows"`
	KeyLevel     float64   `json:"key_level"`
	KeyLevelType LevelType `json:"key_level_type"`
}

// MetricsBundle is the derived, per-bar feature set the classifier reads.
type MetricsBundle struct {
	Trend      TrendMetrics      `json:"trend"`
	Volume     VolumeMetrics     `json:"volume"`
	Volatility VolatilityMetrics `json:"volatility"`
	Range      RangeMetrics      `json:"range"`
	Session    SessionMetrics    `json:"session"`
	Structure  StructureMetrics  `json:"structure"`
	BarUp      bool              `json:"bar_up"`
}
