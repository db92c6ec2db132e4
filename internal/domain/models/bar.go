package models

import "time"

// Bar is one OHLCV record for a symbol. Bars arrive in timestamp order per symbol.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Range is the high-low span of the bar.
func (b Bar) Range() float64 { return b.High - b.Low }

// Trade is a single print from a streaming venue, aggregated into bars.
type Trade struct {
	Symbol    string
	Timestamp time.Time
	Price     float64
	Volume    float64
}
