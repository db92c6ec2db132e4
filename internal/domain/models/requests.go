package models

// Requests for the introspection HTTP endpoints.

type SymbolRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type RecordsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=5000"`
}

type MarketBiasRequest struct {
	Bias string `json:"bias" validate:"omitempty,oneof=bullish bearish neutral"`
	// Clear drops the manual override and falls back to breadth.
	Clear bool `json:"clear"`
}
