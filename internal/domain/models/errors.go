package models

import "errors"

var (
	// ErrInvalidBar marks a bar rejected at ingestion for malformed fields.
	ErrInvalidBar = errors.New("invalid bar")
	// ErrOutOfOrder marks a bar whose timestamp does not advance its symbol's stream.
	ErrOutOfOrder = errors.New("bar out of order")
	// ErrUnknownSymbol is returned by lookups for symbols the engine has not seen.
	ErrUnknownSymbol = errors.New("unknown symbol")
)
