package models

import "time"

// BasketStatus classifies how a day's basket was resolved.
type BasketStatus string

const (
	// BasketHeld means at least one ticker contributed a return.
	BasketHeld BasketStatus = "held"
	// BasketFlat means the basket was empty, cash-only, or had no priced tickers.
	BasketFlat BasketStatus = "flat"
	// BasketMissing means the source cell was empty.
	BasketMissing BasketStatus = "missing"
	// BasketInvalid means the encoded basket could not be parsed.
	BasketInvalid BasketStatus = "invalid"
)

// Basket is the parsed form of a SignalRow.
type Basket struct {
	Tickers []string // deduplicated, cash markers removed
	Status  BasketStatus
	Err     error // set when Status is BasketInvalid
}

// BasketDay records how one backtest date was computed on the basket path.
type BasketDay struct {
	Date   time.Time    `json:"date"`
	Status BasketStatus `json:"status"`
	Held   []string     `json:"held,omitempty"`
	Return float64      `json:"return"`
}
