package models

import "errors"

// Input-shape errors. Loaders and the backtest engine fail fast with these.
var (
	ErrEmptyInput    = errors.New("input table is empty")
	ErrMissingColumn = errors.New("required column is missing")
	ErrUnsortedDates = errors.New("dates must be unique and strictly increasing")
	ErrMissingRegime = errors.New("observation has no regime")
	ErrInvalidValue  = errors.New("cell value is not a finite number")
)
