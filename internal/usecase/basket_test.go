package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"RegimeLab/internal/domain/models"
)

func TestParseBasket(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		valid   bool
		status  models.BasketStatus
		tickers []string
	}{
		{"list", "['XLK', 'XLF']", true, models.BasketHeld, []string{"XLK", "XLF"}},
		{"double quotes", `["XLE","XLV"]`, true, models.BasketHeld, []string{"XLE", "XLV"}},
		{"tuple trailing comma", "('XLK',)", true, models.BasketHeld, []string{"XLK"}},
		{"duplicates keep first", "['XLF', 'XLK', 'XLF']", true, models.BasketHeld, []string{"XLF", "XLK"}},
		{"cash only", "['CASH']", true, models.BasketFlat, nil},
		{"cash substring", "['CASH_USD', 'XLU']", true, models.BasketHeld, []string{"XLU"}},
		{"lowercase cash is a ticker", "['cash']", true, models.BasketHeld, []string{"cash"}},
		{"empty list", "[]", true, models.BasketFlat, nil},
		{"empty set", "set()", true, models.BasketFlat, nil},
		{"empty cell", "", true, models.BasketMissing, nil},
		{"null cell", "['XLK']", false, models.BasketMissing, nil},
		{"bare string", "XLK", true, models.BasketInvalid, nil},
		{"number element", "['XLK', 3]", true, models.BasketInvalid, nil},
		{"unterminated", "['XLK]", true, models.BasketInvalid, nil},
		{"missing comma", "['XLK' 'XLF']", true, models.BasketInvalid, nil},
		{"unbalanced", "['XLK'", true, models.BasketInvalid, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := ParseBasket(models.SignalRow{Basket: tc.raw, Valid: tc.valid}, "CASH")
			assert.Equal(t, tc.status, b.Status)
			assert.Equal(t, tc.tickers, b.Tickers)
			if tc.status == models.BasketInvalid {
				assert.ErrorIs(t, b.Err, ErrBasketSyntax)
			} else {
				assert.NoError(t, b.Err)
			}
		})
	}
}

func TestCollectUniverse(t *testing.T) {
	rows := []models.SignalRow{
		{Basket: "['XLK', 'SPY']", Valid: true},
		{Basket: "['CASH']", Valid: true},
		{Basket: "not a list", Valid: true},
		{Basket: "['XLF', 'XLE', 'XLK']", Valid: true},
		{Valid: false},
	}
	assert.Equal(t, []string{"XLE", "XLF", "XLK", "SPY"}, CollectUniverse(rows, "CASH", "SPY"))
	assert.Equal(t, []string{"SPY"}, CollectUniverse(nil, "CASH", "SPY"))
}
