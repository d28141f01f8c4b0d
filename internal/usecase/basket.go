package usecase

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"RegimeLab/internal/domain/models"
)

var ErrBasketSyntax = errors.New("basket: malformed list literal")

// ParseBasket decodes a list literal such as ['XLK', 'XLF'] into a typed
// basket. Tuple and set brackets are accepted. Tickers containing cashMarker
// are dropped and duplicates keep their first position.
func ParseBasket(row models.SignalRow, cashMarker string) models.Basket {
	raw := strings.TrimSpace(row.Basket)
	if !row.Valid || raw == "" {
		return models.Basket{Status: models.BasketMissing}
	}

	items, err := parseStringList(raw)
	if err != nil {
		return models.Basket{Status: models.BasketInvalid, Err: err}
	}

	seen := make(map[string]struct{}, len(items))
	tickers := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" || isCash(it, cashMarker) {
			continue
		}
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		tickers = append(tickers, it)
	}
	if len(tickers) == 0 {
		return models.Basket{Status: models.BasketFlat}
	}
	return models.Basket{Tickers: tickers, Status: models.BasketHeld}
}

// CollectUniverse returns every ticker named by a parseable basket, sorted,
// with the benchmark removed and then appended last.
func CollectUniverse(rows []models.SignalRow, cashMarker, benchmark string) []string {
	set := make(map[string]struct{})
	for _, r := range rows {
		b := ParseBasket(r, cashMarker)
		for _, t := range b.Tickers {
			set[t] = struct{}{}
		}
	}
	delete(set, benchmark)

	out := make([]string, 0, len(set)+1)
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return append(out, benchmark)
}

func isCash(ticker, marker string) bool {
	return marker != "" && strings.Contains(ticker, marker)
}

var closers = map[byte]byte{'[': ']', '(': ')', '{': '}'}

// parseStringList accepts a bracketed, comma separated list of single or
// double quoted strings. A trailing comma is allowed and set() is empty.
func parseStringList(s string) ([]string, error) {
	if strings.ReplaceAll(s, " ", "") == "set()" {
		return nil, nil
	}
	closer, ok := closers[s[0]]
	if !ok || len(s) < 2 || s[len(s)-1] != closer {
		return nil, fmt.Errorf("%w: %q", ErrBasketSyntax, s)
	}
	body := s[1 : len(s)-1]

	var out []string
	i := 0
	expectItem := true
	for {
		i = skipSpace(body, i)
		if i >= len(body) {
			break
		}
		if !expectItem {
			if body[i] != ',' {
				return nil, fmt.Errorf("%w: expected ',' at %d in %q", ErrBasketSyntax, i+1, s)
			}
			i++
			expectItem = true
			continue
		}
		item, next, err := readQuoted(body, i)
		if err != nil {
			return nil, fmt.Errorf("%w: %v in %q", ErrBasketSyntax, err, s)
		}
		out = append(out, item)
		i = next
		expectItem = false
	}
	if expectItem && len(out) > 0 {
		// trailing comma
		return out, nil
	}
	if expectItem && strings.TrimSpace(body) != "" {
		return nil, fmt.Errorf("%w: %q", ErrBasketSyntax, s)
	}
	return out, nil
}

func readQuoted(s string, i int) (string, int, error) {
	q := s[i]
	if q != '\'' && q != '"' {
		return "", i, fmt.Errorf("element at %d is not a string", i+1)
	}
	var b strings.Builder
	for j := i + 1; j < len(s); j++ {
		c := s[j]
		switch {
		case c == '\\' && j+1 < len(s):
			j++
			b.WriteByte(s[j])
		case c == q:
			return b.String(), j + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", i, fmt.Errorf("unterminated string at %d", i+1)
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}
