package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	domrepo "RegimeLab/internal/domain/repository"
	"RegimeLab/internal/service/cache"
	applogger "RegimeLab/pkg/logger"
	"RegimeLab/pkg/util"
)

// CachedProvider serves price tables from a BytesCache and falls through to
// the wrapped provider on a miss. Cache failures never fail the fetch.
type CachedProvider struct {
	next  domrepo.PriceProvider
	cache cache.BytesCache
	ttl   time.Duration
	l     *applogger.Logger
}

func NewCachedProvider(next domrepo.PriceProvider, c cache.BytesCache, ttl time.Duration, l *applogger.Logger) *CachedProvider {
	if l == nil {
		l = applogger.Nop()
	}
	return &CachedProvider{next: next, cache: c, ttl: ttl, l: l}
}

// cachedTable is the JSON form of a PriceTable; NaN is stored as null.
type cachedTable struct {
	Dates   []string              `json:"dates"`
	Columns map[string][]*float64 `json:"columns"`
}

func (p *CachedProvider) AdjustedClose(ctx context.Context, tickers []string, from, to time.Time) (*domrepo.PriceTable, error) {
	key := cacheKey(tickers, from, to)
	if raw, ok, err := p.cache.GetBytes(ctx, key); err != nil {
		p.l.Warn("price cache read failed", applogger.String("key", key), applogger.Error(err))
	} else if ok {
		if t, err := decodeTable(raw); err == nil {
			p.l.Debug("price cache hit", applogger.String("key", key))
			return t, nil
		}
		p.l.Warn("price cache entry corrupt", applogger.String("key", key))
	}

	t, err := p.next.AdjustedClose(ctx, tickers, from, to)
	if err != nil {
		return nil, err
	}
	raw, err := encodeTable(t)
	if err == nil {
		err = p.cache.SetBytes(ctx, key, raw, p.ttl)
	}
	if err != nil {
		p.l.Warn("price cache write failed", applogger.String("key", key), applogger.Error(err))
	}
	return t, nil
}

func cacheKey(tickers []string, from, to time.Time) string {
	return fmt.Sprintf("prices:%s:%s:%s", util.FormatDate(from), util.FormatDate(to), strings.Join(tickers, ","))
}

func encodeTable(t *domrepo.PriceTable) ([]byte, error) {
	ct := cachedTable{
		Dates:   make([]string, len(t.Dates)),
		Columns: make(map[string][]*float64, len(t.Columns)),
	}
	for i, d := range t.Dates {
		ct.Dates[i] = util.FormatDate(d)
	}
	for k, col := range t.Columns {
		out := make([]*float64, len(col))
		for i := range col {
			if !math.IsNaN(col[i]) {
				v := col[i]
				out[i] = &v
			}
		}
		ct.Columns[k] = out
	}
	return json.Marshal(ct)
}

func decodeTable(raw []byte) (*domrepo.PriceTable, error) {
	var ct cachedTable
	if err := json.Unmarshal(raw, &ct); err != nil {
		return nil, fmt.Errorf("decode cached table: %w", err)
	}
	dates := make([]time.Time, len(ct.Dates))
	for i, s := range ct.Dates {
		d, err := util.ParseDate(s)
		if err != nil {
			return nil, err
		}
		dates[i] = d
	}
	t := domrepo.NewPriceTable(dates)
	for k, col := range ct.Columns {
		vals := make([]float64, len(col))
		for i, v := range col {
			if v == nil {
				vals[i] = math.NaN()
			} else {
				vals[i] = *v
			}
		}
		if err := t.SetColumn(k, vals); err != nil {
			return nil, err
		}
	}
	return t, nil
}

var _ domrepo.PriceProvider = (*CachedProvider)(nil)
