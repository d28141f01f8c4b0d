package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	domrepo "RegimeLab/internal/domain/repository"
	"RegimeLab/internal/service/ratelimit"
	xhttp "RegimeLab/pkg/http"
	applogger "RegimeLab/pkg/logger"
	"RegimeLab/pkg/util"
)

const DefaultBaseURL = "https://query1.finance.yahoo.com"

var ErrNoData = errors.New("marketdata: no prices returned")

// YahooClient fetches daily adjusted closes from the Yahoo Finance chart
// endpoint, one ticker per request, sequentially.
type YahooClient struct {
	baseURL string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	burst   float64
	rate    float64
	l       *applogger.Logger
}

// YahooOption configures YahooClient.
type YahooOption func(*YahooClient)

func WithBaseURL(u string) YahooOption {
	return func(c *YahooClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

func WithHTTPClient(h *xhttp.Client) YahooOption {
	return func(c *YahooClient) { c.http = h }
}

// WithRateLimit caps requests at rate per second with the given burst.
func WithRateLimit(l *ratelimit.Limiter, burst, rate float64) YahooOption {
	return func(c *YahooClient) {
		c.limiter = l
		c.burst = burst
		c.rate = rate
	}
}

func WithLogger(l *applogger.Logger) YahooOption {
	return func(c *YahooClient) {
		if l != nil {
			c.l = l
		}
	}
}

func NewYahooClient(opts ...YahooOption) *YahooClient {
	c := &YahooClient{
		baseURL: DefaultBaseURL,
		http:    xhttp.NewClient(xhttp.WithTimeout(15 * time.Second)),
		l:       applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int    `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// AdjustedClose returns one column per ticker that could be fetched over the
// calendar days [from, to]. Tickers that fail are logged and left out; the
// call fails only when none succeed.
func (c *YahooClient) AdjustedClose(ctx context.Context, tickers []string, from, to time.Time) (*domrepo.PriceTable, error) {
	series := make(map[string]map[time.Time]float64, len(tickers))
	var lastErr error
	for _, t := range tickers {
		s, err := c.fetch(ctx, t, from, to)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.l.Warn("ticker fetch failed", applogger.String("ticker", t), applogger.Error(err))
			continue
		}
		series[t] = s
	}
	if len(series) == 0 {
		if lastErr == nil {
			lastErr = ErrNoData
		}
		return nil, fmt.Errorf("fetch %d tickers: %w", len(tickers), lastErr)
	}
	c.l.Info("prices fetched",
		applogger.Int("requested", len(tickers)),
		applogger.Int("fetched", len(series)),
		applogger.String("from", util.FormatDate(from)),
		applogger.String("to", util.FormatDate(to)),
	)
	return domrepo.MergeSeries(series), nil
}

func (c *YahooClient) fetch(ctx context.Context, ticker string, from, to time.Time) (map[time.Time]float64, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, "yahoo", c.burst, c.rate); err != nil {
			return nil, err
		}
	}

	first, last := util.Day(from), util.Day(to)
	var resp chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/v8/finance/chart/" + url.PathEscape(ticker),
		QueryParams: map[string][]string{
			"period1":  {strconv.FormatInt(first.Unix(), 10)},
			"period2":  {strconv.FormatInt(last.AddDate(0, 0, 1).Unix(), 10)},
			"interval": {"1d"},
			"events":   {"div,split"},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", ticker, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("chart %s: %s: %s", ticker, resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("chart %s: %w", ticker, ErrNoData)
	}
	return parseSeries(resp.Chart.Result[0], first, last)
}

// parseSeries keys each adjusted close by its exchange-local calendar day.
// Null prints are skipped; days outside [first, last] are dropped.
func parseSeries(r chartResult, first, last time.Time) (map[time.Time]float64, error) {
	var closes []*float64
	if len(r.Indicators.AdjClose) > 0 {
		closes = r.Indicators.AdjClose[0].AdjClose
	} else if len(r.Indicators.Quote) > 0 {
		closes = r.Indicators.Quote[0].Close
	}
	if len(closes) != len(r.Timestamp) {
		return nil, fmt.Errorf("chart %s: %d timestamps for %d closes", r.Meta.Symbol, len(r.Timestamp), len(closes))
	}

	zone := time.FixedZone("exchange", r.Meta.GMTOffset)
	out := make(map[time.Time]float64, len(closes))
	for i, ts := range r.Timestamp {
		p := closes[i]
		if p == nil || math.IsNaN(*p) {
			continue
		}
		d := util.Day(time.Unix(ts, 0).In(zone))
		if d.Before(first) || d.After(last) {
			continue
		}
		out[d] = *p
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("chart %s: %w", r.Meta.Symbol, ErrNoData)
	}
	return out, nil
}

var _ domrepo.PriceProvider = (*YahooClient)(nil)
