package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const userAgent = "Mozilla/5.0 (compatible; finmentor/1.0)"

// Yahoo reads the public v8 chart endpoint.
type Yahoo struct {
	baseURL    string
	httpClient *http.Client
}

func NewYahoo(baseURL string, timeout time.Duration) *Yahoo {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Yahoo{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chartEnvelope struct {
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
		Symbol             string  `json:"symbol"`
		Currency           string  `json:"currency"`
		ExchangeName       string  `json:"exchangeName"`
		LongName           string  `json:"longName"`
		ShortName          string  `json:"shortName"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		ChartPreviousClose float64 `json:"chartPreviousClose"`
		PreviousClose      float64 `json:"previousClose"`
		RegularMarketVol   int64   `json:"regularMarketVolume"`
		FiftyTwoWeekHigh   float64 `json:"fiftyTwoWeekHigh"`
		FiftyTwoWeekLow    float64 `json:"fiftyTwoWeekLow"`
	} `json:"meta"`
	Timestamp []int64 `json:"timestamp"`
	Events    struct {
		Dividends map[string]struct {
			Amount float64 `json:"amount"`
			Date   int64   `json:"date"`
		} `json:"dividends"`
	} `json:"events"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

func (y *Yahoo) Chart(ctx context.Context, symbol, period string) (Chart, bool, error) {
	q := url.Values{}
	q.Set("range", period)
	q.Set("interval", "1d")
	q.Set("events", "div")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Chart{}, false, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return Chart{}, false, fmt.Errorf("chart %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Chart{}, false, nil
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Chart{}, false, fmt.Errorf("chart %s: status %d: %s", symbol, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var env chartEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return Chart{}, false, fmt.Errorf("decode chart %s: %w", symbol, err)
	}
	if env.Chart.Error != nil && env.Chart.Error.Code != "" {
		if env.Chart.Error.Code == "Not Found" {
			return Chart{}, false, nil
		}
		return Chart{}, false, fmt.Errorf("chart %s: %s: %s", symbol, env.Chart.Error.Code, env.Chart.Error.Description)
	}
	if len(env.Chart.Result) == 0 {
		return Chart{}, false, nil
	}
	chart := convertChart(env.Chart.Result[0])
	if len(chart.Bars) == 0 && chart.Quote.Price.IsZero() {
		return Chart{}, false, nil
	}
	return chart, true, nil
}

func convertChart(r chartResult) Chart {
	var c Chart
	m := r.Meta
	name := m.LongName
	if name == "" {
		name = m.ShortName
	}
	c.Quote = Quote{
		Symbol:           m.Symbol,
		Name:             name,
		Currency:         m.Currency,
		Exchange:         m.ExchangeName,
		Price:            price(m.RegularMarketPrice),
		Volume:           m.RegularMarketVol,
		FiftyTwoWeekHigh: price(m.FiftyTwoWeekHigh),
		FiftyTwoWeekLow:  price(m.FiftyTwoWeekLow),
	}

	if len(r.Indicators.Quote) > 0 {
		ind := r.Indicators.Quote[0]
		for i, ts := range r.Timestamp {
			cl := at(ind.Close, i)
			if cl == nil {
				continue
			}
			bar := Bar{
				Date:  dayOf(ts),
				Open:  priceOr(at(ind.Open, i), *cl),
				High:  priceOr(at(ind.High, i), *cl),
				Low:   priceOr(at(ind.Low, i), *cl),
				Close: price(*cl),
			}
			if i < len(ind.Volume) && ind.Volume[i] != nil {
				bar.Volume = *ind.Volume[i]
			}
			c.Bars = append(c.Bars, bar)
		}
	}

	// chartPreviousClose is the close before the whole range, so the bar
	// before the last one is preferred when meta lacks previousClose.
	n := len(c.Bars)
	switch {
	case m.PreviousClose != 0:
		c.Quote.PreviousClose = price(m.PreviousClose)
	case n >= 2:
		c.Quote.PreviousClose = c.Bars[n-2].Close
	default:
		c.Quote.PreviousClose = price(m.ChartPreviousClose)
	}
	if c.Quote.Price.IsZero() && n > 0 {
		c.Quote.Price = c.Bars[n-1].Close
	}
	c.Quote.ChangePercent = changePercent(c.Quote.Price, c.Quote.PreviousClose)

	for _, d := range r.Events.Dividends {
		c.Dividends = append(c.Dividends, Dividend{Date: dayOf(d.Date), Amount: price(d.Amount)})
	}
	sortDividends(c.Dividends)
	return c
}

func at(xs []*float64, i int) *float64 {
	if i < len(xs) {
		return xs[i]
	}
	return nil
}

func price(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(4)
}

func priceOr(v *float64, fallback float64) decimal.Decimal {
	if v == nil {
		return price(fallback)
	}
	return price(*v)
}

func dayOf(unix int64) time.Time {
	t := time.Unix(unix, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func changePercent(now, prev decimal.Decimal) float64 {
	if prev.IsZero() {
		return 0
	}
	pct, _ := now.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return pct
}

func sortDividends(ds []Dividend) {
	sort.Slice(ds, func(i, j int) bool { return ds[i].Date.Before(ds[j].Date) })
}
