package market

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"finmentor/internal/apperr"
)

const (
	quotePeriod    = "5d"
	dividendPeriod = "5y"
)

// Gateway is the cached read side used by every caller. Absence is cached
// like data; provider failures are not.
type Gateway struct {
	provider Provider
	cache    Cache
	ttl      time.Duration
	log      *slog.Logger
}

func NewGateway(provider Provider, cache Cache, ttl time.Duration, logger *slog.Logger) *Gateway {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{provider: provider, cache: cache, ttl: ttl, log: logger}
}

type entry[T any] struct {
	Found bool `json:"found"`
	Data  T    `json:"data"`
}

func (g *Gateway) PriceHistory(ctx context.Context, symbol, period string) ([]Bar, bool, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, false, err
	}
	if period, err = ValidatePeriod(period); err != nil {
		return nil, false, err
	}
	return cached(ctx, g, "history:"+symbol+":"+period, func(ctx context.Context) ([]Bar, bool, error) {
		chart, found, err := g.provider.Chart(ctx, symbol, period)
		if err != nil || !found || len(chart.Bars) == 0 {
			return nil, false, err
		}
		return chart.Bars, true, nil
	})
}

func (g *Gateway) Dividends(ctx context.Context, symbol string) ([]Dividend, bool, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, false, err
	}
	return cached(ctx, g, "dividends:"+symbol, func(ctx context.Context) ([]Dividend, bool, error) {
		chart, found, err := g.provider.Chart(ctx, symbol, dividendPeriod)
		if err != nil || !found || len(chart.Dividends) == 0 {
			return nil, false, err
		}
		return chart.Dividends, true, nil
	})
}

func (g *Gateway) Quote(ctx context.Context, symbol string) (Quote, bool, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return Quote{}, false, err
	}
	return cached(ctx, g, "quote:"+symbol, func(ctx context.Context) (Quote, bool, error) {
		chart, found, err := g.provider.Chart(ctx, symbol, quotePeriod)
		if err != nil || !found {
			return Quote{}, false, err
		}
		if chart.Quote.Symbol == "" {
			chart.Quote.Symbol = symbol
		}
		return chart.Quote, true, nil
	})
}

func cached[T any](ctx context.Context, g *Gateway, key string, fetch func(context.Context) (T, bool, error)) (T, bool, error) {
	var zero T
	if raw, ok, err := g.cache.Get(ctx, key); err != nil {
		g.log.Warn("market cache read failed", "key", key, "err", err)
	} else if ok {
		var e entry[T]
		if err := json.Unmarshal(raw, &e); err == nil {
			return e.Data, e.Found, nil
		}
		g.log.Warn("market cache entry corrupt", "key", key)
	}

	data, found, err := fetch(ctx)
	if err != nil {
		g.log.Warn("market provider failed", "key", key, "err", err)
		return zero, false, apperr.External("market data", err)
	}
	raw, err := json.Marshal(entry[T]{Found: found, Data: data})
	if err == nil {
		err = g.cache.Set(ctx, key, raw, g.ttl)
	}
	if err != nil {
		g.log.Warn("market cache write failed", "key", key, "err", err)
	}
	return data, found, nil
}

// Warm fetches and caches the given symbols and periods, returning the
// number of failed lookups.
func (g *Gateway) Warm(ctx context.Context, symbols, periods []string) int {
	failed := 0
	for _, s := range symbols {
		if ctx.Err() != nil {
			return failed
		}
		if _, _, err := g.Quote(ctx, s); err != nil {
			failed++
		}
		for _, p := range periods {
			if _, _, err := g.PriceHistory(ctx, s, p); err != nil {
				failed++
			}
		}
		if _, _, err := g.Dividends(ctx, s); err != nil {
			failed++
		}
	}
	return failed
}
