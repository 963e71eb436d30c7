// Package watchlist keeps a per-session list of symbols with one cached
// mentor recommendation each.
package watchlist

import (
	"context"
	"log/slog"

	"finmentor/internal/apperr"
	"finmentor/internal/market"
)

type Quotes interface {
	Quote(ctx context.Context, symbol string) (market.Quote, bool, error)
}

type Advisor interface {
	Recommend(ctx context.Context, q market.Quote) (string, error)
}

// Holder is the session side of the list.
type Holder interface {
	Watchlist() []string
	AddWatch(symbol string) bool
	RemoveWatch(symbol string) bool
	Recommendation(symbol string) (string, bool)
	SetRecommendation(symbol, text string)
}

type Item struct {
	Symbol         string        `json:"symbol"`
	Quote          *market.Quote `json:"quote,omitempty"`
	Recommendation string        `json:"recommendation,omitempty"`
	Error          string        `json:"error,omitempty"`
}

type Service struct {
	quotes  Quotes
	advisor Advisor
	log     *slog.Logger
}

// NewService accepts a nil advisor when the mentor is not configured; items
// then carry no recommendation.
func NewService(quotes Quotes, advisor Advisor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{quotes: quotes, advisor: advisor, log: logger}
}

func (s *Service) Add(ctx context.Context, h Holder, symbol string) (Item, error) {
	symbol, err := market.NormalizeSymbol(symbol)
	if err != nil {
		return Item{}, err
	}
	q, found, err := s.quotes.Quote(ctx, symbol)
	if err != nil {
		return Item{}, err
	}
	if !found {
		return Item{}, apperr.Invalid("symbol", "no market data for "+symbol)
	}

	item := Item{Symbol: symbol, Quote: &q}
	if !h.AddWatch(symbol) {
		item.Recommendation, _ = h.Recommendation(symbol)
		return item, nil
	}
	if s.advisor != nil {
		rec, err := s.advisor.Recommend(ctx, q)
		if err != nil {
			s.log.Warn("watchlist recommendation failed", "symbol", symbol, "err", err)
			item.Error = "Unable to generate recommendation"
		} else {
			h.SetRecommendation(symbol, rec)
			item.Recommendation = rec
		}
	}
	return item, nil
}

func (s *Service) Remove(h Holder, symbol string) (bool, error) {
	symbol, err := market.NormalizeSymbol(symbol)
	if err != nil {
		return false, err
	}
	return h.RemoveWatch(symbol), nil
}

// List never fails as a whole: a symbol whose quote cannot be fetched is
// reported inline.
func (s *Service) List(ctx context.Context, h Holder) []Item {
	symbols := h.Watchlist()
	out := make([]Item, 0, len(symbols))
	for _, sym := range symbols {
		item := Item{Symbol: sym}
		item.Recommendation, _ = h.Recommendation(sym)
		q, found, err := s.quotes.Quote(ctx, sym)
		switch {
		case err != nil:
			item.Error = err.Error()
		case !found:
			item.Error = "no market data"
		default:
			item.Quote = &q
		}
		out = append(out, item)
	}
	return out
}
