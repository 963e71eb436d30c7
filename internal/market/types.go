package market

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finmentor/internal/apperr"
)

type Bar struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

type Dividend struct {
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

type Quote struct {
	Symbol           string          `json:"symbol"`
	Name             string          `json:"name"`
	Currency         string          `json:"currency"`
	Exchange         string          `json:"exchange"`
	Price            decimal.Decimal `json:"price"`
	PreviousClose    decimal.Decimal `json:"previous_close"`
	ChangePercent    float64         `json:"change_percent"`
	Volume           int64           `json:"volume"`
	FiftyTwoWeekHigh decimal.Decimal `json:"fifty_two_week_high"`
	FiftyTwoWeekLow  decimal.Decimal `json:"fifty_two_week_low"`
}

// Chart is one provider response: quote metadata plus the daily bars and
// dividend events of the requested range.
type Chart struct {
	Quote     Quote      `json:"quote"`
	Bars      []Bar      `json:"bars"`
	Dividends []Dividend `json:"dividends"`
}

// Provider fetches raw market data. found=false is a valid empty result
// (unknown symbol, no rows); err is reserved for transport failures.
type Provider interface {
	Chart(ctx context.Context, symbol, period string) (Chart, bool, error)
}

var Periods = []string{"1mo", "3mo", "6mo", "1y", "2y", "5y"}

const DefaultPeriod = "1y"

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-^=]{1,10}$`)

func NormalizeSymbol(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if !symbolPattern.MatchString(s) {
		return "", apperr.Invalid("symbol", "must be 1-10 characters of A-Z, 0-9, '.', '-', '^' or '='")
	}
	return s, nil
}

func ValidatePeriod(p string) (string, error) {
	if p == "" {
		return DefaultPeriod, nil
	}
	for _, ok := range Periods {
		if p == ok {
			return p, nil
		}
	}
	return "", apperr.Invalid("period", "must be one of "+strings.Join(Periods, ", "))
}
