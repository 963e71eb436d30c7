// Package game runs the price-prediction learning game on top of the market
// gateway and the progress ledger.
package game

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finmentor/internal/apperr"
	"finmentor/internal/market"
	"finmentor/internal/progress"
)

var (
	ErrNotEnoughData = errors.New("not enough price history for a round")
	// ErrAlreadyPlayed is returned for a second guess on a round whose
	// answer the player has already seen.
	ErrAlreadyPlayed = errors.New("this round was already played, wait for the next trading day or pick another symbol")
)

const (
	roundPeriod   = "1mo"
	BasePoints    = 10
	StreakBonus   = 5
	WrongPenalty  = -5
	DirectionUp   = "up"
	DirectionDown = "down"
)

type PriceSource interface {
	PriceHistory(ctx context.Context, symbol, period string) ([]market.Bar, bool, error)
}

type Ledger interface {
	Update(ctx context.Context, in progress.UpdateInput) (progress.Outcome, error)
}

// Player carries the streak between rounds; a login session satisfies it.
// A round is identified by its symbol and the date of its hidden bar.
// ClaimRound reports false when that round was already claimed, and
// ReleaseRound undoes a claim whose guess was never recorded.
type Player interface {
	Streak() int
	SetStreak(n int)
	ClaimRound(symbol string, day time.Time) bool
	ReleaseRound(symbol string, day time.Time)
}

type Service struct {
	prices PriceSource
	ledger Ledger
	log    *slog.Logger
}

func NewService(prices PriceSource, ledger Ledger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{prices: prices, ledger: ledger, log: logger}
}

// Round is what the player sees before guessing: every bar except the last.
type Round struct {
	Symbol    string          `json:"symbol"`
	Bars      []market.Bar    `json:"bars"`
	LastClose decimal.Decimal `json:"last_close"`
	Streak    int             `json:"streak"`
}

type Result struct {
	Symbol        string           `json:"symbol"`
	Direction     string           `json:"direction"`
	Actual        string           `json:"actual"`
	Correct       bool             `json:"correct"`
	Points        int64            `json:"points"`
	Streak        int              `json:"streak"`
	PreviousClose decimal.Decimal  `json:"previous_close"`
	FinalClose    decimal.Decimal  `json:"final_close"`
	Outcome       progress.Outcome `json:"outcome"`
}

func (s *Service) history(ctx context.Context, symbol string) ([]market.Bar, error) {
	bars, found, err := s.prices.PriceHistory(ctx, symbol, roundPeriod)
	if err != nil {
		return nil, err
	}
	if !found || len(bars) < 2 {
		return nil, ErrNotEnoughData
	}
	return bars, nil
}

func (s *Service) Round(ctx context.Context, p Player, symbol string) (Round, error) {
	symbol, err := market.NormalizeSymbol(symbol)
	if err != nil {
		return Round{}, err
	}
	bars, err := s.history(ctx, symbol)
	if err != nil {
		return Round{}, err
	}
	shown := bars[:len(bars)-1]
	return Round{
		Symbol:    symbol,
		Bars:      shown,
		LastClose: shown[len(shown)-1].Close,
		Streak:    p.Streak(),
	}, nil
}

func ParseDirection(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case DirectionUp:
		return true, nil
	case DirectionDown:
		return false, nil
	}
	return false, apperr.Invalid("direction", `must be "up" or "down"`)
}

// Score returns the points and the new streak for one guess.
func Score(correct bool, streak int) (int64, int) {
	if !correct {
		return WrongPenalty, 0
	}
	streak++
	return int64(BasePoints + StreakBonus*(streak-1)), streak
}

func (s *Service) Predict(ctx context.Context, userID int64, p Player, symbol string, up bool) (Result, error) {
	symbol, err := market.NormalizeSymbol(symbol)
	if err != nil {
		return Result{}, err
	}
	bars, err := s.history(ctx, symbol)
	if err != nil {
		return Result{}, err
	}
	hidden := bars[len(bars)-1]
	if !p.ClaimRound(symbol, hidden.Date) {
		return Result{}, ErrAlreadyPlayed
	}
	prev, last := bars[len(bars)-2].Close, hidden.Close
	actualUp := last.GreaterThan(prev)
	correct := actualUp == up

	points, streak := Score(correct, p.Streak())
	out, err := s.ledger.Update(ctx, progress.UpdateInput{
		UserID:      userID,
		GameName:    progress.GamePricePrediction,
		PointsDelta: points,
		Correct:     correct,
		Streak:      streak,
	})
	if err != nil && out.Record.Total == 0 {
		p.ReleaseRound(symbol, hidden.Date)
		return Result{}, err
	}
	// A failed evaluation after a committed write still counts the guess.
	p.SetStreak(streak)

	res := Result{
		Symbol:        symbol,
		Direction:     direction(up),
		Actual:        direction(actualUp),
		Correct:       correct,
		Points:        points,
		Streak:        streak,
		PreviousClose: prev,
		FinalClose:    last,
		Outcome:       out,
	}
	s.log.Info("prediction scored",
		"user_id", userID,
		"symbol", symbol,
		"correct", correct,
		"points", points,
		"streak", streak,
	)
	return res, err
}

func direction(up bool) string {
	if up {
		return DirectionUp
	}
	return DirectionDown
}
