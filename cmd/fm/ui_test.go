package main

import (
	"context"
	"net/http"
	"testing"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cl "finmentor/internal/cli"
	"finmentor/internal/game"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$1,234.50", formatMoney(decimal.RequireFromString("1234.5"), "USD"))
	assert.Equal(t, "$0.13", formatMoney(decimal.RequireFromString("0.125"), "usd"))
	assert.Equal(t, "$10.00", formatMoney(decimal.NewFromInt(10), "???"))
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, "", sparkline(nil, 10))
	assert.Equal(t, "▁▁▁", sparkline([]float64{5, 5, 5}, 10))
	assert.Equal(t, "▁█", sparkline([]float64{1, 2}, 10))

	long := make([]float64, 200)
	for i := range long {
		long[i] = float64(i)
	}
	line := sparkline(long, 40)
	assert.Equal(t, 40, utf8.RuneCountInString(line))
	r, _ := utf8.DecodeLastRuneInString(line)
	assert.Equal(t, '█', r)
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestPlayModelFlow(t *testing.T) {
	m := newPlayModel(context.Background(), cl.NewClient("http://unused"), "tok", " aapl ")
	assert.Equal(t, "AAPL", m.symbol)
	assert.Equal(t, stateLoading, m.state)

	next, _ := m.Update(roundMsg{round: game.Round{Symbol: "AAPL", LastClose: decimal.NewFromInt(101)}})
	m = next.(playModel)
	require.Equal(t, stateGuessing, m.state)
	assert.Contains(t, m.View(), "higher or lower")

	next, cmd := m.Update(key("u"))
	m = next.(playModel)
	assert.Equal(t, stateScoring, m.state)
	assert.NotNil(t, cmd)

	next, _ = m.Update(resultMsg{out: cl.PredictResponse{Result: game.Result{Correct: true, Points: 10, Streak: 1}}})
	m = next.(playModel)
	assert.Equal(t, stateResult, m.state)
	assert.Equal(t, 1, m.played)
	assert.Equal(t, int64(10), m.points)
	assert.Contains(t, m.View(), "Correct!")

	next, cmd = m.Update(key("n"))
	assert.Equal(t, stateResult, next.(playModel).state)
	assert.Nil(t, cmd)
}

func TestPlayModelRoundAlreadyPlayed(t *testing.T) {
	m := newPlayModel(context.Background(), cl.NewClient("http://unused"), "tok", "AAPL")
	next, _ := m.Update(roundMsg{round: game.Round{Symbol: "AAPL"}})
	next, _ = next.(playModel).Update(key("u"))

	next, cmd := next.(playModel).Update(resultMsg{err: &cl.APIError{Status: http.StatusConflict, Message: "this round was already played"}})
	m = next.(playModel)
	assert.Nil(t, cmd)
	assert.NoError(t, m.err)
	assert.Equal(t, statePlayed, m.state)
	assert.Equal(t, 0, m.played)
	assert.Contains(t, m.View(), "already played")
}

func TestPlayModelIgnoresGuessWhileLoading(t *testing.T) {
	m := newPlayModel(context.Background(), cl.NewClient("http://unused"), "tok", "AAPL")
	next, cmd := m.Update(key("u"))
	assert.Equal(t, stateLoading, next.(playModel).state)
	assert.Nil(t, cmd)
}

func TestPlayModelQuits(t *testing.T) {
	m := newPlayModel(context.Background(), cl.NewClient("http://unused"), "tok", "AAPL")
	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
