package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	cl "finmentor/internal/cli"
	"finmentor/internal/game"
)

type playState int

const (
	stateLoading playState = iota
	stateGuessing
	stateScoring
	stateResult
	statePlayed
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00BFFF"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	goodStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#22C55E"))
	badStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
)

type roundMsg struct {
	round game.Round
	err   error
}

type resultMsg struct {
	out cl.PredictResponse
	err error
}

type playModel struct {
	ctx    context.Context
	client *cl.Client
	token  string
	symbol string

	state   playState
	spinner spinner.Model
	round   game.Round
	result  cl.PredictResponse
	err     error
	notice  string
	played  int
	points  int64
}

func newPlayModel(ctx context.Context, client *cl.Client, token, symbol string) playModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return playModel{
		ctx:     ctx,
		client:  client,
		token:   token,
		symbol:  strings.ToUpper(strings.TrimSpace(symbol)),
		state:   stateLoading,
		spinner: sp,
	}
}

func (m playModel) fetchRound() tea.Msg {
	ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
	defer cancel()
	r, err := m.client.PredictionRound(ctx, m.token, m.symbol)
	return roundMsg{round: r, err: err}
}

func (m playModel) predict(direction string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
		defer cancel()
		out, err := m.client.Predict(ctx, m.token, m.symbol, direction)
		return resultMsg{out: out, err: err}
	}
}

func (m playModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchRound)
}

func (m playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
		switch m.state {
		case stateGuessing:
			switch msg.String() {
			case "u", "up", "k":
				m.state = stateScoring
				return m, tea.Batch(m.spinner.Tick, m.predict(game.DirectionUp))
			case "d", "down", "j":
				m.state = stateScoring
				return m, tea.Batch(m.spinner.Tick, m.predict(game.DirectionDown))
			}
		}
		return m, nil

	case roundMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.round = msg.round
		m.state = stateGuessing
		return m, nil

	case resultMsg:
		var apiErr *cl.APIError
		if errors.As(msg.err, &apiErr) && apiErr.Status == http.StatusConflict {
			m.notice = apiErr.Message
			m.state = statePlayed
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.result = msg.out
		m.played++
		m.points += msg.out.Result.Points
		m.state = stateResult
		return m, nil

	case spinner.TickMsg:
		if m.state != stateLoading && m.state != stateScoring {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m playModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("📈 Price Prediction: "+m.symbol) + "\n\n")

	switch m.state {
	case stateLoading:
		b.WriteString(m.spinner.View() + " loading price history...\n")
	case stateScoring:
		b.WriteString(m.spinner.View() + " checking the last trading day...\n")
	case stateGuessing:
		bars := m.round.Bars
		b.WriteString(sparkline(closes(bars), 50) + "\n")
		b.WriteString(fmt.Sprintf("%d days shown, last close %s, streak %d\n\n", len(bars), m.round.LastClose.StringFixed(2), m.round.Streak))
		b.WriteString("Will the next close be higher or lower?\n")
		b.WriteString(hintStyle.Render("[u] up   [d] down   [q] quit") + "\n")
	case stateResult:
		res := m.result.Result
		if res.Correct {
			b.WriteString(goodStyle.Render(fmt.Sprintf("Correct! %+d points", res.Points)) + "\n")
		} else {
			b.WriteString(badStyle.Render(fmt.Sprintf("Wrong, the price went %s. %+d points", res.Actual, res.Points)) + "\n")
		}
		b.WriteString(fmt.Sprintf("%s -> %s, streak %d, total %d\n", res.PreviousClose.StringFixed(2), res.FinalClose.StringFixed(2), res.Streak, res.Outcome.Totals.Points))
		if ms := res.Outcome.Milestone; ms != nil {
			b.WriteString(celebrationBox.Render(fmt.Sprintf("🎯 Milestone Reached! %d points", ms.Reached)) + "\n")
		}
		for _, badge := range res.Outcome.NewBadges {
			b.WriteString(celebrationBox.Render(badge.Icon+" "+badge.Name+"\n"+badge.Description) + "\n")
		}
		if m.result.Warning != "" {
			b.WriteString(hintStyle.Render(m.result.Warning) + "\n")
		}
		b.WriteString("\n" + hintStyle.Render("A new "+m.symbol+" round opens after the next close. [q] quit") + "\n")
	case statePlayed:
		b.WriteString(badStyle.Render(m.notice) + "\n")
		b.WriteString("\n" + hintStyle.Render("[q] quit") + "\n")
	}
	return b.String()
}

func runPlay(ctx context.Context, client *cl.Client, sess cl.Session, symbol string) error {
	final, err := tea.NewProgram(newPlayModel(ctx, client, sess.Token, symbol), tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	m, ok := final.(playModel)
	if !ok {
		return nil
	}
	if m.err != nil {
		return sessionExpired(m.err)
	}
	if m.played > 0 {
		printInfo(fmt.Sprintf("Played %d rounds for %s points.", m.played, colorizePoints(m.points)))
	}
	return nil
}
