package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"finmentor/internal/auth"
	cl "finmentor/internal/cli"
	"finmentor/internal/market"
	"finmentor/internal/mentor"
	"finmentor/internal/progress"
	"finmentor/internal/watchlist"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)

	celebrationBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FFD700")).
			Padding(0, 2)
)

// readPassword is swapped in tests.
var readPassword = term.ReadPassword

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// promptPassword reads without echo on a terminal and falls back to a plain
// line read when stdin is piped.
func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := readPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		if pw := string(raw); pw != "" {
			return pw, nil
		}
		printWarn(label + " is required.")
	}
}

// formatMoney renders an amount in the quote's currency, falling back to
// USD when the code is unknown.
func formatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(strings.ToUpper(currency))
	if cur == nil {
		cur = money.GetCurrency(money.USD)
	}
	factor := decimal.New(1, int32(cur.Fraction))
	return money.New(amount.Mul(factor).Round(0).IntPart(), cur.Code).Display()
}

func colorizePercent(v float64) string {
	text := fmt.Sprintf("%+.2f%%", v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func colorizePoints(v int64) string {
	text := fmt.Sprintf("%+d", v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func renderMe(me cl.Me) {
	accent.Printf("\n== %s ==\n", me.Username)
	fmt.Printf("User ID:        %d\n", me.UserID)
	fmt.Printf("Current streak: %d\n", me.Streak)
	if me.Tutorial != nil {
		if me.Tutorial.Completed {
			fmt.Println("Tutorial:       complete")
		} else {
			fmt.Printf("Tutorial:       %d%% (run `fm tutorial`)\n", me.Tutorial.Percent)
		}
	}
}

func renderQuote(q market.Quote) {
	title := q.Symbol
	if q.Name != "" {
		title += " (" + q.Name + ")"
	}
	accent.Printf("\n== %s ==\n", title)
	fmt.Printf("Price:          %s  %s\n", formatMoney(q.Price, q.Currency), colorizePercent(q.ChangePercent))
	fmt.Printf("Previous close: %s\n", formatMoney(q.PreviousClose, q.Currency))
	if !q.FiftyTwoWeekHigh.IsZero() {
		fmt.Printf("52w range:      %s - %s\n", formatMoney(q.FiftyTwoWeekLow, q.Currency), formatMoney(q.FiftyTwoWeekHigh, q.Currency))
	}
	if q.Volume > 0 {
		fmt.Printf("Volume:         %d\n", q.Volume)
	}
	if q.Exchange != "" {
		fmt.Printf("Exchange:       %s\n", q.Exchange)
	}
}

const historyRows = 10

func renderHistory(h cl.HistoryResponse) {
	accent.Printf("\n== %s (%s, %d days) ==\n", h.Symbol, h.Period, len(h.Bars))
	fmt.Println(sparkline(closes(h.Bars), 60))
	fmt.Printf("%-12s %12s %12s %12s %12s %14s\n", "Date", "Open", "High", "Low", "Close", "Volume")
	start := max(0, len(h.Bars)-historyRows)
	for _, b := range h.Bars[start:] {
		fmt.Printf("%-12s %12s %12s %12s %12s %14d\n",
			b.Date.Format("2006-01-02"),
			b.Open.StringFixed(2), b.High.StringFixed(2), b.Low.StringFixed(2), b.Close.StringFixed(2),
			b.Volume,
		)
	}
	if start > 0 {
		printInfo(fmt.Sprintf("... %d earlier days, export all with --csv", start))
	}
}

func renderDividends(d cl.DividendsResponse) {
	accent.Printf("\n== %s DIVIDENDS ==\n", d.Symbol)
	total := decimal.Zero
	for _, div := range d.Dividends {
		fmt.Printf("%-12s %10s\n", div.Date.Format("2006-01-02"), div.Amount.StringFixed(4))
		total = total.Add(div.Amount)
	}
	fmt.Printf("%-12s %10s\n", "Total", total.StringFixed(4))
}

func closes(bars []market.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i], _ = b.Close.Float64()
	}
	return out
}

var sparkTicks = []rune("▁▂▃▄▅▆▇█")

// sparkline samples at most width values and scales them to block glyphs.
func sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	if len(values) > width {
		sampled := make([]float64, width)
		for i := range sampled {
			sampled[i] = values[i*len(values)/width]
		}
		sampled[width-1] = values[len(values)-1]
		values = sampled
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	var b strings.Builder
	for _, v := range values {
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparkTicks)-1))
		}
		b.WriteRune(sparkTicks[idx])
	}
	return b.String()
}

func renderResult(out cl.PredictResponse) {
	res := out.Result
	if res.Correct {
		printSuccess(fmt.Sprintf("Correct! %s went %s.", res.Symbol, res.Actual))
	} else {
		printError(fmt.Sprintf("Wrong. %s went %s.", res.Symbol, res.Actual))
	}
	fmt.Printf("Close:  %s -> %s\n", res.PreviousClose.StringFixed(2), res.FinalClose.StringFixed(2))
	fmt.Printf("Points: %s   Streak: %d   Total: %d\n", colorizePoints(res.Points), res.Streak, res.Outcome.Totals.Points)
	renderCelebrations(res.Outcome)
	if out.Warning != "" {
		printWarn(out.Warning)
	}
}

func renderCelebrations(o progress.Outcome) {
	if o.Milestone != nil {
		fmt.Println(celebrationBox.Render(fmt.Sprintf("🎯 Milestone Reached!\nCongratulations on reaching %d points!", o.Milestone.Reached)))
	}
	if len(o.NewBadges) > 0 {
		renderBadges(o.NewBadges)
	}
}

func renderBadges(badges []progress.Badge) {
	for _, b := range badges {
		fmt.Println(celebrationBox.Render(fmt.Sprintf("%s Achievement Unlocked: %s\n%s", b.Icon, b.Name, b.Description)))
	}
}

func renderProgress(p cl.ProgressResponse) {
	s := p.Summary
	accent.Println("\n== YOUR PROGRESS ==")
	fmt.Printf("Total points:   %d\n", s.Totals.Points)
	fmt.Printf("Predictions:    %d (%d correct)\n", s.Totals.Predictions, s.Totals.Correct)
	if s.Totals.Predictions > 0 {
		fmt.Printf("Accuracy:       %.1f%%\n", s.Accuracy*100)
	}
	fmt.Printf("Best streak:    %d   Current: %d\n", s.Totals.MaxStreak, p.Streak)

	if len(s.Series) > 1 {
		pts := make([]float64, len(s.Series))
		for i, sp := range s.Series {
			pts[i] = float64(sp.Points)
		}
		fmt.Println(sparkline(pts, 40))
	}

	accent.Println("\nAchievements")
	if len(s.Achievements) == 0 {
		printInfo("  none yet, keep playing!")
	}
	for _, a := range s.Achievements {
		fmt.Printf("  %s %-20s %s\n", a.Icon, a.Name, a.AchievedAt.Format("2006-01-02"))
	}
	if len(s.Locked) > 0 {
		accent.Println("\nLocked")
		for _, b := range s.Locked {
			neutral.Printf("  🔒 %-20s %s\n", b.Name, b.Description)
		}
	}
	if len(s.Recent) > 0 {
		accent.Println("\nRecent activity")
		for _, e := range s.Recent {
			mark := "✗"
			if e.Correct {
				mark = "✓"
			}
			fmt.Printf("  %s %s %s\n", e.CreatedAt.Format("01-02 15:04"), mark, colorizePoints(e.PointsDelta))
		}
	}
}

func renderTutorial(st auth.TutorialState) error {
	if st.Completed || st.Current == nil {
		printSuccess("Tutorial complete.")
		return nil
	}
	step := st.Current
	var md strings.Builder
	fmt.Fprintf(&md, "## %s\n\n%s\n\n", step.Title, step.Intro)
	for _, p := range step.Points {
		fmt.Fprintf(&md, "- %s\n", p)
	}
	if err := renderMarkdown(md.String()); err != nil {
		return err
	}
	printInfo(fmt.Sprintf("Progress %d%%. Run `fm tutorial next` to %s.", st.Percent, strings.ToLower(step.Next)))
	return nil
}

func renderHealth(h mentor.Health) error {
	score := success
	switch {
	case h.Score < 40:
		score = danger
	case h.Score < 70:
		score = warn
	}
	accent.Printf("\n== %s FINANCIAL HEALTH ==\n", h.Symbol)
	fmt.Printf("Score: %s / 100\n", score.Sprint(h.Score))
	if h.Fallback {
		printWarn("The mentor could not produce a score, showing a neutral placeholder.")
	}
	var md strings.Builder
	fmt.Fprintf(&md, "%s\n\n**Strengths**\n\n", h.Analysis)
	for _, s := range h.Strengths {
		fmt.Fprintf(&md, "- %s\n", s)
	}
	md.WriteString("\n**Risks**\n\n")
	for _, r := range h.Risks {
		fmt.Fprintf(&md, "- %s\n", r)
	}
	return renderMarkdown(md.String())
}

func renderMarkdown(md string) error {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func watchItems(items ...watchlist.Item) []watchlist.Item {
	return items
}

func renderWatchItems(items []watchlist.Item) {
	for _, it := range items {
		if it.Quote == nil {
			fmt.Printf("%-8s %s\n", it.Symbol, danger.Sprint(it.Error))
			continue
		}
		fmt.Printf("%-8s %14s  %s\n", it.Symbol, formatMoney(it.Quote.Price, it.Quote.Currency), colorizePercent(it.Quote.ChangePercent))
		if it.Recommendation != "" {
			neutral.Printf("         %s\n", it.Recommendation)
		} else if it.Error != "" {
			warn.Printf("         %s\n", it.Error)
		}
	}
}
