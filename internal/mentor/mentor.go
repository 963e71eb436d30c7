// Package mentor is the AI market mentor: chat, watchlist recommendations
// and a financial health score.
package mentor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finmentor/internal/apperr"
	"finmentor/internal/auth"
	"finmentor/internal/market"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// ContextMessages is how much of the session transcript goes with each
	// question.
	ContextMessages = 5

	Apology = "I apologize, but I'm having trouble responding right now. Please try again."
)

const chatSystem = `You are a knowledgeable Stock Market Mentor, an expert in financial markets and investing. Your role is to:
1. Explain complex financial concepts in simple terms
2. Provide practical investing advice and best practices
3. Help users understand market analysis
4. Guide users in developing their investment strategy

Keep responses concise (max 3-4 sentences) unless asked for detailed explanations.
Always maintain a supportive, educational tone.`

const recommendSystem = `You are a professional stock analyst. Provide a brief, actionable recommendation based on the given financial data. Focus on key metrics and current market position. Keep it under 100 words.`

const healthSystem = `You are a financial analyst expert. Analyze the given metrics and answer in this strict JSON format:
{
  "score": <number between 0-100>,
  "analysis": "<brief analysis in max 100 words>",
  "strengths": ["<strength1>", "<strength2>", "<strength3>"],
  "risks": ["<risk1>", "<risk2>", "<risk3>"]
}
Ensure the response is valid JSON with these exact keys.`

// Conversation is the transcript a chat reads and extends.
type Conversation interface {
	ChatHistory() []auth.ChatMessage
	AppendChat(msgs ...auth.ChatMessage)
}

type Service struct {
	llm      Completer
	timeout  time.Duration
	cache    market.Cache
	cacheTTL time.Duration
	log      *slog.Logger
}

type Options struct {
	Timeout  time.Duration
	Cache    market.Cache
	CacheTTL time.Duration
}

func NewService(llm Completer, opts Options, logger *slog.Logger) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Cache == nil {
		opts.Cache = market.NewMemoryCache()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{llm: llm, timeout: opts.Timeout, cache: opts.Cache, cacheTTL: opts.CacheTTL, log: logger}
}

func (s *Service) complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	text, err := s.llm.Complete(ctx, req)
	if err != nil {
		return "", apperr.External("mentor", err)
	}
	return text, nil
}

// Chat answers one message. On provider failure the apology is recorded and
// returned together with the error.
func (s *Service) Chat(ctx context.Context, conv Conversation, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", apperr.Invalid("message", "is required")
	}

	history := conv.ChatHistory()
	if len(history) > ContextMessages {
		history = history[len(history)-ContextMessages:]
	}
	msgs := append(history, auth.ChatMessage{Role: RoleUser, Content: message})

	reply, err := s.complete(ctx, Request{
		System:      chatSystem,
		Messages:    msgs,
		MaxTokens:   300,
		Temperature: 0.7,
	})
	if err != nil {
		s.log.Warn("mentor chat failed", "err", err)
		reply = Apology
	}
	conv.AppendChat(
		auth.ChatMessage{Role: RoleUser, Content: message},
		auth.ChatMessage{Role: RoleAssistant, Content: reply},
	)
	return reply, err
}

func quoteContext(q market.Quote) string {
	name := q.Name
	if name == "" {
		name = q.Symbol
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Stock: %s (%s)\n", name, q.Symbol)
	fmt.Fprintf(&b, "Current Price: %s %s\n", q.Price.StringFixed(2), q.Currency)
	fmt.Fprintf(&b, "Change: %.2f%%\n", q.ChangePercent)
	fmt.Fprintf(&b, "52 Week Range: %s - %s\n", q.FiftyTwoWeekLow.StringFixed(2), q.FiftyTwoWeekHigh.StringFixed(2))
	fmt.Fprintf(&b, "Volume: %d\n", q.Volume)
	return b.String()
}

func (s *Service) Recommend(ctx context.Context, q market.Quote) (string, error) {
	return s.complete(ctx, Request{
		System:      recommendSystem,
		Messages:    []auth.ChatMessage{{Role: RoleUser, Content: "Analyze this stock and provide a recommendation:\n" + quoteContext(q)}},
		MaxTokens:   200,
		Temperature: 0.4,
	})
}

type Health struct {
	Symbol    string   `json:"symbol"`
	Score     int      `json:"score"`
	Analysis  string   `json:"analysis"`
	Strengths []string `json:"strengths"`
	Risks     []string `json:"risks"`
	Fallback  bool     `json:"fallback,omitempty"`
}

func fallbackHealth(symbol string) Health {
	return Health{
		Symbol:    symbol,
		Score:     50,
		Analysis:  "Error processing financial health score.",
		Strengths: []string{"Data unavailable"},
		Risks:     []string{"Data unavailable"},
		Fallback:  true,
	}
}

// HealthScore is cached per symbol. An unparsable answer yields the neutral
// fallback, which is not cached.
func (s *Service) HealthScore(ctx context.Context, q market.Quote) (Health, error) {
	key := "health:" + q.Symbol
	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var h Health
		if json.Unmarshal(raw, &h) == nil {
			return h, nil
		}
	}

	text, err := s.complete(ctx, Request{
		System:      healthSystem,
		Messages:    []auth.ChatMessage{{Role: RoleUser, Content: "Analyze this company's financial health:\n" + quoteContext(q)}},
		MaxTokens:   500,
		Temperature: 0.2,
		JSON:        true,
	})
	if err != nil {
		return Health{}, err
	}

	h, ok := parseHealth(text)
	if !ok {
		s.log.Warn("mentor health score unparsable", "symbol", q.Symbol)
		return fallbackHealth(q.Symbol), nil
	}
	h.Symbol = q.Symbol
	if raw, err := json.Marshal(h); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
			s.log.Warn("health cache write failed", "symbol", q.Symbol, "err", err)
		}
	}
	return h, nil
}

func parseHealth(text string) (Health, bool) {
	body := stripFences(text)
	var h Health
	if err := json.Unmarshal([]byte(body), &h); err != nil {
		return Health{}, false
	}
	h.Score = min(100, max(0, h.Score))
	return h, true
}

func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

type Topic struct {
	Label  string `json:"label"`
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

var topicNames = []struct{ icon, name string }{
	{"📈", "Technical Analysis Basics"},
	{"💼", "Portfolio Diversification"},
	{"📊", "Understanding Financial Ratios"},
	{"🏢", "Fundamental Analysis"},
	{"📉", "Risk Management"},
	{"💰", "Value Investing Principles"},
}

func Topics() []Topic {
	out := make([]Topic, 0, len(topicNames))
	for _, t := range topicNames {
		out = append(out, Topic{
			Label:  t.icon + " " + t.name,
			Name:   t.name,
			Prompt: "Can you explain " + t.name + " in simple terms?",
		})
	}
	return out
}
