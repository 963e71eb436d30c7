package mentor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finmentor/internal/apperr"
	"finmentor/internal/auth"
	"finmentor/internal/market"
)

type fakeLLM struct {
	replies []string
	err     error
	got     []Request
}

func (f *fakeLLM) Complete(ctx context.Context, req Request) (string, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return "", f.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("no deadline on provider call")
	}
	if len(f.replies) == 0 {
		return "ok", nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func sampleQuote() market.Quote {
	return market.Quote{
		Symbol:           "AAPL",
		Name:             "Apple Inc.",
		Currency:         "USD",
		Price:            decimal.RequireFromString("189.5"),
		FiftyTwoWeekHigh: decimal.RequireFromString("199.62"),
		FiftyTwoWeekLow:  decimal.RequireFromString("164.08"),
	}
}

func TestChatSendsRecentHistory(t *testing.T) {
	llm := &fakeLLM{replies: []string{"Diversify."}}
	svc := NewService(llm, Options{}, nil)
	sess := &auth.Session{}
	for i := range 8 {
		sess.AppendChat(auth.ChatMessage{Role: RoleUser, Content: fmt.Sprint("q", i)})
	}

	reply, err := svc.Chat(context.Background(), sess, "  What is an ETF?  ")
	require.NoError(t, err)
	assert.Equal(t, "Diversify.", reply)

	require.Len(t, llm.got, 1)
	msgs := llm.got[0].Messages
	require.Len(t, msgs, ContextMessages+1)
	assert.Equal(t, "q3", msgs[0].Content)
	assert.Equal(t, "What is an ETF?", msgs[len(msgs)-1].Content)
	assert.Contains(t, llm.got[0].System, "Stock Market Mentor")

	h := sess.ChatHistory()
	require.Len(t, h, 10)
	assert.Equal(t, RoleAssistant, h[9].Role)
	assert.Equal(t, "Diversify.", h[9].Content)
}

func TestChatFailureApologizes(t *testing.T) {
	svc := NewService(&fakeLLM{err: errors.New("quota exceeded")}, Options{}, nil)
	sess := &auth.Session{}

	reply, err := svc.Chat(context.Background(), sess, "hello")
	var ee *apperr.ExternalError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, Apology, reply)
	assert.Len(t, sess.ChatHistory(), 2)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	llm := &fakeLLM{}
	svc := NewService(llm, Options{}, nil)
	_, err := svc.Chat(context.Background(), &auth.Session{}, "   ")
	var ve *apperr.ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Empty(t, llm.got)
}

func TestRecommendIncludesQuote(t *testing.T) {
	llm := &fakeLLM{replies: []string{"Hold."}}
	svc := NewService(llm, Options{}, nil)
	rec, err := svc.Recommend(context.Background(), sampleQuote())
	require.NoError(t, err)
	assert.Equal(t, "Hold.", rec)
	prompt := llm.got[0].Messages[0].Content
	assert.Contains(t, prompt, "Apple Inc. (AAPL)")
	assert.Contains(t, prompt, "164.08 - 199.62")
}

func TestHealthScoreParsesFencedJSON(t *testing.T) {
	llm := &fakeLLM{replies: []string{"```json\n{\"score\": 82, \"analysis\": \"Solid.\", \"strengths\": [\"cash\"], \"risks\": [\"valuation\"]}\n```"}}
	svc := NewService(llm, Options{}, nil)

	h, err := svc.HealthScore(context.Background(), sampleQuote())
	require.NoError(t, err)
	assert.Equal(t, 82, h.Score)
	assert.Equal(t, "AAPL", h.Symbol)
	assert.False(t, h.Fallback)
	assert.True(t, llm.got[0].JSON)

	again, err := svc.HealthScore(context.Background(), sampleQuote())
	require.NoError(t, err)
	assert.Equal(t, h, again)
	assert.Len(t, llm.got, 1, "second call served from cache")
}

func TestHealthScoreFallback(t *testing.T) {
	llm := &fakeLLM{replies: []string{"I think it's fine", `{"score": 140}`}}
	svc := NewService(llm, Options{CacheTTL: time.Minute}, nil)

	h, err := svc.HealthScore(context.Background(), sampleQuote())
	require.NoError(t, err)
	assert.True(t, h.Fallback)
	assert.Equal(t, 50, h.Score)

	h, err = svc.HealthScore(context.Background(), sampleQuote())
	require.NoError(t, err)
	assert.Equal(t, 100, h.Score, "scores are clamped")
	assert.Len(t, llm.got, 2, "fallbacks are not cached")
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripFences(`  {"a":1} `))
}

func TestTopics(t *testing.T) {
	topics := Topics()
	require.Len(t, topics, 6)
	assert.Equal(t, "Can you explain Risk Management in simple terms?", topics[4].Prompt)
	assert.Equal(t, "📈 Technical Analysis Basics", topics[0].Label)
}
