package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finmentor/internal/auth"
	"finmentor/internal/game"
	"finmentor/internal/market"
	"finmentor/internal/mentor"
	"finmentor/internal/progress"
	"finmentor/internal/watchlist"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// APIError is a non-2xx answer. Message is the server's "error" field when
// the body carried one.
type APIError struct {
	Status  int
	Message string
	Body    map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

type LoginResponse struct {
	Token string    `json:"token"`
	User  auth.User `json:"user"`
}

type Me struct {
	UserID   int64               `json:"user_id"`
	Username string              `json:"username"`
	Streak   int                 `json:"streak"`
	Tutorial *auth.TutorialState `json:"tutorial,omitempty"`
}

type QuoteResponse struct {
	Found bool         `json:"found"`
	Quote market.Quote `json:"quote"`
}

type HistoryResponse struct {
	Symbol string       `json:"symbol"`
	Period string       `json:"period"`
	Found  bool         `json:"found"`
	Bars   []market.Bar `json:"bars"`
}

type DividendsResponse struct {
	Symbol    string            `json:"symbol"`
	Found     bool              `json:"found"`
	Dividends []market.Dividend `json:"dividends"`
}

type PredictResponse struct {
	Result  game.Result `json:"result"`
	Warning string      `json:"warning,omitempty"`
}

type ProgressResponse struct {
	Summary progress.Summary `json:"summary"`
	Streak  int              `json:"streak"`
}

type ChatResponse struct {
	Reply   string             `json:"reply"`
	History []auth.ChatMessage `json:"history"`
}

func (c *Client) Register(ctx context.Context, in auth.RegisterInput) (auth.User, error) {
	var out struct {
		User auth.User `json:"user"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/register", "", in, &out)
	return out.User, err
}

func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	var out LoginResponse
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"username": username,
		"password": password,
	}, &out)
	return out, err
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/auth/logout", token, nil, nil)
}

func (c *Client) Me(ctx context.Context, token string) (Me, error) {
	var out Me
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/me", token, nil, &out)
	return out, err
}

func (c *Client) Quote(ctx context.Context, symbol string) (QuoteResponse, error) {
	var out QuoteResponse
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/market/"+url.PathEscape(symbol)+"/quote", "", nil, &out)
	return out, err
}

func (c *Client) History(ctx context.Context, symbol, period string) (HistoryResponse, error) {
	var out HistoryResponse
	err := c.jsonRequest(ctx, http.MethodGet, historyPath(symbol, period, false), "", nil, &out)
	return out, err
}

// HistoryCSV streams the CSV export of the price history into w.
func (c *Client) HistoryCSV(ctx context.Context, symbol, period string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+historyPath(symbol, period, true), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/csv")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func historyPath(symbol, period string, csv bool) string {
	q := url.Values{}
	if period != "" {
		q.Set("period", period)
	}
	if csv {
		q.Set("format", "csv")
	}
	path := "/v1/market/" + url.PathEscape(symbol) + "/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return path
}

func (c *Client) Dividends(ctx context.Context, symbol string) (DividendsResponse, error) {
	var out DividendsResponse
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/market/"+url.PathEscape(symbol)+"/dividends", "", nil, &out)
	return out, err
}

func (c *Client) PredictionRound(ctx context.Context, token, symbol string) (game.Round, error) {
	var out game.Round
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/games/prediction/"+url.PathEscape(symbol), token, nil, &out)
	return out, err
}

func (c *Client) Predict(ctx context.Context, token, symbol, direction string) (PredictResponse, error) {
	var out PredictResponse
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games/prediction", token, map[string]any{
		"symbol":    symbol,
		"direction": direction,
	}, &out)
	return out, err
}

func (c *Client) Progress(ctx context.Context, token string) (ProgressResponse, error) {
	var out ProgressResponse
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/progress", token, nil, &out)
	return out, err
}

func (c *Client) Evaluate(ctx context.Context, token string) ([]progress.Badge, error) {
	var out struct {
		NewBadges []progress.Badge `json:"new_badges"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/progress/evaluate", token, nil, &out)
	return out.NewBadges, err
}

func (c *Client) Tutorial(ctx context.Context, token string) (auth.TutorialState, error) {
	var out auth.TutorialState
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/tutorial", token, nil, &out)
	return out, err
}

func (c *Client) AdvanceTutorial(ctx context.Context, token string) (auth.TutorialState, error) {
	var out auth.TutorialState
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/tutorial/advance", token, nil, &out)
	return out, err
}

func (c *Client) Topics(ctx context.Context, token string) ([]mentor.Topic, error) {
	var out struct {
		Topics []mentor.Topic `json:"topics"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/mentor/topics", token, nil, &out)
	return out.Topics, err
}

// Chat returns the mentor's reply. When the mentor is down the server still
// answers with an apology; it is returned along with the error.
func (c *Client) Chat(ctx context.Context, token, message string) (ChatResponse, error) {
	var out ChatResponse
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/mentor/chat", token, map[string]any{"message": message}, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if reply, ok := apiErr.Body["reply"].(string); ok {
			out.Reply = reply
		}
	}
	return out, err
}

func (c *Client) ResetChat(ctx context.Context, token string) error {
	return c.jsonRequest(ctx, http.MethodDelete, "/v1/mentor/chat", token, nil, nil)
}

func (c *Client) HealthScore(ctx context.Context, token, symbol string) (mentor.Health, error) {
	var out mentor.Health
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/market/"+url.PathEscape(symbol)+"/health", token, nil, &out)
	return out, err
}

func (c *Client) Watchlist(ctx context.Context, token string) ([]watchlist.Item, error) {
	var out struct {
		Items []watchlist.Item `json:"items"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/watchlist", token, nil, &out)
	return out.Items, err
}

func (c *Client) Watch(ctx context.Context, token, symbol string) (watchlist.Item, error) {
	var out struct {
		Item watchlist.Item `json:"item"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/watchlist", token, map[string]any{"symbol": symbol}, &out)
	return out.Item, err
}

func (c *Client) Unwatch(ctx context.Context, token, symbol string) (bool, error) {
	var out struct {
		Removed bool `json:"removed"`
	}
	err := c.jsonRequest(ctx, http.MethodDelete, "/v1/watchlist/"+url.PathEscape(symbol), token, nil, &out)
	return out.Removed, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path, token string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	e := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	var body map[string]any
	if json.Unmarshal(raw, &body) == nil {
		e.Body = body
		if msg, ok := body["error"].(string); ok {
			e.Message = msg
		}
	}
	return e
}
