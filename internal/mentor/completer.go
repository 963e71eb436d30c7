package mentor

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"finmentor/internal/auth"
)

const DefaultModel = "gemini-2.0-flash"

type Request struct {
	System      string
	Messages    []auth.ChatMessage
	MaxTokens   int32
	Temperature float32
	// JSON asks the model for an application/json body.
	JSON bool
}

type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: req.MaxTokens,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("empty response from model")
	}
	return text, nil
}
