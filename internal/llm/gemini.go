package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-3-flash-preview"

// GeminiProvider calls generateContent through the Gen AI SDK.
type GeminiProvider struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGeminiProvider builds a Gemini API client. An empty baseURL keeps the
// SDK's default endpoint.
func NewGeminiProvider(ctx context.Context, apiKey, model, baseURL string, temperature float64, client *http.Client) (*GeminiProvider, error) {
	if model == "" {
		model = defaultGeminiModel
	}
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: client,
	}
	if baseURL != "" {
		cc.HTTPOptions.BaseURL = strings.TrimRight(baseURL, "/") + "/"
	}
	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{
		client: c,
		model:  model,
		config: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(temperature)),
			TopP:            genai.Ptr(float32(0.95)),
			TopK:            genai.Ptr(float32(40)),
			MaxOutputTokens: 8192,
		},
	}, nil
}

func (g *GeminiProvider) Name() string {
	return "gemini"
}

func (g *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no candidates from gemini")
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String(), nil
}
