package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider calls any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewOpenAIProvider builds a chat completions client. An empty baseURL keeps
// the SDK's default endpoint; an empty apiKey sends no Authorization header.
func NewOpenAIProvider(apiKey, model, baseURL string, temperature float64, client *http.Client) *OpenAIProvider {
	if model == "" {
		model = defaultOpenAIModel
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	if client != nil {
		opts = append(opts, option.WithHTTPClient(client))
	}
	return &OpenAIProvider{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: temperature,
	}
}

func (o *OpenAIProvider) Name() string {
	return "openai"
}

func (o *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(o.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
