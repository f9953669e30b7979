// Package openaicompat talks to OpenAI-compatible chat completion APIs.
// It registers the "groq" and "openai" providers.
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"termsheet/internal/config"
	"termsheet/internal/gateway"
	"termsheet/internal/port"
)

const (
	// GroqBaseURL is Groq's OpenAI-compatible endpoint.
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	openAIBaseURL = "https://api.openai.com/v1"
)

func init() {
	gateway.RegisterProvider("groq", func(cfg *config.ProviderConfig) (port.NamedBackend, error) {
		return New(cfg, GroqBaseURL)
	})
	gateway.RegisterProvider("openai", func(cfg *config.ProviderConfig) (port.NamedBackend, error) {
		return New(cfg, openAIBaseURL)
	})
}

// Backend sends role-separated chat completions. No response_format is set:
// the JSON contract lives in the system message and malformed replies are left
// to recovery.
type Backend struct {
	provider string
	apiKey   string
	model    string
	client   *openai.Client
}

// New creates a backend. cfg.BaseURL overrides defaultBaseURL when set.
func New(cfg *config.ProviderConfig, defaultBaseURL string) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, gateway.NewMissingCredentialError(cfg.Provider)
	}
	model := cfg.Model
	if model == "" {
		model = config.DefaultModel(cfg.Provider)
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = defaultBaseURL
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout()}

	return &Backend{
		provider: cfg.Provider,
		apiKey:   cfg.APIKey,
		model:    model,
		client:   openai.NewClientWithConfig(oc),
	}, nil
}

func (b *Backend) Name() string  { return b.provider }
func (b *Backend) Model() string { return b.model }

func (b *Backend) Send(ctx context.Context, msgs port.Messages, temperature float64) (string, error) {
	if b.apiKey == "" {
		return "", gateway.NewMissingCredentialError(b.provider)
	}

	// A zero temperature is dropped by omitempty; send the smallest positive value instead.
	temp := float32(temperature)
	if temp == 0 {
		temp = math.SmallestNonzeroFloat32
	}

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.model,
		Temperature: temp,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: msgs.System},
			{Role: openai.ChatMessageRoleUser, Content: msgs.User},
		},
	})
	if err != nil {
		return "", b.classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", &gateway.TransientError{Provider: b.provider, Err: errors.New("empty choices in response")}
	}
	return resp.Choices[0].Message.Content, nil
}

func (b *Backend) classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return gateway.Classify(b.provider, apiErr.HTTPStatusCode, 0, fmt.Errorf("%s API error: %w", b.provider, err))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return gateway.Classify(b.provider, reqErr.HTTPStatusCode, 0, fmt.Errorf("%s request error: %w", b.provider, err))
	}
	return &gateway.TransientError{Provider: b.provider, Err: fmt.Errorf("calling %s API: %w", b.provider, err)}
}
