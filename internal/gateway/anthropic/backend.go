// Package anthropic sends extraction requests to the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"termsheet/internal/config"
	"termsheet/internal/gateway"
	"termsheet/internal/port"
)

const maxTokens = 8192

func init() {
	gateway.RegisterProvider("anthropic", func(cfg *config.ProviderConfig) (port.NamedBackend, error) {
		return New(cfg)
	})
}

// Backend sends the system message as a system block and the user message as one turn.
type Backend struct {
	apiKey string
	model  string
	client sdk.Client
}

// New creates an Anthropic backend. SDK retries are disabled; the gateway retries.
func New(cfg *config.ProviderConfig) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, gateway.NewMissingCredentialError("anthropic")
	}
	model := cfg.Model
	if model == "" {
		model = config.DefaultModel("anthropic")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout()}),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Backend{
		apiKey: cfg.APIKey,
		model:  model,
		client: sdk.NewClient(opts...),
	}, nil
}

func (b *Backend) Name() string  { return "anthropic" }
func (b *Backend) Model() string { return b.model }

func (b *Backend) Send(ctx context.Context, msgs port.Messages, temperature float64) (string, error) {
	if b.apiKey == "" {
		return "", gateway.NewMissingCredentialError("anthropic")
	}

	msg, err := b.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(b.model),
		MaxTokens: maxTokens,
		System:    []sdk.TextBlockParam{{Text: msgs.System}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(msgs.User)),
		},
		Temperature: sdk.Float(temperature),
	})
	if err != nil {
		return "", classify(ctx, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &gateway.TransientError{Provider: "anthropic", Err: errors.New("no text content in response")}
	}
	return sb.String(), nil
}

func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	wrapped := fmt.Errorf("calling anthropic API: %w", err)

	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		retryAfter := 0
		if apiErr.Response != nil {
			retryAfter = gateway.ParseRetryAfterHeader(apiErr.Response.Header.Get("Retry-After"))
		}
		return gateway.Classify("anthropic", apiErr.StatusCode, retryAfter, wrapped)
	}
	return &gateway.TransientError{Provider: "anthropic", Err: wrapped}
}
