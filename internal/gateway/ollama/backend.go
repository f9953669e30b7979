// Package ollama sends extraction requests to a local Ollama server. No
// credential is required.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"termsheet/internal/config"
	"termsheet/internal/gateway"
	"termsheet/internal/port"
)

const defaultBaseURL = "http://localhost:11434"

func init() {
	gateway.RegisterProvider("ollama", func(cfg *config.ProviderConfig) (port.NamedBackend, error) {
		return New(cfg)
	})
}

// Backend uses the non-streaming generate endpoint with JSON output.
type Backend struct {
	model  string
	client *api.Client
}

// New creates an Ollama backend.
func New(cfg *config.ProviderConfig) (*Backend, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = defaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing ollama base url: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = config.DefaultModel("ollama")
	}
	return &Backend{
		model:  model,
		client: api.NewClient(base, &http.Client{Timeout: cfg.Timeout()}),
	}, nil
}

func (b *Backend) Name() string  { return "ollama" }
func (b *Backend) Model() string { return b.model }

func (b *Backend) Send(ctx context.Context, msgs port.Messages, temperature float64) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:   b.model,
		System:  msgs.System,
		Prompt:  msgs.User,
		Stream:  &stream,
		Format:  json.RawMessage(`"json"`),
		Options: map[string]any{"temperature": temperature},
	}

	var sb strings.Builder
	err := b.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", classify(ctx, err)
	}
	return sb.String(), nil
}

func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	wrapped := fmt.Errorf("calling ollama API: %w", err)

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return gateway.Classify("ollama", statusErr.StatusCode, 0, wrapped)
	}
	return &gateway.TransientError{Provider: "ollama", Err: wrapped}
}
