// Package gemini sends extraction requests to Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"termsheet/internal/config"
	"termsheet/internal/gateway"
	"termsheet/internal/port"
)

func init() {
	gateway.RegisterProvider("gemini", func(cfg *config.ProviderConfig) (port.NamedBackend, error) {
		return New(cfg)
	})
}

// Generator is the subset of *genai.GenerativeModel the backend uses.
type Generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeneratorFactory opens a Generator for model at temperature.
type GeneratorFactory func(ctx context.Context, model string, temperature float32) (Generator, error)

// Backend stitches roles into a single prompt; Gemini receives no system role.
type Backend struct {
	apiKey string
	model  string
	open   GeneratorFactory

	mu     sync.Mutex
	client *genai.Client
	opts   []option.ClientOption
}

// New creates a Gemini backend using the generative-ai-go client.
func New(cfg *config.ProviderConfig) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, gateway.NewMissingCredentialError("gemini")
	}
	b := &Backend{
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		opts:   []option.ClientOption{option.WithAPIKey(cfg.APIKey)},
	}
	if b.model == "" {
		b.model = config.DefaultModel("gemini")
	}
	if cfg.BaseURL != "" {
		b.opts = append(b.opts, option.WithEndpoint(cfg.BaseURL))
	}
	b.open = b.openModel
	return b, nil
}

// NewWithGenerator creates a backend whose requests go to the given factory.
func NewWithGenerator(cfg *config.ProviderConfig, open GeneratorFactory) (*Backend, error) {
	b, err := New(cfg)
	if err != nil {
		return nil, err
	}
	b.open = open
	return b, nil
}

func (b *Backend) Name() string  { return "gemini" }
func (b *Backend) Model() string { return b.model }

// Close releases the underlying client, if one was opened.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}

func (b *Backend) openModel(ctx context.Context, model string, temperature float32) (Generator, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		client, err := genai.NewClient(ctx, b.opts...)
		if err != nil {
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}
		b.client = client
	}
	m := b.client.GenerativeModel(model)
	m.SetTemperature(temperature)
	m.ResponseMIMEType = "application/json"
	return m, nil
}

func (b *Backend) Send(ctx context.Context, msgs port.Messages, temperature float64) (string, error) {
	if b.apiKey == "" {
		return "", gateway.NewMissingCredentialError("gemini")
	}

	gen, err := b.open(ctx, b.model, float32(temperature))
	if err != nil {
		return "", &gateway.TransientError{Provider: "gemini", Err: err}
	}

	resp, err := gen.GenerateContent(ctx, genai.Text(gateway.StitchRoles(msgs)))
	if err != nil {
		return "", classify(ctx, err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &gateway.TransientError{Provider: "gemini", Err: errors.New("no candidates in response")}
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

// httpCoder is implemented by gax apierror.APIError.
type httpCoder interface {
	HTTPCode() int
}

func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	wrapped := fmt.Errorf("calling gemini API: %w", err)

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		retryAfter := 0
		if gErr.Header != nil {
			retryAfter = gateway.ParseRetryAfterHeader(gErr.Header.Get("Retry-After"))
		}
		return gateway.Classify("gemini", gErr.Code, retryAfter, wrapped)
	}
	var coder httpCoder
	if errors.As(err, &coder) && coder.HTTPCode() > 0 {
		return gateway.Classify("gemini", coder.HTTPCode(), 0, wrapped)
	}
	return &gateway.TransientError{Provider: "gemini", Err: wrapped}
}
