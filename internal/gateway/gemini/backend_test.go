package gemini_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"termsheet/internal/config"
	"termsheet/internal/gateway"
	"termsheet/internal/gateway/gemini"
	"termsheet/internal/port"
)

type fakeGenerator struct {
	resp  *genai.GenerateContentResponse
	err   error
	parts []genai.Part
}

func (f *fakeGenerator) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, genai.Text(p))
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func newBackend(t *testing.T, gen *fakeGenerator, gotTemp *float32) *gemini.Backend {
	t.Helper()
	b, err := gemini.NewWithGenerator(&config.ProviderConfig{Provider: "gemini", APIKey: "k"},
		func(_ context.Context, model string, temperature float32) (gemini.Generator, error) {
			assert.Equal(t, "gemini-2.5-flash", model)
			if gotTemp != nil {
				*gotTemp = temperature
			}
			return gen, nil
		})
	require.NoError(t, err)
	return b
}

func TestBackend_SendStitchesRoles(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(`{"isin":`, `"XS1"}`)}
	var temp float32 = -1
	b := newBackend(t, gen, &temp)

	out, err := b.Send(context.Background(), port.Messages{System: "sys", User: "user"}, 0)

	require.NoError(t, err)
	assert.Equal(t, `{"isin":"XS1"}`, out)
	assert.Equal(t, float32(0), temp)
	require.Len(t, gen.parts, 1)
	assert.Equal(t, genai.Text("SYSTEM: sys\n\nUSER: user\n\n"), gen.parts[0])
	assert.Equal(t, "gemini", b.Name())
}

func TestBackend_NoCandidatesIsTransient(t *testing.T) {
	b := newBackend(t, &fakeGenerator{resp: &genai.GenerateContentResponse{}}, nil)

	_, err := b.Send(context.Background(), port.Messages{}, 0)

	var te *gateway.TransientError
	assert.ErrorAs(t, err, &te)
}

func TestBackend_ErrorClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(t *testing.T, err error)
	}{
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, func(t *testing.T, err error) {
			assert.True(t, gateway.IsAuthentication(err))
		}},
		{"quota", &googleapi.Error{Code: http.StatusTooManyRequests, Header: http.Header{"Retry-After": []string{"5"}}}, func(t *testing.T, err error) {
			var rl *gateway.RateLimitError
			require.ErrorAs(t, err, &rl)
			assert.Equal(t, "5s", rl.RetryAfter.String())
		}},
		{"unavailable", &googleapi.Error{Code: http.StatusServiceUnavailable}, func(t *testing.T, err error) {
			var te *gateway.TransientError
			assert.ErrorAs(t, err, &te)
		}},
		{"network", errors.New("connection reset"), func(t *testing.T, err error) {
			var te *gateway.TransientError
			assert.ErrorAs(t, err, &te)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t, &fakeGenerator{err: tt.err}, nil)
			_, err := b.Send(context.Background(), port.Messages{}, 0)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestNew_MissingKey(t *testing.T) {
	_, err := gemini.New(&config.ProviderConfig{Provider: "gemini"})
	assert.True(t, gateway.IsAuthentication(err))
}
