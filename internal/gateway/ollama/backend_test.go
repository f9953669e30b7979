package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"termsheet/internal/config"
	"termsheet/internal/gateway"
	"termsheet/internal/gateway/ollama"
	"termsheet/internal/port"
)

func TestBackend_Send(t *testing.T) {
	var seen map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&seen)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.1","response":"{\"isin\":\"XS1\"}","done":true}`))
	}))
	defer srv.Close()

	b, err := ollama.New(&config.ProviderConfig{Provider: "ollama", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := b.Send(context.Background(), port.Messages{System: "sys", User: "user"}, 0)

	require.NoError(t, err)
	assert.Equal(t, `{"isin":"XS1"}`, out)
	assert.Equal(t, "llama3.1", b.Model())
	assert.Equal(t, "sys", seen["system"])
	assert.Equal(t, "user", seen["prompt"])
	assert.Equal(t, "json", seen["format"])
	assert.Equal(t, false, seen["stream"])
}

func TestBackend_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"overloaded"}`))
	}))
	defer srv.Close()

	b, err := ollama.New(&config.ProviderConfig{Provider: "ollama", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = b.Send(context.Background(), port.Messages{}, 0)

	var te *gateway.TransientError
	assert.ErrorAs(t, err, &te)
}

func TestNew_RequiresNoCredential(t *testing.T) {
	b, err := ollama.New(&config.ProviderConfig{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", b.Name())
}
