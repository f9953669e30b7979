package gateway_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"termsheet/internal/config"
	"termsheet/internal/domain"
	"termsheet/internal/gateway"
	"termsheet/internal/port"
)

type scriptedBackend struct {
	name, model string
	replies     []error
	calls       int
}

func (s *scriptedBackend) Name() string  { return s.name }
func (s *scriptedBackend) Model() string { return s.model }

func (s *scriptedBackend) Send(_ context.Context, _ port.Messages, _ float64) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.replies) && s.replies[i] != nil {
		return "", s.replies[i]
	}
	return `{"ok":true}`, nil
}

var scripted = map[string]*scriptedBackend{}

func init() {
	for _, name := range []string{"fake-a", "fake-b"} {
		gateway.RegisterProvider(name, func(cfg *config.ProviderConfig) (port.NamedBackend, error) {
			if cfg.APIKey == "" {
				return nil, gateway.NewMissingCredentialError(cfg.Provider)
			}
			b := &scriptedBackend{name: cfg.Provider, model: cfg.Model}
			if s, ok := scripted[cfg.Provider]; ok {
				b.replies = s.replies
				scripted[cfg.Provider] = b
			}
			return b, nil
		})
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestNew_SingleProviderIsNotWrappedInFallback(t *testing.T) {
	gw, err := gateway.New([]*config.ProviderConfig{
		{Provider: "fake-a", APIKey: "k", Model: "m1"},
	}, gateway.Options{})

	require.NoError(t, err)
	assert.Equal(t, "fake-a", gw.Name())
	assert.Equal(t, "m1", gw.Model())
}

func TestNew_ChainsProvidersInOrder(t *testing.T) {
	scripted["fake-a"] = &scriptedBackend{replies: []error{
		errors.New("boom"), errors.New("boom"), errors.New("boom"),
	}}
	defer delete(scripted, "fake-a")

	gw, err := gateway.New([]*config.ProviderConfig{
		{Provider: "fake-a", APIKey: "k", Model: "m1"},
		{Provider: "fake-b", APIKey: "k", Model: "m2"},
	}, gateway.Options{RetryOptions: []gateway.RetryOption{gateway.WithSleep(noSleep)}})
	require.NoError(t, err)
	assert.Equal(t, "fake-a>fake-b", gw.Name())

	out, err := gw.Send(context.Background(), testMsgs, 0)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, gateway.DefaultMaxRetries, scripted["fake-a"].calls)
}

func TestNew_UnknownProviderIsConfigurationError(t *testing.T) {
	_, err := gateway.New([]*config.ProviderConfig{{Provider: "nope"}}, gateway.Options{})

	require.Error(t, err)
	assert.True(t, domain.IsConfigurationError(err))
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}

func TestNew_MissingCredentialFailsBeforeAnyCall(t *testing.T) {
	_, err := gateway.New([]*config.ProviderConfig{{Provider: "fake-a"}}, gateway.Options{})

	require.Error(t, err)
	assert.True(t, domain.IsConfigurationError(err))
	assert.True(t, gateway.IsAuthentication(err))
}

func TestNew_EmptyChain(t *testing.T) {
	_, err := gateway.New(nil, gateway.Options{})
	assert.True(t, domain.IsConfigurationError(err))
}

func TestNew_CacheWrapsChainWhenTTLSet(t *testing.T) {
	gw, err := gateway.New([]*config.ProviderConfig{
		{Provider: "fake-a", APIKey: "k", Model: "m1"},
	}, gateway.Options{CacheTTL: time.Minute, CacheCapacity: 4})
	require.NoError(t, err)

	cached, ok := gw.(*gateway.Cached)
	require.True(t, ok)
	defer cached.Close()

	_, err = gw.Send(context.Background(), testMsgs, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Len())
}
