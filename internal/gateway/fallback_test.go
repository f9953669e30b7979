package gateway_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"termsheet/internal/gateway"
	"termsheet/internal/port"
	"termsheet/mocks"
)

func TestFallback_FirstSucceeds(t *testing.T) {
	b1 := &mocks.MockModelBackend{Provider: "gemini", ModelName: "gemini-2.5-flash"}
	b2 := &mocks.MockModelBackend{Provider: "groq"}
	b1.On("Send", mock.Anything, testMsgs, 0.0).Return("{}", nil)

	f := gateway.NewFallback([]port.NamedBackend{b1, b2}, nil)
	out, err := f.Send(context.Background(), testMsgs, 0)

	require.NoError(t, err)
	assert.Equal(t, "{}", out)
	assert.Equal(t, "gemini>groq", f.Name())
	assert.Equal(t, "gemini-2.5-flash", f.Model())
	b2.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestFallback_FirstFails_SecondSucceeds(t *testing.T) {
	b1 := &mocks.MockModelBackend{Provider: "gemini"}
	b2 := &mocks.MockModelBackend{Provider: "groq"}
	b1.On("Send", mock.Anything, testMsgs, 0.0).Return("", errors.New("down"))
	b2.On("Send", mock.Anything, testMsgs, 0.0).Return(`{"a":1}`, nil)

	f := gateway.NewFallback([]port.NamedBackend{b1, b2}, nil)
	out, err := f.Send(context.Background(), testMsgs, 0)

	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
}

func TestFallback_RateLimitedBackendIsSkippedOnNextCall(t *testing.T) {
	b1 := &mocks.MockModelBackend{Provider: "gemini"}
	b2 := &mocks.MockModelBackend{Provider: "groq"}
	b1.On("Send", mock.Anything, testMsgs, 0.0).Return("", gateway.NewRateLimitError("gemini", errors.New("429"), 60)).Once()
	b2.On("Send", mock.Anything, testMsgs, 0.0).Return("{}", nil)

	f := gateway.NewFallback([]port.NamedBackend{b1, b2}, nil)
	_, err := f.Send(context.Background(), testMsgs, 0)
	require.NoError(t, err)
	_, err = f.Send(context.Background(), testMsgs, 0)
	require.NoError(t, err)

	b1.AssertNumberOfCalls(t, "Send", 1)
	b2.AssertNumberOfCalls(t, "Send", 2)
}

func TestFallback_AllRateLimited(t *testing.T) {
	b1 := &mocks.MockModelBackend{Provider: "gemini"}
	b2 := &mocks.MockModelBackend{Provider: "groq"}
	b1.On("Send", mock.Anything, testMsgs, 0.0).Return("", gateway.NewRateLimitError("gemini", errors.New("429"), 30))
	b2.On("Send", mock.Anything, testMsgs, 0.0).Return("", gateway.NewRateLimitError("groq", errors.New("429"), 10))

	f := gateway.NewFallback([]port.NamedBackend{b1, b2}, nil)
	_, err := f.Send(context.Background(), testMsgs, 0)

	var rl *gateway.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, "all", rl.Provider)
}

func TestFallback_AllFailReturnsLastError(t *testing.T) {
	b1 := &mocks.MockModelBackend{Provider: "gemini"}
	b2 := &mocks.MockModelBackend{Provider: "groq"}
	last := gateway.NewMissingCredentialError("groq")
	b1.On("Send", mock.Anything, testMsgs, 0.0).Return("", errors.New("down"))
	b2.On("Send", mock.Anything, testMsgs, 0.0).Return("", last)

	f := gateway.NewFallback([]port.NamedBackend{b1, b2}, nil)
	_, err := f.Send(context.Background(), testMsgs, 0)

	assert.ErrorIs(t, err, last)
	assert.True(t, gateway.IsAuthentication(err))
}

func TestFallback_StopsOnContextCancellation(t *testing.T) {
	b1 := &mocks.MockModelBackend{Provider: "gemini"}
	b2 := &mocks.MockModelBackend{Provider: "groq"}
	ctx, cancel := context.WithCancel(context.Background())
	b1.On("Send", mock.Anything, testMsgs, 0.0).Run(func(mock.Arguments) { cancel() }).Return("", context.Canceled)

	f := gateway.NewFallback([]port.NamedBackend{b1, b2}, nil)
	_, err := f.Send(ctx, testMsgs, 0)

	assert.ErrorIs(t, err, context.Canceled)
	b2.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}
