package gateway_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"termsheet/internal/gateway"
	"termsheet/mocks"
)

func TestNewRateLimited_ZeroRPMIsPassthrough(t *testing.T) {
	b := &mocks.MockModelBackend{Provider: "groq"}
	assert.Same(t, b, gateway.NewRateLimited(b, 0))
}

func TestRateLimited_FirstCallPassesImmediately(t *testing.T) {
	b := &mocks.MockModelBackend{Provider: "groq", ModelName: "m"}
	b.On("Send", mock.Anything, testMsgs, 0.0).Return("{}", nil)

	rl := gateway.NewRateLimited(b, 60)
	out, err := rl.Send(context.Background(), testMsgs, 0)

	require.NoError(t, err)
	assert.Equal(t, "{}", out)
	assert.Equal(t, "groq", rl.Name())
	assert.Equal(t, "m", rl.Model())
}

func TestRateLimited_WaitHonoursCancellation(t *testing.T) {
	b := &mocks.MockModelBackend{Provider: "groq"}
	b.On("Send", mock.Anything, testMsgs, 0.0).Return("{}", nil).Once()

	rl := gateway.NewRateLimited(b, 1)
	_, err := rl.Send(context.Background(), testMsgs, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rl.Send(ctx, testMsgs, 0)

	assert.Error(t, err)
	b.AssertNumberOfCalls(t, "Send", 1)
}

func TestStitchRoles(t *testing.T) {
	got := gateway.StitchRoles(testMsgs)
	assert.Equal(t, "SYSTEM: sys\n\nUSER: user\n\n", got)
}
