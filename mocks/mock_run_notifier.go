package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"termsheet/internal/domain"
)

// MockRunNotifier is a mock implementation of port.RunNotifier.
type MockRunNotifier struct {
	mock.Mock
}

func (m *MockRunNotifier) NotifyRunCompleted(ctx context.Context, run *domain.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}
