package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"termsheet/internal/port"
)

// MockModelBackend is a mock implementation of port.NamedBackend. Name and
// Model return the plain fields so tests only set expectations on Send.
type MockModelBackend struct {
	mock.Mock
	Provider  string
	ModelName string
}

func (m *MockModelBackend) Name() string  { return m.Provider }
func (m *MockModelBackend) Model() string { return m.ModelName }

func (m *MockModelBackend) Send(ctx context.Context, msgs port.Messages, temperature float64) (string, error) {
	args := m.Called(ctx, msgs, temperature)
	return args.String(0), args.Error(1)
}
