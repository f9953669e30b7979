package port

import (
	"context"

	"termsheet/internal/domain"
)

// RunNotifier announces a finished run.
type RunNotifier interface {
	NotifyRunCompleted(ctx context.Context, run *domain.Run) error
}
