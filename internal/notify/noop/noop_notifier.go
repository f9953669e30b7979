package noop

import (
	"context"

	"go.uber.org/zap"

	"termsheet/internal/domain"
	"termsheet/internal/logger"
	"termsheet/internal/notify"
	"termsheet/internal/port"
)

type noopNotifier struct {
	logger *zap.Logger
}

// NewNoopNotifier creates a RunNotifier that only logs the run summary.
func NewNoopNotifier(l *zap.Logger) port.RunNotifier {
	return &noopNotifier{logger: logger.OrNop(l)}
}

func (n *noopNotifier) NotifyRunCompleted(_ context.Context, run *domain.Run) error {
	n.logger.Info("noop.Notifier: "+notify.Subject(run),
		zap.String("run_id", run.ID.String()),
		zap.String("provider", run.Provider),
		zap.Int("documents", run.Documents),
		zap.Int("failed", run.Failed))
	return nil
}
