package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"termsheet/internal/logger"
)

// WatchConfig holds settings for the watch worker.
type WatchConfig struct {
	Concurrency int
	// Timeout bounds one document's run. Zero means 30 minutes.
	Timeout time.Duration
}

// WatchWorker consumes file paths from a watcher and processes each as a
// single-document run.
type WatchWorker struct {
	svc      ExtractionService
	cfg      WatchConfig
	onResult func(*BatchResult)
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewWatchWorker creates a new WatchWorker. onResult, if non-nil, is called
// from the worker goroutine after each finished run.
func NewWatchWorker(svc ExtractionService, cfg WatchConfig, onResult func(*BatchResult), l *zap.Logger) *WatchWorker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &WatchWorker{svc: svc, cfg: cfg, onResult: onResult, logger: logger.OrNop(l)}
}

// Start dispatches paths until ctx is canceled or paths is closed. It blocks
// until all in-flight runs have finished.
func (w *WatchWorker) Start(ctx context.Context, paths <-chan string) {
	sem := make(chan struct{}, w.cfg.Concurrency)

	w.logger.Info("service.WatchWorker: started",
		zap.Int("concurrency", w.cfg.Concurrency),
		zap.Duration("timeout", w.cfg.Timeout))

	defer func() {
		w.logger.Info("service.WatchWorker: shutting down, waiting for in-flight runs")
		w.wg.Wait()
		w.logger.Info("service.WatchWorker: shutdown complete")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-paths:
			if !ok {
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				defer func() { <-sem }()

				// Detached from ctx so a run in progress finishes during shutdown.
				runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.Timeout)
				defer cancel()

				w.logger.Info("service.WatchWorker: dispatching document", zap.String("path", path))
				res, err := w.svc.ProcessBatch(runCtx, &BatchInput{Paths: []string{path}})
				if err != nil {
					w.logger.Error("service.WatchWorker: run failed",
						zap.String("path", path),
						zap.Error(err))
				}
				if res != nil && w.onResult != nil {
					w.onResult(res)
				}
			}()
		}
	}
}
