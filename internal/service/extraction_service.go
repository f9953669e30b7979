package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"termsheet/internal/chunker"
	"termsheet/internal/domain"
	"termsheet/internal/ingest"
	"termsheet/internal/logger"
	"termsheet/internal/metrics"
	"termsheet/internal/pipeline"
	"termsheet/internal/port"
)

// DefaultDocumentConcurrency is the number of documents processed at once.
const DefaultDocumentConcurrency = 4

// BatchInput is the DTO for processing a set of local files as one run.
// Empty Provider and zero TopK keep the configured defaults.
type BatchInput struct {
	Paths    []string
	Provider string
	TopK     int
}

// BatchResult is a finished run with an outcome per input path, in input order.
type BatchResult struct {
	Run      *domain.Run
	Outcomes []domain.DocumentOutcome
}

// RunDetail is a stored run with its documents and results.
type RunDetail struct {
	Run       *domain.Run          `json:"run"`
	Documents []domain.RunDocument `json:"documents"`
}

// ExtractionService defines the batch extraction contract.
type ExtractionService interface {
	ProcessBatch(ctx context.Context, input *BatchInput) (*BatchResult, error)
	GetRun(ctx context.Context, id uuid.UUID) (*RunDetail, error)
	ListRuns(ctx context.Context, offset, limit int) ([]domain.Run, int, error)
	Prompts() []domain.ExtractionPrompt
}

// OrchestratorFactory builds an orchestrator for per-request overrides.
type OrchestratorFactory func(provider string, topK int) (*pipeline.Orchestrator, error)

// ExtractionDeps groups the collaborators of the extraction service. Repo and
// Notifier may be nil.
type ExtractionDeps struct {
	Extractor    port.TextExtractor
	Chunker      *chunker.Chunker
	Orchestrator *pipeline.Orchestrator
	Factory      OrchestratorFactory
	Prompts      []domain.ExtractionPrompt
	Repo         port.RunRepository
	Notifier     port.RunNotifier
	Concurrency  int
	Logger       *zap.Logger
}

type extractionService struct {
	deps   ExtractionDeps
	logger *zap.Logger
}

// NewExtractionService creates a new ExtractionService.
func NewExtractionService(deps ExtractionDeps) ExtractionService {
	if deps.Concurrency <= 0 {
		deps.Concurrency = DefaultDocumentConcurrency
	}
	return &extractionService{deps: deps, logger: logger.OrNop(deps.Logger)}
}

func (s *extractionService) Prompts() []domain.ExtractionPrompt {
	return s.deps.Prompts
}

func (s *extractionService) orchestrator(input *BatchInput) (*pipeline.Orchestrator, error) {
	if (input.Provider == "" && input.TopK <= 0) || s.deps.Factory == nil {
		return s.deps.Orchestrator, nil
	}
	return s.deps.Factory(input.Provider, input.TopK)
}

func (s *extractionService) ProcessBatch(ctx context.Context, input *BatchInput) (*BatchResult, error) {
	if len(input.Paths) == 0 {
		return nil, domain.ErrNoDocuments
	}
	orch, err := s.orchestrator(input)
	if err != nil {
		return nil, err
	}

	run := &domain.Run{
		ID:        uuid.New(),
		Provider:  orch.Backend().Name(),
		Model:     orch.Backend().Model(),
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now().UTC(),
		Documents: len(input.Paths),
	}
	if s.deps.Repo != nil {
		if err := s.deps.Repo.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("creating run: %w", err)
		}
	}
	s.logger.Info("service.ExtractionService: run started",
		zap.String("run_id", run.ID.String()),
		zap.String("provider", run.Provider),
		zap.Int("documents", run.Documents))

	outcomes := make([]domain.DocumentOutcome, len(input.Paths))
	var g errgroup.Group
	g.SetLimit(s.deps.Concurrency)
	for i, path := range input.Paths {
		if ctx.Err() != nil {
			outcomes[i] = domain.DocumentOutcome{Document: filepath.Base(path), Folder: ingest.FolderName(path), Err: ctx.Err()}
			continue
		}
		g.Go(func() error {
			outcomes[i] = s.processDocument(ctx, orch, path)
			s.saveDocument(ctx, run.ID, &outcomes[i])
			return nil
		})
	}
	_ = g.Wait()

	for i := range outcomes {
		status := outcomes[i].Status()
		metrics.RecordDocument(string(status))
		if status == domain.DocumentStatusFailed {
			run.Failed++
		}
	}
	s.finishRun(ctx, run)

	return &BatchResult{Run: run, Outcomes: outcomes}, ctx.Err()
}

func (s *extractionService) processDocument(ctx context.Context, orch *pipeline.Orchestrator, path string) domain.DocumentOutcome {
	outcome := domain.DocumentOutcome{Document: filepath.Base(path), Folder: ingest.FolderName(path)}

	outcome.Results, outcome.Err = s.extract(ctx, orch, path, outcome.Folder)
	if outcome.Err != nil {
		s.logger.Error("service.ExtractionService: document failed",
			zap.String("document", outcome.Document),
			zap.Error(outcome.Err))
		return outcome
	}

	failed := 0
	for i := range outcome.Results {
		if outcome.Results[i].Failed() {
			failed++
		}
	}
	s.logger.Info("service.ExtractionService: document processed",
		zap.String("document", outcome.Document),
		zap.Int("prompts", len(outcome.Results)),
		zap.Int("failed_prompts", failed))
	return outcome
}

func (s *extractionService) extract(ctx context.Context, orch *pipeline.Orchestrator, path, folder string) ([]domain.ExtractionResult, error) {
	pages, err := s.deps.Extractor.ExtractPages(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extracting text: %w", err)
	}
	chunks, err := s.deps.Chunker.ChunkPages(pages, domain.SourceTermsheet, folder)
	if err != nil {
		return nil, fmt.Errorf("chunking: %w", err)
	}
	results, err := orch.Run(ctx, chunks, s.deps.Prompts)
	if err != nil {
		return nil, fmt.Errorf("running prompts: %w", err)
	}
	return results, nil
}

func (s *extractionService) saveDocument(ctx context.Context, runID uuid.UUID, o *domain.DocumentOutcome) {
	if s.deps.Repo == nil {
		return
	}
	doc := &domain.RunDocument{
		RunID:   runID,
		Name:    o.Document,
		Folder:  o.Folder,
		Status:  o.Status(),
		Results: o.Results,
	}
	if o.Err != nil {
		doc.Error = o.Err.Error()
	}
	// Persist even when the request context was cancelled mid-run.
	if err := s.deps.Repo.SaveDocument(context.WithoutCancel(ctx), doc); err != nil {
		s.logger.Error("service.ExtractionService: saving document failed",
			zap.String("document", o.Document),
			zap.Error(err))
	}
}

func (s *extractionService) finishRun(ctx context.Context, run *domain.Run) {
	ctx = context.WithoutCancel(ctx)
	if s.deps.Repo != nil {
		if err := s.deps.Repo.FinishRun(ctx, run); err != nil {
			s.logger.Error("service.ExtractionService: finishing run failed",
				zap.String("run_id", run.ID.String()),
				zap.Error(err))
		}
	}
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
		run.Status = domain.StatusFor(run.Documents, run.Failed)
	}

	s.logger.Info("service.ExtractionService: run finished",
		zap.String("run_id", run.ID.String()),
		zap.String("status", string(run.Status)),
		zap.Int("documents", run.Documents),
		zap.Int("failed", run.Failed))

	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.NotifyRunCompleted(ctx, run); err != nil {
			s.logger.Warn("service.ExtractionService: notification failed",
				zap.String("run_id", run.ID.String()),
				zap.Error(err))
		}
	}
}

func (s *extractionService) GetRun(ctx context.Context, id uuid.UUID) (*RunDetail, error) {
	if s.deps.Repo == nil {
		return nil, domain.ErrRunNotFound
	}
	run, err := s.deps.Repo.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	docs, err := s.deps.Repo.ListDocuments(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RunDetail{Run: run, Documents: docs}, nil
}

func (s *extractionService) ListRuns(ctx context.Context, offset, limit int) ([]domain.Run, int, error) {
	if s.deps.Repo == nil {
		return []domain.Run{}, 0, nil
	}
	return s.deps.Repo.ListRuns(ctx, offset, limit)
}
