package port

import (
	"context"

	"github.com/google/uuid"

	"termsheet/internal/domain"
)

// RunRepository persists extraction runs, their documents and results.
type RunRepository interface {
	CreateRun(ctx context.Context, run *domain.Run) error
	FinishRun(ctx context.Context, run *domain.Run) error
	// SaveDocument writes a document and all of its results atomically.
	SaveDocument(ctx context.Context, doc *domain.RunDocument) error
	GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	ListRuns(ctx context.Context, offset, limit int) ([]domain.Run, int, error)
	ListDocuments(ctx context.Context, runID uuid.UUID) ([]domain.RunDocument, error)
}
