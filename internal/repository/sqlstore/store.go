package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"termsheet/internal/domain"
	"termsheet/internal/port"
)

// Store implements port.RunRepository.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a Store over an open, migrated connection.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

var _ port.RunRepository = (*Store)(nil)

type resultRow struct {
	DocumentID           uuid.UUID      `db:"document_id"`
	Position             int            `db:"position"`
	PromptID             sql.NullString `db:"prompt_id"`
	Scope                string         `db:"scope"`
	Result               sql.NullString `db:"result"`
	UsedContext          string         `db:"used_context"`
	RawOutput            string         `db:"raw_output"`
	RecoveredViaFallback bool           `db:"recovered_via_fallback"`
	Provider             string         `db:"provider"`
	Error                string         `db:"error"`
}

func (r *resultRow) toDomain() (domain.ExtractionResult, error) {
	res := domain.ExtractionResult{
		PromptID:             r.PromptID.String,
		Scope:                r.Scope,
		RawModelOutput:       r.RawOutput,
		RecoveredViaFallback: r.RecoveredViaFallback,
		Provider:             r.Provider,
		Error:                r.Error,
	}
	if r.Result.Valid {
		res.Result = json.RawMessage(r.Result.String)
	}
	if err := json.Unmarshal([]byte(r.UsedContext), &res.UsedContextIndices); err != nil {
		return res, fmt.Errorf("decoding used_context: %w", err)
	}
	return res, nil
}

func (s *Store) CreateRun(ctx context.Context, run *domain.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = domain.RunStatusRunning
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO extraction_runs (id, provider, model, status, started_at, finished_at, documents, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID, run.Provider, run.Model, run.Status, run.StartedAt, run.FinishedAt, run.Documents, run.Failed)
	if err != nil {
		return fmt.Errorf("sqlstore.CreateRun: %w", err)
	}
	return nil
}

func (s *Store) FinishRun(ctx context.Context, run *domain.Run) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = domain.StatusFor(run.Documents, run.Failed)

	result, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE extraction_runs SET status = ?, finished_at = ?, documents = ?, failed = ? WHERE id = ?`),
		run.Status, run.FinishedAt, run.Documents, run.Failed, run.ID)
	if err != nil {
		return fmt.Errorf("sqlstore.FinishRun: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

func (s *Store) SaveDocument(ctx context.Context, doc *domain.RunDocument) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore.SaveDocument begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO extraction_documents (id, run_id, name, folder, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		doc.ID, doc.RunID, doc.Name, doc.Folder, doc.Status, doc.Error, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlstore.SaveDocument: %w", err)
	}

	insert := tx.Rebind(
		`INSERT INTO extraction_results (id, document_id, position, prompt_id, scope, result, used_context,
		 raw_output, recovered_via_fallback, provider, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for i := range doc.Results {
		r := &doc.Results[i]
		used := r.UsedContextIndices
		if used == nil {
			used = []int{}
		}
		usedJSON, err := json.Marshal(used)
		if err != nil {
			return fmt.Errorf("sqlstore.SaveDocument used_context: %w", err)
		}
		promptID := sql.NullString{String: r.PromptID, Valid: r.PromptID != ""}
		var result sql.NullString
		if len(r.Result) > 0 {
			result = sql.NullString{String: string(r.Result), Valid: true}
		}
		_, err = tx.ExecContext(ctx, insert,
			uuid.New(), doc.ID, i, promptID, r.Scope, result, string(usedJSON),
			r.RawModelOutput, r.RecoveredViaFallback, r.Provider, r.Error)
		if err != nil {
			return fmt.Errorf("sqlstore.SaveDocument result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore.SaveDocument commit: %w", err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	var run domain.Run
	err := s.db.GetContext(ctx, &run, s.db.Rebind(
		`SELECT id, provider, model, status, started_at, finished_at, documents, failed
		 FROM extraction_runs WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("sqlstore.GetRun: %w", err)
	}
	return &run, nil
}

func (s *Store) ListRuns(ctx context.Context, offset, limit int) ([]domain.Run, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM extraction_runs`); err != nil {
		return nil, 0, fmt.Errorf("sqlstore.ListRuns count: %w", err)
	}

	runs := []domain.Run{}
	err := s.db.SelectContext(ctx, &runs, s.db.Rebind(
		`SELECT id, provider, model, status, started_at, finished_at, documents, failed
		 FROM extraction_runs ORDER BY started_at DESC, id LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlstore.ListRuns: %w", err)
	}
	return runs, total, nil
}

func (s *Store) ListDocuments(ctx context.Context, runID uuid.UUID) ([]domain.RunDocument, error) {
	docs := []domain.RunDocument{}
	err := s.db.SelectContext(ctx, &docs, s.db.Rebind(
		`SELECT id, run_id, name, folder, status, error, created_at
		 FROM extraction_documents WHERE run_id = ? ORDER BY name, id`), runID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore.ListDocuments: %w", err)
	}

	var rows []resultRow
	err = s.db.SelectContext(ctx, &rows, s.db.Rebind(
		`SELECT r.document_id, r.position, r.prompt_id, r.scope, r.result, r.used_context, r.raw_output,
		        r.recovered_via_fallback, r.provider, r.error
		 FROM extraction_results r
		 INNER JOIN extraction_documents d ON d.id = r.document_id
		 WHERE d.run_id = ?
		 ORDER BY r.document_id, r.position`), runID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore.ListDocuments results: %w", err)
	}

	byDoc := make(map[uuid.UUID]int, len(docs))
	for i := range docs {
		byDoc[docs[i].ID] = i
		docs[i].Results = []domain.ExtractionResult{}
	}
	for i := range rows {
		res, err := rows[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("sqlstore.ListDocuments: %w", err)
		}
		if j, ok := byDoc[rows[i].DocumentID]; ok {
			docs[j].Results = append(docs[j].Results, res)
		}
	}
	return docs, nil
}
