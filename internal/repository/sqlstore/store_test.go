package sqlstore_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"termsheet/internal/config"
	"termsheet/internal/domain"
	"termsheet/internal/repository/sqlstore"
)

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	return sqlstore.NewStore(openDB(t))
}

func openDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conn, err := sqlstore.NewDB(&config.DBConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "termsheet.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, sqlstore.Migrate(conn, "sqlite"))
	// A second run is a no-op.
	require.NoError(t, sqlstore.Migrate(conn, "sqlite"))
	return conn
}

func TestStore_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	run := &domain.Run{Provider: "gemini", Model: "gemini-2.5-flash"}
	require.NoError(t, s.CreateRun(ctx, run))
	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.Equal(t, domain.RunStatusRunning, run.Status)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "gemini", got.Provider)
	assert.Equal(t, domain.RunStatusRunning, got.Status)
	assert.Nil(t, got.FinishedAt)

	run.Documents, run.Failed = 2, 1
	require.NoError(t, s.FinishRun(ctx, run))
	assert.Equal(t, domain.RunStatusPartial, run.Status)

	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPartial, got.Status)
	assert.Equal(t, 2, got.Documents)
	assert.Equal(t, 1, got.Failed)
	require.NotNil(t, got.FinishedAt)
	assert.WithinDuration(t, time.Now(), *got.FinishedAt, time.Minute)
}

func TestStore_GetRunNotFound(t *testing.T) {
	_, err := newStore(t).GetRun(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestStore_FinishRunNotFound(t *testing.T) {
	err := newStore(t).FinishRun(context.Background(), &domain.Run{ID: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestStore_SaveAndListDocuments(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	run := &domain.Run{Provider: "groq"}
	require.NoError(t, s.CreateRun(ctx, run))

	ok := &domain.RunDocument{
		RunID:  run.ID,
		Name:   "b.pdf",
		Folder: "b",
		Status: domain.DocumentStatusCompleted,
		Results: []domain.ExtractionResult{
			{PromptID: "p1", Scope: "both", Result: json.RawMessage(`{"ISIN":"XS1"}`), UsedContextIndices: []int{3, 1}, RawModelOutput: `{"ISIN":"XS1"}`, Provider: "groq"},
			{PromptID: "p2", Scope: "termsheet", Error: "groq transient error: 503"},
			{PromptID: "p3", Scope: "both", Result: json.RawMessage(`{"_raw":"x"}`), RecoveredViaFallback: true},
		},
	}
	failed := &domain.RunDocument{RunID: run.ID, Name: "a.pdf", Status: domain.DocumentStatusFailed, Error: "opening pdf"}
	require.NoError(t, s.SaveDocument(ctx, ok))
	require.NoError(t, s.SaveDocument(ctx, failed))

	docs, err := s.ListDocuments(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "a.pdf", docs[0].Name)
	assert.Equal(t, domain.DocumentStatusFailed, docs[0].Status)
	assert.Equal(t, "opening pdf", docs[0].Error)
	assert.Empty(t, docs[0].Results)

	assert.Equal(t, "b.pdf", docs[1].Name)
	require.Len(t, docs[1].Results, 3)
	r := docs[1].Results
	assert.Equal(t, "p1", r[0].PromptID)
	assert.JSONEq(t, `{"ISIN":"XS1"}`, string(r[0].Result))
	assert.Equal(t, []int{3, 1}, r[0].UsedContextIndices)
	assert.Equal(t, "groq", r[0].Provider)
	assert.Equal(t, "p2", r[1].PromptID)
	assert.Nil(t, r[1].Result)
	assert.Equal(t, []int{}, r[1].UsedContextIndices)
	assert.Equal(t, "groq transient error: 503", r[1].Error)
	assert.True(t, r[2].RecoveredViaFallback)
}

func TestStore_MissingPromptIDIsNull(t *testing.T) {
	ctx := context.Background()
	conn := openDB(t)
	s := sqlstore.NewStore(conn)
	run := &domain.Run{Provider: "groq"}
	require.NoError(t, s.CreateRun(ctx, run))

	doc := &domain.RunDocument{
		RunID:  run.ID,
		Name:   "c.txt",
		Status: domain.DocumentStatusCompleted,
		Results: []domain.ExtractionResult{
			{Scope: "both", Result: json.RawMessage(`{"ISIN":"XS2"}`)},
		},
	}
	require.NoError(t, s.SaveDocument(ctx, doc))

	var nulls int
	require.NoError(t, conn.GetContext(ctx, &nulls,
		conn.Rebind(`SELECT COUNT(*) FROM extraction_results WHERE document_id = ? AND prompt_id IS NULL`), doc.ID))
	assert.Equal(t, 1, nulls)

	docs, err := s.ListDocuments(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Len(t, docs[0].Results, 1)
	assert.Empty(t, docs[0].Results[0].PromptID)
}

func TestStore_ListRunsPaginates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateRun(ctx, &domain.Run{Provider: "gemini", StartedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	runs, total, err := s.ListRuns(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))

	runs, _, err = s.ListRuns(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestNewDB_UnknownDriver(t *testing.T) {
	_, err := sqlstore.NewDB(&config.DBConfig{Driver: "mysql"})
	assert.True(t, domain.IsConfigurationError(err))
}
