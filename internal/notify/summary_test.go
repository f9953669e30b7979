package notify

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"termsheet/internal/domain"
)

func TestSummary(t *testing.T) {
	started := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	run := &domain.Run{
		ID:         uuid.New(),
		Provider:   "groq>gemini",
		Model:      "llama-3.3-70b-versatile",
		Status:     domain.RunStatusPartial,
		StartedAt:  started,
		FinishedAt: &finished,
		Documents:  3,
		Failed:     1,
	}

	assert.Equal(t, "Term sheet extraction partial: 3 documents, 1 failed", Subject(run))
	assert.Contains(t, TextBody(run), "Duration: 1m30s")
	assert.Contains(t, HTMLBody(run), "groq&gt;gemini")
}

func TestSummary_UnfinishedRun(t *testing.T) {
	run := &domain.Run{ID: uuid.New(), Status: domain.RunStatusRunning}
	assert.Contains(t, TextBody(run), "Duration: unknown")
}
