package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"termsheet/internal/config"
	"termsheet/internal/domain"
	"termsheet/internal/service"
	"termsheet/mocks"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.DB.Driver = "sqlite"
	cfg.DB.Path = filepath.Join(t.TempDir(), "runs.db")
	cfg.Pipeline.PromptsFile = filepath.Join("..", "..", "Prompts", "prompts_term_sheet.json")
	cfg.Notify.Provider = "noop"
	return cfg
}

func TestNew_ProcessesAndPersistsBatch(t *testing.T) {
	backend := &mocks.MockModelBackend{Provider: "stub", ModelName: "stub-1"}
	backend.On("Send", mock.Anything, mock.Anything, 0.0).Return(`{"ISIN":"XS0000000001"}`, nil)

	a, err := New(testConfig(t), nil, WithBackend(backend))
	require.NoError(t, err)
	defer a.Close()
	require.NotEmpty(t, a.Prompts)

	doc := filepath.Join(t.TempDir(), "XS0000000001.txt")
	require.NoError(t, os.WriteFile(doc, []byte("ISIN XS0000000001 issued by ACME Bank plc"), 0o600))

	res, err := a.Extraction.ProcessBatch(context.Background(), &service.BatchInput{Paths: []string{doc}})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Len(t, res.Outcomes[0].Results, len(a.Prompts))
	assert.Equal(t, "stub", res.Run.Provider)

	detail, err := a.Extraction.GetRun(context.Background(), res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, detail.Run.Status)
	require.Len(t, detail.Documents, 1)
	assert.Equal(t, "XS0000000001", detail.Documents[0].Folder)
	assert.Len(t, detail.Documents[0].Results, len(a.Prompts))
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.Overlap = cfg.Pipeline.ChunkSize

	_, err := New(cfg, nil, WithBackend(&mocks.MockModelBackend{}))
	require.Error(t, err)
	assert.True(t, domain.IsConfigurationError(err))
	assert.ErrorIs(t, err, domain.ErrInvalidChunkParams)
}

func TestNew_UnknownNotifier(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notify.Provider = "pigeon"

	_, err := New(cfg, nil, WithBackend(&mocks.MockModelBackend{}), WithoutStore())
	require.Error(t, err)
	assert.True(t, domain.IsConfigurationError(err))
}

func TestNew_MissingPrimaryCredential(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	cfg := testConfig(t)
	cfg.LLM.Primary = config.ProviderConfig{Provider: "groq", Model: "m", MaxRetries: 1}

	_, err := New(cfg, nil, WithoutStore())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestOrchestratorFor_Overrides(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	a, err := New(testConfig(t), nil, WithBackend(&mocks.MockModelBackend{Provider: "stub"}), WithoutStore())
	require.NoError(t, err)
	defer a.Close()

	o, err := a.orchestratorFor("", 7)
	require.NoError(t, err)
	assert.Equal(t, "stub", o.Backend().Name())

	o, err = a.orchestratorFor("ollama", 0)
	require.NoError(t, err)
	assert.Equal(t, "ollama", o.Backend().Name())
	assert.Equal(t, config.DefaultModel("ollama"), o.Backend().Model())

	again, err := a.orchestratorFor("ollama", 3)
	require.NoError(t, err)
	assert.Same(t, o.Backend(), again.Backend())

	_, err = a.orchestratorFor("groq", 0)
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}
