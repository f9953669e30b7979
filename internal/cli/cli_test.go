package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"termsheet/internal/app"
	"termsheet/internal/domain"
	"termsheet/internal/middleware"
	"termsheet/internal/port"
	"termsheet/internal/report"
	"termsheet/mocks"
)

const promptsPath = "../../Prompts/prompts_term_sheet.json"

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TERMSHEET_CONFIG", "")
	t.Setenv("TERMSHEET_DB_DRIVER", "sqlite")
	t.Setenv("TERMSHEET_DB_PATH", filepath.Join(t.TempDir(), "runs.db"))
	t.Setenv("TERMSHEET_PIPELINE_PROMPTS_FILE", promptsPath)
	t.Setenv("TERMSHEET_NOTIFY_PROVIDER", "noop")
	t.Setenv("TERMSHEET_LOG_LEVEL", "error")

	configFile, logLevel = "", ""
	runInput, runSource, runOutput, runCSV, runProvider = "", "", "", "", ""
	runTopK, runUpload, runNoStore = 0, false, false

	backend := &mocks.MockModelBackend{Provider: "stub", ModelName: "stub-1"}
	backend.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"ISIN":"XS0000000001","Issuer":"ACME Bank plc"}`, nil)
	appOptions = []app.Option{app.WithBackend(backend)}

	saved := objectStorage
	t.Cleanup(func() {
		appOptions = nil
		objectStorage = saved
	})
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestRunCmd_WritesWorkbookAndSummary(t *testing.T) {
	setupEnv(t)
	in := t.TempDir()
	writeFile(t, in, "XS0000000001.txt", "The Notes (ISIN XS0000000001) are issued by ACME Bank plc.")
	writeFile(t, in, "broken.pdf", "this is not a pdf")
	out := filepath.Join(t.TempDir(), "out.xlsx")
	csvOut := filepath.Join(t.TempDir(), "out.csv")

	output, err := execute(t, "run", "--input", in, "--output", out, "--csv", csvOut)

	require.NoError(t, err)
	assert.Contains(t, output, "1 succeeded, 1 failed")
	assert.Contains(t, output, "FAILED broken.pdf")

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(report.ExportSheet)
	require.NoError(t, err)
	require.Greater(t, len(rows), 1)
	assert.Equal(t, report.ExportColumns(), rows[0])
	assert.Equal(t, "XS0000000001", rows[1][0])

	audit, err := f.GetRows(report.ResultsSheet)
	require.NoError(t, err)
	found := false
	for _, row := range audit {
		if len(row) > 0 && row[0] == "broken.pdf" {
			found = true
		}
	}
	assert.True(t, found, "failed document appears on the audit sheet")

	data, err := os.ReadFile(csvOut)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, report.BOM))
	assert.Contains(t, string(data), "ACME Bank plc")
}

func TestRunCmd_EmptyFolder(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "run", "--input", t.TempDir(), "--output", filepath.Join(t.TempDir(), "x.xlsx"), "--no-store")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no documents")
}

func TestRunCmd_S3SourceAndUpload(t *testing.T) {
	setupEnv(t)
	t.Setenv("TERMSHEET_S3_BUCKET", "reports-bucket")
	t.Setenv("TERMSHEET_S3_REPORT_PREFIX", "reports/")

	store := new(mocks.MockObjectStorage)
	store.On("List", mock.Anything, "docs", "incoming").
		Return([]string{"incoming/XS1.txt", "incoming/nested/skip.txt", "incoming/readme.md"}, nil)
	store.On("Download", mock.Anything, "docs", "incoming/XS1.txt").
		Return([]byte("ISIN XS1"), nil)
	store.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Bucket == "reports-bucket" && in.Key == "reports/out.xlsx" && in.Size > 0
	})).Return(&port.UploadOutput{Location: "s3://reports-bucket/reports/out.xlsx"}, nil)
	objectStorage = func(*app.App) (port.ObjectStorage, error) { return store, nil }

	out := filepath.Join(t.TempDir(), "out.xlsx")
	output, err := execute(t, "run", "--source", "s3://docs/incoming", "--output", out, "--upload", "--no-store")

	require.NoError(t, err)
	assert.Contains(t, output, "1 succeeded, 0 failed")
	assert.Contains(t, output, "s3://reports-bucket/reports/out.xlsx")
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "Download", mock.Anything, "docs", "incoming/nested/skip.txt")
}

func TestPromptsCmd(t *testing.T) {
	setupEnv(t)
	promptsJSON = false

	output, err := execute(t, "prompts")

	require.NoError(t, err)
	assert.Contains(t, output, "prompts in "+promptsPath)
	assert.Contains(t, output, "[1] ")
}

func TestTokenCmd(t *testing.T) {
	setupEnv(t)
	t.Setenv("TERMSHEET_AUTH_JWT_SECRET", "s3cret")
	tokenSubject = "ci"

	output, err := execute(t, "token")
	require.NoError(t, err)

	subject, err := middleware.NewTokenValidator("s3cret", "termsheet").Validate(strings.TrimSpace(output))
	require.NoError(t, err)
	assert.Equal(t, "ci", subject)
}

func TestTokenCmd_NoSecret(t *testing.T) {
	setupEnv(t)
	t.Setenv("TERMSHEET_AUTH_JWT_SECRET", "")

	_, err := execute(t, "token")
	assert.Error(t, err)
}

func TestOutcomeBook_KeepsLatestPerDocument(t *testing.T) {
	out := filepath.Join(t.TempDir(), "watch.xlsx")
	book := newOutcomeBook(out)

	first := domain.DocumentOutcome{Document: "a.txt", Folder: "a", Err: errors.New("boom")}
	second := domain.DocumentOutcome{Document: "b.txt", Folder: "b", Results: []domain.ExtractionResult{{
		PromptID: "isin", Result: json.RawMessage(`{"ISIN":"XS-B"}`),
	}}}
	retried := domain.DocumentOutcome{Document: "a.txt", Folder: "a", Results: []domain.ExtractionResult{{
		PromptID: "isin", Result: json.RawMessage(`{"ISIN":"XS-A"}`),
	}}}

	require.NoError(t, book.update([]domain.DocumentOutcome{first}))
	require.NoError(t, book.update([]domain.DocumentOutcome{second}))
	require.NoError(t, book.update([]domain.DocumentOutcome{retried}))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(report.ExportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "XS-A", rows[1][0])
	assert.Equal(t, "XS-B", rows[2][0])
}
