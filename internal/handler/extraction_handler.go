package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"termsheet/internal/domain"
	"termsheet/internal/ingest"
	"termsheet/internal/logger"
	"termsheet/internal/report"
	"termsheet/internal/service"
)

const defaultMaxUploadBytes int64 = 50 << 20

// ExtractionHandler handles batch extraction and run endpoints.
type ExtractionHandler struct {
	svc            service.ExtractionService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewExtractionHandler creates a new ExtractionHandler. maxUploadMB caps the
// multipart body size; zero selects 50 MB.
func NewExtractionHandler(svc service.ExtractionService, maxUploadMB int64, l *zap.Logger) *ExtractionHandler {
	limit := maxUploadMB << 20
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	return &ExtractionHandler{svc: svc, maxUploadBytes: limit, logger: logger.OrNop(l)}
}

// DocumentView is the JSON shape of one processed document.
type DocumentView struct {
	Document string                    `json:"document"`
	Folder   string                    `json:"folder"`
	Status   domain.DocumentStatus     `json:"status"`
	Error    string                    `json:"error,omitempty"`
	Results  []domain.ExtractionResult `json:"results"`
}

// BatchView is the JSON shape of a finished batch.
type BatchView struct {
	Run       *domain.Run    `json:"run"`
	Documents []DocumentView `json:"documents"`
}

func newBatchView(res *service.BatchResult) BatchView {
	docs := make([]DocumentView, len(res.Outcomes))
	for i := range res.Outcomes {
		o := &res.Outcomes[i]
		docs[i] = DocumentView{Document: o.Document, Folder: o.Folder, Status: o.Status(), Results: o.Results}
		if o.Err != nil {
			docs[i].Error = o.Err.Error()
		}
		if docs[i].Results == nil {
			docs[i].Results = []domain.ExtractionResult{}
		}
	}
	return BatchView{Run: res.Run, Documents: docs}
}

// Prompts handles GET /api/v1/prompts
func (h *ExtractionHandler) Prompts(c *gin.Context) {
	RespondOK(c, h.svc.Prompts())
}

// Create handles POST /api/v1/extractions. It accepts one or more "files"
// parts plus optional "provider" and "top_k" fields, and runs the batch
// synchronously.
func (h *ExtractionHandler) Create(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			HandleError(c, h.logger, domain.ErrFileTooLarge)
			return
		}
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "multipart field \"files\" is required")
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "multipart field \"files\" is required")
		return
	}

	input := &service.BatchInput{Provider: c.PostForm("provider")}
	if raw := c.PostForm("top_k"); raw != "" {
		topK, convErr := strconv.Atoi(raw)
		if convErr != nil || topK <= 0 {
			RespondError(c, http.StatusBadRequest, "INVALID_TOP_K", "top_k must be a positive integer")
			return
		}
		input.TopK = topK
	}

	dir, err := os.MkdirTemp("", "termsheet-upload-")
	if err != nil {
		HandleError(c, h.logger, fmt.Errorf("creating upload dir: %w", err))
		return
	}
	defer func() { _ = os.RemoveAll(dir) }()

	for i, fh := range files {
		if !ingest.Supported(fh.Filename) {
			HandleError(c, h.logger, fmt.Errorf("%s: %w", fh.Filename, domain.ErrUnsupportedFileType))
			return
		}
		path, saveErr := saveUpload(fh, filepath.Join(dir, strconv.Itoa(i)))
		if saveErr != nil {
			HandleError(c, h.logger, saveErr)
			return
		}
		input.Paths = append(input.Paths, path)
	}

	res, err := h.svc.ProcessBatch(c.Request.Context(), input)
	if err != nil && res == nil {
		HandleError(c, h.logger, err)
		return
	}
	if err != nil {
		h.logger.Warn("handler.ExtractionHandler: batch interrupted",
			zap.String("run_id", res.Run.ID.String()),
			zap.Error(err))
	}
	RespondCreated(c, newBatchView(res))
}

// saveUpload stores fh under dir keeping its base name, so the folder label
// of the document matches the uploaded file.
func saveUpload(fh *multipart.FileHeader, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("opening upload %s: %w", fh.Filename, err)
	}
	defer func() { _ = src.Close() }()

	path := filepath.Join(dir, filepath.Base(fh.Filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	return path, nil
}

// List handles GET /api/v1/runs
func (h *ExtractionHandler) List(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	runs, total, err := h.svc.ListRuns(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	RespondPaginated(c, runs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// GetByID handles GET /api/v1/runs/:id
func (h *ExtractionHandler) GetByID(c *gin.Context) {
	detail, ok := h.loadRun(c)
	if !ok {
		return
	}
	RespondOK(c, detail)
}

// DownloadExcel handles GET /api/v1/runs/:id/report.xlsx
func (h *ExtractionHandler) DownloadExcel(c *gin.Context) {
	detail, ok := h.loadRun(c)
	if !ok {
		return
	}

	filename := report.BuildFilename("termsheet_"+detail.Run.ID.String(), "xlsx")
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)

	if err := (report.ExcelWriter{}).Write(c.Writer, report.FromRunDocuments(detail.Documents)); err != nil {
		h.logger.Error("handler.ExtractionHandler: excel export failed",
			zap.String("run_id", detail.Run.ID.String()),
			zap.Error(err))
	}
}

// DownloadCSV handles GET /api/v1/runs/:id/report.csv
func (h *ExtractionHandler) DownloadCSV(c *gin.Context) {
	detail, ok := h.loadRun(c)
	if !ok {
		return
	}

	filename := report.BuildFilename("termsheet_"+detail.Run.ID.String(), "csv")
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)

	if err := report.WriteCSV(c.Writer, report.FromRunDocuments(detail.Documents)); err != nil {
		h.logger.Error("handler.ExtractionHandler: csv export failed",
			zap.String("run_id", detail.Run.ID.String()),
			zap.Error(err))
	}
}

func (h *ExtractionHandler) loadRun(c *gin.Context) (*service.RunDetail, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid run ID")
		return nil, false
	}
	detail, err := h.svc.GetRun(c.Request.Context(), id)
	if err != nil {
		HandleError(c, h.logger, err)
		return nil, false
	}
	return detail, true
}
