package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"termsheet/internal/handler"
	"termsheet/internal/metrics"
	"termsheet/internal/middleware"
)

// Options carries the cross-cutting settings for the engine.
type Options struct {
	CORSOrigins []string
	MetricsPath string // empty disables /metrics
	Logger      *zap.Logger
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	tokens *middleware.TokenValidator,
	extractionH *handler.ExtractionHandler,
	healthH *handler.HealthHandler,
	opts Options,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.CORS(opts.CORSOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)
	if opts.MetricsPath != "" {
		r.GET(opts.MetricsPath, gin.WrapH(metrics.Handler()))
	}

	// Protected routes - require a valid bearer token when auth is enabled
	v1 := r.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(tokens))

	v1.GET("/prompts", extractionH.Prompts)
	v1.POST("/extractions", extractionH.Create)

	runs := v1.Group("/runs")
	runs.GET("", extractionH.List)
	runs.GET("/:id", extractionH.GetByID)
	runs.GET("/:id/report.xlsx", extractionH.DownloadExcel)
	runs.GET("/:id/report.csv", extractionH.DownloadCSV)

	return r
}
