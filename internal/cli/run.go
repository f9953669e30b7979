package cli

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"termsheet/internal/app"
	"termsheet/internal/domain"
	"termsheet/internal/ingest"
	"termsheet/internal/port"
	"termsheet/internal/report"
	"termsheet/internal/service"
)

var (
	runInput    string
	runSource   string
	runOutput   string
	runCSV      string
	runProvider string
	runTopK     int
	runUpload   bool
	runNoStore  bool

	// objectStorage resolves the S3 client; replaced in tests.
	objectStorage = func(a *app.App) (port.ObjectStorage, error) { return a.ObjectStorage() }
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process every term sheet in a folder or S3 prefix",
	Long: `Processes each supported file (pdf, txt) directly inside --input, or under
--source s3://bucket/prefix, and writes one Excel workbook with an EXPORT
sheet and a RESULTS audit sheet. A failing document does not stop the batch.`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "input folder (default from pipeline.input_dir)")
	runCmd.Flags().StringVar(&runSource, "source", "", "read documents from s3://bucket/prefix instead of --input")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "output workbook (default from pipeline.output_file)")
	runCmd.Flags().StringVar(&runCSV, "csv", "", "also write the EXPORT rows as CSV to this path")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "use this provider instead of the configured chain")
	runCmd.Flags().IntVar(&runTopK, "top-k", 0, "chunks retrieved per prompt (default from pipeline.top_k)")
	runCmd.Flags().BoolVar(&runUpload, "upload", false, "upload the workbook to s3.bucket under s3.report_prefix")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "do not persist the run in the result store")
	rootCmd.AddCommand(runCmd)
}

func runBatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	input, output := runInput, runOutput
	if input == "" {
		input = cfg.Pipeline.InputDir
	}
	if output == "" {
		output = cfg.Pipeline.OutputFile
	}

	var opts []app.Option
	if runNoStore {
		opts = append(opts, app.WithoutStore())
	}
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	a, err := app.New(cfg, l, append(appOptions, opts...)...)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	paths, cleanup, err := collectInputs(cmd, a, input)
	if err != nil {
		return err
	}
	defer cleanup()

	res, batchErr := a.Extraction.ProcessBatch(ctx, &service.BatchInput{Paths: paths, Provider: runProvider, TopK: runTopK})
	if res == nil {
		return batchErr
	}
	if batchErr != nil {
		a.Logger.Warn("batch interrupted; writing partial results", zap.Error(batchErr))
	}

	if err := (report.ExcelWriter{}).Save(output, res.Outcomes); err != nil {
		return err
	}
	if runCSV != "" {
		if err := writeCSVFile(runCSV, res.Outcomes); err != nil {
			return err
		}
	}

	printSummary(cmd, res.Outcomes)
	cmd.Printf("Workbook written to %s\n", output)

	if runUpload {
		loc, err := uploadReport(cmd, a, output)
		if err != nil {
			return err
		}
		cmd.Printf("Workbook uploaded to %s\n", loc)
	}
	return batchErr
}

// collectInputs returns the document paths for the batch. For an S3 source the
// objects are downloaded to a temporary folder removed by cleanup.
func collectInputs(cmd *cobra.Command, a *app.App, input string) (paths []string, cleanup func(), err error) {
	cleanup = func() {}
	if runSource == "" {
		paths, err = ingest.ListDocuments(input)
		if err != nil {
			return nil, cleanup, err
		}
		if len(paths) == 0 {
			return nil, cleanup, fmt.Errorf("%s: %w", input, domain.ErrNoDocuments)
		}
		return paths, cleanup, nil
	}

	bucket, prefix, err := ingest.ParseS3URI(runSource)
	if err != nil {
		return nil, cleanup, err
	}
	store, err := objectStorage(a)
	if err != nil {
		return nil, cleanup, err
	}
	dir, err := os.MkdirTemp("", "termsheet-s3-")
	if err != nil {
		return nil, cleanup, err
	}
	cleanup = func() { _ = os.RemoveAll(dir) }

	paths, err = ingest.FetchS3(cmd.Context(), store, bucket, prefix, dir)
	if err != nil {
		return nil, cleanup, err
	}
	if len(paths) == 0 {
		return nil, cleanup, fmt.Errorf("%s: %w", runSource, domain.ErrNoDocuments)
	}
	return paths, cleanup, nil
}

func writeCSVFile(p string, outcomes []domain.DocumentOutcome) error {
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("creating %s: %w", p, err)
	}
	if err := report.WriteCSV(f, outcomes); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", p, err)
	}
	return f.Close()
}

func uploadReport(cmd *cobra.Command, a *app.App, p string) (string, error) {
	if a.Config.S3.Bucket == "" {
		return "", domain.NewConfigurationError("s3.bucket", fmt.Errorf("--upload needs a bucket"))
	}
	store, err := objectStorage(a)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	out, err := store.Upload(cmd.Context(), port.UploadInput{
		Bucket:      a.Config.S3.Bucket,
		Key:         path.Join(a.Config.S3.ReportPrefix, filepath.Base(p)),
		Body:        bytes.NewReader(data),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Size:        int64(len(data)),
	})
	if err != nil {
		return "", err
	}
	return out.Location, nil
}

func printSummary(cmd *cobra.Command, outcomes []domain.DocumentOutcome) {
	failed := 0
	for i := range outcomes {
		if outcomes[i].Err != nil {
			failed++
			cmd.Printf("FAILED %s: %v\n", outcomes[i].Document, outcomes[i].Err)
		}
	}
	cmd.Printf("%d succeeded, %d failed\n", len(outcomes)-failed, failed)
}
