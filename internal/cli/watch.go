package cli

import (
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"termsheet/internal/domain"
	"termsheet/internal/ingest"
	"termsheet/internal/report"
	"termsheet/internal/service"
)

var (
	watchInput    string
	watchOutput   string
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process term sheets as they appear in a folder",
	Long: `Watches --input for new or rewritten pdf and txt files. Each file is
processed as its own run once writes have settled, and --output is rewritten
with the latest outcome of every document seen so far. Stops on SIGINT or
SIGTERM after in-flight runs finish.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchInput, "input", "i", "", "folder to watch (default from pipeline.input_dir)")
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "", "workbook to maintain (default from pipeline.output_file)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "quiet period before a changed file is processed")
	rootCmd.AddCommand(watchCmd)
}

// outcomeBook keeps the latest outcome per document in first-seen order and
// rewrites the workbook on every update.
type outcomeBook struct {
	mu       sync.Mutex
	path     string
	order    []string
	outcomes map[string]domain.DocumentOutcome
}

func newOutcomeBook(path string) *outcomeBook {
	return &outcomeBook{path: path, outcomes: map[string]domain.DocumentOutcome{}}
}

func (b *outcomeBook) update(latest []domain.DocumentOutcome) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, o := range latest {
		if _, seen := b.outcomes[o.Document]; !seen {
			b.order = append(b.order, o.Document)
		}
		b.outcomes[o.Document] = o
	}
	all := make([]domain.DocumentOutcome, len(b.order))
	for i, name := range b.order {
		all[i] = b.outcomes[name]
	}
	return report.ExcelWriter{}.Save(b.path, all)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	input, output := watchInput, watchOutput
	if input == "" {
		input = cfg.Pipeline.InputDir
	}
	if output == "" {
		output = cfg.Pipeline.OutputFile
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	paths, err := ingest.NewWatcher(input, watchDebounce, a.Logger).Watch(ctx)
	if err != nil {
		return err
	}

	book := newOutcomeBook(output)
	worker := service.NewWatchWorker(a.Extraction, service.WatchConfig{
		Concurrency: cfg.Pipeline.DocumentConcurrency,
	}, func(res *service.BatchResult) {
		if err := book.update(res.Outcomes); err != nil {
			a.Logger.Error("cli.watch: writing workbook failed", zap.String("path", output), zap.Error(err))
			return
		}
		a.Logger.Info("cli.watch: workbook updated",
			zap.String("path", output),
			zap.String("run_id", res.Run.ID.String()),
			zap.String("status", string(res.Run.Status)))
	}, a.Logger)

	cmd.Printf("Watching %s, writing %s (Ctrl+C to stop)\n", input, output)
	worker.Start(ctx, paths)
	return nil
}
