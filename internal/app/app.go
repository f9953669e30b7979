// Package app wires configuration into the extraction service shared by the
// HTTP server and the command-line tool.
package app

import (
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"termsheet/internal/assembler"
	"termsheet/internal/catalog"
	"termsheet/internal/chunker"
	"termsheet/internal/config"
	"termsheet/internal/domain"
	"termsheet/internal/gateway"
	"termsheet/internal/logger"
	"termsheet/internal/notify/noop"
	"termsheet/internal/notify/ses"
	"termsheet/internal/pipeline"
	"termsheet/internal/port"
	"termsheet/internal/repository/sqlstore"
	"termsheet/internal/service"
	s3storage "termsheet/internal/storage/s3"
	"termsheet/internal/textextract"

	// Model providers register themselves with the gateway.
	_ "termsheet/internal/gateway/anthropic"
	_ "termsheet/internal/gateway/gemini"
	_ "termsheet/internal/gateway/ollama"
	_ "termsheet/internal/gateway/openaicompat"
)

// App holds the wired components of one process.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *sqlx.DB
	Extraction service.ExtractionService
	Prompts    []domain.ExtractionPrompt

	backend   port.NamedBackend
	assembler *assembler.Assembler

	mu        sync.Mutex
	overrides map[string]port.NamedBackend
	storage   port.ObjectStorage
}

// Option adjusts how New wires the application.
type Option func(*options)

type options struct {
	backend port.NamedBackend
	noStore bool
}

// WithBackend replaces the configured gateway, mainly for tests.
func WithBackend(b port.NamedBackend) Option {
	return func(o *options) { o.backend = b }
}

// WithoutStore skips the result store; runs are not persisted.
func WithoutStore() Option {
	return func(o *options) { o.noStore = true }
}

// New validates cfg and builds every component. The caller must Close the
// returned App.
func New(cfg *config.Config, l *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l = logger.OrNop(l)

	a := &App{Config: cfg, Logger: l, overrides: map[string]port.NamedBackend{}}

	prompts, err := catalog.Load(cfg.Pipeline.PromptsFile)
	if err != nil {
		return nil, err
	}
	a.Prompts = prompts

	ch, err := chunker.New(chunker.WithChunkSize(cfg.Pipeline.ChunkSize), chunker.WithOverlap(cfg.Pipeline.Overlap))
	if err != nil {
		return nil, domain.NewConfigurationError("pipeline.chunk_size", err)
	}

	a.assembler, err = newAssembler(cfg.Pipeline.ContextTokenBudget)
	if err != nil {
		return nil, err
	}

	a.backend = o.backend
	if a.backend == nil {
		a.backend, err = gateway.NewFromConfig(&cfg.LLM, l)
		if err != nil {
			return nil, err
		}
	}

	var repo port.RunRepository
	if !o.noStore {
		a.DB, err = sqlstore.NewDB(&cfg.DB)
		if err != nil {
			return nil, err
		}
		if err := sqlstore.Migrate(a.DB, cfg.DB.Driver); err != nil {
			_ = a.DB.Close()
			return nil, err
		}
		repo = sqlstore.NewStore(a.DB)
	}

	notifier, err := newNotifier(&cfg.Notify, l)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Extraction = service.NewExtractionService(service.ExtractionDeps{
		Extractor:    textextract.Default(),
		Chunker:      ch,
		Orchestrator: a.orchestrator(a.backend, cfg.Pipeline.TopK),
		Factory:      a.orchestratorFor,
		Prompts:      prompts,
		Repo:         repo,
		Notifier:     notifier,
		Concurrency:  cfg.Pipeline.DocumentConcurrency,
		Logger:       l,
	})

	l.Info("app: wired",
		zap.String("backend", a.backend.Name()),
		zap.String("model", a.backend.Model()),
		zap.Int("prompts", len(prompts)),
		zap.Bool("store", repo != nil),
		zap.String("notify", cfg.Notify.Provider))
	return a, nil
}

func newAssembler(budget int) (*assembler.Assembler, error) {
	if budget <= 0 {
		return assembler.New(), nil
	}
	counter, err := assembler.NewBPECounter("")
	if err != nil {
		return nil, domain.NewConfigurationError("pipeline.context_token_budget", err)
	}
	return assembler.New(assembler.WithTokenBudget(budget, counter)), nil
}

func newNotifier(cfg *config.NotifyConfig, l *zap.Logger) (port.RunNotifier, error) {
	switch cfg.Provider {
	case "", "noop":
		return noop.NewNoopNotifier(l), nil
	case "ses":
		n, err := ses.NewSESNotifier(cfg.Region, cfg.FromAddress, cfg.Recipients)
		if err != nil {
			return nil, domain.NewConfigurationError("notify.provider", err)
		}
		return n, nil
	default:
		return nil, domain.NewConfigurationError("notify.provider", fmt.Errorf("unsupported notifier %q", cfg.Provider))
	}
}

func (a *App) orchestrator(b port.NamedBackend, topK int) *pipeline.Orchestrator {
	return pipeline.New(b,
		pipeline.WithTopK(topK),
		pipeline.WithTemperature(a.Config.Pipeline.Temperature),
		pipeline.WithPromptConcurrency(a.Config.Pipeline.PromptConcurrency),
		pipeline.WithAssembler(a.assembler),
		pipeline.WithLogger(a.Logger),
	)
}

// orchestratorFor serves per-request provider and top_k overrides. A provider
// that matches a configured slot reuses that slot's settings; any other gets
// its default model and environment credential. Backends are built once.
func (a *App) orchestratorFor(provider string, topK int) (*pipeline.Orchestrator, error) {
	if topK <= 0 {
		topK = a.Config.Pipeline.TopK
	}
	if provider == "" {
		return a.orchestrator(a.backend, topK), nil
	}

	b, err := a.overrideBackend(provider)
	if err != nil {
		return nil, err
	}
	return a.orchestrator(b, topK), nil
}

func (a *App) overrideBackend(provider string) (port.NamedBackend, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if b, ok := a.overrides[provider]; ok {
		return b, nil
	}

	pc := a.slotFor(provider)
	b, err := gateway.New([]*config.ProviderConfig{pc}, gateway.Options{Logger: a.Logger})
	if err != nil {
		return nil, err
	}
	a.overrides[provider] = b
	return b, nil
}

func (a *App) slotFor(provider string) *config.ProviderConfig {
	for _, slot := range a.Config.LLM.Chain() {
		if slot.Provider == provider {
			pc := *slot
			return &pc
		}
	}
	primary := a.Config.LLM.Primary
	return &config.ProviderConfig{
		Provider:          provider,
		APIKey:            config.ProviderAPIKey(provider),
		Model:             config.DefaultModel(provider),
		MaxRetries:        primary.MaxRetries,
		TimeoutSecs:       primary.TimeoutSecs,
		RequestsPerMinute: primary.RequestsPerMinute,
	}
}

// Backend returns the configured model gateway.
func (a *App) Backend() port.NamedBackend {
	return a.backend
}

// ObjectStorage returns the S3 client, creating it on first use.
func (a *App) ObjectStorage() (port.ObjectStorage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.storage != nil {
		return a.storage, nil
	}
	st, err := s3storage.NewS3Client(&a.Config.S3)
	if err != nil {
		return nil, err
	}
	a.storage = st
	return st, nil
}

type stopper interface{ Close() }

// Close releases the result store and any response caches.
func (a *App) Close() {
	for _, b := range append([]port.NamedBackend{a.backend}, a.overrideList()...) {
		if s, ok := b.(stopper); ok {
			s.Close()
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("app: closing result store", zap.Error(err))
		}
	}
}

func (a *App) overrideList() []port.NamedBackend {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]port.NamedBackend, 0, len(a.overrides))
	for _, b := range a.overrides {
		out = append(out, b)
	}
	return out
}
