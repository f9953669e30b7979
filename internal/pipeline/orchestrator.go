// Package pipeline runs the prompt catalog against one document's chunks:
// scope filter, TF-IDF retrieval, context assembly, request building, the
// model call and result recovery.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"termsheet/internal/assembler"
	"termsheet/internal/domain"
	"termsheet/internal/gateway"
	"termsheet/internal/logger"
	"termsheet/internal/metrics"
	"termsheet/internal/port"
	"termsheet/internal/prompt"
	"termsheet/internal/recovery"
	"termsheet/internal/retrieval"
)

// DefaultTopK is the number of chunks retrieved per prompt.
const DefaultTopK = 40

// Orchestrator is safe for concurrent use across documents.
type Orchestrator struct {
	backend     port.NamedBackend
	assembler   *assembler.Assembler
	topK        int
	temperature float64
	concurrency int
	logger      *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTopK sets how many chunks each prompt retrieves.
func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithTemperature overrides the sampling temperature (0 by default).
func WithTemperature(t float64) Option {
	return func(o *Orchestrator) { o.temperature = t }
}

// WithPromptConcurrency runs up to n prompts at once. Results keep catalog order.
func WithPromptConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithAssembler replaces the unbounded default assembler.
func WithAssembler(a *assembler.Assembler) Option {
	return func(o *Orchestrator) {
		if a != nil {
			o.assembler = a
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger.OrNop(l) }
}

// New creates an Orchestrator sending every request through backend.
func New(backend port.NamedBackend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:     backend,
		assembler:   assembler.New(),
		topK:        DefaultTopK,
		concurrency: 1,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Backend returns the gateway the orchestrator sends through.
func (o *Orchestrator) Backend() port.NamedBackend {
	return o.backend
}

// Run executes every prompt against chunks and returns one result per prompt
// in catalog order. A prompt whose model call fails carries Error and the
// remaining prompts still run. Run itself fails only when ctx is done or the
// backend rejects its credentials.
func (o *Orchestrator) Run(ctx context.Context, chunks []domain.Chunk, prompts []domain.ExtractionPrompt) ([]domain.ExtractionResult, error) {
	results := make([]domain.ExtractionResult, len(prompts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i := range prompts {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := o.runPrompt(gctx, chunks, &prompts[i])
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (o *Orchestrator) runPrompt(ctx context.Context, chunks []domain.Chunk, p *domain.ExtractionPrompt) (domain.ExtractionResult, error) {
	scope := p.Scope()
	eligible := Filter(chunks, scope)

	texts := make([]string, len(eligible))
	for i := range eligible {
		texts[i] = eligible[i].Text
	}
	idx := retrieval.Build(texts)
	positions := idx.Query(p.RetrievalQuery(), o.topK)
	contextText, used := o.assembler.Assemble(eligible, positions)
	o.logger.Debug("pipeline.Orchestrator: retrieved context",
		zap.String("prompt_id", p.ID),
		zap.Int("indexed", idx.Len()),
		zap.Int("ranked", len(positions)),
		zap.Int("used", len(used)))

	res := domain.ExtractionResult{
		PromptID:           p.ID,
		Scope:              string(scope),
		UsedContextIndices: used,
		Provider:           o.backend.Name(),
	}

	msgs, err := prompt.Build(contextText, p.Instruction, p.JSONSchema)
	if err != nil {
		res.Error = fmt.Sprintf("building request: %v", err)
		metrics.RecordPromptFailure()
		return res, nil
	}

	raw, err := o.backend.Send(ctx, msgs, o.temperature)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		if gateway.IsAuthentication(err) {
			return res, fmt.Errorf("prompt %q: %w", p.ID, err)
		}
		o.logger.Warn("pipeline.Orchestrator: prompt failed",
			zap.String("prompt_id", p.ID),
			zap.String("provider", o.backend.Name()),
			zap.Error(err))
		metrics.RecordPromptFailure()
		res.Error = err.Error()
		return res, nil
	}

	recovered := recovery.Recover(raw)
	if recovered.Fallback() {
		metrics.RecordRecoveryFallback(string(recovered.Kind))
		o.logger.Info("pipeline.Orchestrator: recovered malformed model output",
			zap.String("prompt_id", p.ID),
			zap.String("kind", string(recovered.Kind)))
	}
	res.Result = recovered.Value
	res.RawModelOutput = raw
	res.RecoveredViaFallback = recovered.Fallback()
	return res, nil
}

// Filter returns the chunks eligible under scope, preserving order.
func Filter(chunks []domain.Chunk, scope domain.Scope) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(chunks))
	for i := range chunks {
		if scope.Admits(chunks[i].Source) {
			out = append(out, chunks[i])
		}
	}
	return out
}
