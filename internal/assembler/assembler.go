// Package assembler renders retrieved chunks into the context block sent to the model.
package assembler

import (
	"fmt"
	"strings"

	"termsheet/internal/domain"
)

// Separator joins rendered chunk blocks.
const Separator = "\n\n---\n\n"

// Header renders the provenance line for a chunk.
func Header(c *domain.Chunk) string {
	return fmt.Sprintf("[source: %s] [page: %d] [chunk_idx: %d]", c.Source, c.Page, c.ChunkIndex)
}

func render(c *domain.Chunk) string {
	return Header(c) + "\n" + c.Text
}

// Assemble renders chunks at positions, in the order given, without budget.
func Assemble(chunks []domain.Chunk, positions []int) string {
	parts := make([]string, 0, len(positions))
	for _, i := range positions {
		parts = append(parts, render(&chunks[i]))
	}
	return strings.Join(parts, Separator)
}

// TokenCounter counts model tokens in a string.
type TokenCounter interface {
	CountTokens(text string) int
}

// Assembler renders context under an optional token budget.
type Assembler struct {
	budget  int
	counter TokenCounter
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithTokenBudget caps the rendered context at n tokens as measured by counter.
// n <= 0 means unlimited.
func WithTokenBudget(n int, counter TokenCounter) Option {
	return func(a *Assembler) {
		a.budget = n
		a.counter = counter
	}
}

// New creates an Assembler.
func New(opts ...Option) *Assembler {
	a := &Assembler{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble renders blocks in retrieval order until the next block would
// overflow the budget, and returns the context with the positions actually
// used. The first block is always kept so a match never yields empty context.
func (a *Assembler) Assemble(chunks []domain.Chunk, positions []int) (string, []int) {
	if a.budget <= 0 || a.counter == nil {
		return Assemble(chunks, positions), positions
	}

	sepTokens := a.counter.CountTokens(Separator)
	used := make([]int, 0, len(positions))
	parts := make([]string, 0, len(positions))
	total := 0
	for _, i := range positions {
		block := render(&chunks[i])
		cost := a.counter.CountTokens(block)
		if len(parts) > 0 {
			cost += sepTokens
		}
		if len(parts) > 0 && total+cost > a.budget {
			break
		}
		parts = append(parts, block)
		used = append(used, i)
		total += cost
	}
	return strings.Join(parts, Separator), used
}
