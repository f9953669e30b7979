package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Chunk is a bounded, overlapping window of one page's text.
type Chunk struct {
	Text       string `json:"chunk"`
	Source     string `json:"source"`
	Page       int    `json:"page"`
	ChunkIndex int    `json:"chunk_index"`
	Folder     string `json:"folder,omitempty"`
}

// ExtractionPrompt is one entry of the prompt catalog.
type ExtractionPrompt struct {
	ID          string          `json:"id,omitempty"`
	Instruction string          `json:"instruction"`
	Query       string          `json:"query,omitempty"`
	JSONSchema  json.RawMessage `json:"json_schema"`
	RunFor      string          `json:"run_for,omitempty"`
}

// Scope returns the normalized run_for value.
func (p *ExtractionPrompt) Scope() Scope {
	return NormalizeScope(p.RunFor)
}

// RetrievalQuery is the text the prompt's chunks are ranked against:
// the instruction, else the explicit query, else empty.
func (p *ExtractionPrompt) RetrievalQuery() string {
	if p.Instruction != "" {
		return p.Instruction
	}
	return p.Query
}

// ExtractionResult is the outcome of one prompt against one document.
type ExtractionResult struct {
	PromptID             string          `json:"prompt_id"`
	Scope                string          `json:"scope"`
	Result               json.RawMessage `json:"result"`
	UsedContextIndices   []int           `json:"used_context_indices"`
	RawModelOutput       string          `json:"raw_model_output"`
	RecoveredViaFallback bool            `json:"recovered_via_fallback"`
	Provider             string          `json:"provider,omitempty"`
	Error                string          `json:"error,omitempty"`
}

// extractionResultJSON mirrors ExtractionResult with a nullable prompt id.
type extractionResultJSON struct {
	PromptID             *string         `json:"prompt_id"`
	Scope                string          `json:"scope"`
	Result               json.RawMessage `json:"result"`
	UsedContextIndices   []int           `json:"used_context_indices"`
	RawModelOutput       string          `json:"raw_model_output"`
	RecoveredViaFallback bool            `json:"recovered_via_fallback"`
	Provider             string          `json:"provider,omitempty"`
	Error                string          `json:"error,omitempty"`
}

// MarshalJSON writes an empty PromptID as null.
func (r ExtractionResult) MarshalJSON() ([]byte, error) {
	out := r.withoutID()
	if r.PromptID != "" {
		id := r.PromptID
		out.PromptID = &id
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a null or missing prompt_id as an empty PromptID.
func (r *ExtractionResult) UnmarshalJSON(data []byte) error {
	var in extractionResultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = ExtractionResult{
		Scope:                in.Scope,
		Result:               in.Result,
		UsedContextIndices:   in.UsedContextIndices,
		RawModelOutput:       in.RawModelOutput,
		RecoveredViaFallback: in.RecoveredViaFallback,
		Provider:             in.Provider,
		Error:                in.Error,
	}
	if in.PromptID != nil {
		r.PromptID = *in.PromptID
	}
	return nil
}

func (r ExtractionResult) withoutID() extractionResultJSON {
	return extractionResultJSON{
		Scope:                r.Scope,
		Result:               r.Result,
		UsedContextIndices:   r.UsedContextIndices,
		RawModelOutput:       r.RawModelOutput,
		RecoveredViaFallback: r.RecoveredViaFallback,
		Provider:             r.Provider,
		Error:                r.Error,
	}
}

// Failed reports whether the model call for this prompt never produced output.
func (r *ExtractionResult) Failed() bool {
	return r.Error != ""
}

// DocumentOutcome groups the results of one document in a batch. Err is set
// when the document could not be processed at all.
type DocumentOutcome struct {
	Document string
	Folder   string
	Results  []ExtractionResult
	Err      error
}

// Status maps the outcome to its persisted status.
func (o *DocumentOutcome) Status() DocumentStatus {
	if o.Err != nil {
		return DocumentStatusFailed
	}
	return DocumentStatusCompleted
}

// Run is a persisted batch of documents processed with one provider configuration.
type Run struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Provider   string     `db:"provider" json:"provider"`
	Model      string     `db:"model" json:"model"`
	Status     RunStatus  `db:"status" json:"status"`
	StartedAt  time.Time  `db:"started_at" json:"started_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	Documents  int        `db:"documents" json:"documents"`
	Failed     int        `db:"failed" json:"failed"`
}

// RunDocument is a persisted per-document record within a run.
type RunDocument struct {
	ID        uuid.UUID      `db:"id" json:"id"`
	RunID     uuid.UUID      `db:"run_id" json:"run_id"`
	Name      string         `db:"name" json:"name"`
	Folder    string         `db:"folder" json:"folder"`
	Status    DocumentStatus `db:"status" json:"status"`
	Error     string         `db:"error" json:"error,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`

	Results []ExtractionResult `db:"-" json:"results"`
}

// StatusFor derives a run status from its document counts.
func StatusFor(documents, failed int) RunStatus {
	switch {
	case documents > 0 && failed == documents:
		return RunStatusFailed
	case failed > 0:
		return RunStatusPartial
	default:
		return RunStatusCompleted
	}
}
