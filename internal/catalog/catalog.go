// Package catalog loads and validates the prompt catalog: a JSON array of
// {id?, instruction, json_schema, run_for?, query?} entries.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"termsheet/internal/domain"
)

const catalogSchemaURL = "catalog.schema.json"

// catalogSchema is the structure every catalog file must satisfy.
const catalogSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["instruction", "json_schema"],
    "properties": {
      "id": {"type": ["string", "number", "null"]},
      "instruction": {"type": "string"},
      "query": {"type": ["string", "null"]},
      "json_schema": {},
      "run_for": {"type": ["string", "null"]}
    }
  }
}`

var compiled = mustCompile()

func mustCompile() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(catalogSchemaURL, strings.NewReader(catalogSchema)); err != nil {
		panic(fmt.Sprintf("catalog: add schema: %v", err))
	}
	return compiler.MustCompile(catalogSchemaURL)
}

type entry struct {
	ID          json.RawMessage `json:"id"`
	Instruction string          `json:"instruction"`
	Query       *string         `json:"query"`
	JSONSchema  json.RawMessage `json:"json_schema"`
	RunFor      *string         `json:"run_for"`
}

// Load reads and validates the catalog at path. Any failure is a
// ConfigurationError wrapping domain.ErrInvalidCatalog.
func Load(path string) ([]domain.ExtractionPrompt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, invalid(fmt.Errorf("reading %s: %w", path, err))
	}
	return Parse(data)
}

// Parse validates catalog JSON and converts it to prompts in file order.
func Parse(data []byte) ([]domain.ExtractionPrompt, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, invalid(fmt.Errorf("parsing catalog: %w", err))
	}
	if err := compiled.Validate(doc); err != nil {
		return nil, invalid(fmt.Errorf("catalog does not match schema: %w", err))
	}

	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, invalid(fmt.Errorf("decoding catalog: %w", err))
	}

	prompts := make([]domain.ExtractionPrompt, len(entries))
	for i, e := range entries {
		prompts[i] = domain.ExtractionPrompt{
			ID:          renderID(e.ID),
			Instruction: e.Instruction,
			JSONSchema:  e.JSONSchema,
		}
		if e.Query != nil {
			prompts[i].Query = *e.Query
		}
		if e.RunFor != nil {
			prompts[i].RunFor = *e.RunFor
		}
	}
	return prompts, nil
}

// renderID returns string ids as-is and numbers as their literal text.
func renderID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func invalid(err error) error {
	return domain.NewConfigurationError("pipeline.prompts_file", fmt.Errorf("%w: %w", domain.ErrInvalidCatalog, err))
}
