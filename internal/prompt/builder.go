// Package prompt builds the system/user message pair for an extraction request.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"

	"termsheet/internal/port"
)

// SystemMessage is the fixed extraction contract given to every model.
const SystemMessage = "You are a JSON extraction assistant. Use ONLY the provided CONTEXT to answer. " +
	"Output must be valid JSON and must match the provided schema or example. " +
	"If a field cannot be found in the context, set it to null or an empty string."

// Build assembles context, instruction and schema into a request. Section
// order is context, then instruction, then schema.
func Build(context, instruction string, schema json.RawMessage) (port.Messages, error) {
	pretty, err := Indent(schema)
	if err != nil {
		return port.Messages{}, err
	}

	user := "CONTEXT:\n\n" + context + "\n\n" +
		"INSTRUCTION:\n\n" + instruction + "\n\n" +
		"OUTPUT_SCHEMA / EXAMPLE:\n\n" + pretty + "\n\n" +
		"Return ONLY the JSON (no extra commentary)."

	return port.Messages{System: SystemMessage, User: user}, nil
}

// Indent pretty-prints a JSON value with two-space indentation.
func Indent(schema json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(schema)) == 0 {
		return "null", nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, schema, "", "  "); err != nil {
		return "", fmt.Errorf("rendering json_schema: %w", err)
	}
	return buf.String(), nil
}
