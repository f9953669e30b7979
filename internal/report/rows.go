// Package report renders extraction outcomes as Excel workbooks and CSV files.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"termsheet/internal/domain"
	"termsheet/internal/recovery"
)

// ExportSheet and ResultsSheet are the workbook sheet names.
const (
	ExportSheet  = "EXPORT"
	ResultsSheet = "RESULTS"
)

// exportFields are the term-sheet fields read from each result object, in column order.
var exportFields = []string{
	"ISIN", "Bond Type", "Issuer", "Bond Size", "Currency", "Coupon",
	"Issuance Date", "Maturity Date", "Exchange Listing", "Paying Agent",
	"Moody's", "S&P", "Fitch", "Status of Notes", "Method of Distribution",
	"Syndicate", "Source", "Comment", "Date",
}

// sourceFileColumn names the document a row came from.
const sourceFileColumn = "Source File"

// ExportColumns returns the EXPORT header row (20 columns).
func ExportColumns() []string {
	return append(append([]string{}, exportFields...), sourceFileColumn)
}

var auditColumns = []string{
	"Source File", "Prompt ID", "Scope", "Provider",
	"Recovered Via Fallback", "Used Context", "Error", "Raw Output",
}

// AuditColumns returns the RESULTS header row.
func AuditColumns() []string {
	return append([]string{}, auditColumns...)
}

// ExportRows returns one row per result whose value is a JSON object.
// Failed prompts and unrecovered output are left out.
func ExportRows(outcomes []domain.DocumentOutcome) [][]string {
	var rows [][]string
	for i := range outcomes {
		o := &outcomes[i]
		for j := range o.Results {
			r := &o.Results[j]
			if r.Failed() {
				continue
			}
			if _, isRaw := recovery.RawText(r.Result); isRaw {
				continue
			}
			obj, ok := decodeObject(r.Result)
			if !ok {
				continue
			}
			row := make([]string, 0, len(exportFields)+1)
			for _, f := range exportFields {
				row = append(row, Cell(obj[f]))
			}
			rows = append(rows, append(row, o.Document))
		}
	}
	return rows
}

// AuditRows returns one row per result, plus one per document that failed outright.
func AuditRows(outcomes []domain.DocumentOutcome) [][]string {
	var rows [][]string
	for i := range outcomes {
		o := &outcomes[i]
		if o.Err != nil {
			rows = append(rows, []string{o.Document, "", "", "", "", "", o.Err.Error(), ""})
			continue
		}
		for j := range o.Results {
			r := &o.Results[j]
			rows = append(rows, []string{
				o.Document,
				r.PromptID,
				r.Scope,
				r.Provider,
				formatBool(r.RecoveredViaFallback),
				joinInts(r.UsedContextIndices),
				r.Error,
				r.RawModelOutput,
			})
		}
	}
	return rows
}

func decodeObject(raw json.RawMessage) (map[string]any, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// Cell renders a decoded JSON value for a spreadsheet cell. Lists of scalars
// are joined with ", "; other containers become compact JSON; null is "".
func Cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			switch item.(type) {
			case []any, map[string]any:
				return compactJSON(t)
			}
			parts = append(parts, Cell(item))
		}
		return strings.Join(parts, ", ")
	default:
		return compactJSON(t)
	}
}

func compactJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}

// FromRunDocuments converts stored documents back into outcomes for reporting.
func FromRunDocuments(docs []domain.RunDocument) []domain.DocumentOutcome {
	out := make([]domain.DocumentOutcome, len(docs))
	for i := range docs {
		d := &docs[i]
		out[i] = domain.DocumentOutcome{Document: d.Name, Folder: d.Folder, Results: d.Results}
		if d.Error != "" {
			out[i].Err = errors.New(d.Error)
		}
	}
	return out
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a name for use in Content-Disposition.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns {sanitized_name}_{YYYY-MM-DD}.{ext}.
func BuildFilename(name, ext string) string {
	return fmt.Sprintf("%s_%s.%s", SanitizeFilename(name), time.Now().Format("2006-01-02"), ext)
}
