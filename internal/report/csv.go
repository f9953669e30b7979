package report

import (
	"encoding/csv"
	"io"

	"termsheet/internal/domain"
)

// BOM is the UTF-8 byte order mark Excel needs to detect encoding.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes the EXPORT columns as CSV.
type CSVWriter struct {
	csv *csv.Writer
}

// NewCSVWriter creates a CSVWriter that writes to w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{csv: csv.NewWriter(w)}
}

// WriteHeader writes the EXPORT header row.
func (w *CSVWriter) WriteHeader() error {
	return w.csv.Write(ExportColumns())
}

// WriteOutcomes writes one row per exportable result.
func (w *CSVWriter) WriteOutcomes(outcomes []domain.DocumentOutcome) error {
	for _, row := range ExportRows(outcomes) {
		if err := w.csv.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *CSVWriter) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *CSVWriter) Error() error {
	return w.csv.Error()
}

// WriteCSV writes a BOM, the header and every exportable row.
func WriteCSV(out io.Writer, outcomes []domain.DocumentOutcome) error {
	if _, err := out.Write(BOM); err != nil {
		return err
	}
	w := NewCSVWriter(out)
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if err := w.WriteOutcomes(outcomes); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
