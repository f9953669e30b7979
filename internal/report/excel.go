package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"termsheet/internal/domain"
)

// ExcelWriter builds a workbook with an EXPORT sheet and a RESULTS audit sheet.
type ExcelWriter struct{}

// Build returns the workbook for outcomes. The caller must Close it.
func (ExcelWriter) Build(outcomes []domain.DocumentOutcome) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ExportSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("naming export sheet: %w", err)
	}
	if _, err := f.NewSheet(ResultsSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("creating results sheet: %w", err)
	}

	if err := writeSheet(f, ExportSheet, ExportColumns(), ExportRows(outcomes)); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := writeSheet(f, ResultsSheet, AuditColumns(), AuditRows(outcomes)); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// Write streams the workbook to w.
func (e ExcelWriter) Write(w io.Writer, outcomes []domain.DocumentOutcome) error {
	f, err := e.Build(outcomes)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// Save writes the workbook to path, replacing any existing file.
func (e ExcelWriter) Save(path string, outcomes []domain.DocumentOutcome) error {
	f, err := e.Build(outcomes)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	for i, row := range rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, n, err)
	}
	return nil
}
