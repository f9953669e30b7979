// Package textextract reads per-page text from term-sheet files.
package textextract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"termsheet/internal/domain"
	"termsheet/internal/port"
)

// PDFExtractor reads the plain text layer of every page.
type PDFExtractor struct{}

// ExtractPages returns one string per page. Pages without a text layer yield "".
func (PDFExtractor) ExtractPages(ctx context.Context, path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = f.Close() }()

	n := r.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			// Image-only or damaged page.
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// PageSeparator splits plain-text documents into pages.
const PageSeparator = "\f"

// PlainTextExtractor treats form feeds as page breaks.
type PlainTextExtractor struct{}

func (PlainTextExtractor) ExtractPages(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if len(data) == 0 {
		return []string{}, nil
	}
	return strings.Split(string(data), PageSeparator), nil
}

// ByExtension dispatches to an extractor by file extension.
type ByExtension map[domain.FileType]port.TextExtractor

// Default returns the PDF and plain-text extractors.
func Default() ByExtension {
	return ByExtension{
		domain.FileTypePDF: PDFExtractor{},
		domain.FileTypeTXT: PlainTextExtractor{},
	}
}

// FileTypeOf returns the supported type of path, matched case-insensitively.
func FileTypeOf(path string) (domain.FileType, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	ft, ok := domain.AllowedExtensions[ext]
	return ft, ok
}

func (b ByExtension) ExtractPages(ctx context.Context, path string) ([]string, error) {
	ft, ok := FileTypeOf(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, filepath.Ext(path))
	}
	ex, ok := b[ft]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, ft)
	}
	return ex.ExtractPages(ctx, path)
}
