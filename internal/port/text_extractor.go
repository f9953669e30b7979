package port

import "context"

// TextExtractor returns a document's text, one string per page. A page with
// no extractable text yields "".
type TextExtractor interface {
	ExtractPages(ctx context.Context, path string) ([]string, error)
}
