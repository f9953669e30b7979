// Package ingest discovers term-sheet files in a folder, an S3 prefix or a
// watched directory.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"termsheet/internal/port"
	"termsheet/internal/textextract"
)

// Supported reports whether path has a readable extension.
func Supported(p string) bool {
	_, ok := textextract.FileTypeOf(p)
	return ok
}

// FolderName returns the base name of p without its extension.
func FolderName(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ListDocuments returns the supported files directly inside dir, sorted by name.
func ListDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// ParseS3URI splits s3://bucket/prefix into its parts.
func ParseS3URI(uri string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok || rest == "" {
		return "", "", fmt.Errorf("invalid s3 uri %q", uri)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid s3 uri %q: missing bucket", uri)
	}
	return bucket, prefix, nil
}

// FetchS3 downloads the supported objects directly under prefix into destDir
// and returns their local paths sorted by name.
func FetchS3(ctx context.Context, store port.ObjectStorage, bucket, prefix, destDir string) ([]string, error) {
	keys, err := store.List(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		rel := strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
		if rel == "" || strings.Contains(rel, "/") || !Supported(key) {
			continue
		}
		data, err := store.Download(ctx, bucket, key)
		if err != nil {
			return nil, fmt.Errorf("downloading %s: %w", key, err)
		}
		if err := os.WriteFile(filepath.Join(destDir, path.Base(key)), data, 0o600); err != nil {
			return nil, fmt.Errorf("writing %s: %w", key, err)
		}
	}
	return ListDocuments(destDir)
}
