package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("resource not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrRunNotFound         = errors.New("extraction run not found")
	ErrNoDocuments         = errors.New("no documents to process")

	ErrInvalidChunkParams = errors.New("chunk size must be positive and overlap must be in [0, size)")
	ErrMissingCredential  = errors.New("no credential configured for provider")
	ErrUnknownProvider    = errors.New("unknown model provider")
	ErrInvalidCatalog     = errors.New("invalid prompt catalog")
)

// ConfigurationError is fatal for a run: it is raised before any network
// call and never retried.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error (%s): %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError wraps err as a ConfigurationError for the named field.
func NewConfigurationError(field string, err error) *ConfigurationError {
	return &ConfigurationError{Field: field, Err: err}
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
