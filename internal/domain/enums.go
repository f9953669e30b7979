package domain

import "strings"

// SourceTermsheet tags chunks cut from the term-sheet document itself.
const SourceTermsheet = "termsheet"

// Scope restricts which chunks a prompt may retrieve from.
type Scope string

const (
	ScopeTermsheet Scope = "termsheet"
	ScopeBoth      Scope = "both"
)

// NormalizeScope lowercases a catalog run_for value. Missing values default to "both".
// Unknown values are kept as-is; only ScopeTermsheet narrows the chunk universe.
func NormalizeScope(runFor string) Scope {
	s := strings.ToLower(strings.TrimSpace(runFor))
	if s == "" {
		return ScopeBoth
	}
	return Scope(s)
}

// Admits reports whether a chunk with the given source tag is eligible under this scope.
func (s Scope) Admits(source string) bool {
	if s == ScopeTermsheet {
		return source == SourceTermsheet
	}
	return true
}

// FileType represents the document formats the pipeline can read.
type FileType string

const (
	FileTypePDF FileType = "pdf"
	FileTypeTXT FileType = "txt"
)

// AllowedExtensions maps file extensions (without dot) to FileType.
var AllowedExtensions = map[string]FileType{
	"pdf": FileTypePDF,
	"txt": FileTypeTXT,
}

// RunStatus represents the lifecycle of an extraction run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// DocumentStatus represents the outcome of one document inside a run.
type DocumentStatus string

const (
	DocumentStatusCompleted DocumentStatus = "completed"
	DocumentStatusFailed    DocumentStatus = "failed"
)
