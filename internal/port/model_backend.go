package port

import "context"

// Messages is a model-ready request: a fixed system contract plus the user payload.
type Messages struct {
	System string
	User   string
}

// ModelBackend sends one extraction request to a language model and returns its raw text.
type ModelBackend interface {
	Send(ctx context.Context, msgs Messages, temperature float64) (string, error)
}

// NamedBackend is a ModelBackend that can report which provider and model answer it.
type NamedBackend interface {
	ModelBackend
	Name() string
	Model() string
}
