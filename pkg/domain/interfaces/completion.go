package interfaces

import (
	"context"

	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/dermis/pkg/domain/model"
)

// CompletionProvider is the model collaborator
type CompletionProvider interface {
	// Complete asks the model for the next step given the transcript and the
	// capabilities it may call.
	Complete(ctx context.Context, transcript []*model.Turn, menu []gollem.ToolSpec) (*model.Completion, error)
	Embedder
}

// Embedder turns text into an embedding vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Summarizer condenses earlier conversation turns into a short paragraph
type Summarizer interface {
	Summarize(ctx context.Context, turns []*model.HistoryTurn) (string, error)
}
