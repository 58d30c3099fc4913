package types

import (
	"context"

	"github.com/xhad/campus/internal/models"
	"github.com/xhad/campus/pkg/index"
	"github.com/xhad/campus/pkg/llm"
)

// Core interfaces
type PageExtractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoID string) (string, error)
}

type Indexer interface {
	Build(ctx context.Context, doc models.Document) (index.Index, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, idx index.Index, query string) (string, error)
}

type Generator interface {
	Generate(ctx context.Context, p llm.Prompt) (string, error)
}

type StudentSource interface {
	All(ctx context.Context) ([]models.Student, error)
}

type StudentStore interface {
	StudentSource
	Add(ctx context.Context, s models.Student) error
}

type EventStore interface {
	All(ctx context.Context) ([]models.Event, error)
	Add(ctx context.Context, e models.Event) (string, error)
	Delete(ctx context.Context, id string) error
}
