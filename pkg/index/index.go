// Package index embeds chunked text and answers nearest-neighbour queries
// over it.
package index

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/xhad/campus/internal/models"
	"github.com/xhad/campus/pkg/processor"
)

// Hit is a chunk matched by a search, with its cosine similarity.
type Hit struct {
	Chunk processor.Chunk
	Score float32
}

// Index is an immutable set of embedded chunks.
type Index interface {
	Len() int
	// Search returns at most k hits ordered by descending score, ties
	// broken by chunk order.
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
}

// Backend stores a freshly embedded set of chunks as a new Index.
type Backend interface {
	Build(ctx context.Context, chunks []processor.Chunk, vectors [][]float32) (Index, error)
}

type IndexingError struct {
	Err error
}

func (e *IndexingError) Error() string { return "indexing failed: " + e.Err.Error() }
func (e *IndexingError) Unwrap() error { return e.Err }

type IndexerConfig struct {
	Timeout    time.Duration
	MaxRetries uint64 // extra embedding attempts after a failure
	RetryWait  time.Duration
}

type Indexer struct {
	config    IndexerConfig
	processor processor.Processor
	embedder  embeddings.Embedder
	backend   Backend
}

func defaults(config IndexerConfig) IndexerConfig {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 1
	}
	if config.RetryWait == 0 {
		config.RetryWait = 500 * time.Millisecond
	}
	return config
}

func newBackOff(ctx context.Context, config IndexerConfig) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.RetryWait
	return backoff.WithContext(backoff.WithMaxRetries(b, config.MaxRetries), ctx)
}

func NewIndexer(config IndexerConfig, p processor.Processor, embedder embeddings.Embedder, backend Backend) *Indexer {
	return &Indexer{
		config:    defaults(config),
		processor: p,
		embedder:  embedder,
		backend:   backend,
	}
}

// Build chunks doc, embeds every chunk and hands the result to the
// backend. Empty content yields an empty index without calling the embedder.
func (ix *Indexer) Build(ctx context.Context, doc models.Document) (Index, error) {
	chunks := ix.processor.Process(doc)
	if len(chunks) == 0 {
		return emptyIndex{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, ix.config.Timeout)
	defer cancel()

	var vectors [][]float32
	err := backoff.Retry(func() error {
		var err error
		vectors, err = ix.embedder.EmbedDocuments(ctx, processor.Texts(chunks))
		return err
	}, newBackOff(ctx, ix.config))
	if err != nil {
		return nil, &IndexingError{Err: fmt.Errorf("embed %d chunks: %w", len(chunks), err)}
	}
	if len(vectors) != len(chunks) {
		return nil, &IndexingError{Err: fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))}
	}

	idx, err := ix.backend.Build(ctx, chunks, vectors)
	if err != nil {
		return nil, &IndexingError{Err: err}
	}

	log.Debug().Str("source", doc.Source).Int("chunks", len(chunks)).Msg("built index")
	return idx, nil
}

type RetrieverConfig struct {
	K          int
	Timeout    time.Duration
	MaxRetries uint64
	RetryWait  time.Duration
}

type Retriever struct {
	config   RetrieverConfig
	embedder embeddings.Embedder
}

func NewRetriever(config RetrieverConfig, embedder embeddings.Embedder) *Retriever {
	if config.K == 0 {
		config.K = 2
	}
	ic := defaults(IndexerConfig{Timeout: config.Timeout, MaxRetries: config.MaxRetries, RetryWait: config.RetryWait})
	config.Timeout, config.MaxRetries, config.RetryWait = ic.Timeout, ic.MaxRetries, ic.RetryWait

	return &Retriever{config: config, embedder: embedder}
}

// Retrieve returns the text of the k chunks closest to query, joined by
// single spaces. A nil or empty index gives "".
func (r *Retriever) Retrieve(ctx context.Context, idx Index, query string) (string, error) {
	if idx == nil || idx.Len() == 0 {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	var vector []float32
	err := backoff.Retry(func() error {
		var err error
		vector, err = r.embedder.EmbedQuery(ctx, query)
		return err
	}, newBackOff(ctx, IndexerConfig{MaxRetries: r.config.MaxRetries, RetryWait: r.config.RetryWait}))
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}

	hits, err := idx.Search(ctx, vector, r.config.K)
	if err != nil {
		return "", fmt.Errorf("search index: %w", err)
	}

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Chunk.Text
	}
	return strings.Join(texts, " "), nil
}

// SortHits orders hits by descending score, ties by chunk order, and keeps
// the first k.
func SortHits(hits []Hit, k int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.Index < hits[j].Chunk.Index
	})
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

type emptyIndex struct{}

func (emptyIndex) Len() int { return 0 }

func (emptyIndex) Search(context.Context, []float32, int) ([]Hit, error) { return nil, nil }
