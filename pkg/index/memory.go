package index

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/xhad/campus/pkg/processor"
)

const collectionName = "content"

// MemoryBackend keeps each index in its own in-process chromem database.
type MemoryBackend struct{}

func (MemoryBackend) Build(ctx context.Context, chunks []processor.Chunk, vectors [][]float32) (Index, error) {
	db := chromem.NewDB()
	c, err := db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:        uuid.NewString(),
			Content:   chunk.Text,
			Metadata:  map[string]string{"index": strconv.Itoa(chunk.Index)},
			Embedding: vectors[i],
		}
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}

	return &memoryIndex{collection: c}, nil
}

type memoryIndex struct {
	collection *chromem.Collection
}

func (m *memoryIndex) Len() int {
	return m.collection.Count()
}

// Search scores every chunk so that ties at the cut-off are resolved by
// chunk order rather than by the collection's internal order.
func (m *memoryIndex) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	n := m.collection.Count()
	if n == 0 || k <= 0 {
		return nil, nil
	}

	results, err := m.collection.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		idx, err := strconv.Atoi(r.Metadata["index"])
		if err != nil {
			return nil, fmt.Errorf("chunk %s has no index: %w", r.ID, err)
		}
		hits = append(hits, Hit{
			Chunk: processor.Chunk{Index: idx, Text: r.Content},
			Score: r.Similarity,
		})
	}
	return SortHits(hits, k), nil
}
