package store

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/xhad/campus/pkg/index"
	"github.com/xhad/campus/pkg/processor"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

// VectorStore is an index backend that keeps chunks in Postgres. Every
// Build writes a new generation of rows; an index only sees its own
// generation.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 384 // all-minilm
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			generation UUID NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d),
			PRIMARY KEY (generation, chunk_index)
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	// Sessions live in memory, so no generation survives a restart.
	tag, err := vs.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", vs.config.TableName))
	if err != nil {
		return fmt.Errorf("failed to clear stale generations: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		log.Info().Int64("rows", n).Msg("cleared stale chunk generations")
	}

	return nil
}

// Build stores chunks and vectors as a new generation.
func (vs *VectorStore) Build(ctx context.Context, chunks []processor.Chunk, vectors [][]float32) (index.Index, error) {
	generation := uuid.New()

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (generation, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4)`,
		vs.config.TableName)

	// Insert chunks in batches
	for start := 0; start < len(chunks); start += vs.config.BatchSize {
		end := start + vs.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := &pgx.Batch{}
		for i := start; i < end; i++ {
			batch.Queue(stmt, generation.String(), chunks[i].Index,
				sanitizeUTF8(chunks[i].Text), pgvector.NewVector(vectors[i]))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("failed to insert chunks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &generationIndex{vs: vs, generation: generation, size: len(chunks)}, nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

type generationIndex struct {
	vs         *VectorStore
	generation uuid.UUID
	size       int
}

func (g *generationIndex) Len() int { return g.size }

func (g *generationIndex) Search(ctx context.Context, vector []float32, k int) ([]index.Hit, error) {
	if g.size == 0 || k <= 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT chunk_index, content, 1 - (embedding <=> $2) AS score
		FROM %s
		WHERE generation = $1
		ORDER BY embedding <=> $2, chunk_index
		LIMIT $3`,
		g.vs.config.TableName)

	rows, err := g.vs.pool.Query(ctx, query, g.generation.String(), pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var hits []index.Hit
	for rows.Next() {
		var (
			hit   index.Hit
			score float64
		)
		if err := rows.Scan(&hit.Chunk.Index, &hit.Chunk.Text, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hit.Score = float32(score)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return index.SortHits(hits, k), nil
}

// Release deletes the rows of this generation.
func (g *generationIndex) Release(ctx context.Context) error {
	tag, err := g.vs.pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE generation = $1", g.vs.config.TableName), g.generation.String())
	if err != nil {
		return fmt.Errorf("failed to delete generation %s: %w", g.generation, err)
	}
	log.Debug().Str("generation", g.generation.String()).Int64("rows", tag.RowsAffected()).Msg("released index")
	return nil
}

// sanitizeUTF8 drops invalid bytes, which Postgres rejects in TEXT columns.
func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
