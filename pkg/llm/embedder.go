package llm

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

type EmbedderConfig struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

// NewEmbedder builds the embedding model used for both chunks and queries.
func NewEmbedder(config EmbedderConfig) (*embeddings.EmbedderImpl, error) {
	if config.Provider == "" {
		config.Provider = ProviderOllama
	}
	if config.Model == "" {
		config.Model = "all-minilm"
	}

	var client embeddings.EmbedderClient
	var err error
	switch config.Provider {
	case ProviderOllama:
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		client, err = ollama.New(ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
	case ProviderOpenAI:
		opts := []openai.Option{
			openai.WithEmbeddingModel(config.Model),
			openai.WithToken(strings.TrimPrefix(config.APIKey, "Bearer ")),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		client, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}
