package config

import (
	"fmt"
	"net/url"

	"github.com/rs/zerolog"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	switch c.LLM.Provider {
	case "ollama":
		if !validURL(c.LLM.BaseURL) {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "Ollama base URL is required",
			})
		}
	case "openai":
		if c.LLM.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.api_key",
				Message: "api_key is required for the openai provider",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown provider: %s", c.LLM.Provider),
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 1",
		})
	}

	// Validate Embedder config
	if c.Embedder.Provider != "ollama" && c.Embedder.Provider != "openai" {
		errors = append(errors, ValidationError{
			Field:   "embedder.provider",
			Message: fmt.Sprintf("unknown provider: %s", c.Embedder.Provider),
		})
	}

	// Validate Vector config
	switch c.Vector.Backend {
	case "memory":
	case "pgvector":
		if !validURL(c.Vector.URL) {
			errors = append(errors, ValidationError{
				Field:   "vector.url",
				Message: "invalid database URL",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "vector.backend",
			Message: fmt.Sprintf("unknown backend: %s", c.Vector.Backend),
		})
	}

	if c.Vector.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "vector.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Vector.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "vector.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate Mongo config
	if c.Mongo.URL != "" && !validURL(c.Mongo.URL) {
		errors = append(errors, ValidationError{
			Field:   "mongo.url",
			Message: "invalid mongo URL",
		})
	}

	// Validate Scraper config
	if c.Scraper.MaxLength < 1 {
		errors = append(errors, ValidationError{
			Field:   "scraper.max_length",
			Message: "max_length must be positive",
		})
	}

	if c.Scraper.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Transcript.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "transcript.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	// Validate Processor config
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	// Validate Agent config
	if c.Agent.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "agent.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Agent.SummaryWords < 1 {
		errors = append(errors, ValidationError{
			Field:   "agent.summary_words",
			Message: "summary_words must be positive",
		})
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errors = append(errors, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid log level: %s", c.Log.Level),
		})
	}

	return errors
}
