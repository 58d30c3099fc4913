package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai" // any OpenAI-compatible host, e.g. Groq
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider     string
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
}

// Prompt is one question for the model. When Grounded is set the context
// is sent along with the query, even if it is empty.
type Prompt struct {
	Query    string
	Context  string
	Grounded bool
}

// UserMessage renders the human turn of the conversation.
func (p Prompt) UserMessage() string {
	if p.Grounded {
		return fmt.Sprintf("Context: %s\nQuery: %s", p.Context, p.Query)
	}
	return fmt.Sprintf("Query: %s", p.Query)
}

type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return "generation failed: " + e.Err.Error() }
func (e *GenerationError) Unwrap() error { return e.Err }

// ChatEngine is an engine that uses an LLM to generate chat responses.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

func applyChatDefaults(config ChatConfig) (ChatConfig, error) {
	if config.Provider == "" {
		config.Provider = ProviderOllama
	}
	if config.Model == "" {
		config.Model = "mistral" // Default Ollama model
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return config, fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return config, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = "You are a helpful assistant."
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return config, nil
}

// NewWithConfig creates a new ChatEngine backed by the configured provider.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	config, err := applyChatDefaults(config)
	if err != nil {
		return nil, err
	}

	var model llms.Model
	switch config.Provider {
	case ProviderOllama:
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434" // Default Ollama URL
		}
		model, err = ollama.New(ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
	case ProviderOpenAI:
		opts := []openai.Option{
			openai.WithModel(config.Model),
			openai.WithToken(strings.TrimPrefix(config.APIKey, "Bearer ")),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		model, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    model,
	}, nil
}

// NewWithModel wraps an already constructed model.
func NewWithModel(config ChatConfig, model llms.Model) (*ChatEngine, error) {
	config, err := applyChatDefaults(config)
	if err != nil {
		return nil, err
	}
	return &ChatEngine{config: config, llm: model}, nil
}

// Generate sends the system prompt and p to the model and returns the text
// of the first choice. It is not retried.
func (ce *ChatEngine) Generate(ctx context.Context, p Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ce.config.Timeout)
	defer cancel()

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, ce.config.SystemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, p.UserMessage()),
	}

	response, err := ce.llm.GenerateContent(ctx, content,
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens))
	if err != nil {
		return "", &GenerationError{Err: fmt.Errorf("chat error: %w", err)}
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", &GenerationError{Err: fmt.Errorf("no response from LLM")}
	}

	return response.Choices[0].Content, nil
}
