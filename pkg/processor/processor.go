package processor

import (
	"fmt"

	"github.com/xhad/campus/internal/models"
)

type ProcessorConfig struct {
	ChunkSize    int // window, in characters
	ChunkOverlap int // characters shared by consecutive chunks
}

// Chunk is a contiguous piece of a source document. Index is its position
// in the split order.
type Chunk struct {
	Index int
	Text  string
}

type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) (Processor, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 500
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 50
	}
	if config.ChunkSize < 1 {
		return Processor{}, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return Processor{}, fmt.Errorf("chunk overlap %d must be in [0, %d)", config.ChunkOverlap, config.ChunkSize)
	}

	return Processor{config: config}, nil
}

func (p Processor) Config() ProcessorConfig {
	return p.config
}

// Process splits the content of doc into chunks.
func (p Processor) Process(doc models.Document) []Chunk {
	return p.Split(doc.Content)
}

// Split cuts text into windows of ChunkSize characters, advancing by
// ChunkSize-ChunkOverlap until the end of the text is covered. The last
// chunk may be shorter. Empty text gives no chunks.
func (p Processor) Split(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	stride := p.config.ChunkSize - p.config.ChunkOverlap
	var chunks []Chunk
	for start := 0; ; start += stride {
		end := start + p.config.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// Texts returns the text of every chunk, in order.
func Texts(chunks []Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}
