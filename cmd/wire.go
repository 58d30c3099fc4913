package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/xhad/campus/internal/types"
	"github.com/xhad/campus/pkg/agent"
	cfgPkg "github.com/xhad/campus/pkg/config"
	"github.com/xhad/campus/pkg/index"
	"github.com/xhad/campus/pkg/llm"
	"github.com/xhad/campus/pkg/processor"
	"github.com/xhad/campus/pkg/records"
	"github.com/xhad/campus/pkg/scraper"
	"github.com/xhad/campus/pkg/store"
	"github.com/xhad/campus/pkg/transcript"
)

// app holds everything built from the configuration.
type app struct {
	agent    *agent.Agent
	students types.StudentStore
	events   types.EventStore
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg *cfgPkg.Config) (*app, error) {
	a := &app{}

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		Provider: cfg.Embedder.Provider,
		Model:    cfg.Embedder.Model,
		BaseURL:  cfg.Embedder.BaseURL,
		APIKey:   cfg.Embedder.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	proc, err := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: cfg.Processor.ChunkOverlap,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize processor: %w", err)
	}

	var backend index.Backend = index.MemoryBackend{}
	if cfg.Vector.Backend == "pgvector" {
		vectorStore, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
			ConnString: cfg.Vector.URL,
			TableName:  cfg.Vector.TableName,
			VectorDim:  cfg.Vector.VectorDim,
			BatchSize:  cfg.Vector.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		a.closers = append(a.closers, vectorStore.Close)
		backend = vectorStore
	}
	log.Info().Str("backend", cfg.Vector.Backend).Msg("index backend ready")

	if err := a.openRecords(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	faq, err := agent.LoadFAQ(cfg.Agent.FAQPath)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.agent = agent.New(agent.Config{SummaryWords: cfg.Agent.SummaryWords}, agent.Deps{
		Pages: scraper.NewWithConfig(scraper.ScraperConfig{
			MaxLength: cfg.Scraper.MaxLength,
			RateLimit: cfg.Scraper.RateLimit,
			Timeout:   cfg.Scraper.Timeout,
			UserAgent: cfg.Scraper.UserAgent,
		}),
		Videos: transcript.NewWithConfig(transcript.ClientConfig{
			Language:  cfg.Transcript.Language,
			RateLimit: cfg.Transcript.RateLimit,
			Timeout:   cfg.Transcript.Timeout,
		}),
		Indexer:   index.NewIndexer(index.IndexerConfig{Timeout: cfg.Embedder.Timeout}, proc, embedder, backend),
		Retriever: index.NewRetriever(index.RetrieverConfig{K: cfg.Agent.TopK, Timeout: cfg.Embedder.Timeout}, embedder),
		Generator: chatEngine,
		Students:  a.students,
		FAQ:       faq,
	})
	return a, nil
}

// openRecords connects to MongoDB when a URL is configured and falls back
// to in-memory records otherwise.
func (a *app) openRecords(ctx context.Context, cfg *cfgPkg.Config) error {
	if cfg.Mongo.URL == "" {
		log.Warn().Msg("MONGO_URL not set, student and event records are kept in memory")
		a.students = records.NewMemoryStudents()
		a.events = records.NewMemoryEvents()
		return nil
	}

	mongoCfg := records.MongoConfig{
		URL:               cfg.Mongo.URL,
		StudentDatabase:   cfg.Mongo.StudentDatabase,
		StudentCollection: cfg.Mongo.StudentCollection,
		EventDatabase:     cfg.Mongo.EventDatabase,
		EventCollection:   cfg.Mongo.EventCollection,
		Timeout:           cfg.Mongo.Timeout,
	}
	client, err := records.Connect(ctx, mongoCfg)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Warn().Err(err).Msg("failed to disconnect from mongodb")
		}
	})

	a.students = records.NewMongoStudents(client, mongoCfg)
	a.events = records.NewMongoEvents(client, mongoCfg)
	return nil
}
