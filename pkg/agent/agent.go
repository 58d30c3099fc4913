// Package agent routes free-text queries to ingestion, record lookup or a
// grounded model answer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xhad/campus/internal/models"
	"github.com/xhad/campus/internal/types"
	"github.com/xhad/campus/pkg/document"
	"github.com/xhad/campus/pkg/index"
	"github.com/xhad/campus/pkg/llm"
	"github.com/xhad/campus/pkg/transcript"
)

const (
	urlStored   = "URL content stored successfully."
	videoStored = "Video transcript stored successfully."
	pdfStored   = "PDF uploaded!"
)

type Config struct {
	SummaryWords   int
	ReleaseTimeout time.Duration
}

// Deps are the collaborators of an Agent.
type Deps struct {
	Pages     types.PageExtractor
	Videos    types.TranscriptFetcher
	Indexer   types.Indexer
	Retriever types.Retriever
	Generator types.Generator
	Students  types.StudentSource
	FAQ       FAQ
}

type Agent struct {
	config Config
	deps   Deps
	run    []rule
	ask    []rule
}

func New(config Config, deps Deps) *Agent {
	if config.SummaryWords == 0 {
		config.SummaryWords = 20
	}
	if config.ReleaseTimeout == 0 {
		config.ReleaseTimeout = 10 * time.Second
	}
	if deps.FAQ == nil {
		deps.FAQ = FAQ{}
	}

	return &Agent{
		config: config,
		deps:   deps,
		run:    runRules(),
		ask:    askRules(deps.FAQ),
	}
}

// Answer is the successful result of an operation.
type Answer struct {
	Intent        Intent
	Text          string
	Student       *models.Student
	ExtractedText string
}

// Payload is the value sent to clients under "response".
func (a *Answer) Payload() any {
	switch a.Intent {
	case URLIngest, VideoIngest:
		return map[string]string{"message": a.Text}
	case DocumentIngest:
		return map[string]string{"message": a.Text, "extracted_text": a.ExtractedText}
	case StudentLookup:
		return a.Student
	default:
		return a.Text
	}
}

func (a *Answer) String() string {
	if a.Intent == StudentLookup && a.Student != nil {
		return a.Student.String()
	}
	return a.Text
}

// Run answers query on the agent path: ingestion, roster question,
// summary, then general question answering.
func (a *Agent) Run(ctx context.Context, state *SessionState, text string) (*Answer, error) {
	return a.route(ctx, state, text, a.run, queryFailed)
}

// Ask answers query on the ask path, which checks the FAQ first and
// returns a named student's record without calling the model.
func (a *Agent) Ask(ctx context.Context, state *SessionState, text string) (*Answer, error) {
	return a.route(ctx, state, text, a.ask, questionFailed)
}

func (a *Agent) route(ctx context.Context, state *SessionState, text string, rules []rule, failed string) (*Answer, error) {
	q := newQuery(text, a.deps.Students)

	intent, err := classify(ctx, rules, q)
	if err != nil {
		log.Error().Err(err).Msg("failed to classify query")
		return nil, answerError(err, failed)
	}
	log.Debug().Str("intent", intent.String()).Msg("classified query")

	switch intent {
	case FAQLookup:
		return &Answer{Intent: FAQLookup, Text: q.answer}, nil
	case VideoIngest:
		return a.ingestVideo(ctx, state, q.videoID)
	case URLIngest:
		return a.IngestURL(ctx, state, q.link)
	case StudentLookup:
		return &Answer{Intent: StudentLookup, Student: q.student}, nil
	}

	prompt, err := a.prompt(ctx, state, intent, q)
	if err != nil {
		log.Error().Err(err).Str("intent", intent.String()).Msg("failed to build prompt")
		return nil, answerError(err, failed)
	}

	reply, err := a.deps.Generator.Generate(ctx, prompt)
	if err != nil {
		log.Error().Err(err).Str("intent", intent.String()).Msg("failed to generate answer")
		return nil, answerError(err, failed)
	}
	return &Answer{Intent: intent, Text: reply}, nil
}

func (a *Agent) prompt(ctx context.Context, state *SessionState, intent Intent, q *query) (llm.Prompt, error) {
	switch intent {
	case StudentQuery:
		roster, err := q.Roster(ctx)
		if err != nil {
			return llm.Prompt{}, fmt.Errorf("load students: %w", err)
		}
		return llm.Prompt{Query: q.norm, Context: models.Roster(roster), Grounded: true}, nil

	case Summarize:
		return llm.Prompt{
			Query:    fmt.Sprintf("Summarize the content in %d words.", a.config.SummaryWords),
			Context:  state.Content(),
			Grounded: true,
		}, nil
	}

	content, idx := state.Snapshot()
	if content == "" {
		return llm.Prompt{Query: q.norm}, nil
	}

	retrieved, err := a.deps.Retriever.Retrieve(ctx, idx, q.norm)
	if err != nil {
		return llm.Prompt{}, fmt.Errorf("retrieve context: %w", err)
	}
	return llm.Prompt{Query: q.norm, Context: retrieved, Grounded: retrieved != ""}, nil
}

// IngestURL replaces the session content with the main text of url.
func (a *Agent) IngestURL(ctx context.Context, state *SessionState, url string) (*Answer, error) {
	text, err := a.deps.Pages.Extract(ctx, url)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("failed to extract page")
		return nil, ingestError(err)
	}
	a.store(ctx, state, models.Document{Source: url, Kind: models.SourceURL, Content: text})
	return &Answer{Intent: URLIngest, Text: urlStored}, nil
}

// IngestVideo replaces the session content with the transcript of the
// video behind link.
func (a *Agent) IngestVideo(ctx context.Context, state *SessionState, link string) (*Answer, error) {
	id, ok := transcript.VideoID(link)
	if !ok {
		return nil, &Error{Kind: KindBadRequest, Message: "Invalid YouTube URL."}
	}
	return a.ingestVideo(ctx, state, id)
}

func (a *Agent) ingestVideo(ctx context.Context, state *SessionState, id string) (*Answer, error) {
	text, err := a.deps.Videos.Fetch(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("video_id", id).Msg("failed to fetch transcript")
		return nil, ingestError(err)
	}
	a.store(ctx, state, models.Document{Source: id, Kind: models.SourceVideo, Content: text})
	return &Answer{Intent: VideoIngest, Text: videoStored}, nil
}

// IngestDocument replaces the session content with the text of an
// uploaded PDF.
func (a *Agent) IngestDocument(ctx context.Context, state *SessionState, filename string, data []byte) (*Answer, error) {
	text, err := document.Extract(filename, data)
	if err != nil {
		log.Warn().Err(err).Str("file", filename).Msg("failed to extract document")
		return nil, ingestError(err)
	}
	a.store(ctx, state, models.Document{Source: filename, Kind: models.SourceDocument, Content: text})
	return &Answer{Intent: DocumentIngest, Text: pdfStored, ExtractedText: text}, nil
}

// store commits the content of doc and rebuilds the index. When indexing
// fails the content is still committed and the previous index stays in
// place.
func (a *Agent) store(ctx context.Context, state *SessionState, doc models.Document) {
	state.ingest.Lock()
	defer state.ingest.Unlock()

	idx, err := a.deps.Indexer.Build(ctx, doc)
	if err != nil {
		var indexingErr *index.IndexingError
		if !errors.As(err, &indexingErr) {
			err = &index.IndexingError{Err: err}
		}
		log.Warn().Err(err).Str("source", doc.Source).Msg("keeping previous index")
		idx = nil
	}

	old := state.replace(doc.Content, idx)
	if old == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.config.ReleaseTimeout)
	defer cancel()
	if err := release(rctx, old); err != nil {
		log.Warn().Err(err).Msg("failed to release replaced index")
	}
}
