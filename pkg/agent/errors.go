package agent

import (
	"errors"

	"github.com/xhad/campus/pkg/document"
	"github.com/xhad/campus/pkg/llm"
	"github.com/xhad/campus/pkg/scraper"
	"github.com/xhad/campus/pkg/transcript"
)

type Kind string

const (
	KindBadRequest            Kind = "bad_request"
	KindFetch                 Kind = "fetch"
	KindNoContent             Kind = "no_content"
	KindTranscriptUnavailable Kind = "transcript_unavailable"
	KindUnsupportedFormat     Kind = "unsupported_format"
	KindGeneration            Kind = "generation"
	KindInternal              Kind = "internal"
)

const (
	queryFailed    = "An error occurred while processing the query."
	questionFailed = "An error occurred while processing the question."
)

// Error is returned by every agent operation. Message is safe to show to
// users; Err is the cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// ingestError classifies an extraction failure.
func ingestError(err error) *Error {
	var (
		fetchErr       *scraper.FetchError
		videoFetchErr  *transcript.FetchError
		unavailableErr *transcript.UnavailableError
		unsupportedErr *document.UnsupportedFormatError
	)
	switch {
	case errors.As(err, &unavailableErr):
		return &Error{Kind: KindTranscriptUnavailable, Message: transcript.UnavailableMessage, Err: err}
	case errors.As(err, &unsupportedErr):
		return &Error{Kind: KindUnsupportedFormat, Message: "Invalid file type.", Err: err}
	case errors.Is(err, scraper.ErrNoContent):
		return &Error{Kind: KindNoContent, Message: "No readable content found at the URL.", Err: err}
	case errors.As(err, &fetchErr):
		return &Error{Kind: KindFetch, Message: "Could not fetch content from the URL.", Err: err}
	case errors.As(err, &videoFetchErr):
		return &Error{Kind: KindFetch, Message: "Could not reach YouTube to fetch the transcript.", Err: err}
	default:
		return &Error{Kind: KindInternal, Message: "Could not process the content.", Err: err}
	}
}

// answerError hides the cause of a failed answer behind message.
func answerError(err error, message string) *Error {
	var genErr *llm.GenerationError
	if errors.As(err, &genErr) {
		return &Error{Kind: KindGeneration, Message: message, Err: err}
	}
	return &Error{Kind: KindInternal, Message: message, Err: err}
}
