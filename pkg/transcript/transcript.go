// Package transcript fetches caption tracks for YouTube videos.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// UnavailableMessage is shown to users when a video has no usable captions.
const UnavailableMessage = "Could not retrieve the transcript. Please ensure the video has subtitles enabled."

// UnavailableError means the video exists but offers no transcript in the
// configured language.
type UnavailableError struct {
	VideoID string
	Err     error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcript for %s unavailable: %v", e.VideoID, e.Err)
	}
	return fmt.Sprintf("transcript for %s unavailable", e.VideoID)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// FetchError means YouTube could not be reached or answered with a server
// error.
type FetchError struct {
	VideoID string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch transcript for %s: %v", e.VideoID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type ClientConfig struct {
	Language   string
	RateLimit  float64
	Timeout    time.Duration
	MaxRetries uint64
	RetryWait  time.Duration
	// HTTPClient is used for every request to YouTube when set.
	HTTPClient *http.Client
}

// captions is the part of the YouTube client used to read transcripts.
type captions interface {
	GetVideoContext(ctx context.Context, id string) (*youtube.Video, error)
	GetTranscriptCtx(ctx context.Context, video *youtube.Video, lang string) (youtube.VideoTranscript, error)
}

type Client struct {
	config  ClientConfig
	yt      captions
	limiter *rate.Limiter
}

func NewWithConfig(config ClientConfig) *Client {
	if config.Language == "" {
		config.Language = "en"
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 1
	}
	if config.RetryWait == 0 {
		config.RetryWait = 250 * time.Millisecond
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		config:  config,
		yt:      &youtube.Client{HTTPClient: config.HTTPClient},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// Fetch returns the transcript of videoID with segments ordered by start
// time and joined by newlines.
func (c *Client) Fetch(ctx context.Context, videoID string) (string, error) {
	var segments youtube.VideoTranscript
	err := backoff.Retry(func() error {
		var ferr error
		segments, ferr = c.fetch(ctx, videoID)
		return ferr
	}, c.backOff(ctx))
	if err != nil {
		if unavailable(err) {
			return "", &UnavailableError{VideoID: videoID, Err: err}
		}
		return "", &FetchError{VideoID: videoID, Err: err}
	}

	text := joinSegments(segments)
	if text == "" {
		return "", &UnavailableError{VideoID: videoID}
	}

	log.Debug().Str("video_id", videoID).Int("segments", len(segments)).Msg("fetched transcript")
	return text, nil
}

func (c *Client) fetch(ctx context.Context, videoID string) (youtube.VideoTranscript, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, backoff.Permanent(err)
	}

	video, err := c.yt.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, classify(err)
	}

	segments, err := c.yt.GetTranscriptCtx(ctx, video, c.config.Language)
	if err != nil {
		return nil, classify(err)
	}
	return segments, nil
}

func (c *Client) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryWait
	return backoff.WithContext(backoff.WithMaxRetries(b, c.config.MaxRetries), ctx)
}

// classify stops retrying once YouTube has said the captions are missing.
func classify(err error) error {
	if unavailable(err) {
		return backoff.Permanent(err)
	}
	return err
}

// unavailable reports whether err says the video has no readable captions,
// as opposed to a transport or server failure.
func unavailable(err error) bool {
	switch {
	case errors.Is(err, youtube.ErrTranscriptDisabled),
		errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrNotPlayableInEmbed):
		return true
	}

	var status youtube.ErrUnexpectedStatusCode
	if errors.As(err, &status) {
		return int(status) < http.StatusInternalServerError
	}
	return false
}

func joinSegments(segments youtube.VideoTranscript) string {
	ordered := make(youtube.VideoTranscript, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartMs < ordered[j].StartMs
	})

	lines := make([]string, 0, len(ordered))
	for _, s := range ordered {
		text := strings.TrimSpace(html.UnescapeString(s.Text))
		if text == "" {
			continue
		}
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n")
}

var videoIDPattern = regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})`)

// VideoID returns the 11 character video identifier in a YouTube link.
// It reports false for other hosts and for links without an identifier.
func VideoID(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	if host != "youtube.com" && host != "youtu.be" {
		return "", false
	}

	m := videoIDPattern.FindStringSubmatch(link)
	if m == nil {
		return "", false
	}
	return m[1], true
}
