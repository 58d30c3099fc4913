package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ErrNoContent is returned when a page has no recognizable main region.
var ErrNoContent = errors.New("no main content found on page")

// FetchError reports a page that could not be downloaded. StatusCode is
// zero for transport failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status code %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type ScraperConfig struct {
	MaxLength  int     // characters kept from the extracted text
	RateLimit  float64 // requests per second
	Timeout    time.Duration
	UserAgent  string
	MaxRetries uint64 // extra attempts after a transport error or 5xx
	RetryWait  time.Duration
}

type Scraper struct {
	config  ScraperConfig
	client  *http.Client
	limiter *rate.Limiter
}

// mainSelectors are tried in order; the first match is the main region.
var mainSelectors = []string{"#mw-content-text", "article"}

func NewWithConfig(config ScraperConfig) *Scraper {
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.MaxLength == 0 {
		config.MaxLength = 2000
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if config.UserAgent == "" {
		config.UserAgent = "campus-assistant/1.0"
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 1
	}
	if config.RetryWait == 0 {
		config.RetryWait = 250 * time.Millisecond
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

func New() *Scraper {
	return NewWithConfig(ScraperConfig{})
}

// Extract downloads rawURL and returns the paragraph text of its main
// region, truncated to MaxLength characters.
func (s *Scraper) Extract(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &FetchError{URL: rawURL, Err: fmt.Errorf("invalid url")}
	}

	var doc *goquery.Document
	err = backoff.Retry(func() error {
		var ferr error
		doc, ferr = s.fetch(ctx, rawURL)
		return ferr
	}, s.backOff(ctx))
	if err != nil {
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			err = &FetchError{URL: rawURL, Err: err}
		}
		return "", err
	}

	text, ok := mainText(doc)
	if !ok {
		return "", ErrNoContent
	}

	log.Debug().Str("url", rawURL).Int("chars", len([]rune(text))).Msg("extracted page")
	return truncate(text, s.config.MaxLength), nil
}

func (s *Scraper) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, backoff.Permanent(&FetchError{URL: rawURL, Err: err})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(&FetchError{URL: rawURL, Err: err})
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ferr := &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
		if resp.StatusCode >= 500 {
			return nil, ferr
		}
		return nil, backoff.Permanent(ferr)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, backoff.Permanent(&FetchError{URL: rawURL, Err: err})
	}
	return doc, nil
}

func (s *Scraper) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.RetryWait
	return backoff.WithContext(backoff.WithMaxRetries(b, s.config.MaxRetries), ctx)
}

func mainText(doc *goquery.Document) (string, bool) {
	for _, selector := range mainSelectors {
		main := doc.Find(selector).First()
		if main.Length() == 0 {
			continue
		}

		var paragraphs []string
		main.Find("p").Each(func(_ int, p *goquery.Selection) {
			paragraphs = append(paragraphs, p.Text())
		})
		return strings.Join(paragraphs, " "), true
	}
	return "", false
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
