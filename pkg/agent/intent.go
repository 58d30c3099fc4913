package agent

import (
	"context"
	"regexp"
	"strings"

	"github.com/xhad/campus/internal/models"
	"github.com/xhad/campus/internal/types"
	"github.com/xhad/campus/pkg/transcript"
)

type Intent int

const (
	GeneralQA Intent = iota
	URLIngest
	VideoIngest
	DocumentIngest
	StudentQuery
	StudentLookup
	Summarize
	FAQLookup
)

func (i Intent) String() string {
	switch i {
	case URLIngest:
		return "url_ingest"
	case VideoIngest:
		return "video_ingest"
	case DocumentIngest:
		return "document_ingest"
	case StudentQuery:
		return "student_query"
	case StudentLookup:
		return "student_lookup"
	case Summarize:
		return "summarize"
	case FAQLookup:
		return "faq_lookup"
	default:
		return "general_qa"
	}
}

var (
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	studentPattern = regexp.MustCompile(`\bstudents?\b`)
)

// query is one classified request. Fields below the line are filled in by
// the rules that match.
type query struct {
	text string // trimmed, original case
	norm string // trimmed, lower-cased

	students types.StudentSource
	roster   []models.Student
	loaded   bool

	link    string
	videoID string
	answer  string
	student *models.Student
}

func newQuery(text string, students types.StudentSource) *query {
	text = strings.TrimSpace(text)
	q := &query{
		text:     text,
		norm:     strings.ToLower(text),
		students: students,
	}
	if m := urlPattern.FindString(q.text); m != "" {
		q.link = strings.TrimRight(m, ".,!?")
		q.videoID, _ = transcript.VideoID(q.link)
	}
	return q
}

// Roster loads the student records once per query.
func (q *query) Roster(ctx context.Context) ([]models.Student, error) {
	if q.loaded {
		return q.roster, nil
	}
	roster, err := q.students.All(ctx)
	if err != nil {
		return nil, err
	}
	q.roster, q.loaded = roster, true
	return roster, nil
}

type rule struct {
	intent Intent
	match  func(ctx context.Context, q *query) (bool, error)
}

func pure(f func(q *query) bool) func(context.Context, *query) (bool, error) {
	return func(_ context.Context, q *query) (bool, error) { return f(q), nil }
}

func isVideo(q *query) bool          { return q.videoID != "" }
func hasURL(q *query) bool           { return q.link != "" }
func mentionsStudents(q *query) bool { return studentPattern.MatchString(q.norm) }
func wantsSummary(q *query) bool     { return strings.Contains(q.norm, "summarize") }
func always(*query) bool             { return true }

// namesStudent matches when a known, non-empty student name appears in the
// query. The first such student in roster order wins.
func namesStudent(ctx context.Context, q *query) (bool, error) {
	roster, err := q.Roster(ctx)
	if err != nil {
		return false, err
	}
	for i := range roster {
		name := roster[i].NormalizedName()
		if name != "" && strings.Contains(q.norm, name) {
			q.student = &roster[i]
			return true, nil
		}
	}
	return false, nil
}

func inFAQ(faq FAQ) func(q *query) bool {
	return func(q *query) bool {
		answer, ok := faq[q.norm]
		if ok {
			q.answer = answer
		}
		return ok
	}
}

// runRules is the precedence of the agent entry point.
func runRules() []rule {
	return []rule{
		{VideoIngest, pure(isVideo)},
		{URLIngest, pure(hasURL)},
		{StudentQuery, pure(mentionsStudents)},
		{Summarize, pure(wantsSummary)},
		{GeneralQA, pure(always)},
	}
}

// askRules is the precedence of the ask entry point: FAQ first, and a
// direct student lookup ahead of the roster question.
func askRules(faq FAQ) []rule {
	return []rule{
		{FAQLookup, pure(inFAQ(faq))},
		{VideoIngest, pure(isVideo)},
		{URLIngest, pure(hasURL)},
		{StudentLookup, namesStudent},
		{StudentQuery, pure(mentionsStudents)},
		{Summarize, pure(wantsSummary)},
		{GeneralQA, pure(always)},
	}
}

func classify(ctx context.Context, rules []rule, q *query) (Intent, error) {
	for _, r := range rules {
		ok, err := r.match(ctx, q)
		if err != nil {
			return GeneralQA, err
		}
		if ok {
			return r.intent, nil
		}
	}
	return GeneralQA, nil
}
