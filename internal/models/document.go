package models

// SourceKind tells where ingested text came from.
type SourceKind string

const (
	SourceURL      SourceKind = "url"
	SourceVideo    SourceKind = "video"
	SourceDocument SourceKind = "document"
)

// Document is plain text extracted from a page, a transcript or an upload.
type Document struct {
	Source  string
	Kind    SourceKind
	Content string
}
