// Package document turns uploaded files into plain text.
package document

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

// Format pairs an accepted file extension with the content type sniffed
// from the file body. A detected type matches when MIME is the type itself
// or one of its parents.
type Format struct {
	Ext  string
	MIME string
}

var (
	PDF  = Format{Ext: ".pdf", MIME: "application/pdf"}
	XLSX = Format{Ext: ".xlsx", MIME: "application/zip"}
)

type UnsupportedFormatError struct {
	Filename string
	Detected string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Detected == "" {
		return fmt.Sprintf("unsupported file %q", e.Filename)
	}
	return fmt.Sprintf("unsupported file %q (detected %s)", e.Filename, e.Detected)
}

// Detect checks that filename carries one of the allowed extensions and
// that the content agrees with it.
func Detect(filename string, data []byte, allowed ...Format) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var format Format
	found := false
	for _, f := range allowed {
		if f.Ext == ext {
			format, found = f, true
			break
		}
	}
	if !found {
		return Format{}, &UnsupportedFormatError{Filename: filename}
	}

	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		if m.Is(format.MIME) {
			return format, nil
		}
	}
	return Format{}, &UnsupportedFormatError{Filename: filename, Detected: detected.String()}
}

// Extract returns the text of a PDF upload, pages concatenated in order.
func Extract(filename string, data []byte) (string, error) {
	if _, err := Detect(filename, data, PDF); err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var text strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read page %d: %w", i, err)
		}
		text.WriteString(pageText)
	}

	return text.String(), nil
}
