package document

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a minimal single-font PDF with one text line per page.
func buildPDF(pages ...string) []byte {
	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 4+2*i)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)))
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, text := range pages {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			5+2*i))
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractPDF(t *testing.T) {
	data := buildPDF("Hello campus", "Second page")

	text, err := Extract("notes.PDF", data)
	require.NoError(t, err)
	assert.Contains(t, text, "Hello campus")
	assert.Contains(t, text, "Second page")
	assert.Less(t, bytes.Index([]byte(text), []byte("Hello")), bytes.Index([]byte(text), []byte("Second")))
}

func TestExtractRejectsUnsupportedFiles(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{name: "wrong extension", filename: "notes.txt", data: []byte("plain text")},
		{name: "no extension", filename: "notes", data: buildPDF("x")},
		{name: "extension disagrees with content", filename: "notes.pdf", data: []byte("<html><body>hi</body></html>")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.filename, tt.data)

			var unsupported *UnsupportedFormatError
			require.True(t, errors.As(err, &unsupported))
			assert.Equal(t, tt.filename, unsupported.Filename)
		})
	}
}

func TestDetectZipFamily(t *testing.T) {
	// Local file header magic is enough for the zip detector.
	zip := append([]byte("PK\x03\x04"), make([]byte, 64)...)

	f, err := Detect("roster.xlsx", zip, PDF, XLSX)
	require.NoError(t, err)
	assert.Equal(t, XLSX, f)

	_, err = Detect("roster.xlsx", buildPDF("x"), XLSX)
	assert.Error(t, err)
}
