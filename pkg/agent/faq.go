package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// FAQ maps a normalized question to its canned answer.
type FAQ map[string]string

// NewFAQ normalizes the questions of entries.
func NewFAQ(entries map[string]string) FAQ {
	faq := make(FAQ, len(entries))
	for q, a := range entries {
		faq[strings.ToLower(strings.TrimSpace(q))] = a
	}
	return faq
}

// LoadFAQ reads a JSON object of question/answer pairs. A missing file
// gives an empty FAQ.
func LoadFAQ(path string) (FAQ, error) {
	if path == "" {
		return FAQ{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return FAQ{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read faq: %w", err)
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse faq %s: %w", path, err)
	}
	return NewFAQ(entries), nil
}
