package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/JakeFAU/webcrawler/internal/crawler"
)

// JSONWriter outputs results as indented JSON: {"wordCounts": {...}, "urlsVisited": n}.
type JSONWriter struct {
	output io.Writer
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer) *JSONWriter {
	return &JSONWriter{output: output}
}

// Write encodes result.
func (w *JSONWriter) Write(result crawler.Result) error {
	enc := json.NewEncoder(w.output)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode json result: %w", err)
	}
	return nil
}
