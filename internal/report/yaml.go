package report

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/webcrawler/internal/crawler"
)

// YAMLWriter outputs results as a YAML document with words in rank order.
type YAMLWriter struct {
	output io.Writer
}

// NewYAMLWriter creates a YAMLWriter that outputs to the given writer.
func NewYAMLWriter(output io.Writer) *YAMLWriter {
	return &YAMLWriter{output: output}
}

// Write encodes result.
func (w *YAMLWriter) Write(result crawler.Result) error {
	enc := yaml.NewEncoder(w.output)
	enc.SetIndent(2)
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode yaml result: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush yaml result: %w", err)
	}
	return nil
}
