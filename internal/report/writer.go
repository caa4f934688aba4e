// Package report renders crawl results and delivers them to a destination.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/JakeFAU/webcrawler/internal/crawler"
)

// Format names an output encoding for crawl results.
type Format string

// Supported output formats.
const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts json, yaml/yml and markdown/md. Empty means json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", &crawler.ConfigurationError{Field: "output.format", Reason: fmt.Sprintf("unknown format %q", s)}
	}
}

// ContentType is the MIME type used when uploading the rendered result.
func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "application/json"
	}
}

// Writer renders one crawl result.
type Writer interface {
	Write(result crawler.Result) error
}

// NewWriter returns the Writer for f.
func NewWriter(f Format, out io.Writer) Writer {
	switch f {
	case FormatYAML:
		return NewYAMLWriter(out)
	case FormatMarkdown:
		return NewMarkdownWriter(out)
	default:
		return NewJSONWriter(out)
	}
}
