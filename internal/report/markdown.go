package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/JakeFAU/webcrawler/internal/crawler"
)

// MarkdownWriter outputs results as a Markdown document for sharing.
type MarkdownWriter struct {
	output io.Writer
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: output}
}

// Write renders result as a summary table followed by the ranked words.
func (w *MarkdownWriter) Write(result crawler.Result) error {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Results")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"URLs visited", strconv.Itoa(result.URLsVisited)},
			{"Popular words", strconv.Itoa(len(result.WordCounts))},
		},
	})
	md.PlainText("")

	md.H2("Popular Words")
	md.PlainText("")
	if len(result.WordCounts) == 0 {
		md.PlainText("No words were collected.")
	} else {
		rows := make([][]string, len(result.WordCounts))
		for i, wc := range result.WordCounts {
			rows[i] = []string{strconv.Itoa(i + 1), "`" + wc.Word + "`", strconv.Itoa(wc.Count)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Rank", "Word", "Count"},
			Rows:   rows,
		})
	}

	if err := md.Build(); err != nil {
		return fmt.Errorf("render markdown result: %w", err)
	}
	return nil
}
