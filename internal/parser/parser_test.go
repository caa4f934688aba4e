package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/webcrawler/internal/crawler"
)

const samplePage = `<!doctype html>
<html>
<head>
  <title>Crawl Test</title>
  <style>body { color: red; }</style>
  <script>var hidden = "secret words";</script>
</head>
<body>
  <h1>Hello, World!</h1>
  <p>The crawler visits the web. THE END.</p>
  <noscript>enable javascript</noscript>
  <a href="/about#team">About</a>
  <a href="contact.html">Contact</a>
  <a href="/about">About again</a>
  <a href="https://other.example/x?q=1#frag">Other</a>
  <a href="mailto:someone@example.com">Mail</a>
  <a href="javascript:void(0)">JS</a>
  <a href="#top">Top</a>
</body>
</html>`

func TestParseWords(t *testing.T) {
	t.Parallel()
	page, err := New(nil).Parse("https://example.com/docs/index.html", []byte(samplePage))
	require.NoError(t, err)

	require.Equal(t, 3, page.WordCounts["the"])
	require.Equal(t, 1, page.WordCounts["hello"])
	require.Equal(t, 1, page.WordCounts["crawl"], "title text is counted")
	require.Equal(t, 2, page.WordCounts["about"])
	require.NotContains(t, page.WordCounts, "secret")
	require.NotContains(t, page.WordCounts, "color")
	require.NotContains(t, page.WordCounts, "javascript")
	require.NotContains(t, page.WordCounts, "")
}

func TestParseSeparatesAdjacentElements(t *testing.T) {
	t.Parallel()
	body := `<p>alpha</p><p>beta</p><ul><li>one</li><li>two</li></ul><span>x</span><b>y</b>`
	page, err := New(nil).Parse("https://a.com/", []byte(body))
	require.NoError(t, err)
	require.Equal(t, map[string]int{"alpha": 1, "beta": 1, "one": 1, "two": 1, "x": 1, "y": 1}, page.WordCounts)
}

func TestParseIgnoredWords(t *testing.T) {
	t.Parallel()
	ignored, err := crawler.CompilePatterns("ignored_words", []string{"the", "^.{1,2}$"})
	require.NoError(t, err)

	page, err := New(ignored).Parse("https://example.com/", []byte(`<p>The cat sat on a mat, then the cat left.</p>`))
	require.NoError(t, err)
	require.Equal(t, map[string]int{"cat": 2, "sat": 1, "mat": 1, "then": 1, "left": 1}, page.WordCounts)
}

func TestParseLinks(t *testing.T) {
	t.Parallel()
	page, err := New(nil).Parse("https://example.com/docs/index.html", []byte(samplePage))
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://example.com/about",
		"https://example.com/docs/contact.html",
		"https://other.example/x?q=1",
	}, page.Links)
}

func TestParseBaseHref(t *testing.T) {
	t.Parallel()
	body := `<html><head><base href="https://cdn.example/root/"></head><body><a href="page">p</a></body></html>`
	page, err := New(nil).Parse("https://example.com/", []byte(body))
	require.NoError(t, err)
	require.Equal(t, []string{"https://cdn.example/root/page"}, page.Links)
}

func TestParseFileLinks(t *testing.T) {
	t.Parallel()
	page, err := New(nil).Parse("file:///tmp/site/index.html", []byte(`<a href="b.html">b</a>`))
	require.NoError(t, err)
	require.Equal(t, []string{"file:///tmp/site/b.html"}, page.Links)
}

func TestParseUnicodeWords(t *testing.T) {
	t.Parallel()
	page, err := New(nil).Parse("https://example.com/", []byte(`<p>Ünïcode ÜNÏCODE straße 42</p>`))
	require.NoError(t, err)
	require.Equal(t, map[string]int{"ünïcode": 2, "straße": 1, "42": 1}, page.WordCounts)
}

func TestParseBadURL(t *testing.T) {
	t.Parallel()
	_, err := New(nil).Parse("://bad", []byte(`<p>x</p>`))
	require.Error(t, err)
}
