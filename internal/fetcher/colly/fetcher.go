// Package collyfetcher implements crawler.PageFetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/webcrawler/internal/crawler"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxBodyBytes = 10 << 20
)

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int
	// FileRoot is the directory served for file:// URLs. Empty means "/".
	FileRoot string
}

// PageParser turns a fetched HTML body into a crawler.Page.
type PageParser interface {
	Parse(pageURL string, body []byte) (crawler.Page, error)
}

// Fetcher implements crawler.PageFetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	parser        PageParser
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// fetched is what the hooks capture from one visit.
type fetched struct {
	url         string
	status      int
	contentType string
	body        []byte
	err         error
}

var errNotHTML = errors.New("unsupported content type")

// New builds a Fetcher.
func New(cfg Config, parser PageParser) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.FileRoot == "" {
		cfg.FileRoot = "/"
	}

	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport(cfg.FileRoot))
	// Clones share the base http.Client, so its timeout is only set here.
	c.SetRequestTimeout(cfg.Timeout)
	c.MaxBodySize = cfg.MaxBodyBytes
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}

	return &Fetcher{
		cfg:           cfg,
		parser:        parser,
		baseCollector: c,
	}
}

// Fetch downloads url and parses it. Every failure is a *crawler.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (crawler.Page, error) {
	var res fetched
	collector := f.buildCollector(ctx, &res)

	if err := f.runCollector(ctx, collector, url, &res); err != nil {
		return crawler.Page{}, &crawler.FetchError{URL: url, Err: err}
	}
	if !isHTML(res.contentType) {
		return crawler.Page{}, &crawler.FetchError{URL: url, Err: fmt.Errorf("%w: %q", errNotHTML, res.contentType)}
	}
	// Links resolve against the final URL after redirects.
	pageURL := res.url
	if pageURL == "" {
		pageURL = url
	}
	page, err := f.parser.Parse(pageURL, res.body)
	if err != nil {
		return crawler.Page{}, &crawler.FetchError{URL: url, Err: err}
	}
	return page, nil
}

func (f *Fetcher) buildCollector(ctx context.Context, res *fetched) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, res)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, res *fetched) {
	hooks.OnResponse(func(r *colly.Response) {
		res.status = r.StatusCode
		res.body = append([]byte(nil), r.Body...)
		if r.Request != nil && r.Request.URL != nil {
			res.url = r.Request.URL.String()
		}
		if r.Headers != nil {
			res.contentType = r.Headers.Get("Content-Type")
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			res.err = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		res.err = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, res *fetched) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if res.err != nil {
			return fmt.Errorf("colly response failed: %w", res.err)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

// isHTML accepts an empty content type, which local files may not carry.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

func newHTTPTransport(fileRoot string) *http.Transport {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
	t.RegisterProtocol("file", http.NewFileTransport(http.Dir(fileRoot)))
	return t
}
