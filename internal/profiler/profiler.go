// Package profiler times calls to the crawler's public entry points.
//
// Profiling is done with decorators: WrapCrawler and WrapFetcher return
// values implementing the same interface as their delegate, recording the
// elapsed time of Crawl and Fetch into a shared State.
package profiler

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/webcrawler/internal/crawler"
)

// Profiler owns the State shared by every wrapper it creates.
type Profiler struct {
	clock   crawler.Clock
	state   *State
	started time.Time
	logger  *zap.Logger
}

// New returns a Profiler whose run timestamp is clock.Now().
func New(clock crawler.Clock, logger *zap.Logger) *Profiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Profiler{
		clock:   clock,
		state:   NewState(),
		started: clock.Now(),
		logger:  logger.Named("profiler"),
	}
}

// State exposes the underlying timing data.
func (p *Profiler) State() *State {
	return p.state
}

// WrapCrawler profiles Crawl. MaxParallelism is passed through untimed.
func (p *Profiler) WrapCrawler(c crawler.WebCrawler) crawler.WebCrawler {
	return &profiledCrawler{delegate: c, p: p}
}

// WrapFetcher profiles Fetch.
func (p *Profiler) WrapFetcher(f crawler.PageFetcher) crawler.PageFetcher {
	return &profiledFetcher{delegate: f, p: p}
}

// WriteData writes the run header followed by every recorded method.
func (p *Profiler) WriteData(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Run at %s\n", p.started.Format(time.RFC1123)); err != nil {
		return fmt.Errorf("write profile header: %w", err)
	}
	if err := p.state.Write(w); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return fmt.Errorf("write profile trailer: %w", err)
	}
	return nil
}

// WriteFile appends the profile to path, creating it if needed.
func (p *Profiler) WriteFile(path string) (err error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open profile output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close profile output: %w", cerr)
		}
	}()
	return p.WriteData(f)
}

func (p *Profiler) record(target any, method string, start time.Time) {
	if err := p.state.Record(target, method, p.clock.Now().Sub(start)); err != nil {
		p.logger.Warn("profile sample dropped", zap.Error(err))
	}
}

type profiledCrawler struct {
	delegate crawler.WebCrawler
	p        *Profiler
}

func (c *profiledCrawler) Crawl(ctx context.Context, startingURLs []string) (crawler.Result, error) {
	start := c.p.clock.Now()
	defer c.p.record(c.delegate, "Crawl", start)
	return c.delegate.Crawl(ctx, startingURLs)
}

func (c *profiledCrawler) MaxParallelism() int {
	return c.delegate.MaxParallelism()
}

type profiledFetcher struct {
	delegate crawler.PageFetcher
	p        *Profiler
}

func (f *profiledFetcher) Fetch(ctx context.Context, url string) (crawler.Page, error) {
	start := f.p.clock.Now()
	defer f.p.record(f.delegate, "Fetch", start)
	return f.delegate.Fetch(ctx, url)
}
