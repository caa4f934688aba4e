package crawler

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/webcrawler/internal/wordcount"
)

// ParallelCrawler runs one task per seed URL and lets each task fan out
// across the links it discovers, bounded by MaxParallelism concurrent fetches.
type ParallelCrawler struct {
	settings Settings
	fetcher  PageFetcher
	ranker   Ranker
	clock    Clock
	observer Observer
	logger   *zap.Logger
	hwLimit  int
}

// Option customizes a ParallelCrawler.
type Option func(*ParallelCrawler)

// WithObserver attaches an Observer (metrics) to the crawler.
func WithObserver(o Observer) Option {
	return func(c *ParallelCrawler) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithHardwareParallelism overrides the detected CPU count.
func WithHardwareParallelism(n int) Option {
	return func(c *ParallelCrawler) {
		if n > 0 {
			c.hwLimit = n
		}
	}
}

// NewParallelCrawler constructs a crawler for the given settings.
func NewParallelCrawler(
	settings Settings,
	fetcher PageFetcher,
	ranker Ranker,
	clock Clock,
	logger *zap.Logger,
	opts ...Option,
) *ParallelCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &ParallelCrawler{
		settings: settings,
		fetcher:  fetcher,
		ranker:   ranker,
		clock:    clock,
		observer: noopObserver{},
		logger:   logger,
		hwLimit:  runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxParallelism is min(requested parallelism, available CPUs), at least 1.
func (c *ParallelCrawler) MaxParallelism() int {
	n := min(c.settings.Parallelism, c.hwLimit)
	if n < 1 {
		return 1
	}
	return n
}

// Crawl visits the web graph reachable from startingURLs and returns the
// popular words and the number of distinct URLs visited. Individual page
// failures never fail the run. The error is non-nil only if ctx was
// canceled; the partial result is still returned.
func (c *ParallelCrawler) Crawl(ctx context.Context, startingURLs []string) (Result, error) {
	start := time.Now()
	state := newCrawlState(c.clock.Now().Add(c.settings.Timeout))
	env := &taskEnv{
		clock:    c.clock,
		ignored:  c.settings.IgnoredURLs,
		fetcher:  c.fetcher,
		slots:    semaphore.NewWeighted(int64(c.MaxParallelism())),
		observer: c.observer,
		logger:   c.logger,
	}

	c.logger.Info("crawl started",
		zap.Strings("start_pages", startingURLs),
		zap.Int("max_depth", c.settings.MaxDepth),
		zap.Time("deadline", state.deadline),
		zap.Int("parallelism", c.MaxParallelism()),
	)

	var wg sync.WaitGroup
	for _, url := range startingURLs {
		root := crawlTask{
			url:   url,
			depth: c.settings.MaxDepth,
			state: state,
			env:   env,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			root.compute(ctx)
		}()
	}
	wg.Wait()

	result := c.assemble(state)
	var err error
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("crawl interrupted: %w", ctxErr)
	}
	elapsed := time.Since(start)
	c.observer.ObserveRun(result, elapsed, err)
	c.logger.Info("crawl finished",
		zap.Int("urls_visited", result.URLsVisited),
		zap.Int("popular_words", len(result.WordCounts)),
		zap.Duration("elapsed", elapsed),
		zap.Error(err),
	)
	return result, err
}

// assemble reads the joined state exactly once.
func (c *ParallelCrawler) assemble(state *crawlState) Result {
	visited := state.visited.len()
	if state.counts.empty() {
		return Result{WordCounts: wordcount.Counts{}, URLsVisited: visited}
	}
	return Result{
		WordCounts:  c.ranker.Top(state.counts.snapshot(), c.settings.PopularWordCount),
		URLsVisited: visited,
	}
}
