package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/webcrawler/internal/wordcount"
)

// MockFetcher is a mock implementation of the PageFetcher interface.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	args := m.Called(ctx, url)
	return args.Get(0).(Page), args.Error(1)
}

// graphFetcher serves pages from an in-memory link graph and records every fetch.
type graphFetcher struct {
	pages  map[string]Page
	failOn map[string]bool
	delay  time.Duration
	before func(url string)

	mu       sync.Mutex
	fetched  map[string]int
	inFlight atomic.Int64
	peak     atomic.Int64
}

func newGraphFetcher(pages map[string]Page) *graphFetcher {
	return &graphFetcher{pages: pages, failOn: map[string]bool{}, fetched: map[string]int{}}
}

func (g *graphFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}

	g.mu.Lock()
	g.fetched[url]++
	g.mu.Unlock()

	if g.before != nil {
		g.before(url)
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if g.failOn[url] {
		return Page{}, &FetchError{URL: url, Err: errors.New("connection refused")}
	}
	page, ok := g.pages[url]
	if !ok {
		return Page{}, &FetchError{URL: url, Err: errors.New("not found")}
	}
	return page, nil
}

func (g *graphFetcher) fetchCount(url string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetched[url]
}

func (g *graphFetcher) fetchedURLs() map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]int, len(g.fetched))
	for k, v := range g.fetched {
		out[k] = v
	}
	return out
}

// manualClock is a Clock whose time only moves when the test says so.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingObserver counts lifecycle notifications.
type recordingObserver struct {
	started  atomic.Int64
	finished atomic.Int64
	failures atomic.Int64
	runs     atomic.Int64
}

func (o *recordingObserver) TaskStarted() { o.started.Add(1) }
func (o *recordingObserver) TaskFinished() { o.finished.Add(1) }
func (o *recordingObserver) ObserveFetch(_ string, _ time.Duration, err error) {
	if err != nil {
		o.failures.Add(1)
	}
}
func (o *recordingObserver) ObserveRun(Result, time.Duration, error) { o.runs.Add(1) }

func twoPageGraph() map[string]Page {
	return map[string]Page{
		"https://a.com": {WordCounts: map[string]int{"x": 2}, Links: []string{"https://b.com"}},
		"https://b.com": {WordCounts: map[string]int{"x": 1, "y": 1}},
	}
}

func settings(depth int) Settings {
	return Settings{
		MaxDepth:         depth,
		Timeout:          time.Minute,
		PopularWordCount: 10,
		Parallelism:      4,
	}
}

func newTestCrawler(s Settings, f PageFetcher, clock Clock, opts ...Option) *ParallelCrawler {
	return NewParallelCrawler(s, f, wordcount.Ranker{}, clock, nil, opts...)
}

func TestCrawlDepthOneFetchesOnlySeed(t *testing.T) {
	t.Parallel()
	f := newGraphFetcher(twoPageGraph())

	result, err := newTestCrawler(settings(1), f, newManualClock()).Crawl(context.Background(), []string{"https://a.com"})

	require.NoError(t, err)
	require.Equal(t, map[string]int{"x": 2}, result.WordCounts.Map())
	require.Equal(t, 1, result.URLsVisited)
	require.Zero(t, f.fetchCount("https://b.com"))
}

func TestCrawlDepthTwoFollowsLinks(t *testing.T) {
	t.Parallel()
	f := newGraphFetcher(twoPageGraph())

	result, err := newTestCrawler(settings(2), f, newManualClock()).Crawl(context.Background(), []string{"https://a.com"})

	require.NoError(t, err)
	require.Equal(t, map[string]int{"x": 3, "y": 1}, result.WordCounts.Map())
	require.Equal(t, 2, result.URLsVisited)
	require.Equal(t, wordcount.Counts{{Word: "x", Count: 3}, {Word: "y", Count: 1}}, result.WordCounts)
}

func TestCrawlSelfLinkTerminates(t *testing.T) {
	t.Parallel()
	f := newGraphFetcher(map[string]Page{
		"https://a.com": {WordCounts: map[string]int{"loop": 1}, Links: []string{"https://a.com", "https://a.com"}},
	})

	result, err := newTestCrawler(settings(50), f, newManualClock()).Crawl(context.Background(), []string{"https://a.com"})

	require.NoError(t, err)
	require.Equal(t, 1, result.URLsVisited)
	require.Equal(t, 1, f.fetchCount("https://a.com"))
	require.Equal(t, map[string]int{"loop": 1}, result.WordCounts.Map())
}

func TestCrawlElapsedDeadlineReturnsEmptyResult(t *testing.T) {
	t.Parallel()
	clock := newManualClock()
	f := newGraphFetcher(twoPageGraph())
	s := settings(3)
	s.Timeout = -time.Second

	result, err := newTestCrawler(s, f, clock).Crawl(context.Background(), []string{"https://a.com"})

	require.NoError(t, err)
	require.NotNil(t, result.WordCounts)
	require.Empty(t, result.WordCounts)
	require.Zero(t, result.URLsVisited)
	require.Empty(t, f.fetchedURLs())
}

func TestCrawlNoFetchStartsAfterDeadline(t *testing.T) {
	t.Parallel()
	clock := newManualClock()
	f := newGraphFetcher(map[string]Page{
		"https://a.com": {WordCounts: map[string]int{"a": 1}, Links: []string{"https://b.com", "https://c.com"}},
		"https://b.com": {WordCounts: map[string]int{"b": 1}},
		"https://c.com": {WordCounts: map[string]int{"c": 1}},
	})
	// The deadline passes while the seed is in flight.
	f.before = func(url string) {
		if url == "https://a.com" {
			clock.Advance(2 * time.Minute)
		}
	}

	result, err := newTestCrawler(settings(3), f, clock).Crawl(context.Background(), []string{"https://a.com"})

	require.NoError(t, err)
	require.Equal(t, map[string]int{"a": 1}, result.WordCounts.Map())
	require.Equal(t, 1, result.URLsVisited)
	require.Equal(t, map[string]int{"https://a.com": 1}, f.fetchedURLs())
}

func TestCrawlDepthZeroNeverFetches(t *testing.T) {
	t.Parallel()
	f := new(MockFetcher)

	result, err := newTestCrawler(settings(0), f, newManualClock()).Crawl(context.Background(), []string{"https://a.com", "https://b.com"})

	require.NoError(t, err)
	require.Zero(t, result.URLsVisited)
	require.Empty(t, result.WordCounts)
	f.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestCrawlSkipsIgnoredURLs(t *testing.T) {
	t.Parallel()
	ignored, err := CompilePatterns("ignored_urls", []string{`https://b\.com`})
	require.NoError(t, err)
	f := newGraphFetcher(map[string]Page{
		"https://a.com":     {WordCounts: map[string]int{"a": 1}, Links: []string{"https://b.com", "https://c.com"}},
		"https://b.com":     {WordCounts: map[string]int{"b": 1}},
		"https://c.com":     {WordCounts: map[string]int{"c": 1}, Links: []string{"https://b.com", "https://b.com/sub"}},
		"https://b.com/sub": {WordCounts: map[string]int{"sub": 1}},
	})
	s := settings(4)
	s.IgnoredURLs = ignored

	result, err := newTestCrawler(s, f, newManualClock()).Crawl(context.Background(), []string{"https://a.com", "https://b.com"})

	require.NoError(t, err)
	require.Zero(t, f.fetchCount("https://b.com"))
	require.Equal(t, 1, f.fetchCount("https://b.com/sub"), "patterns are full matches, not prefixes")
	require.Equal(t, 3, result.URLsVisited)
	require.Equal(t, map[string]int{"a": 1, "c": 1, "sub": 1}, result.WordCounts.Map())
}

func TestCrawlFetchErrorIsScopedToOnePage(t *testing.T) {
	t.Parallel()
	f := newGraphFetcher(map[string]Page{
		"https://a.com": {WordCounts: map[string]int{"a": 1}, Links: []string{"https://bad.com", "https://c.com"}},
		"https://c.com": {WordCounts: map[string]int{"c": 2}},
	})
	f.failOn["https://bad.com"] = true
	obs := &recordingObserver{}

	result, err := newTestCrawler(settings(3), f, newManualClock(), WithObserver(obs)).Crawl(context.Background(), []string{"https://a.com"})

	require.NoError(t, err)
	require.Equal(t, map[string]int{"a": 1, "c": 2}, result.WordCounts.Map())
	require.Equal(t, 3, result.URLsVisited, "a failed page still counts as visited")
	require.Equal(t, 1, f.fetchCount("https://bad.com"), "fetch failures are not retried")
	require.EqualValues(t, 1, obs.failures.Load())
	require.EqualValues(t, 3, obs.started.Load())
	require.Equal(t, obs.started.Load(), obs.finished.Load())
	require.EqualValues(t, 1, obs.runs.Load())
}

// denseGraph builds n pages where every page links to every page.
func denseGraph(n int) (map[string]Page, []string) {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://site.test/%d", i)
	}
	pages := make(map[string]Page, n)
	for i, u := range urls {
		pages[u] = Page{
			WordCounts: map[string]int{"common": 1, fmt.Sprintf("w%d", i%7): i + 1},
			Links:      urls,
		}
	}
	return pages, urls
}

func TestCrawlDedupUnderContention(t *testing.T) {
	t.Parallel()
	pages, urls := denseGraph(40)
	f := newGraphFetcher(pages)
	seeds := make([]string, 0, 200)
	for range 5 {
		seeds = append(seeds, urls...)
	}

	s := settings(4)
	s.Parallelism = 16
	result, err := newTestCrawler(s, f, newManualClock(), WithHardwareParallelism(16)).Crawl(context.Background(), seeds)

	require.NoError(t, err)
	require.Equal(t, len(urls), result.URLsVisited)
	for _, u := range urls {
		require.Equal(t, 1, f.fetchCount(u), u)
	}
	require.Equal(t, len(urls), result.WordCounts.Map()["common"])
}

func TestCrawlSeedOrderDoesNotChangeCounts(t *testing.T) {
	t.Parallel()
	pages, urls := denseGraph(15)
	reversed := make([]string, len(urls))
	for i, u := range urls {
		reversed[len(urls)-1-i] = u
	}
	s := settings(3)
	s.PopularWordCount = 100

	forward, err := newTestCrawler(s, newGraphFetcher(pages), newManualClock()).Crawl(context.Background(), urls[:5])
	require.NoError(t, err)
	backward, err := newTestCrawler(s, newGraphFetcher(pages), newManualClock()).Crawl(context.Background(), reversed[len(reversed)-5:])
	require.NoError(t, err)

	require.Equal(t, forward.WordCounts.Map(), backward.WordCounts.Map())
	require.Equal(t, forward.URLsVisited, backward.URLsVisited)
}

func TestCrawlBoundsConcurrentFetches(t *testing.T) {
	t.Parallel()
	pages, urls := denseGraph(30)
	f := newGraphFetcher(pages)
	f.delay = 5 * time.Millisecond
	s := settings(3)
	s.Parallelism = 3

	c := newTestCrawler(s, f, newManualClock(), WithHardwareParallelism(64))
	require.Equal(t, 3, c.MaxParallelism())

	result, err := c.Crawl(context.Background(), urls[:1])

	require.NoError(t, err)
	require.Equal(t, 30, result.URLsVisited)
	require.LessOrEqual(t, f.peak.Load(), int64(3))
}

func TestCrawlSingleSlotDeepTreeCompletes(t *testing.T) {
	t.Parallel()
	pages := map[string]Page{}
	for i := range 10 {
		url := fmt.Sprintf("https://chain.test/%d", i)
		pages[url] = Page{
			WordCounts: map[string]int{"hop": 1},
			Links:      []string{fmt.Sprintf("https://chain.test/%d", i+1)},
		}
	}
	s := settings(10)
	s.Parallelism = 1

	done := make(chan Result, 1)
	go func() {
		result, _ := newTestCrawler(s, newGraphFetcher(pages), newManualClock()).Crawl(context.Background(), []string{"https://chain.test/0"})
		done <- result
	}()

	select {
	case result := <-done:
		require.Equal(t, 10, result.URLsVisited)
		require.Equal(t, map[string]int{"hop": 10}, result.WordCounts.Map())
	case <-time.After(5 * time.Second):
		t.Fatal("crawl with one fetch slot did not finish; parents must not hold slots while joining")
	}
}

func TestCrawlCanceledContextReturnsPartialResult(t *testing.T) {
	t.Parallel()
	f := new(MockFetcher)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestCrawler(settings(2), f, newManualClock()).Crawl(ctx, []string{"https://a.com"})

	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, result.WordCounts)
	f.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestCrawlTopKLimit(t *testing.T) {
	t.Parallel()
	f := new(MockFetcher)
	f.On("Fetch", mock.Anything, "https://a.com").Return(Page{
		WordCounts: map[string]int{"alpha": 5, "be": 5, "gamma": 1, "delta": 9},
	}, nil).Once()
	s := settings(1)
	s.PopularWordCount = 2

	result, err := newTestCrawler(s, f, newManualClock()).Crawl(context.Background(), []string{"https://a.com"})

	require.NoError(t, err)
	require.Equal(t, wordcount.Counts{{Word: "delta", Count: 9}, {Word: "alpha", Count: 5}}, result.WordCounts)
	f.AssertExpectations(t)
}

func TestMaxParallelism(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		requested int
		hardware  int
		want      int
	}{
		{"requested below hardware", 2, 8, 2},
		{"hardware below requested", 16, 4, 4},
		{"floor of one", 0, 4, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := settings(1)
			s.Parallelism = tc.requested
			c := newTestCrawler(s, new(MockFetcher), newManualClock(), WithHardwareParallelism(tc.hardware))
			require.Equal(t, tc.want, c.MaxParallelism())
		})
	}
}

func TestRunParametersRequest(t *testing.T) {
	t.Parallel()
	req, err := RunParameters{
		StartPages:       []string{"https://a.com"},
		MaxDepth:         2,
		TimeoutSeconds:   3,
		PopularWordCount: 5,
		Parallelism:      2,
		IgnoredURLs:      []string{`.*\.pdf`},
	}.Request()
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, req.Timeout)
	require.Len(t, req.IgnoredURLs, 1)

	_, err = RunParameters{MaxDepth: 1, Parallelism: 1}.Request()
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "start_pages", cfgErr.Field)

	_, err = RunParameters{StartPages: []string{"https://a.com"}, Parallelism: 0}.Request()
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "parallelism", cfgErr.Field)
}
