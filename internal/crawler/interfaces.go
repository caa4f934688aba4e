package crawler

import (
	"context"
	"io"
	"time"

	"github.com/JakeFAU/webcrawler/internal/wordcount"
)

// WebCrawler runs a crawl from a list of starting URLs.
type WebCrawler interface {
	Crawl(ctx context.Context, startingURLs []string) (Result, error)
	MaxParallelism() int
}

// PageFetcher downloads and parses one page. Failures are reported as *FetchError.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Ranker reduces the merged word counts to the K most popular words.
type Ranker interface {
	Top(counts map[string]int, k int) wordcount.Counts
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Observer receives crawl lifecycle signals, typically for metrics.
type Observer interface {
	TaskStarted()
	TaskFinished()
	ObserveFetch(url string, elapsed time.Duration, err error)
	ObserveRun(result Result, elapsed time.Duration, err error)
}

// RunStore persists service runs and their results.
type RunStore interface {
	CreateRun(ctx context.Context, run Run) error
	UpdateRunStatus(ctx context.Context, runID string, status RunStatus, errText string) error
	RecordResult(ctx context.Context, runID string, result Result, elapsed time.Duration) error
	GetRun(ctx context.Context, runID string) (Run, error)
}

// RunArchive keeps finished runs for later analysis.
type RunArchive interface {
	SaveRun(ctx context.Context, run Run) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for crawl runs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

type noopObserver struct{}

func (noopObserver) TaskStarted() {}
func (noopObserver) TaskFinished() {}
func (noopObserver) ObserveFetch(string, time.Duration, error) {}
func (noopObserver) ObserveRun(Result, time.Duration, error) {}
