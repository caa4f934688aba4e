package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/webcrawler/internal/crawler"
)

// Page and run status label values.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusCanceled = "canceled"
)

// Recorder feeds crawl lifecycle events into the package collectors.
type Recorder struct{}

var _ crawler.Observer = Recorder{}

// NewRecorder initializes the collectors and returns a Recorder.
func NewRecorder() Recorder {
	Init()
	return Recorder{}
}

// TaskStarted increments the active task gauge.
func (Recorder) TaskStarted() { crawlerActiveTasks.Inc() }

// TaskFinished decrements the active task gauge.
func (Recorder) TaskFinished() { crawlerActiveTasks.Dec() }

// ObserveFetch counts one page fetch.
func (Recorder) ObserveFetch(url string, elapsed time.Duration, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	ObservePage(url, status, elapsed)
}

// ObserveRun counts one finished crawl.
func (Recorder) ObserveRun(result crawler.Result, elapsed time.Duration, err error) {
	status := StatusOK
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = StatusCanceled
	case err != nil:
		status = StatusError
	}
	ObserveRun(status, result.URLsVisited, elapsed)
}
