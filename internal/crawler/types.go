package crawler

import (
	"regexp"
	"time"

	"github.com/JakeFAU/webcrawler/internal/wordcount"
)

// Settings are the per-run knobs that shape the task forest.
type Settings struct {
	MaxDepth         int
	Timeout          time.Duration
	IgnoredURLs      []*regexp.Regexp
	PopularWordCount int
	Parallelism      int
}

// Request is the immutable input to one crawl run.
type Request struct {
	StartPages []string
	Settings
}

// Validate rejects requests that cannot produce a meaningful run.
func (r Request) Validate() error {
	if len(r.StartPages) == 0 {
		return &ConfigurationError{Field: "start_pages", Reason: "at least one start page is required"}
	}
	return r.Settings.Validate()
}

// Validate checks the numeric bounds of the settings.
func (s Settings) Validate() error {
	if s.MaxDepth < 0 {
		return &ConfigurationError{Field: "max_depth", Reason: "must be >= 0"}
	}
	if s.Timeout < 0 {
		return &ConfigurationError{Field: "timeout", Reason: "must be >= 0"}
	}
	if s.PopularWordCount < 0 {
		return &ConfigurationError{Field: "popular_word_count", Reason: "must be >= 0"}
	}
	if s.Parallelism <= 0 {
		return &ConfigurationError{Field: "parallelism", Reason: "must be > 0"}
	}
	return nil
}

// Page is what a PageFetcher extracts from one URL.
type Page struct {
	WordCounts map[string]int
	Links      []string
}

// Result is the outcome of one crawl run.
type Result struct {
	WordCounts  wordcount.Counts `json:"wordCounts" yaml:"wordCounts"`
	URLsVisited int              `json:"urlsVisited" yaml:"urlsVisited"`
}

// RunStatus represents the lifecycle state of a crawl run submitted to the service.
type RunStatus string

// Run status values persisted in the run store.
const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// Terminal reports whether no further transitions are expected.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCanceled:
		return true
	default:
		return false
	}
}

// RunParameters captures the crawl knobs requested by a client in wire form.
type RunParameters struct {
	StartPages       []string `json:"start_pages" mapstructure:"start_pages"`
	MaxDepth         int      `json:"max_depth" mapstructure:"max_depth"`
	TimeoutSeconds   float64  `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	PopularWordCount int      `json:"popular_word_count" mapstructure:"popular_word_count"`
	Parallelism      int      `json:"parallelism" mapstructure:"parallelism"`
	IgnoredURLs      []string `json:"ignored_urls,omitempty" mapstructure:"ignored_urls"`
}

// Request compiles the wire parameters into a validated Request.
func (p RunParameters) Request() (Request, error) {
	ignored, err := CompilePatterns("ignored_urls", p.IgnoredURLs)
	if err != nil {
		return Request{}, err
	}
	req := Request{
		StartPages: append([]string(nil), p.StartPages...),
		Settings: Settings{
			MaxDepth:         p.MaxDepth,
			Timeout:          time.Duration(p.TimeoutSeconds * float64(time.Second)),
			IgnoredURLs:      ignored,
			PopularWordCount: p.PopularWordCount,
			Parallelism:      p.Parallelism,
		},
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Run is the metadata persisted for each crawl submitted to the service.
type Run struct {
	ID         string        `json:"id"`
	Status     RunStatus     `json:"status"`
	Submitted  time.Time     `json:"submitted_at"`
	Started    *time.Time    `json:"started_at,omitempty"`
	Finished   *time.Time    `json:"finished_at,omitempty"`
	ErrorText  string        `json:"error_text,omitempty"`
	Parameters RunParameters `json:"parameters"`
	Result     *Result       `json:"result,omitempty"`
	DurationMs int64         `json:"duration_ms,omitempty"`
}

// QueueItem wraps a run ready to execute.
type QueueItem struct {
	RunID     string
	Params    RunParameters
	Submitted int64
}

// RunCompleted is the notification published when a run reaches a terminal status.
type RunCompleted struct {
	RunID         string    `json:"run_id"`
	Status        RunStatus `json:"status"`
	URLsVisited   int       `json:"urls_visited"`
	DistinctWords int       `json:"distinct_words"`
	ErrorText     string    `json:"error_text,omitempty"`
	ReportURI     string    `json:"report_uri,omitempty"`
	FinishedAt    time.Time `json:"finished_at"`
}
