package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/webcrawler/internal/crawler"
)

// RunStore keeps crawl runs in memory for the service and for tests.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]crawler.Run
	now  func() time.Time
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]crawler.Run),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateRun stores a new run.
func (s *RunStore) CreateRun(_ context.Context, run crawler.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return errors.New("run already exists")
	}
	s.runs[run.ID] = run
	return nil
}

// UpdateRunStatus moves a run to status, stamping start and finish times.
func (s *RunStore) UpdateRunStatus(_ context.Context, runID string, status crawler.RunStatus, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("update %s: %w", runID, crawler.ErrRunNotFound)
	}
	run.Status = status
	run.ErrorText = errText
	now := s.now()
	if status == crawler.RunStatusRunning && run.Started == nil {
		run.Started = pointerTime(now)
	}
	if status.Terminal() {
		run.Finished = pointerTime(now)
	}
	s.runs[runID] = run
	return nil
}

// RecordResult attaches the crawl result to a run.
func (s *RunStore) RecordResult(_ context.Context, runID string, result crawler.Result, elapsed time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("record result %s: %w", runID, crawler.ErrRunNotFound)
	}
	stored := crawler.Result{
		WordCounts:  append(result.WordCounts[:0:0], result.WordCounts...),
		URLsVisited: result.URLsVisited,
	}
	run.Result = &stored
	run.DurationMs = elapsed.Milliseconds()
	s.runs[runID] = run
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, runID string) (crawler.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return crawler.Run{}, fmt.Errorf("get %s: %w", runID, crawler.ErrRunNotFound)
	}
	return run, nil
}

func pointerTime(t time.Time) *time.Time {
	return &t
}
