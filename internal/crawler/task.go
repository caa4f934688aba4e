package crawler

import (
	"context"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// taskEnv holds the collaborators every task of a run shares read-only.
type taskEnv struct {
	clock    Clock
	ignored  []*regexp.Regexp
	fetcher  PageFetcher
	slots    *semaphore.Weighted
	observer Observer
	logger   *zap.Logger
}

// crawlTask is one recursive unit of work: a single URL at a remaining depth.
type crawlTask struct {
	url   string
	depth int
	state *crawlState
	env   *taskEnv
}

// compute runs the task and all of its descendants. It returns only after
// every child it spawned has returned.
func (t crawlTask) compute(ctx context.Context) {
	if t.depth == 0 {
		return
	}
	if t.env.clock.Now().After(t.state.deadline) {
		return
	}
	if MatchesAny(t.env.ignored, t.url) {
		return
	}
	if !t.state.visited.add(t.url) {
		return
	}

	t.env.observer.TaskStarted()
	defer t.env.observer.TaskFinished()

	page, ok := t.fetch(ctx)
	if !ok {
		return
	}
	t.state.counts.merge(page.WordCounts)

	// Children at depth 0 would stop at their first guard.
	if t.depth == 1 || len(page.Links) == 0 {
		return
	}
	var wg sync.WaitGroup
	for _, link := range page.Links {
		child := crawlTask{
			url:   link,
			depth: t.depth - 1,
			state: t.state,
			env:   t.env,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			child.compute(ctx)
		}()
	}
	wg.Wait()
}

// fetch holds a parallelism slot only for the duration of the page fetch.
func (t crawlTask) fetch(ctx context.Context) (Page, bool) {
	if err := t.env.slots.Acquire(ctx, 1); err != nil {
		t.env.logger.Debug("fetch slot not acquired", zap.String("url", t.url), zap.Error(err))
		return Page{}, false
	}
	start := time.Now()
	page, err := t.env.fetcher.Fetch(ctx, t.url)
	t.env.slots.Release(1)

	t.env.observer.ObserveFetch(t.url, time.Since(start), err)
	if err != nil {
		t.env.logger.Debug("page skipped", zap.String("url", t.url), zap.Int("depth", t.depth), zap.Error(err))
		return Page{}, false
	}
	return page, true
}
