package crawler

import (
	"maps"
	"sync"
	"time"
)

// crawlState is the mutable state shared by every task of one run.
type crawlState struct {
	deadline time.Time
	visited  *urlSet
	counts   *wordCounter
}

func newCrawlState(deadline time.Time) *crawlState {
	return &crawlState{
		deadline: deadline,
		visited:  newURLSet(),
		counts:   newWordCounter(),
	}
}

// urlSet is a visited set whose add is a single test-and-insert.
type urlSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newURLSet() *urlSet {
	return &urlSet{seen: make(map[string]struct{})}
}

// add returns true if url was not present and has now been claimed by the caller.
func (s *urlSet) add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.seen[url]; exists {
		return false
	}
	s.seen[url] = struct{}{}
	return true
}

func (s *urlSet) contains(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[url]
	return ok
}

func (s *urlSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// wordCounter accumulates word counts; one merge holds the lock for a whole page.
type wordCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newWordCounter() *wordCounter {
	return &wordCounter{counts: make(map[string]int)}
}

func (c *wordCounter) merge(page map[string]int) {
	if len(page) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for word, n := range page {
		c.counts[word] += n
	}
}

func (c *wordCounter) empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.counts) == 0
}

func (c *wordCounter) snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.counts)
}
