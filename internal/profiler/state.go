package profiler

import (
	"fmt"
	"io"
	"slices"
	"sync"
	"time"
)

// State accumulates elapsed time per profiled method. It is safe for concurrent use.
type State struct {
	mu   sync.Mutex
	data map[string]time.Duration
}

// NewState returns an empty State.
func NewState() *State {
	return &State{data: make(map[string]time.Duration)}
}

// Record adds d to the total for target's method. Negative durations are rejected.
func (s *State) Record(target any, method string, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("negative duration %s for %s", d, method)
	}
	key := fmt.Sprintf("%T#%s", target, method)
	s.mu.Lock()
	s.data[key] += d
	s.mu.Unlock()
	return nil
}

// Totals returns a copy of the recorded durations.
func (s *State) Totals() map[string]time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Duration, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Write prints one line per method, sorted by key.
func (s *State) Write(w io.Writer) error {
	totals := s.Totals()
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintln(w, formatEntry(k, totals[k])); err != nil {
			return fmt.Errorf("write profile entry: %w", err)
		}
	}
	return nil
}

func formatEntry(key string, d time.Duration) string {
	minutes := int64(d / time.Minute)
	seconds := int64(d%time.Minute) / int64(time.Second)
	millis := int64(d%time.Second) / int64(time.Millisecond)
	return fmt.Sprintf("%s took %dm %ds %dms", key, minutes, seconds, millis)
}
