package crawler

import (
	"errors"
	"fmt"
)

// ErrRunNotFound is returned by run stores for unknown IDs.
var ErrRunNotFound = errors.New("run not found")

// ErrQueueClosed is returned by a Queue that has been shut down.
var ErrQueueClosed = errors.New("queue closed")

// ErrQueueFull is returned when a bounded queue has no free slot.
var ErrQueueFull = errors.New("queue full")

// FetchError reports that a single URL could not be retrieved or parsed.
// It is scoped to that URL; the enclosing crawl keeps going.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports a malformed crawl setting. It is raised before any task starts.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
