// Package system provides the process clock used outside tests.
package system

import (
	"time"

	"github.com/JakeFAU/webcrawler/internal/crawler"
)

// Clock implements crawler.Clock with time.Now. Readings keep their
// monotonic component, so crawl deadlines and profiled durations are not
// disturbed by wall-clock adjustments.
type Clock struct{}

var _ crawler.Clock = Clock{}

// New creates a new Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now()
}
