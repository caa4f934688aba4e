// Package crawler implements the parallel crawl engine: a forest of
// recursive crawl tasks that share one visited set and one word-count
// accumulator per run, bounded by a depth budget and a single deadline.
package crawler
