package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JakeFAU/webcrawler/internal/crawler"
)

const instrumentationName = "github.com/JakeFAU/webcrawler/internal/telemetry"

// Tracer returns the tracer of the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// WrapCrawler starts a span around every Crawl.
func WrapCrawler(tracer trace.Tracer, c crawler.WebCrawler) crawler.WebCrawler {
	return &tracedCrawler{delegate: c, tracer: tracer}
}

// WrapFetcher starts a span around every Fetch. Fetch spans are children of
// the Crawl span when the crawler passes its context down.
func WrapFetcher(tracer trace.Tracer, f crawler.PageFetcher) crawler.PageFetcher {
	return &tracedFetcher{delegate: f, tracer: tracer}
}

type tracedCrawler struct {
	delegate crawler.WebCrawler
	tracer   trace.Tracer
}

func (c *tracedCrawler) Crawl(ctx context.Context, startingURLs []string) (crawler.Result, error) {
	ctx, span := c.tracer.Start(ctx, "crawler.Crawl", trace.WithAttributes(
		attribute.StringSlice("crawl.start_pages", startingURLs),
		attribute.Int("crawl.max_parallelism", c.delegate.MaxParallelism()),
	))
	defer span.End()

	result, err := c.delegate.Crawl(ctx, startingURLs)
	span.SetAttributes(
		attribute.Int("crawl.urls_visited", result.URLsVisited),
		attribute.Int("crawl.popular_words", len(result.WordCounts)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (c *tracedCrawler) MaxParallelism() int {
	return c.delegate.MaxParallelism()
}

type tracedFetcher struct {
	delegate crawler.PageFetcher
	tracer   trace.Tracer
}

func (f *tracedFetcher) Fetch(ctx context.Context, url string) (crawler.Page, error) {
	ctx, span := f.tracer.Start(ctx, "fetcher.Fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("url.full", url)),
	)
	defer span.End()

	page, err := f.delegate.Fetch(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return page, err
	}
	span.SetAttributes(
		attribute.Int("page.links", len(page.Links)),
		attribute.Int("page.distinct_words", len(page.WordCounts)),
	)
	return page, nil
}
