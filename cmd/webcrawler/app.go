package main

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/webcrawler/internal/clock/system"
	"github.com/JakeFAU/webcrawler/internal/config"
	"github.com/JakeFAU/webcrawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/webcrawler/internal/fetcher/colly"
	"github.com/JakeFAU/webcrawler/internal/metrics"
	"github.com/JakeFAU/webcrawler/internal/parser"
	"github.com/JakeFAU/webcrawler/internal/profiler"
	pubsubpublisher "github.com/JakeFAU/webcrawler/internal/publisher/pubsub"
	"github.com/JakeFAU/webcrawler/internal/report"
	"github.com/JakeFAU/webcrawler/internal/storage/postgres"
	"github.com/JakeFAU/webcrawler/internal/telemetry"
	"github.com/JakeFAU/webcrawler/internal/wordcount"
)

const tracingFlushTimeout = 5 * time.Second

// app holds the services shared by every subcommand. stopTracing flushes
// spans and is nil when no tracer provider was installed.
type app struct {
	cfg         config.Config
	logger      *zap.Logger
	clock       crawler.Clock
	profiler    *profiler.Profiler
	tracer      trace.Tracer
	stopTracing func(context.Context) error
	closeOnce   sync.Once
}

func newAppFromConfig(cfg config.Config, logger *zap.Logger) *app {
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := system.New()
	return &app{
		cfg:      cfg,
		logger:   logger,
		clock:    clock,
		profiler: profiler.New(clock, logger),
		tracer:   telemetry.Tracer(),
	}
}

// Close flushes pending spans and the logger. Later calls do nothing.
func (a *app) Close() {
	a.closeOnce.Do(a.flush)
}

func (a *app) flush() {
	if a.stopTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), tracingFlushTimeout)
		defer cancel()
		if err := a.stopTracing(ctx); err != nil {
			a.logger.Warn("flush traces", zap.Error(err))
		}
	}
	// Sync fails on terminals; nothing useful can be done about it.
	_ = a.logger.Sync()
}

// newCrawler builds a traced, profiled crawler over a traced, profiled Colly
// fetcher. Tracing wraps the profiler so profile keys name the real types.
func (a *app) newCrawler(req crawler.Request, ignoredWords []*regexp.Regexp) crawler.WebCrawler {
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:    a.cfg.Fetcher.UserAgent,
		Timeout:      a.cfg.Fetcher.RequestTimeout,
		MaxBodyBytes: a.cfg.Fetcher.MaxBodyBytes,
		FileRoot:     a.cfg.Fetcher.FileRoot,
	}, parser.New(ignoredWords))

	c := crawler.NewParallelCrawler(
		req.Settings,
		telemetry.WrapFetcher(a.tracer, a.profiler.WrapFetcher(fetcher)),
		wordcount.Ranker{},
		a.clock,
		a.logger.Named("crawler"),
		crawler.WithObserver(metrics.NewRecorder()),
	)
	return telemetry.WrapCrawler(a.tracer, a.profiler.WrapCrawler(c))
}

func noop() {}

// openArchive connects to Postgres when db.dsn is set. A nil archive means none is configured.
func (a *app) openArchive(ctx context.Context) (crawler.RunArchive, func(), error) {
	if a.cfg.DB.DSN == "" {
		return nil, noop, nil
	}
	archive, err := postgres.NewRunArchive(ctx, postgres.Config{
		DSN:      a.cfg.DB.DSN,
		Table:    a.cfg.DB.Table,
		MaxConns: int32(a.cfg.DB.MaxConns),
	})
	if err != nil {
		return nil, noop, fmt.Errorf("connect run archive: %w", err)
	}
	if err := archive.EnsureSchema(ctx); err != nil {
		archive.Close()
		return nil, noop, fmt.Errorf("prepare run archive: %w", err)
	}
	a.logger.Info("run archive enabled", zap.String("table", a.cfg.DB.Table))
	return archive, archive.Close, nil
}

// openPublisher connects to Pub/Sub when pubsub.topic_name is set. A nil
// publisher means none is configured.
func (a *app) openPublisher(ctx context.Context) (crawler.Publisher, func(), error) {
	if a.cfg.PubSub.TopicName == "" {
		return nil, noop, nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, noop, fmt.Errorf("create pubsub client: %w", err)
	}
	pub := pubsubpublisher.New(client)
	release := func() {
		pub.Stop()
		if err := client.Close(); err != nil {
			a.logger.Warn("close pubsub client", zap.Error(err))
		}
	}
	a.logger.Info("completion publishing enabled",
		zap.String("project_id", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return pub, release, nil
}

// openReports connects to the storage.gcs_bucket used for service reports.
// A nil store means reports are not uploaded.
func (a *app) openReports(ctx context.Context) (crawler.BlobStore, func(), error) {
	if a.cfg.Storage.GCSBucket == "" {
		return nil, noop, nil
	}
	store, closeStore, err := report.OpenGCS(ctx, a.cfg.Storage.GCSBucket)
	if err != nil {
		return nil, noop, err
	}
	release := func() {
		if err := closeStore(); err != nil {
			a.logger.Warn("close gcs client", zap.Error(err))
		}
	}
	a.logger.Info("report uploads enabled", zap.String("bucket", a.cfg.Storage.GCSBucket))
	return store, release, nil
}
