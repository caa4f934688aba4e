// Package worker implements the crawl run execution loop.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/webcrawler/internal/crawler"
	"github.com/JakeFAU/webcrawler/internal/metrics"
	"github.com/JakeFAU/webcrawler/internal/report"
)

// Factory builds the crawler that executes one run.
type Factory func(req crawler.Request) crawler.WebCrawler

// Config controls Worker behavior.
type Config struct {
	// Topic receives a crawler.RunCompleted message per finished run. Empty disables publishing.
	Topic string
	// ReportPrefix is prepended to "<run_id>.json" when reports are uploaded.
	ReportPrefix string
}

// Worker consumes queue items and executes crawl runs.
type Worker struct {
	queue     crawler.Queue
	runs      crawler.RunStore
	archive   crawler.RunArchive
	publisher crawler.Publisher
	reports   crawler.BlobStore
	factory   Factory
	clock     crawler.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. archive, publisher and reports may be nil.
func New(
	queue crawler.Queue,
	runs crawler.RunStore,
	archive crawler.RunArchive,
	publisher crawler.Publisher,
	reports crawler.BlobStore,
	factory Factory,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Worker{
		queue:     queue,
		runs:      runs,
		archive:   archive,
		publisher: publisher,
		reports:   reports,
		factory:   factory,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, crawler.ErrQueueClosed) {
				w.logger.Info("queue closed, worker exiting")
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued run", zap.String("run_id", item.RunID))
		w.processRun(ctx, item)
	}
}

func (w *Worker) processRun(ctx context.Context, item crawler.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	logger := w.logger.With(zap.String("run_id", item.RunID))
	// Bookkeeping must still land after shutdown cancels the crawl.
	storeCtx := context.WithoutCancel(ctx)

	if err := w.runs.UpdateRunStatus(storeCtx, item.RunID, crawler.RunStatusRunning, ""); err != nil {
		logger.Error("update run status failed", zap.Error(err))
		return
	}

	req, err := item.Params.Request()
	if err != nil {
		w.finish(storeCtx, logger, item.RunID, crawler.RunStatusFailed, err.Error())
		return
	}

	start := w.clock.Now()
	result, crawlErr := w.factory(req).Crawl(ctx, req.StartPages)
	elapsed := w.clock.Now().Sub(start)

	if err := w.runs.RecordResult(storeCtx, item.RunID, result, elapsed); err != nil {
		logger.Error("record result failed", zap.Error(err))
	}

	status, errText := FinalStatus(crawlErr)
	w.finish(storeCtx, logger, item.RunID, status, errText)
}

// finish stamps the terminal status, then archives and announces the run.
func (w *Worker) finish(
	ctx context.Context,
	logger *zap.Logger,
	runID string,
	status crawler.RunStatus,
	errText string,
) {
	metrics.ObserveJob(string(status))
	if err := w.runs.UpdateRunStatus(ctx, runID, status, errText); err != nil {
		logger.Error("final run status update failed", zap.Error(err))
		return
	}
	run, err := w.runs.GetRun(ctx, runID)
	if err != nil {
		logger.Error("reload run failed", zap.Error(err))
		return
	}
	logger.Info("run finished",
		zap.String("status", string(status)),
		zap.Int64("duration_ms", run.DurationMs),
		zap.String("error", errText),
	)

	if w.archive != nil {
		if err := w.archive.SaveRun(ctx, run); err != nil {
			logger.Error("archive run failed", zap.Error(err))
		}
	}
	reportURI, err := w.uploadReport(ctx, run)
	if err != nil {
		logger.Error("upload report failed", zap.Error(err))
	}
	if err := w.publishCompletion(ctx, run, reportURI); err != nil {
		logger.Error("publish completion failed", zap.Error(err))
	}
}

// uploadReport stores the JSON rendering of a finished run's result.
func (w *Worker) uploadReport(ctx context.Context, run crawler.Run) (string, error) {
	if w.reports == nil || run.Result == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := report.NewWriter(report.FormatJSON, &buf).Write(*run.Result); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	name := path.Join(strings.Trim(w.cfg.ReportPrefix, "/"), run.ID+".json")
	uri, err := w.reports.PutObject(ctx, name, report.FormatJSON.ContentType(), &buf)
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return uri, nil
}

func (w *Worker) publishCompletion(ctx context.Context, run crawler.Run, reportURI string) error {
	if w.cfg.Topic == "" || w.publisher == nil {
		return nil
	}
	msg := crawler.RunCompleted{
		RunID:     run.ID,
		Status:    run.Status,
		ErrorText: run.ErrorText,
		ReportURI: reportURI,
	}
	if run.Result != nil {
		msg.URLsVisited = run.Result.URLsVisited
		msg.DistinctWords = len(run.Result.WordCounts)
	}
	if run.Finished != nil {
		msg.FinishedAt = *run.Finished
	} else {
		msg.FinishedAt = w.clock.Now()
	}
	id, err := w.publisher.Publish(ctx, w.cfg.Topic, msg)
	if err != nil {
		return fmt.Errorf("publish payload: %w", err)
	}
	w.logger.Debug("completion published", zap.String("run_id", run.ID), zap.String("message_id", id))
	return nil
}

// FinalStatus maps a crawl error to the run's terminal status and error text.
// Interrupted crawls are canceled, not failed.
func FinalStatus(err error) (crawler.RunStatus, string) {
	switch {
	case err == nil:
		return crawler.RunStatusSucceeded, ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return crawler.RunStatusCanceled, err.Error()
	default:
		return crawler.RunStatusFailed, err.Error()
	}
}
