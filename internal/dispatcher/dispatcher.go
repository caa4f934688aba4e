// Package dispatcher accepts crawl runs and fans them out to a pool of workers.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/webcrawler/internal/crawler"
	"github.com/JakeFAU/webcrawler/internal/worker"
)

// boundedQueue is a queue that can refuse work instead of waiting for a slot.
type boundedQueue interface {
	TryEnqueue(item crawler.QueueItem) error
	Len() int
}

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   crawler.Queue
	workers []*worker.Worker
	runs    crawler.RunStore
	ids     crawler.IDGenerator
	clock   crawler.Clock
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(
	queue crawler.Queue,
	workers []*worker.Worker,
	runs crawler.RunStore,
	ids crawler.IDGenerator,
	clock crawler.Clock,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:   queue,
		workers: workers,
		runs:    runs,
		ids:     ids,
		clock:   clock,
		logger:  logger,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatcher started", zap.Int("workers", len(d.workers)))
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
	d.logger.Info("dispatcher stopped")
}

// Submit validates params, records a queued run and enqueues it. A
// *crawler.ConfigurationError is returned before anything is stored.
func (d *Dispatcher) Submit(ctx context.Context, params crawler.RunParameters) (string, error) {
	if _, err := params.Request(); err != nil {
		return "", err
	}
	id, err := d.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	now := d.clock.Now()
	run := crawler.Run{
		ID:         id,
		Status:     crawler.RunStatusQueued,
		Submitted:  now,
		Parameters: params,
	}
	if err := d.runs.CreateRun(ctx, run); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	if err := d.offer(ctx, crawler.QueueItem{RunID: id, Params: params, Submitted: now.Unix()}); err != nil {
		if updateErr := d.runs.UpdateRunStatus(context.WithoutCancel(ctx), id, crawler.RunStatusFailed, err.Error()); updateErr != nil {
			d.logger.Error("mark unqueued run failed", zap.String("run_id", id), zap.Error(updateErr))
		}
		return "", err
	}
	fields := []zap.Field{zap.String("run_id", id), zap.Strings("start_pages", params.StartPages)}
	if q, ok := d.queue.(boundedQueue); ok {
		fields = append(fields, zap.Int("queue_len", q.Len()))
	}
	d.logger.Info("run queued", fields...)
	return id, nil
}

// offer enqueues without waiting when the queue is bounded, so a full queue
// rejects the run at once.
func (d *Dispatcher) offer(ctx context.Context, item crawler.QueueItem) error {
	q, ok := d.queue.(boundedQueue)
	if !ok {
		return d.Enqueue(ctx, item)
	}
	if err := q.TryEnqueue(item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item crawler.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
