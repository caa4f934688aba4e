package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/webcrawler/internal/api"
	"github.com/JakeFAU/webcrawler/internal/config"
	"github.com/JakeFAU/webcrawler/internal/crawler"
	"github.com/JakeFAU/webcrawler/internal/dispatcher"
	"github.com/JakeFAU/webcrawler/internal/id/uuid"
	queueMemory "github.com/JakeFAU/webcrawler/internal/queue/memory"
	"github.com/JakeFAU/webcrawler/internal/storage/memory"
	"github.com/JakeFAU/webcrawler/internal/worker"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the crawl HTTP service",
		Long: `Starts the HTTP API and a fixed pool of workers. Runs submitted to
POST /v1/crawls are queued and executed in order; GET /v1/crawls/{run_id}
reports their progress. SIGINT or SIGTERM drains the service and cancels
in-flight crawls, which keep the words counted so far.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx, a)
	if err != nil {
		return err
	}
	defer svc.close()

	ln, err := net.Listen("tcp", listenAddr(a.cfg))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return svc.run(ctx, ln)
}

// listenAddr honors PORT, which Cloud Run sets, over server.port.
func listenAddr(cfg config.Config) string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return fmt.Sprintf(":%d", cfg.Server.Port)
}

// service is the wired HTTP API, dispatcher and worker pool.
type service struct {
	server   *api.Server
	dispatch *dispatcher.Dispatcher
	queue    *queueMemory.Queue
	runs     *memory.RunStore
	logger   *zap.Logger
	closers  []func()
}

func newService(ctx context.Context, a *app) (_ *service, err error) {
	cfg := a.cfg
	svc := &service{logger: a.logger}
	defer func() {
		if err != nil {
			svc.close()
		}
	}()

	ignoredWords, err := cfg.IgnoredWords()
	if err != nil {
		return nil, err
	}
	archive, closeArchive, err := a.openArchive(ctx)
	if err != nil {
		return nil, err
	}
	svc.closers = append(svc.closers, closeArchive)
	publisher, closePublisher, err := a.openPublisher(ctx)
	if err != nil {
		return nil, err
	}
	svc.closers = append(svc.closers, closePublisher)
	reports, closeReports, err := a.openReports(ctx)
	if err != nil {
		return nil, err
	}
	svc.closers = append(svc.closers, closeReports)

	svc.runs = memory.NewRunStore()
	svc.queue = queueMemory.NewQueue(cfg.Server.QueueDepth)

	factory := func(req crawler.Request) crawler.WebCrawler {
		return a.newCrawler(req, ignoredWords)
	}
	workerCfg := worker.Config{
		Topic:        cfg.PubSub.TopicName,
		ReportPrefix: cfg.Storage.Prefix,
	}
	workers := make([]*worker.Worker, cfg.Server.Workers)
	for i := range workers {
		workers[i] = worker.New(
			svc.queue,
			svc.runs,
			archive,
			publisher,
			reports,
			factory,
			a.clock,
			workerCfg,
			a.logger.Named("worker").With(zap.Int("worker", i)),
		)
	}

	svc.dispatch = dispatcher.New(svc.queue, workers, svc.runs, uuid.New(), a.clock, a.logger.Named("dispatcher"))
	svc.server = api.NewServer(svc.runs, svc.dispatch, a.profiler, cfg, a.logger.Named("api"))
	return svc, nil
}

// run serves on ln until ctx is done, then drains and stops the workers.
func (s *service) run(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           otelhttp.NewHandler(s.server.Handler(), "webcrawler.api"),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.dispatch.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")
		s.server.Drain()
		s.queue.Close()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		s.logger.Info("http server stopped")
		return nil
	})
	return g.Wait()
}

func (s *service) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
