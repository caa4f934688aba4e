package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/webcrawler/internal/config"
	"github.com/JakeFAU/webcrawler/internal/crawler"
	"github.com/JakeFAU/webcrawler/internal/id/uuid"
	"github.com/JakeFAU/webcrawler/internal/report"
	"github.com/JakeFAU/webcrawler/internal/worker"
)

// crawlOptions are the flags that override the crawler and output config sections.
type crawlOptions struct {
	depth         int
	timeout       time.Duration
	popularWords  int
	parallelism   int
	ignoreURLs    []string
	ignoreWords   []string
	format        string
	output        string
	profileOutput string
}

func newCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl [start-page ...]",
		Short: "Crawl from the start pages and report the most popular words",
		Long: `Crawls every start page (crawler.start_pages when none are given) and
follows links up to the maximum depth. The ranked words are written in
output.format to output.result_path: empty or "-" is stdout, gs://bucket/key
uploads to Cloud Storage, anything else is a local file.

An interrupted crawl still writes the words counted so far and exits non-zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, args, opts)
		},
	}

	opts.bind(cmd)
	return cmd
}

// bind registers the flags on cmd.
func (o *crawlOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&o.depth, "depth", 0, "maximum link depth from a start page (crawler.max_depth)")
	f.DurationVar(&o.timeout, "timeout", 0, "time budget for the whole crawl (crawler.timeout)")
	f.IntVar(&o.popularWords, "popular-words", 0, "number of words to report (crawler.popular_word_count)")
	f.IntVar(&o.parallelism, "parallelism", 0, "maximum concurrent fetches (crawler.parallelism)")
	f.StringArrayVar(&o.ignoreURLs, "ignore-url", nil, "regexp of URLs to skip, repeatable (crawler.ignored_urls)")
	f.StringArrayVar(&o.ignoreWords, "ignore-word", nil, "regexp of words to drop, repeatable (crawler.ignored_words)")
	f.StringVar(&o.format, "format", "", "json, yaml or markdown (output.format)")
	f.StringVar(&o.output, "output", "", "result destination (output.result_path)")
	f.StringVar(&o.profileOutput, "profile-output", "", "file the profile is appended to (output.profile_path)")
}

// apply copies every flag the user set onto cfg.
func (o *crawlOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("depth") {
		cfg.Crawler.MaxDepth = o.depth
	}
	if flags.Changed("timeout") {
		cfg.Crawler.Timeout = o.timeout
	}
	if flags.Changed("popular-words") {
		cfg.Crawler.PopularWordCount = o.popularWords
	}
	if flags.Changed("parallelism") {
		cfg.Crawler.Parallelism = o.parallelism
	}
	if flags.Changed("ignore-url") {
		cfg.Crawler.IgnoredURLs = o.ignoreURLs
	}
	if flags.Changed("ignore-word") {
		cfg.Crawler.IgnoredWords = o.ignoreWords
	}
	if flags.Changed("format") {
		cfg.Output.Format = o.format
	}
	if flags.Changed("output") {
		cfg.Output.ResultPath = o.output
	}
	if flags.Changed("profile-output") {
		cfg.Output.ProfilePath = o.profileOutput
	}
}

func runCrawl(cmd *cobra.Command, args []string, opts *crawlOptions) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	opts.apply(cmd, &cfg)
	if len(args) > 0 {
		cfg.Crawler.StartPages = args
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	req, err := cfg.CrawlRequest()
	if err != nil {
		return err
	}
	ignoredWords, err := cfg.IgnoredWords()
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open sinks before crawling so a bad DSN fails fast.
	archive, closeArchive, err := a.openArchive(ctx)
	if err != nil {
		return err
	}
	defer closeArchive()
	publisher, closePublisher, err := a.openPublisher(ctx)
	if err != nil {
		return err
	}
	defer closePublisher()

	logger := a.logger.Named("crawl")
	started := a.clock.Now()
	result, crawlErr := a.newCrawler(req, ignoredWords).Crawl(ctx, req.StartPages)
	finished := a.clock.Now()

	// The partial result of an interrupted crawl is still delivered.
	outCtx := context.WithoutCancel(ctx)
	uri, err := report.NewDestination(cmd.OutOrStdout(), report.OpenGCS).
		Save(outCtx, cfg.Output.ResultPath, format, result)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	logger.Info("result saved", zap.String("uri", uri), zap.String("format", string(format)))

	if err := writeProfile(cmd.OutOrStdout(), a, cfg.Output.ProfilePath); err != nil {
		return err
	}

	status, errText := worker.FinalStatus(crawlErr)
	run := crawler.Run{
		Status:     status,
		Submitted:  started,
		Started:    &started,
		Finished:   &finished,
		ErrorText:  errText,
		Parameters: cfg.RunParameters(),
		Result:     &result,
		DurationMs: finished.Sub(started).Milliseconds(),
	}
	if run.ID, err = uuid.New().NewID(); err != nil {
		return err
	}
	if archive != nil {
		if err := archive.SaveRun(outCtx, run); err != nil {
			logger.Error("archive run failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	if uri == report.StdoutURI {
		uri = ""
	}
	if err := announceRun(outCtx, publisher, cfg.PubSub.TopicName, run, uri); err != nil {
		logger.Error("publish completion failed", zap.String("run_id", run.ID), zap.Error(err))
	}

	return crawlErr
}

// writeProfile appends the profile to path, or writes it to out after the result when path is empty.
func writeProfile(out io.Writer, a *app, path string) error {
	if path == "" {
		if err := a.profiler.WriteData(out); err != nil {
			return fmt.Errorf("write profile: %w", err)
		}
		return nil
	}
	if err := a.profiler.WriteFile(path); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

func announceRun(ctx context.Context, publisher crawler.Publisher, topic string, run crawler.Run, uri string) error {
	if publisher == nil || topic == "" {
		return nil
	}
	msg := crawler.RunCompleted{
		RunID:     run.ID,
		Status:    run.Status,
		ErrorText: run.ErrorText,
		ReportURI: uri,
	}
	if run.Result != nil {
		msg.URLsVisited = run.Result.URLsVisited
		msg.DistinctWords = len(run.Result.WordCounts)
	}
	if run.Finished != nil {
		msg.FinishedAt = *run.Finished
	}
	if _, err := publisher.Publish(ctx, topic, msg); err != nil {
		return fmt.Errorf("publish payload: %w", err)
	}
	return nil
}
