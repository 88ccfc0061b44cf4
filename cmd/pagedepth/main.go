package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alvmarrod/pagedepth/internal/config"
	"github.com/alvmarrod/pagedepth/internal/crawler"
	"github.com/alvmarrod/pagedepth/internal/memory"
	"github.com/alvmarrod/pagedepth/internal/metrics"
	"github.com/alvmarrod/pagedepth/internal/report"
	"github.com/alvmarrod/pagedepth/internal/storage"
	"github.com/alvmarrod/pagedepth/internal/version"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const usage = `Usage:
  pagedepth [options] <url>

Synopsis:
  Crawls a site from <url>, printing one status line per page, then a
  summary of 404's, redirects and server errors with the pages linking to
  them, page depth counts, and a list of every URL to a file.

Options:
`

type options struct {
	configPath string
	relative   bool
	output     string
	dbPath     string
	verify     bool
}

func main() {
	os.Exit(run())
}

func run() int {
	// Configure logging
	logrus.SetLevel(logrus.InfoLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	opts, rootURL, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) || errors.Is(err, errNoURL) {
			return 0
		}
		return 2
	}

	cfg, err := loadConfig(opts, rootURL)
	if err != nil {
		logrus.Errorf("Invalid configuration: %v", err)
		return 2
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err == nil {
		logrus.SetLevel(level)
	}

	logrus.Infof("pagedepth v%s starting...", version.Version)
	logrus.Infof("Configuration loaded: root=%s, depth=%d, workers=%d",
		cfg.RootURL, cfg.MaxDepth, cfg.ConcurrentWorkers)

	crawlID := uuid.New().String()
	tracker := metrics.NewTracker(crawlID, cfg.RootURL)
	graph := memory.New()
	reporter := report.New(os.Stdout, cfg)

	pipeline, err := crawler.NewPipeline(cfg, crawlID, graph, tracker, reporter.Hooks())
	if err != nil {
		logrus.Errorf("Failed to initialize pipeline: %v", err)
		return 1
	}

	c, err := crawler.NewCrawler(cfg, pipeline)
	if err != nil {
		logrus.Errorf("Failed to initialize crawler: %v", err)
		return 1
	}

	// Stop scheduling new requests on SIGINT/SIGTERM; pages already in
	// flight are still reported
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start progress logger
	stopProgress := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				logrus.Infof("%s | Queued: %d", tracker.LogProgress(), pipeline.Pending())
			case <-stopProgress:
				return
			}
		}
	}()

	fmt.Printf("Starting crawl at %s\n", time.Now().Format("2006-01-02 15:04:05 -0700"))

	rep, err := c.Run(ctx)
	close(stopProgress)

	terminationReason := "crawl_complete"
	switch {
	case errors.Is(err, context.Canceled):
		terminationReason = "signal"
	case err != nil:
		logrus.Errorf("Crawl failed: %v", err)
		terminationReason = "error"
	}

	exitCode := 0
	if terminationReason == "error" {
		exitCode = 1
	}

	if opts.verify {
		if err := graph.CheckConsistency(); err != nil {
			logrus.Errorf("Graph verification failed: %v", err)
			exitCode = 1
		} else {
			logrus.Info("Graph verification passed")
		}
	}

	if cfg.DBPath != "" {
		if err := saveSnapshot(cfg.DBPath, crawlID, rep, graph, opts.verify); err != nil {
			logrus.Errorf("Failed to save crawl snapshot: %v", err)
			if errors.Is(err, memory.ErrInconsistent) {
				exitCode = 1
			}
		} else {
			logrus.Infof("Crawl %s saved to %s", crawlID, cfg.DBPath)
		}
	}

	logrus.Info("Final stats: " + tracker.LogProgress())
	if cfg.MetricsPath != "" {
		if err := tracker.WriteToFile(cfg.MetricsPath, terminationReason); err != nil {
			logrus.Errorf("Failed to write metrics: %v", err)
		} else {
			logrus.Infof("Metrics written to %s", cfg.MetricsPath)
		}
	}

	if rep.Empty() {
		logrus.Warn("No pages crawled")
	}

	return exitCode
}

var errNoURL = errors.New("no root URL given")

// parseArgs parses options placed before or after the root URL, which is
// the last positional argument
func parseArgs(args []string) (options, string, error) {
	var opts options

	fs := flag.NewFlagSet("pagedepth", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "Path to a JSON or TOML config file")
	fs.BoolVar(&opts.relative, "r", false, "Output relative URLs (rather than absolute)")
	fs.BoolVar(&opts.relative, "relative", false, "Output relative URLs (rather than absolute)")
	fs.StringVar(&opts.output, "o", "", "Filename to save the URL list to (default urls.txt)")
	fs.StringVar(&opts.output, "output", "", "Filename to save the URL list to (default urls.txt)")
	fs.StringVar(&opts.dbPath, "db", "", "SQLite file to save the crawl snapshot to")
	fs.BoolVar(&opts.verify, "verify", false, "Check graph consistency after the crawl")

	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}

	// flag stops at the first positional argument, so parse in rounds
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return opts, "", err
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}

	if len(positional) == 0 {
		fs.Usage()
		return opts, "", errNoURL
	}
	return opts, positional[len(positional)-1], nil
}

// loadConfig reads the config file if one was given and applies the
// command-line overrides
func loadConfig(opts options, rootURL string) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.RootURL = rootURL
	if opts.relative {
		cfg.Relative = true
	}
	if opts.output != "" {
		cfg.OutputFile = opts.output
	}
	if opts.dbPath != "" {
		cfg.DBPath = opts.dbPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// saveSnapshot persists the analyzed graph under crawlID and, with verify,
// reads it back and compares it with the graph
func saveSnapshot(path, crawlID string, rep *memory.Report, graph *memory.Graph, verify bool) error {
	store, err := storage.NewStorage(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.BeginCrawl(crawlID, rep.Root, rep.StartedAt); err != nil {
		return err
	}
	if err := graph.Flush(store, crawlID); err != nil {
		return err
	}
	if err := store.FinishCrawl(crawlID, rep.EndedAt, rep.TotalPages); err != nil {
		return err
	}

	if !verify {
		return nil
	}
	if err := graph.VerifySnapshot(store, crawlID); err != nil {
		return err
	}
	logrus.Info("Snapshot verification passed")
	return nil
}
