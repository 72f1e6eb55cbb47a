package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/chatprobe/internal/browser"
	"github.com/IshaanNene/chatprobe/internal/chat"
	"github.com/IshaanNene/chatprobe/internal/config"
	"github.com/IshaanNene/chatprobe/internal/engine"
	"github.com/IshaanNene/chatprobe/internal/fetcher"
	"github.com/IshaanNene/chatprobe/internal/observability"
	"github.com/IshaanNene/chatprobe/internal/pipeline"
	"github.com/IshaanNene/chatprobe/internal/storage"
	"github.com/IshaanNene/chatprobe/internal/trends"
	"github.com/IshaanNene/chatprobe/internal/types"
)

var (
	sourceName string
	limit      int
	outputDir  string
	outputType string
	headless   bool
	noCooldown bool
)

// runCmd creates the "run" subcommand.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [headline...]",
		Short: "Scrape answers for the current trending headlines",
		Long: `Fetch headlines from the configured source, ask the chat assistant about
each one, and store the answers with their citations.

Headlines given as arguments replace the configured source.`,
		RunE: runScrape,
	}

	cmd.Flags().StringVarP(&sourceName, "source", "s", "", "headline source: google, gnews, static")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "maximum headlines to scrape (0 = all)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	cmd.Flags().StringVarP(&outputType, "format", "f", "", "output format: csv, json, jsonl")
	cmd.Flags().BoolVar(&headless, "headless", false, "run the browser without a window")
	cmd.Flags().BoolVar(&noCooldown, "no-cooldown", false, "skip the wait between rows")

	return cmd
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(func(cfg *config.Config) {
		applyRunOverrides(cmd, cfg, args)
	})
	if err != nil {
		return err
	}
	logger, logCloser, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		if err := metrics.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}

	httpFetcher := fetcher.NewHTTPFetcher(&cfg.Fetcher, logger)
	defer httpFetcher.Close()

	src, err := trends.New(&cfg.Trends, httpFetcher, logger)
	if err != nil {
		return err
	}
	pipe, err := pipeline.Default(&cfg.Trends, logger)
	if err != nil {
		return err
	}

	sess, err := newSession(cfg, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	start := time.Now()
	layout, err := storage.NewLayout(&cfg.Storage, start)
	if err != nil {
		return err
	}
	store, err := newStorage(ctx, cfg, layout, logger)
	if err != nil {
		return err
	}

	opts := []chat.Option{chat.WithMetrics(metrics)}
	if cfg.Storage.Screenshots {
		opts = append(opts, chat.WithScreenshots(layout.Images))
	}
	scraper, err := chat.NewScraper(sess, &cfg.Chat, logger, opts...)
	if err != nil {
		store.Close()
		return err
	}

	logger.Info("starting run",
		"source", src.Name(),
		"limit", cfg.Trends.Limit,
		"output", layout.Root,
		"format", cfg.Storage.Type,
		"cooldown", !cfg.Chat.SkipCooldown,
	)

	runner := engine.NewRunner(src, pipe, scraper, store, metrics, logger)
	stats, runErr := runner.Run(ctx)
	metrics.LogSummary()

	if stats != nil {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\nRun finished in %s\n", time.Since(start).Round(time.Second))
		fmt.Fprintf(out, "   Headlines: %d fetched, %d dropped\n", stats.Headlines, stats.Dropped)
		fmt.Fprintf(out, "   Rows:      %d scraped, %d with errors, %d stored\n", stats.Scraped, stats.Failed, stats.Stored)
		fmt.Fprintf(out, "   Output:    %s\n", layout.Root)
	}

	if errors.Is(runErr, context.Canceled) {
		logger.Info("run interrupted")
		return nil
	}
	return runErr
}

// applyRunOverrides applies command-line flag values to the config.
func applyRunOverrides(cmd *cobra.Command, cfg *config.Config, args []string) {
	if len(args) > 0 {
		cfg.Trends.Source = "static"
		cfg.Trends.Static = args
	} else if sourceName != "" {
		cfg.Trends.Source = strings.ToLower(sourceName)
	}
	if limit > 0 {
		cfg.Trends.Limit = limit
	}
	if outputDir != "" {
		cfg.Storage.OutputDir = outputDir
	}
	if outputType != "" {
		cfg.Storage.Type = strings.ToLower(outputType)
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = headless
	}
	if cmd.Flags().Changed("no-cooldown") {
		cfg.Chat.SkipCooldown = noCooldown
	}
}

// newSession launches the browser, through a proxy when any are configured.
func newSession(cfg *config.Config, logger *slog.Logger) (*browser.Session, error) {
	var opts []browser.SessionOption
	if len(cfg.Browser.Proxies) > 0 {
		pm := fetcher.NewProxyManager(cfg.Browser.Proxies, cfg.Browser.ProxyRotation, logger)
		opts = append(opts, browser.WithProxyManager(pm))
	}
	return browser.NewSession(&cfg.Browser, logger, opts...)
}

// newStorage opens the file sink and, when configured, a MongoDB copy.
func newStorage(ctx context.Context, cfg *config.Config, layout *storage.Layout, logger *slog.Logger) (storage.Storage, error) {
	file, err := storage.NewFileStorage(cfg.Storage.Type, layout, logger)
	if err != nil {
		return nil, fmt.Errorf("create storage: %w", err)
	}
	if cfg.Storage.Mongo.URI == "" {
		return file, nil
	}

	mongo, err := storage.NewMongoStorage(ctx, cfg.Storage.Mongo.URI, cfg.Storage.Mongo.Database, cfg.Storage.Mongo.Collection, logger)
	if err != nil {
		file.Close()
		return nil, err
	}
	return storage.NewMultiStorage([]storage.Storage{file, mongo}, logger), nil
}

// askCmd creates the "ask" subcommand.
func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   `ask "<headline>"`,
		Short: "Scrape a single answer and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runAsk,
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "run the browser without a window")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(func(cfg *config.Config) {
		cfg.Chat.SkipCooldown = true
		if cmd.Flags().Changed("headless") {
			cfg.Browser.Headless = headless
		}
	})
	if err != nil {
		return err
	}
	logger, logCloser, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := newSession(cfg, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	var opts []chat.Option
	if cfg.Storage.Screenshots {
		layout, err := storage.NewLayout(&cfg.Storage, time.Now())
		if err != nil {
			return err
		}
		opts = append(opts, chat.WithScreenshots(layout.Images))
	}
	scraper, err := chat.NewScraper(sess, &cfg.Chat, logger, opts...)
	if err != nil {
		return err
	}

	rec, err := scraper.ScrapeRow(ctx, types.NewRecord(strings.TrimSpace(args[0])))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rec.ToMap())
}
