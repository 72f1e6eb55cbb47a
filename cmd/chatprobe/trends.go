package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/chatprobe/internal/config"
	"github.com/IshaanNene/chatprobe/internal/engine"
	"github.com/IshaanNene/chatprobe/internal/fetcher"
	"github.com/IshaanNene/chatprobe/internal/pipeline"
	"github.com/IshaanNene/chatprobe/internal/trends"
)

var (
	trendsSource string
	trendsLimit  int
)

// trendsCmd creates the "trends" subcommand.
func trendsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Print the headlines a run would use",
		RunE:  runTrends,
	}
	cmd.Flags().StringVarP(&trendsSource, "source", "s", "", "headline source: google, gnews, static")
	cmd.Flags().IntVarP(&trendsLimit, "limit", "l", 0, "maximum headlines to print (0 = all)")
	return cmd
}

func runTrends(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(func(cfg *config.Config) {
		if trendsSource != "" {
			cfg.Trends.Source = strings.ToLower(trendsSource)
		}
		if trendsLimit > 0 {
			cfg.Trends.Limit = trendsLimit
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

	httpFetcher := fetcher.NewHTTPFetcher(&cfg.Fetcher, logger)
	defer httpFetcher.Close()

	src, err := trends.New(&cfg.Trends, httpFetcher, logger)
	if err != nil {
		return err
	}
	hs, err := src.Headlines(ctx)
	if err != nil {
		return fmt.Errorf("fetch headlines from %s: %w", src.Name(), err)
	}

	pipe, err := pipeline.Default(&cfg.Trends, logger)
	if err != nil {
		return err
	}
	recs, _, err := pipe.Apply(engine.Records(hs))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, rec := range recs {
		if src.Name() == "gnews" && rec.SourceName != "" {
			fmt.Fprintf(out, "%2d. %s (%s)\n", i+1, rec.Headline, rec.SourceName)
			continue
		}
		fmt.Fprintf(out, "%2d. %s\n", i+1, rec.Headline)
	}
	return nil
}
