package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/IshaanNene/chatprobe/internal/config"
	"github.com/IshaanNene/chatprobe/internal/observability"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatprobe",
		Short: "chatprobe: ask a chat assistant about trending headlines",
		Long: `chatprobe drives a browser against a chat assistant, asks it about
trending news headlines, and records each answer with its cited sources.

Headlines come from Google Trends (RSS), the GNews API, or a fixed list.
Every row is written as soon as it is scraped: CSV, JSON or JSONL, with an
optional MongoDB copy and one screenshot per answer.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(trendsCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chatprobe %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return printConfig(cmd.OutOrStdout(), cfg)
		},
	}
}

// printConfig writes cfg as YAML with secrets masked.
func printConfig(w io.Writer, cfg *config.Config) error {
	shown := *cfg
	shown.Trends.GNewsAPIKey = mask(cfg.Trends.GNewsAPIKey)
	shown.Storage.Mongo.URI = mask(cfg.Storage.Mongo.URI)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&shown); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}

// loadConfig reads and validates configuration, letting apply adjust it
// from flags in between.
func loadConfig(apply func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if apply != nil {
		apply(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setupLogger creates the structured logger described by cfg.
func setupLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	logCfg := cfg.Logging
	if verbose {
		logCfg.Level = "debug"
	}
	return observability.NewLogger(&logCfg)
}
