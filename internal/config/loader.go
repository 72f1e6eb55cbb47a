package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
// A .env file in the working directory is loaded into the environment first.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults from struct
	setDefaults(v, cfg)

	// Environment variable support
	v.SetEnvPrefix("CHATPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Plain GNEWS_API_KEY is accepted so existing .env files keep working.
	_ = v.BindEnv("trends.gnews_api_key", "CHATPROBE_TRENDS_GNEWS_API_KEY", "GNEWS_API_KEY")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("chatprobe")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".chatprobe"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is okay if not explicitly specified
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env vars can override
// keys that never appear in a config file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.no_sandbox", cfg.Browser.NoSandbox)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.window_width", cfg.Browser.WindowWidth)
	v.SetDefault("browser.window_height", cfg.Browser.WindowHeight)
	v.SetDefault("browser.user_data_dir", cfg.Browser.UserDataDir)
	v.SetDefault("browser.bin", cfg.Browser.Bin)
	v.SetDefault("browser.nav_timeout", cfg.Browser.NavTimeout)
	v.SetDefault("browser.element_timeout", cfg.Browser.ElementTimeout)
	v.SetDefault("browser.proxy_rotation", cfg.Browser.ProxyRotation)

	v.SetDefault("chat.url", cfg.Chat.URL)
	v.SetDefault("chat.prompt_template", cfg.Chat.PromptTemplate)
	v.SetDefault("chat.selectors.popup_close", cfg.Chat.Selectors.PopupClose)
	v.SetDefault("chat.selectors.mode_toggle", cfg.Chat.Selectors.ModeToggle)
	v.SetDefault("chat.selectors.prompt_box", cfg.Chat.Selectors.PromptBox)
	v.SetDefault("chat.selectors.response", cfg.Chat.Selectors.Response)
	v.SetDefault("chat.selectors.sources_button", cfg.Chat.Selectors.SourcesButton)
	v.SetDefault("chat.citation_header", cfg.Chat.CitationHeader)
	v.SetDefault("chat.more_header", cfg.Chat.MoreHeader)
	v.SetDefault("chat.tracking_suffix", cfg.Chat.TrackingSuffix)
	v.SetDefault("chat.skip_cooldown", cfg.Chat.SkipCooldown)
	v.SetDefault("chat.popup_timeout", cfg.Chat.PopupTimeout)

	waits := map[string]Window{
		"page_load":    cfg.Chat.Waits.PageLoad,
		"popup":        cfg.Chat.Waits.Popup,
		"mode":         cfg.Chat.Waits.Mode,
		"typing":       cfg.Chat.Waits.Typing,
		"response":     cfg.Chat.Waits.Response,
		"sources":      cfg.Chat.Waits.Sources,
		"row_cooldown": cfg.Chat.Waits.RowCooldown,
	}
	for name, w := range waits {
		v.SetDefault("chat.waits."+name+".min", w.Min)
		v.SetDefault("chat.waits."+name+".max", w.Max)
	}

	v.SetDefault("trends.source", cfg.Trends.Source)
	v.SetDefault("trends.google_rss_url", cfg.Trends.GoogleRSSURL)
	v.SetDefault("trends.geo", cfg.Trends.Geo)
	v.SetDefault("trends.gnews_url", cfg.Trends.GNewsURL)
	v.SetDefault("trends.category", cfg.Trends.Category)
	v.SetDefault("trends.lang", cfg.Trends.Lang)
	v.SetDefault("trends.country", cfg.Trends.Country)
	v.SetDefault("trends.max", cfg.Trends.Max)
	v.SetDefault("trends.limit", cfg.Trends.Limit)
	v.SetDefault("trends.static", cfg.Trends.Static)
	v.SetDefault("trends.exclude", cfg.Trends.Exclude)

	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.user_agents", cfg.Fetcher.UserAgents)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.output_dir", cfg.Storage.OutputDir)
	v.SetDefault("storage.date_folders", cfg.Storage.DateFolders)
	v.SetDefault("storage.file_prefix", cfg.Storage.FilePrefix)
	v.SetDefault("storage.screenshots", cfg.Storage.Screenshots)
	v.SetDefault("storage.mongo.uri", cfg.Storage.Mongo.URI)
	v.SetDefault("storage.mongo.database", cfg.Storage.Mongo.Database)
	v.SetDefault("storage.mongo.collection", cfg.Storage.Mongo.Collection)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)
	v.SetDefault("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", cfg.Logging.MaxAgeDays)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
