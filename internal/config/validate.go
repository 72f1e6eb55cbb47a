package config

import (
	"fmt"
	"net/url"
	"regexp"
	"text/template"
)

// GNewsCategories lists the categories accepted by the GNews top-headlines endpoint.
var GNewsCategories = []string{
	"general", "world", "nation", "business", "technology",
	"entertainment", "sports", "science", "health",
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Browser.WindowWidth < 1 || cfg.Browser.WindowHeight < 1 {
		return fmt.Errorf("browser window must be at least 1x1, got %dx%d",
			cfg.Browser.WindowWidth, cfg.Browser.WindowHeight)
	}
	if cfg.Browser.NavTimeout <= 0 {
		return fmt.Errorf("browser.nav_timeout must be > 0")
	}
	if cfg.Browser.ElementTimeout <= 0 {
		return fmt.Errorf("browser.element_timeout must be > 0")
	}
	if len(cfg.Browser.Proxies) > 0 {
		if cfg.Browser.ProxyRotation != "round_robin" && cfg.Browser.ProxyRotation != "random" {
			return fmt.Errorf("browser.proxy_rotation must be 'round_robin' or 'random', got %q", cfg.Browser.ProxyRotation)
		}
		for _, proxyURL := range cfg.Browser.Proxies {
			if _, err := url.Parse(proxyURL); err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
			}
		}
	}

	if err := ValidateURL(cfg.Chat.URL); err != nil {
		return fmt.Errorf("chat.url: %w", err)
	}
	if _, err := template.New("prompt").Parse(cfg.Chat.PromptTemplate); err != nil {
		return fmt.Errorf("chat.prompt_template: %w", err)
	}
	sel := cfg.Chat.Selectors
	for name, v := range map[string]string{
		"prompt_box":     sel.PromptBox,
		"response":       sel.Response,
		"sources_button": sel.SourcesButton,
	} {
		if v == "" {
			return fmt.Errorf("chat.selectors.%s must not be empty", name)
		}
	}
	if cfg.Chat.CitationHeader == "" {
		return fmt.Errorf("chat.citation_header must not be empty")
	}

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
		if w.Min < 0 || w.Max < w.Min {
			return fmt.Errorf("chat.waits.%s must satisfy 0 <= min <= max, got [%s, %s]", name, w.Min, w.Max)
		}
	}

	switch cfg.Trends.Source {
	case "google":
		if err := ValidateURL(cfg.Trends.GoogleRSSURL); err != nil {
			return fmt.Errorf("trends.google_rss_url: %w", err)
		}
	case "gnews":
		if err := ValidateURL(cfg.Trends.GNewsURL); err != nil {
			return fmt.Errorf("trends.gnews_url: %w", err)
		}
		if !validCategory(cfg.Trends.Category) {
			return fmt.Errorf("trends.category %q is not supported (valid: %v)", cfg.Trends.Category, GNewsCategories)
		}
		if cfg.Trends.Max < 1 || cfg.Trends.Max > 100 {
			return fmt.Errorf("trends.max must be 1-100, got %d", cfg.Trends.Max)
		}
	case "static":
	default:
		return fmt.Errorf("trends.source must be google, gnews or static, got %q", cfg.Trends.Source)
	}
	for _, p := range cfg.Trends.Exclude {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("trends.exclude: invalid pattern %q: %w", p, err)
		}
	}
	if cfg.Trends.Limit < 0 {
		return fmt.Errorf("trends.limit must be >= 0, got %d", cfg.Trends.Limit)
	}

	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}

	validStorageTypes := map[string]bool{
		"json": true, "jsonl": true, "csv": true,
	}
	if !validStorageTypes[cfg.Storage.Type] {
		return fmt.Errorf("storage.type %q is not supported (valid: json, jsonl, csv)", cfg.Storage.Type)
	}
	if cfg.Storage.OutputDir == "" {
		return fmt.Errorf("storage.output_dir must not be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

func validCategory(c string) bool {
	for _, v := range GNewsCategories {
		if v == c {
			return true
		}
	}
	return false
}
