package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for chatprobe.
type Config struct {
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Chat    ChatConfig    `mapstructure:"chat"    yaml:"chat"`
	Trends  TrendsConfig  `mapstructure:"trends"  yaml:"trends"`
	Fetcher FetcherConfig `mapstructure:"fetcher" yaml:"fetcher"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// BrowserConfig controls the Chromium instance driven by rod.
type BrowserConfig struct {
	Headless       bool          `mapstructure:"headless"         yaml:"headless"`
	NoSandbox      bool          `mapstructure:"no_sandbox"       yaml:"no_sandbox"`
	Stealth        bool          `mapstructure:"stealth"          yaml:"stealth"`
	WindowWidth    int           `mapstructure:"window_width"     yaml:"window_width"`
	WindowHeight   int           `mapstructure:"window_height"    yaml:"window_height"`
	UserDataDir    string        `mapstructure:"user_data_dir"    yaml:"user_data_dir"`
	Bin            string        `mapstructure:"bin"              yaml:"bin"`
	NavTimeout     time.Duration `mapstructure:"nav_timeout"      yaml:"nav_timeout"`
	ElementTimeout time.Duration `mapstructure:"element_timeout"  yaml:"element_timeout"`
	Proxies        []string      `mapstructure:"proxies"          yaml:"proxies"`
	ProxyRotation  string        `mapstructure:"proxy_rotation"   yaml:"proxy_rotation"`
}

// ChatConfig describes the chat interface: where it lives, how to find its
// controls, and how long to wait between steps.
type ChatConfig struct {
	URL            string        `mapstructure:"url"             yaml:"url"`
	PromptTemplate string        `mapstructure:"prompt_template" yaml:"prompt_template"`
	Selectors      Selectors     `mapstructure:"selectors"       yaml:"selectors"`
	CitationHeader string        `mapstructure:"citation_header" yaml:"citation_header"`
	MoreHeader     string        `mapstructure:"more_header"     yaml:"more_header"`
	TrackingSuffix string        `mapstructure:"tracking_suffix" yaml:"tracking_suffix"`
	Waits          WaitConfig    `mapstructure:"waits"           yaml:"waits"`
	SkipCooldown   bool          `mapstructure:"skip_cooldown"   yaml:"skip_cooldown"`
	PopupTimeout   time.Duration `mapstructure:"popup_timeout"   yaml:"popup_timeout"`
}

// Selectors are the literal CSS selectors used against the chat page.
type Selectors struct {
	PopupClose    string `mapstructure:"popup_close"    yaml:"popup_close"`
	ModeToggle    string `mapstructure:"mode_toggle"    yaml:"mode_toggle"`
	PromptBox     string `mapstructure:"prompt_box"     yaml:"prompt_box"`
	Response      string `mapstructure:"response"       yaml:"response"`
	SourcesButton string `mapstructure:"sources_button" yaml:"sources_button"`
}

// Window is a jittered wait: a uniformly random duration in [Min, Max].
type Window struct {
	Min time.Duration `mapstructure:"min" yaml:"min"`
	Max time.Duration `mapstructure:"max" yaml:"max"`
}

// WaitConfig holds the fixed waits that stand in for real synchronization.
type WaitConfig struct {
	PageLoad    Window `mapstructure:"page_load"    yaml:"page_load"`
	Popup       Window `mapstructure:"popup"        yaml:"popup"`
	Mode        Window `mapstructure:"mode"         yaml:"mode"`
	Typing      Window `mapstructure:"typing"       yaml:"typing"`
	Response    Window `mapstructure:"response"     yaml:"response"`
	Sources     Window `mapstructure:"sources"      yaml:"sources"`
	RowCooldown Window `mapstructure:"row_cooldown" yaml:"row_cooldown"`
}

// TrendsConfig selects and configures the headline source.
type TrendsConfig struct {
	Source       string   `mapstructure:"source"        yaml:"source"`
	GoogleRSSURL string   `mapstructure:"google_rss_url" yaml:"google_rss_url"`
	Geo          string   `mapstructure:"geo"           yaml:"geo"`
	GNewsURL     string   `mapstructure:"gnews_url"     yaml:"gnews_url"`
	GNewsAPIKey  string   `mapstructure:"gnews_api_key" yaml:"gnews_api_key"`
	Category     string   `mapstructure:"category"      yaml:"category"`
	Lang         string   `mapstructure:"lang"          yaml:"lang"`
	Country      string   `mapstructure:"country"       yaml:"country"`
	Max          int      `mapstructure:"max"           yaml:"max"`
	Limit        int      `mapstructure:"limit"         yaml:"limit"`
	Static       []string `mapstructure:"static"        yaml:"static"`
	Exclude      []string `mapstructure:"exclude"       yaml:"exclude"`
}

// FetcherConfig controls the HTTP client used by feed sources.
type FetcherConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxBodySize    int64         `mapstructure:"max_body_size"   yaml:"max_body_size"`
	UserAgents     []string      `mapstructure:"user_agents"     yaml:"user_agents"`
}

// StorageConfig controls output/storage.
type StorageConfig struct {
	Type        string      `mapstructure:"type"         yaml:"type"`
	OutputDir   string      `mapstructure:"output_dir"   yaml:"output_dir"`
	DateFolders bool        `mapstructure:"date_folders" yaml:"date_folders"`
	FilePrefix  string      `mapstructure:"file_prefix"  yaml:"file_prefix"`
	Screenshots bool        `mapstructure:"screenshots"  yaml:"screenshots"`
	Mongo       MongoConfig `mapstructure:"mongo"        yaml:"mongo"`
}

// MongoConfig enables an additional MongoDB sink when URI is set.
type MongoConfig struct {
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level      string `mapstructure:"level"       yaml:"level"`
	Format     string `mapstructure:"format"      yaml:"format"`
	Output     string `mapstructure:"output"      yaml:"output"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// MetricsConfig controls the Prometheus text endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:       false,
			NoSandbox:      true,
			Stealth:        true,
			WindowWidth:    1400,
			WindowHeight:   1400,
			NavTimeout:     60 * time.Second,
			ElementTimeout: 10 * time.Second,
			ProxyRotation:  "round_robin",
		},
		Chat: ChatConfig{
			URL:            "https://chatgpt.com/",
			PromptTemplate: `Tell me about "{{.Headline}}"`,
			Selectors: Selectors{
				PopupClose:    "button[aria-label='Close']",
				ModeToggle:    "button[aria-label='Search']",
				PromptBox:     "#prompt-textarea",
				Response:      ".markdown.prose",
				SourcesButton: `button.not-prose.group\/footnote`,
			},
			CitationHeader: "Citations",
			MoreHeader:     "More",
			TrackingSuffix: "?utm_source=chatgpt.com",
			PopupTimeout:   3 * time.Second,
			Waits: WaitConfig{
				PageLoad:    Window{Min: 1 * time.Second, Max: 6 * time.Second},
				Popup:       Window{Min: 1 * time.Second, Max: 2 * time.Second},
				Mode:        Window{Min: 1 * time.Second, Max: 4 * time.Second},
				Typing:      Window{Min: 1 * time.Second, Max: 3 * time.Second},
				Response:    Window{Min: 20 * time.Second, Max: 25 * time.Second},
				Sources:     Window{Min: 3 * time.Second, Max: 5 * time.Second},
				RowCooldown: Window{Min: 110 * time.Second, Max: 130 * time.Second},
			},
		},
		Trends: TrendsConfig{
			Source:       "google",
			GoogleRSSURL: "https://trends.google.com/trending/rss",
			Geo:          "US",
			GNewsURL:     "https://gnews.io/api/v4",
			Category:     "nation",
			Lang:         "en",
			Country:      "us",
			Max:          10,
		},
		Fetcher: FetcherConfig{
			RequestTimeout: 30 * time.Second,
			MaxBodySize:    10 * 1024 * 1024, // 10MB
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Storage: StorageConfig{
			Type:        "csv",
			OutputDir:   "./output",
			DateFolders: true,
			FilePrefix:  "scrape",
			Screenshots: true,
			Mongo: MongoConfig{
				Database:   "chatprobe",
				Collection: "responses",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
