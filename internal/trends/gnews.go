package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/IshaanNene/chatprobe/internal/config"
	"github.com/IshaanNene/chatprobe/internal/fetcher"
	"github.com/IshaanNene/chatprobe/internal/types"
)

// GNewsOptions configures the GNews top-headlines query.
type GNewsOptions struct {
	Endpoint string
	APIKey   string
	Category string
	Lang     string
	Country  string
	Max      int
}

// GNews reads top headlines from the gnews.io API.
type GNews struct {
	opts    GNewsOptions
	fetcher fetcher.Fetcher
	logger  *slog.Logger
}

type gnewsResponse struct {
	TotalArticles int            `json:"totalArticles"`
	Articles      []gnewsArticle `json:"articles"`
	Errors        []string       `json:"errors"`
}

type gnewsArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"source"`
}

// NewGNews creates a GNews source.
func NewGNews(opts GNewsOptions, f fetcher.Fetcher, logger *slog.Logger) *GNews {
	return &GNews{
		opts:    opts,
		fetcher: f,
		logger:  logger.With("component", "gnews"),
	}
}

func (g *GNews) Name() string { return "gnews" }

func (g *GNews) queryURL() (string, error) {
	if g.opts.APIKey == "" {
		return "", types.ErrMissingAPIKey
	}
	if !slices.Contains(config.GNewsCategories, g.opts.Category) {
		return "", fmt.Errorf("%w: %q", types.ErrUnknownCategory, g.opts.Category)
	}
	u, err := url.Parse(strings.TrimRight(g.opts.Endpoint, "/") + "/top-headlines")
	if err != nil {
		return "", fmt.Errorf("parse gnews endpoint: %w", err)
	}
	q := u.Query()
	q.Set("category", g.opts.Category)
	q.Set("lang", g.opts.Lang)
	q.Set("country", g.opts.Country)
	q.Set("max", strconv.Itoa(g.opts.Max))
	q.Set("apikey", g.opts.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (g *GNews) Headlines(ctx context.Context) ([]Headline, error) {
	queryURL, err := g.queryURL()
	if err != nil {
		return nil, err
	}

	resp, err := g.fetcher.Get(ctx, queryURL, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}

	var out gnewsResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("decode gnews response: %w", err)
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("gnews: %s", strings.Join(out.Errors, "; "))
	}

	hs := make([]Headline, 0, len(out.Articles))
	for _, a := range out.Articles {
		hs = append(hs, Headline{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			Source:      a.Source.Name,
		})
	}
	hs = clean(hs)

	g.logger.Info("headlines fetched", "category", g.opts.Category, "count", len(hs), "total", out.TotalArticles)
	if len(hs) == 0 {
		return nil, types.ErrNoHeadlines
	}
	return hs, nil
}
