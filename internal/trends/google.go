package trends

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/mmcdole/gofeed"

	"github.com/IshaanNene/chatprobe/internal/fetcher"
	"github.com/IshaanNene/chatprobe/internal/types"
)

// GoogleTrends reads the Google Trends "trending now" RSS feed.
type GoogleTrends struct {
	feedURL string
	geo     string
	fetcher fetcher.Fetcher
	parser  *gofeed.Parser
	logger  *slog.Logger
}

// NewGoogleTrends creates a source for the trending feed of a region (e.g. "US").
func NewGoogleTrends(feedURL, geo string, f fetcher.Fetcher, logger *slog.Logger) *GoogleTrends {
	return &GoogleTrends{
		feedURL: feedURL,
		geo:     geo,
		fetcher: f,
		parser:  gofeed.NewParser(),
		logger:  logger.With("component", "google_trends"),
	}
}

func (g *GoogleTrends) Name() string { return "google" }

// URL returns the feed URL including the geo parameter.
func (g *GoogleTrends) URL() (string, error) {
	u, err := url.Parse(g.feedURL)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	if g.geo != "" {
		q := u.Query()
		q.Set("geo", g.geo)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (g *GoogleTrends) Headlines(ctx context.Context) ([]Headline, error) {
	feedURL, err := g.URL()
	if err != nil {
		return nil, err
	}

	resp, err := g.fetcher.Get(ctx, feedURL, nil)
	if err != nil {
		return nil, err
	}

	feed, err := g.parser.Parse(resp.Reader())
	if err != nil {
		return nil, fmt.Errorf("parse trends feed: %w", err)
	}

	hs := make([]Headline, 0, len(feed.Items))
	for _, item := range feed.Items {
		hs = append(hs, Headline{
			Title:       item.Title,
			Description: item.Description,
			URL:         item.Link,
			Source:      "google_trends",
		})
	}
	hs = clean(hs)

	g.logger.Info("trends fetched", "geo", g.geo, "count", len(hs))
	if len(hs) == 0 {
		return nil, types.ErrNoHeadlines
	}
	return hs, nil
}
