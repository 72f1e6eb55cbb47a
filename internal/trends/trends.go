// Package trends supplies the headlines that prompts are built from.
package trends

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IshaanNene/chatprobe/internal/config"
	"github.com/IshaanNene/chatprobe/internal/fetcher"
	"github.com/IshaanNene/chatprobe/internal/types"
)

// Headline is one trending topic or news headline.
type Headline struct {
	Title       string
	Description string
	URL         string
	Source      string
}

// Source produces headlines.
type Source interface {
	// Name returns the source identifier.
	Name() string

	// Headlines returns the current headlines in feed order.
	Headlines(ctx context.Context) ([]Headline, error)
}

// New creates the source selected by cfg.Source.
func New(cfg *config.TrendsConfig, f fetcher.Fetcher, logger *slog.Logger) (Source, error) {
	switch cfg.Source {
	case "google":
		return NewGoogleTrends(cfg.GoogleRSSURL, cfg.Geo, f, logger), nil
	case "gnews":
		return NewGNews(GNewsOptions{
			Endpoint: cfg.GNewsURL,
			APIKey:   cfg.GNewsAPIKey,
			Category: cfg.Category,
			Lang:     cfg.Lang,
			Country:  cfg.Country,
			Max:      cfg.Max,
		}, f, logger), nil
	case "static":
		return NewStatic(cfg.Static), nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownSource, cfg.Source)
	}
}

// clean trims titles and drops empty ones.
func clean(in []Headline) []Headline {
	out := in[:0]
	for _, h := range in {
		h.Title = strings.Join(strings.Fields(h.Title), " ")
		h.Description = strings.TrimSpace(h.Description)
		if h.Title == "" {
			continue
		}
		out = append(out, h)
	}
	return out
}

// Static serves a fixed list of headlines.
type Static struct {
	titles []string
}

// NewStatic creates a source over the given titles.
func NewStatic(titles []string) *Static {
	return &Static{titles: titles}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Headlines(_ context.Context) ([]Headline, error) {
	hs := make([]Headline, 0, len(s.titles))
	for _, t := range s.titles {
		hs = append(hs, Headline{Title: t, Source: "static"})
	}
	hs = clean(hs)
	if len(hs) == 0 {
		return nil, types.ErrNoHeadlines
	}
	return hs, nil
}
