package pipeline

import (
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/IshaanNene/chatprobe/internal/types"
)

// SanitizeMiddleware strips HTML tags and entities from headline text.
// Feed titles and news descriptions sometimes carry markup.
type SanitizeMiddleware struct {
	stripRe *regexp.Regexp
}

func NewSanitizeMiddleware() *SanitizeMiddleware {
	return &SanitizeMiddleware{
		stripRe: regexp.MustCompile(`<[^>]*>`),
	}
}

func (m *SanitizeMiddleware) Name() string { return "sanitize" }

func (m *SanitizeMiddleware) Process(rec *types.Record) (*types.Record, error) {
	rec.Headline = m.clean(rec.Headline)
	rec.Description = m.clean(rec.Description)
	return rec, nil
}

func (m *SanitizeMiddleware) clean(s string) string {
	if s == "" {
		return s
	}
	s = m.stripRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// ExcludeMiddleware drops records whose headline matches any pattern.
type ExcludeMiddleware struct {
	patterns []*regexp.Regexp
	logger   *slog.Logger
}

// NewExcludeMiddleware compiles patterns. Matching is case-insensitive.
func NewExcludeMiddleware(patterns []string, logger *slog.Logger) (*ExcludeMiddleware, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return &ExcludeMiddleware{
		patterns: compiled,
		logger:   logger.With("component", "exclude"),
	}, nil
}

func (m *ExcludeMiddleware) Name() string { return "exclude" }

func (m *ExcludeMiddleware) Process(rec *types.Record) (*types.Record, error) {
	for _, re := range m.patterns {
		if re.MatchString(rec.Headline) {
			m.logger.Debug("headline excluded", "headline", rec.Headline, "pattern", re.String())
			return nil, nil
		}
	}
	return rec, nil
}

// LimitMiddleware passes the first Max records and drops the rest.
// A Max of zero or less disables the limit.
type LimitMiddleware struct {
	Max  int
	seen atomic.Int64
}

func (m *LimitMiddleware) Name() string { return "limit" }

func (m *LimitMiddleware) Process(rec *types.Record) (*types.Record, error) {
	if m.Max <= 0 {
		return rec, nil
	}
	if m.seen.Add(1) > int64(m.Max) {
		return nil, nil
	}
	return rec, nil
}
