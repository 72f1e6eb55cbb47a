package pipeline

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/IshaanNene/chatprobe/internal/config"
	"github.com/IshaanNene/chatprobe/internal/types"
)

// Middleware processes a record and returns the (possibly modified) record.
// Return nil to drop the record from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a record. Return nil to drop it.
	Process(rec *types.Record) (*types.Record, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the record through all middleware in order.
func (p *Pipeline) Process(rec *types.Record) (*types.Record, error) {
	current := rec

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage:  mw.Name(),
				Record: current,
				Err:    err,
			}
		}
		if result == nil {
			p.logger.Debug("record dropped", "stage", mw.Name(), "headline", rec.Headline)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Apply runs every record through the chain and returns the survivors in
// their original order, along with the number dropped.
func (p *Pipeline) Apply(recs []*types.Record) ([]*types.Record, int, error) {
	out := make([]*types.Record, 0, len(recs))
	dropped := 0
	for _, rec := range recs {
		result, err := p.Process(rec)
		if err != nil {
			return nil, dropped, err
		}
		if result == nil {
			dropped++
			continue
		}
		out = append(out, result)
	}
	return out, dropped, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// --- Built-in Middleware ---

// RequiredFieldsMiddleware drops records without a headline.
type RequiredFieldsMiddleware struct{}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(rec *types.Record) (*types.Record, error) {
	if strings.TrimSpace(rec.Headline) == "" {
		return nil, nil
	}
	return rec, nil
}

// DedupMiddleware drops records whose headline was already seen,
// ignoring case and surrounding whitespace.
type DedupMiddleware struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDedupMiddleware() *DedupMiddleware {
	return &DedupMiddleware{
		seen: make(map[string]struct{}),
	}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Process(rec *types.Record) (*types.Record, error) {
	key := strings.ToLower(strings.TrimSpace(rec.Headline))

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.seen[key]; exists {
		return nil, nil
	}
	m.seen[key] = struct{}{}
	return rec, nil
}

// TrimMiddleware trims whitespace from the headline fields.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(rec *types.Record) (*types.Record, error) {
	rec.Headline = strings.TrimSpace(rec.Headline)
	rec.Description = strings.TrimSpace(rec.Description)
	rec.SourceName = strings.TrimSpace(rec.SourceName)
	return rec, nil
}

// Default builds the headline chain used before scraping: trim, sanitize,
// drop empties, dedup, exclude, then limit.
func Default(cfg *config.TrendsConfig, logger *slog.Logger) (*Pipeline, error) {
	p := New(logger)
	p.Use(&TrimMiddleware{})
	p.Use(NewSanitizeMiddleware())
	p.Use(&RequiredFieldsMiddleware{})
	p.Use(NewDedupMiddleware())
	if len(cfg.Exclude) > 0 {
		ex, err := NewExcludeMiddleware(cfg.Exclude, logger)
		if err != nil {
			return nil, err
		}
		p.Use(ex)
	}
	p.Use(&LimitMiddleware{Max: cfg.Limit})
	return p, nil
}
