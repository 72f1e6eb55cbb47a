// Package engine runs a scrape: headlines in, one stored row per headline out.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/chatprobe/internal/observability"
	"github.com/IshaanNene/chatprobe/internal/pipeline"
	"github.com/IshaanNene/chatprobe/internal/storage"
	"github.com/IshaanNene/chatprobe/internal/trends"
	"github.com/IshaanNene/chatprobe/internal/types"
)

// State represents the runner's lifecycle state.
type State int32

const (
	StateIdle    State = 0
	StateRunning State = 1
	StateStopped State = 2
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats summarizes a finished run.
type Stats struct {
	Headlines int
	Dropped   int
	Scraped   int
	Failed    int
	Stored    int
	StartTime time.Time
	Duration  time.Duration
}

// Snapshot returns the stats as a map for logging.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"headlines": s.Headlines,
		"dropped":   s.Dropped,
		"scraped":   s.Scraped,
		"failed":    s.Failed,
		"stored":    s.Stored,
		"elapsed":   s.Duration.String(),
	}
}

// RowScraper fills in one record. *chat.Scraper implements it.
type RowScraper interface {
	ScrapeRow(ctx context.Context, rec *types.Record) (*types.Record, error)
}

// Runner wires a headline source through the pipeline and the scraper into
// storage. Rows are scraped one at a time and stored as soon as they finish.
type Runner struct {
	source   trends.Source
	pipeline *pipeline.Pipeline
	scraper  RowScraper
	storage  storage.Storage
	metrics  *observability.Metrics
	logger   *slog.Logger
	state    atomic.Int32
}

// NewRunner creates a Runner. A nil pipeline passes every headline through.
func NewRunner(
	source trends.Source,
	pipe *pipeline.Pipeline,
	scraper RowScraper,
	store storage.Storage,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Runner {
	if pipe == nil {
		pipe = pipeline.New(logger)
	}
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}
	return &Runner{
		source:   source,
		pipeline: pipe,
		scraper:  scraper,
		storage:  store,
		metrics:  metrics,
		logger:   logger.With("component", "runner"),
	}
}

// Records converts headlines into fresh rows.
func Records(hs []trends.Headline) []*types.Record {
	recs := make([]*types.Record, len(hs))
	for i, h := range hs {
		rec := types.NewRecord(h.Title)
		rec.Description = h.Description
		rec.SourceName = h.Source
		recs[i] = rec
	}
	return recs
}

// Run executes the whole scrape. Storage is closed before Run returns.
//
// A row whose steps fail is still stored, with its error column set. Run
// stops early on context cancellation, a pipeline error or a storage error;
// the rows stored so far stay on disk.
func (r *Runner) Run(ctx context.Context) (stats *Stats, err error) {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, fmt.Errorf("runner is in state %s, cannot run", State(r.state.Load()))
	}

	stats = &Stats{StartTime: time.Now()}
	defer func() {
		if cerr := r.storage.Close(); cerr != nil {
			r.logger.Error("storage close error", "backend", r.storage.Name(), "error", cerr)
			err = errors.Join(err, cerr)
		}
		stats.Duration = time.Since(stats.StartTime)
		r.state.Store(int32(StateStopped))
		r.logger.Info("run finished", "stats", stats.Snapshot())
	}()

	r.logger.Info("fetching headlines", "source", r.source.Name())
	hs, err := r.source.Headlines(ctx)
	if err != nil {
		return stats, fmt.Errorf("fetch headlines from %s: %w", r.source.Name(), err)
	}
	stats.Headlines = len(hs)
	r.metrics.HeadlinesFetched.Add(int64(len(hs)))

	recs, dropped, err := r.pipeline.Apply(Records(hs))
	if err != nil {
		return stats, err
	}
	stats.Dropped = dropped
	r.metrics.HeadlinesDropped.Add(int64(dropped))
	if len(recs) == 0 {
		return stats, types.ErrNoHeadlines
	}

	r.logger.Info("scraping rows", "rows", len(recs), "dropped", dropped, "storage", r.storage.Name())

	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		r.logger.Info("row started", "index", i+1, "of", len(recs), "headline", rec.Headline)
		row, scrapeErr := r.scraper.ScrapeRow(ctx, rec)
		stats.Scraped++
		if row.Failed() {
			stats.Failed++
		}

		if err := r.storage.Store([]*types.Record{row}); err != nil {
			return stats, fmt.Errorf("store row %s: %w", row.ID, err)
		}
		stats.Stored++
		r.metrics.RowsStored.Add(1)

		if scrapeErr != nil {
			return stats, scrapeErr
		}
	}

	return stats, nil
}

// GetState returns the current runner state.
func (r *Runner) GetState() State {
	return State(r.state.Load())
}
