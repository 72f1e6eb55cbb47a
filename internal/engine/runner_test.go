package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/IshaanNene/chatprobe/internal/config"
	"github.com/IshaanNene/chatprobe/internal/observability"
	"github.com/IshaanNene/chatprobe/internal/pipeline"
	"github.com/IshaanNene/chatprobe/internal/trends"
	"github.com/IshaanNene/chatprobe/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type stubScraper struct {
	seen   []string
	failOn map[string]bool
	cancel func()
	stopAt int
}

func (s *stubScraper) ScrapeRow(ctx context.Context, rec *types.Record) (*types.Record, error) {
	s.seen = append(s.seen, rec.Headline)
	if s.cancel != nil && len(s.seen) == s.stopAt {
		s.cancel()
		rec.AddError(ctx.Err())
		return rec, ctx.Err()
	}
	rec.Prompt = "about " + rec.Headline
	if s.failOn[rec.Headline] {
		rec.AddError(errors.New("no response"))
	}
	return rec, nil
}

type memStorage struct {
	recs   []*types.Record
	fail   error
	closed bool
}

func (m *memStorage) Name() string { return "mem" }
func (m *memStorage) Store(recs []*types.Record) error {
	if m.fail != nil {
		return m.fail
	}
	m.recs = append(m.recs, recs...)
	return nil
}
func (m *memStorage) Close() error { m.closed = true; return nil }

type errSource struct{ err error }

func (e errSource) Name() string { return "broken" }
func (e errSource) Headlines(context.Context) ([]trends.Headline, error) {
	return nil, e.err
}

func TestRunnerStoresEveryRow(t *testing.T) {
	src := trends.NewStatic([]string{"Eclipse", "Storm", "eclipse", "Quake"})
	pipe, err := pipeline.Default(&config.TrendsConfig{}, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	scraper := &stubScraper{failOn: map[string]bool{"Storm": true}}
	store := &memStorage{}
	m := observability.NewMetrics(testLogger)

	r := NewRunner(src, pipe, scraper, store, m, testLogger)
	stats, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Headlines != 4 || stats.Dropped != 1 || stats.Scraped != 3 || stats.Failed != 1 || stats.Stored != 3 {
		t.Errorf("stats = %+v", stats.Snapshot())
	}
	if len(store.recs) != 3 {
		t.Fatalf("stored = %d, want 3", len(store.recs))
	}
	if store.recs[1].Headline != "Storm" || !store.recs[1].Failed() {
		t.Errorf("failed row should be stored with its error: %+v", store.recs[1])
	}
	if !store.closed {
		t.Error("storage should be closed")
	}
	if r.GetState() != StateStopped {
		t.Errorf("state = %s", r.GetState())
	}
	if m.HeadlinesFetched.Load() != 4 || m.RowsStored.Load() != 3 || m.HeadlinesDropped.Load() != 1 {
		t.Errorf("metrics = %v", m.Snapshot())
	}
}

func TestRunnerCancelStopsAfterCurrentRow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scraper := &stubScraper{cancel: cancel, stopAt: 2}
	store := &memStorage{}
	r := NewRunner(trends.NewStatic([]string{"a", "b", "c"}), nil, scraper, store, nil, testLogger)

	stats, err := r.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(scraper.seen) != 2 {
		t.Errorf("scraped %v, want 2 rows", scraper.seen)
	}
	// The interrupted row is kept.
	if stats.Stored != 2 || !store.recs[1].Failed() {
		t.Errorf("stored = %d, last = %+v", stats.Stored, store.recs[len(store.recs)-1])
	}
	if !store.closed {
		t.Error("storage should be closed on cancellation")
	}
}

func TestRunnerSourceError(t *testing.T) {
	store := &memStorage{}
	r := NewRunner(errSource{err: types.ErrMissingAPIKey}, nil, &stubScraper{}, store, nil, testLogger)

	_, err := r.Run(context.Background())
	if !errors.Is(err, types.ErrMissingAPIKey) {
		t.Errorf("err = %v, want ErrMissingAPIKey", err)
	}
	if !store.closed {
		t.Error("storage should be closed")
	}
}

func TestRunnerNoHeadlinesAfterPipeline(t *testing.T) {
	pipe, _ := pipeline.Default(&config.TrendsConfig{Exclude: []string{".*"}}, testLogger)
	r := NewRunner(trends.NewStatic([]string{"a"}), pipe, &stubScraper{}, &memStorage{}, nil, testLogger)

	if _, err := r.Run(context.Background()); !errors.Is(err, types.ErrNoHeadlines) {
		t.Errorf("err = %v, want ErrNoHeadlines", err)
	}
}

func TestRunnerStorageErrorAborts(t *testing.T) {
	scraper := &stubScraper{}
	store := &memStorage{fail: errors.New("disk full")}
	r := NewRunner(trends.NewStatic([]string{"a", "b"}), nil, scraper, store, nil, testLogger)

	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected storage error")
	}
	if len(scraper.seen) != 1 {
		t.Errorf("scraped %v, want to stop after first row", scraper.seen)
	}
}

func TestRunnerRunsOnce(t *testing.T) {
	r := NewRunner(trends.NewStatic([]string{"a"}), nil, &stubScraper{}, &memStorage{}, nil, testLogger)
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := r.Run(context.Background()); err == nil {
		t.Error("second Run should fail")
	}
}

func TestRecordsCarryHeadlineFields(t *testing.T) {
	recs := Records([]trends.Headline{{Title: "T", Description: "D", Source: "Reuters"}})
	if len(recs) != 1 || recs[0].Headline != "T" || recs[0].Description != "D" || recs[0].SourceName != "Reuters" || recs[0].ID == "" {
		t.Errorf("record = %+v", recs[0])
	}
}
