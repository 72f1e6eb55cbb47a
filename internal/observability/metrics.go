package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters for a scrape run.
type Metrics struct {
	// Source metrics
	HeadlinesFetched atomic.Int64
	HeadlinesDropped atomic.Int64

	// Row metrics
	RowsTotal   atomic.Int64
	RowsFailed  atomic.Int64
	RowsStored  atomic.Int64
	PromptsSent atomic.Int64

	// Extraction metrics
	Citations     atomic.Int64
	SearchResults atomic.Int64
	Screenshots   atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

type metric struct {
	name  string
	help  string
	value int64
}

func (m *Metrics) collect() []metric {
	return []metric{
		{"chatprobe_headlines_fetched_total", "Total headlines fetched from the trend source", m.HeadlinesFetched.Load()},
		{"chatprobe_headlines_dropped_total", "Total headlines dropped before scraping", m.HeadlinesDropped.Load()},
		{"chatprobe_rows_total", "Total rows scraped", m.RowsTotal.Load()},
		{"chatprobe_rows_failed_total", "Total rows with at least one failed step", m.RowsFailed.Load()},
		{"chatprobe_rows_stored_total", "Total rows written to storage", m.RowsStored.Load()},
		{"chatprobe_prompts_sent_total", "Total prompts submitted", m.PromptsSent.Load()},
		{"chatprobe_citations_total", "Total citation entries extracted", m.Citations.Load()},
		{"chatprobe_search_results_total", "Total additional search results extracted", m.SearchResults.Load()},
		{"chatprobe_screenshots_total", "Total screenshots saved", m.Screenshots.Load()},
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	for _, metric := range m.collect() {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server. It shuts down when ctx is done.
func (m *Metrics) StartServer(ctx context.Context, port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return nil
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"headlines_fetched": m.HeadlinesFetched.Load(),
		"headlines_dropped": m.HeadlinesDropped.Load(),
		"rows_total":        m.RowsTotal.Load(),
		"rows_failed":       m.RowsFailed.Load(),
		"rows_stored":       m.RowsStored.Load(),
		"prompts_sent":      m.PromptsSent.Load(),
		"citations":         m.Citations.Load(),
		"search_results":    m.SearchResults.Load(),
		"screenshots":       m.Screenshots.Load(),
	}
}

// LogSummary writes the current counters at info level.
func (m *Metrics) LogSummary() {
	args := make([]any, 0, 18)
	for k, v := range m.Snapshot() {
		args = append(args, k, v)
	}
	m.logger.Info("run summary", args...)
}
