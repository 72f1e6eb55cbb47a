package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/IshaanNene/chatprobe/internal/config"
	"github.com/IshaanNene/chatprobe/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func records(headlines ...string) []*types.Record {
	out := make([]*types.Record, len(headlines))
	for i, h := range headlines {
		out[i] = types.NewRecord(h)
	}
	return out
}

func headlines(recs []*types.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Headline
	}
	return out
}

func TestPipelineBasic(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})

	rec := types.NewRecord("  Hello World  ")
	rec.Description = " spaces "

	result, err := p.Process(rec)
	if err != nil {
		t.Fatalf("pipeline error: %v", err)
	}
	if result.Headline != "Hello World" {
		t.Errorf("expected trimmed headline, got %q", result.Headline)
	}
	if result.Description != "spaces" {
		t.Errorf("expected trimmed description, got %q", result.Description)
	}
}

func TestRequiredFieldsMiddleware(t *testing.T) {
	m := &RequiredFieldsMiddleware{}

	result, err := m.Process(types.NewRecord("Hello"))
	if err != nil || result == nil {
		t.Error("record with headline should pass")
	}

	result, _ = m.Process(types.NewRecord("   "))
	if result != nil {
		t.Error("record without headline should be dropped (nil)")
	}
}

func TestDedupMiddlewareIgnoresCase(t *testing.T) {
	p := New(testLogger)
	p.Use(NewDedupMiddleware())

	got, dropped, err := p.Apply(records("Eclipse tonight", "ECLIPSE TONIGHT", " eclipse tonight ", "Storm warning"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	want := []string{"Eclipse tonight", "Storm warning"}
	if h := headlines(got); len(h) != 2 || h[0] != want[0] || h[1] != want[1] {
		t.Errorf("headlines = %v, want %v", h, want)
	}
}

func TestSanitizeMiddleware(t *testing.T) {
	m := NewSanitizeMiddleware()
	rec := types.NewRecord(`<b>Markets</b> &amp; rates`)
	rec.Description = `<p>Hello <i>World</i></p>`

	result, err := m.Process(rec)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if result.Headline != "Markets & rates" {
		t.Errorf("headline = %q", result.Headline)
	}
	if result.Description != "Hello World" {
		t.Errorf("description = %q", result.Description)
	}
}

func TestExcludeMiddleware(t *testing.T) {
	m, err := NewExcludeMiddleware([]string{`^powerball`, `lottery`}, testLogger)
	if err != nil {
		t.Fatalf("NewExcludeMiddleware: %v", err)
	}

	tests := []struct {
		headline string
		keep     bool
	}{
		{"Powerball numbers", false},
		{"State LOTTERY results", false},
		{"Senate vote", true},
	}
	for _, tt := range tests {
		got, _ := m.Process(types.NewRecord(tt.headline))
		if (got != nil) != tt.keep {
			t.Errorf("%q kept = %v, want %v", tt.headline, got != nil, tt.keep)
		}
	}

	if _, err := NewExcludeMiddleware([]string{"("}, testLogger); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestLimitMiddleware(t *testing.T) {
	p := New(testLogger)
	p.Use(&LimitMiddleware{Max: 2})

	got, dropped, err := p.Apply(records("a", "b", "c", "d"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(got) != 2 || dropped != 2 {
		t.Errorf("kept %d dropped %d, want 2/2", len(got), dropped)
	}

	unlimited := &LimitMiddleware{}
	for i := 0; i < 5; i++ {
		if r, _ := unlimited.Process(types.NewRecord("x")); r == nil {
			t.Fatal("zero limit should pass everything")
		}
	}
}

func TestLimitCountsAfterDedup(t *testing.T) {
	p := New(testLogger)
	p.Use(NewDedupMiddleware())
	p.Use(&LimitMiddleware{Max: 2})

	got, _, err := p.Apply(records("a", "A", "b", "c"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if h := headlines(got); len(h) != 2 || h[0] != "a" || h[1] != "b" {
		t.Errorf("headlines = %v, want [a b]", h)
	}
}

type failingMiddleware struct{}

func (failingMiddleware) Name() string { return "boom" }

func (failingMiddleware) Process(*types.Record) (*types.Record, error) {
	return nil, errors.New("boom")
}

func TestPipelineError(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})
	p.Use(failingMiddleware{})

	_, _, err := p.Apply(records("x"))
	var pe *types.PipelineError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PipelineError", err)
	}
	if pe.Stage != "boom" || pe.Record.Headline != "x" {
		t.Errorf("pipeline error = %+v", pe)
	}
}

func TestPipelineLen(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})
	p.Use(&RequiredFieldsMiddleware{})
	if p.Len() != 2 {
		t.Errorf("Len = %d, want 2", p.Len())
	}
}

func TestDefaultPipeline(t *testing.T) {
	p, err := Default(&config.TrendsConfig{Limit: 2, Exclude: []string{"lottery"}}, testLogger)
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	got, dropped, err := p.Apply(records(" <b>Eclipse</b> ", "eclipse", "", "Lottery winner", "Storm", "Quake"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := []string{"Eclipse", "Storm"}
	if h := headlines(got); len(h) != 2 || h[0] != want[0] || h[1] != want[1] {
		t.Errorf("headlines = %v, want %v", h, want)
	}
	if dropped != 4 {
		t.Errorf("dropped = %d, want 4", dropped)
	}
}
