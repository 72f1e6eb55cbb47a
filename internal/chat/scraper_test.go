package chat

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/chatprobe/internal/config"
	"github.com/IshaanNene/chatprobe/internal/observability"
	"github.com/IshaanNene/chatprobe/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

const answerHTML = `<p>The summit ended with a joint statement.</p>`

const sourcesPage = `<html><body>
<div class="markdown prose">` + answerHTML + `</div>
<aside>
  <div>
    <div>Citations</div>
    <a href="https://news.example.com/a?utm_source=chatgpt.com">
      <div>icon</div><div>Summit ends</div><div>Leaders agreed on trade.</div>
    </a>
  </div>
  <div>
    <div>More</div>
    <a href="https://other.example.org/b?utm_source=chatgpt.com">
      <div>icon</div><div>Background</div><div>What led to the summit.</div>
    </a>
  </div>
</aside>
</body></html>`

// fakeDriver records calls and serves canned HTML.
type fakeDriver struct {
	calls     []string
	typed     string
	popup     bool
	pageHTML  string
	inner     string
	failOn    map[string]error
	shotPaths []string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		popup:    true,
		pageHTML: sourcesPage,
		inner:    answerHTML,
		failOn:   map[string]error{},
	}
}

func (d *fakeDriver) record(name string) error {
	d.calls = append(d.calls, name)
	return d.failOn[name]
}

func (d *fakeDriver) Open(ctx context.Context, rawURL string) error {
	return d.record("open")
}

func (d *fakeDriver) Click(ctx context.Context, selector string) error {
	return d.record("click " + selector)
}

func (d *fakeDriver) ClickIfPresent(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	if err := d.record("popup"); err != nil {
		return false, err
	}
	return d.popup, nil
}

func (d *fakeDriver) Type(ctx context.Context, selector, text string) error {
	d.typed = text
	return d.record("type")
}

func (d *fakeDriver) PressEnter(ctx context.Context, selector string) error {
	return d.record("enter")
}

func (d *fakeDriver) InnerHTML(ctx context.Context, selector string) (string, error) {
	if err := d.record("inner"); err != nil {
		return "", err
	}
	return d.inner, nil
}

func (d *fakeDriver) HTML(ctx context.Context) (string, error) {
	if err := d.record("html"); err != nil {
		return "", err
	}
	return d.pageHTML, nil
}

func (d *fakeDriver) Screenshot(ctx context.Context, path string) error {
	if err := d.record("screenshot"); err != nil {
		return err
	}
	d.shotPaths = append(d.shotPaths, path)
	return nil
}

// fakeWaiter returns immediately and remembers the windows it was asked for.
type fakeWaiter struct {
	windows []config.Window
	cancel  func()
	after   int
}

func (w *fakeWaiter) Wait(ctx context.Context, win config.Window) error {
	w.windows = append(w.windows, win)
	if w.cancel != nil && len(w.windows) == w.after {
		w.cancel()
	}
	return ctx.Err()
}

func testChatConfig() *config.ChatConfig {
	cfg := config.DefaultConfig().Chat
	return &cfg
}

func newTestScraper(t *testing.T, d Driver, w Waiter, opts ...Option) (*Scraper, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetrics(testLogger())
	opts = append([]Option{
		WithWaiter(w),
		WithMetrics(m),
		WithClock(func() time.Time { return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC) }),
	}, opts...)
	s, err := NewScraper(d, testChatConfig(), testLogger(), opts...)
	if err != nil {
		t.Fatalf("NewScraper: %v", err)
	}
	return s, m
}

func TestQuerySequence(t *testing.T) {
	d := newFakeDriver()
	w := &fakeWaiter{}
	s, m := newTestScraper(t, d, w)

	reqTime, err := s.Query(context.Background(), `Tell me about "x"`)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if reqTime != "2025-03-01 09:30:00" {
		t.Errorf("request time = %q", reqTime)
	}
	if d.typed != `Tell me about "x"` {
		t.Errorf("typed = %q", d.typed)
	}

	want := []string{"open", "html", "popup", "click button[aria-label='Search']", "type", "enter"}
	if strings.Join(d.calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %v, want %v", d.calls, want)
	}

	waits := testChatConfig().Waits
	wantWaits := []config.Window{waits.PageLoad, waits.Popup, waits.Mode, waits.Typing, waits.Response}
	if len(w.windows) != len(wantWaits) {
		t.Fatalf("waits = %v, want %v", w.windows, wantWaits)
	}
	for i := range wantWaits {
		if w.windows[i] != wantWaits[i] {
			t.Errorf("wait %d = %v, want %v", i, w.windows[i], wantWaits[i])
		}
	}
	if m.PromptsSent.Load() != 1 {
		t.Errorf("prompts sent = %d", m.PromptsSent.Load())
	}
}

func TestQueryMissingPopupIsNotAnError(t *testing.T) {
	d := newFakeDriver()
	d.popup = false
	w := &fakeWaiter{}
	s, _ := newTestScraper(t, d, w)

	if _, err := s.Query(context.Background(), "p"); err != nil {
		t.Fatalf("Query: %v", err)
	}
	// No popup wait when nothing was clicked.
	if len(w.windows) != 4 {
		t.Errorf("waits = %d, want 4", len(w.windows))
	}
}

func TestQueryPopupClickErrorIsLogged(t *testing.T) {
	d := newFakeDriver()
	d.failOn["popup"] = errors.New("element is covered by another element")
	w := &fakeWaiter{}
	s, _ := newTestScraper(t, d, w)

	got, err := s.ScrapeRow(context.Background(), types.NewRecord("h"))
	if err != nil {
		t.Fatalf("ScrapeRow: %v", err)
	}
	if got.Failed() {
		t.Errorf("row failed: %s", got.Error)
	}
	if got.RequestTime == "" || len(got.Citations) != 1 {
		t.Errorf("row incomplete: %+v", got)
	}
	for _, win := range w.windows {
		if win == testChatConfig().Waits.Popup {
			t.Error("popup wait should be skipped after a failed click")
		}
	}
}

func TestScrapeRowModeToggleFails(t *testing.T) {
	d := newFakeDriver()
	mode := "click " + testChatConfig().Selectors.ModeToggle
	d.failOn[mode] = &types.ExtractError{Selector: testChatConfig().Selectors.ModeToggle, Err: types.ErrElementNotFound}
	s, m := newTestScraper(t, d, &fakeWaiter{})

	got, err := s.ScrapeRow(context.Background(), types.NewRecord("h"))
	if err != nil {
		t.Fatalf("ScrapeRow: %v", err)
	}
	if !got.Failed() || !strings.Contains(got.Error, `"`+StepMode+`"`) {
		t.Errorf("error = %q, want mode step failure", got.Error)
	}
	if got.RequestTime != "" || got.ResponseHTML != "" || got.Citations != nil {
		t.Errorf("nothing after the mode step should be collected: %+v", got)
	}

	want := []string{"open", "html", "popup", mode}
	if strings.Join(d.calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %v, want %v", d.calls, want)
	}
	if m.RowsFailed.Load() != 1 || m.PromptsSent.Load() != 0 {
		t.Errorf("snapshot = %v", m.Snapshot())
	}
}

func TestQueryPromptBoxMissing(t *testing.T) {
	d := newFakeDriver()
	d.failOn["type"] = &types.ExtractError{Selector: "#prompt-textarea", Err: types.ErrElementNotFound}
	s, m := newTestScraper(t, d, &fakeWaiter{})

	reqTime, err := s.Query(context.Background(), "p")
	if err == nil {
		t.Fatal("expected error")
	}
	var stepErr *types.StepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepType {
		t.Errorf("error = %v, want type step error", err)
	}
	if !errors.Is(err, types.ErrElementNotFound) {
		t.Errorf("error should wrap ErrElementNotFound: %v", err)
	}
	if reqTime != "" {
		t.Errorf("request time = %q, want empty", reqTime)
	}
	if m.PromptsSent.Load() != 0 {
		t.Error("prompt should not be counted")
	}
}

func TestScrapeRowComplete(t *testing.T) {
	d := newFakeDriver()
	w := &fakeWaiter{}
	dir := t.TempDir()
	s, m := newTestScraper(t, d, w, WithScreenshots(dir))

	rec := types.NewRecord("Summit ends")
	got, err := s.ScrapeRow(context.Background(), rec)
	if err != nil {
		t.Fatalf("ScrapeRow: %v", err)
	}
	if got.Failed() {
		t.Fatalf("row failed: %s", got.Error)
	}
	if got.Prompt != `Tell me about "Summit ends"` {
		t.Errorf("prompt = %q", got.Prompt)
	}
	if got.RequestTime != "2025-03-01 09:30:00" {
		t.Errorf("request time = %q", got.RequestTime)
	}
	if got.ResponseHTML != answerHTML {
		t.Errorf("response html = %q", got.ResponseHTML)
	}
	if !strings.Contains(got.ResponsePlain, "joint statement") {
		t.Errorf("response plain = %q", got.ResponsePlain)
	}
	if want := filepath.Join(dir, rec.ID+".png"); got.ScreenshotPath != want {
		t.Errorf("screenshot = %q, want %q", got.ScreenshotPath, want)
	}

	if len(got.Citations) != 1 {
		t.Fatalf("citations = %+v", got.Citations)
	}
	c := got.Citations[0]
	if c.URL != "https://news.example.com/a" || c.Headline != "Summit ends" || c.Snippet != "Leaders agreed on trade." {
		t.Errorf("citation = %+v", c)
	}
	if len(got.SearchResults) != 1 || got.SearchResults[0].URL != "https://other.example.org/b" {
		t.Errorf("search results = %+v", got.SearchResults)
	}

	// The cooldown comes first.
	if w.windows[0] != testChatConfig().Waits.RowCooldown {
		t.Errorf("first wait = %v, want cooldown", w.windows[0])
	}
	if m.RowsTotal.Load() != 1 || m.RowsFailed.Load() != 0 {
		t.Errorf("rows total/failed = %d/%d", m.RowsTotal.Load(), m.RowsFailed.Load())
	}
	if m.Citations.Load() != 1 || m.SearchResults.Load() != 1 || m.Screenshots.Load() != 1 {
		t.Errorf("snapshot = %v", m.Snapshot())
	}
}

func TestScrapeRowSkipCooldown(t *testing.T) {
	d := newFakeDriver()
	w := &fakeWaiter{}
	cfg := testChatConfig()
	cfg.SkipCooldown = true
	s, err := NewScraper(d, cfg, testLogger(), WithWaiter(w))
	if err != nil {
		t.Fatalf("NewScraper: %v", err)
	}

	if _, err := s.ScrapeRow(context.Background(), types.NewRecord("h")); err != nil {
		t.Fatalf("ScrapeRow: %v", err)
	}
	for _, win := range w.windows {
		if win == cfg.Waits.RowCooldown {
			t.Fatal("cooldown should be skipped")
		}
	}
}

func TestScrapeRowMissingResponseKeepsSources(t *testing.T) {
	d := newFakeDriver()
	d.failOn["inner"] = &types.ExtractError{Selector: ".markdown.prose", Err: types.ErrElementNotFound}
	d.pageHTML = strings.Replace(sourcesPage, `<div class="markdown prose">`+answerHTML+`</div>`, "", 1)
	s, m := newTestScraper(t, d, &fakeWaiter{})

	got, err := s.ScrapeRow(context.Background(), types.NewRecord("h"))
	if err != nil {
		t.Fatalf("ScrapeRow: %v", err)
	}
	if !got.Failed() || !strings.Contains(got.Error, StepResponse) {
		t.Errorf("error = %q", got.Error)
	}
	if got.ResponseHTML != "" {
		t.Errorf("response html = %q", got.ResponseHTML)
	}
	if len(got.Citations) != 1 {
		t.Errorf("citations = %+v", got.Citations)
	}
	if m.RowsFailed.Load() != 1 {
		t.Errorf("rows failed = %d", m.RowsFailed.Load())
	}
}

func TestScrapeRowResponseFromSnapshot(t *testing.T) {
	d := newFakeDriver()
	d.failOn["inner"] = errors.New("node is detached from document")
	s, _ := newTestScraper(t, d, &fakeWaiter{})

	got, err := s.ScrapeRow(context.Background(), types.NewRecord("h"))
	if err != nil {
		t.Fatalf("ScrapeRow: %v", err)
	}
	if got.Failed() {
		t.Fatalf("row failed: %s", got.Error)
	}
	if got.ResponseHTML != answerHTML {
		t.Errorf("response html = %q, want %q", got.ResponseHTML, answerHTML)
	}
}

func TestScrapeRowMissingMoreSection(t *testing.T) {
	d := newFakeDriver()
	d.pageHTML = strings.Replace(sourcesPage, "<div>More</div>", "<div>Related</div>", 1)
	s, _ := newTestScraper(t, d, &fakeWaiter{})

	got, err := s.ScrapeRow(context.Background(), types.NewRecord("h"))
	if err != nil {
		t.Fatalf("ScrapeRow: %v", err)
	}
	if len(got.Citations) != 1 {
		t.Errorf("citations should survive a missing More section: %+v", got.Citations)
	}
	if got.SearchResults != nil {
		t.Errorf("search results = %+v, want nil", got.SearchResults)
	}
	if !strings.Contains(got.Error, StepMore) {
		t.Errorf("error = %q", got.Error)
	}
}

func TestScrapeRowQueryFailure(t *testing.T) {
	d := newFakeDriver()
	d.failOn["open"] = errors.New("net::ERR_NAME_NOT_RESOLVED")
	s, _ := newTestScraper(t, d, &fakeWaiter{})

	got, err := s.ScrapeRow(context.Background(), types.NewRecord("h"))
	if err != nil {
		t.Fatalf("ScrapeRow should not abort on a step failure: %v", err)
	}
	if !strings.Contains(got.Error, "open") {
		t.Errorf("error = %q", got.Error)
	}
	for _, c := range d.calls {
		if c == "inner" {
			t.Error("response should not be read after a failed query")
		}
	}
}

func TestScrapeRowCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &fakeWaiter{cancel: cancel, after: 1}
	d := newFakeDriver()
	s, _ := newTestScraper(t, d, w)

	got, err := s.ScrapeRow(ctx, types.NewRecord("h"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if !got.Failed() {
		t.Error("cancelled row should carry an error")
	}
	if len(d.calls) != 0 {
		t.Errorf("driver should not be touched after cancellation: %v", d.calls)
	}
}

func TestJitterWaiterDuration(t *testing.T) {
	j := NewJitterWaiter()
	win := config.Window{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond}
	for i := 0; i < 100; i++ {
		d := j.Duration(win)
		if d < win.Min || d > win.Max {
			t.Fatalf("duration %v outside %v", d, win)
		}
	}
	if d := j.Duration(config.Window{Min: time.Second}); d != time.Second {
		t.Errorf("degenerate window = %v, want 1s", d)
	}
}

func TestJitterWaiterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewJitterWaiter().Wait(ctx, config.Window{Min: time.Hour, Max: time.Hour})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
