// Package chat runs the scrape-one-row sequence against a chat interface.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/IshaanNene/chatprobe/internal/config"
	"github.com/IshaanNene/chatprobe/internal/extract"
	"github.com/IshaanNene/chatprobe/internal/observability"
	"github.com/IshaanNene/chatprobe/internal/prompt"
	"github.com/IshaanNene/chatprobe/internal/types"
)

// Step names recorded in StepError.
const (
	StepCooldown   = "cooldown"
	StepPrompt     = "prompt"
	StepOpen       = "open"
	StepMode       = "mode"
	StepType       = "type"
	StepSubmit     = "submit"
	StepResponse   = "response"
	StepScreenshot = "screenshot"
	StepSources    = "sources"
	StepCitations  = "citations"
	StepMore       = "more"
)

// Scraper submits prompts and collects the rendered answers.
type Scraper struct {
	driver    Driver
	waiter    Waiter
	builder   *prompt.Builder
	cfg       *config.ChatConfig
	imagesDir string
	metrics   *observability.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithWaiter replaces the default jittered sleeper.
func WithWaiter(w Waiter) Option {
	return func(s *Scraper) { s.waiter = w }
}

// WithScreenshots saves one PNG per row into dir.
func WithScreenshots(dir string) Option {
	return func(s *Scraper) { s.imagesDir = dir }
}

// WithMetrics counts prompts, rows and sources.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scraper) { s.metrics = m }
}

// WithClock overrides the time source used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) { s.now = now }
}

// NewScraper creates a Scraper over driver.
func NewScraper(driver Driver, cfg *config.ChatConfig, logger *slog.Logger, opts ...Option) (*Scraper, error) {
	builder, err := prompt.NewBuilder(cfg.PromptTemplate)
	if err != nil {
		return nil, err
	}

	s := &Scraper{
		driver:  driver,
		waiter:  NewJitterWaiter(),
		builder: builder,
		cfg:     cfg,
		logger:  logger.With("component", "chat_scraper"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observability.NewMetrics(logger)
	}
	return s, nil
}

// Query opens the chat page and submits prompt. It returns the time the
// prompt was sent, formatted with types.RequestTimeLayout. The returned
// timestamp is empty if the prompt never got submitted.
func (s *Scraper) Query(ctx context.Context, text string) (string, error) {
	sel := s.cfg.Selectors
	waits := s.cfg.Waits

	if err := s.driver.Open(ctx, s.cfg.URL); err != nil {
		return "", &types.StepError{Step: StepOpen, Err: err}
	}
	if err := s.waiter.Wait(ctx, waits.PageLoad); err != nil {
		return "", err
	}

	if html, err := s.driver.HTML(ctx); err == nil {
		if c := extract.DetectChallenge(html); c != extract.ChallengeNone {
			s.logger.Warn("bot check detected on chat page", "challenge", c)
		}
	}

	s.dismissPopup(ctx)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if sel.ModeToggle != "" {
		if err := s.driver.Click(ctx, sel.ModeToggle); err != nil {
			return "", &types.StepError{Step: StepMode, Err: err}
		}
		if err := s.waiter.Wait(ctx, waits.Mode); err != nil {
			return "", err
		}
	}

	if err := s.driver.Type(ctx, sel.PromptBox, text); err != nil {
		return "", &types.StepError{Step: StepType, Err: err}
	}
	if err := s.waiter.Wait(ctx, waits.Typing); err != nil {
		return "", err
	}

	requestTime := s.now().Format(types.RequestTimeLayout)
	if err := s.driver.PressEnter(ctx, sel.PromptBox); err != nil {
		return "", &types.StepError{Step: StepSubmit, Err: err}
	}
	s.metrics.PromptsSent.Add(1)
	s.logger.Info("prompt submitted", "prompt", text, "request_time", requestTime)

	if err := s.waiter.Wait(ctx, waits.Response); err != nil {
		return requestTime, err
	}
	return requestTime, nil
}

// dismissPopup closes the welcome/login popup if one shows up.
func (s *Scraper) dismissPopup(ctx context.Context) {
	sel := s.cfg.Selectors.PopupClose
	if sel == "" {
		return
	}
	clicked, err := s.driver.ClickIfPresent(ctx, sel, s.cfg.PopupTimeout)
	switch {
	case err != nil:
		s.logger.Warn("popup dismiss failed", "selector", sel, "error", err)
	case !clicked:
		s.logger.Debug("popup not found", "selector", sel)
	default:
		_ = s.waiter.Wait(ctx, s.cfg.Waits.Popup)
	}
}

// ScrapeRow fills rec with the prompt, answer and sources for its headline.
//
// Step failures are logged and appended to rec.Error; the row is returned
// with whatever was collected. Only context cancellation is returned as an
// error, in which case rec is partially filled.
func (s *Scraper) ScrapeRow(ctx context.Context, rec *types.Record) (*types.Record, error) {
	log := s.logger.With("row", rec.ID, "headline", rec.Headline)
	s.metrics.RowsTotal.Add(1)

	if !s.cfg.SkipCooldown {
		log.Debug("cooling down before prompt")
		if err := s.waiter.Wait(ctx, s.cfg.Waits.RowCooldown); err != nil {
			return s.abort(rec, StepCooldown, err)
		}
	}

	text, err := s.builder.ForRecord(rec)
	if err != nil {
		s.fail(log, rec, &types.StepError{Step: StepPrompt, Err: err})
		return s.finish(log, rec), nil
	}
	rec.Prompt = text

	rec.RequestTime, err = s.Query(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return s.abort(rec, StepSubmit, ctx.Err())
		}
		s.fail(log, rec, err)
		return s.finish(log, rec), nil
	}

	if err := s.collectResponse(ctx, rec); err != nil {
		if ctx.Err() != nil {
			return s.abort(rec, StepResponse, ctx.Err())
		}
		s.fail(log, rec, err)
	}

	if s.imagesDir != "" {
		path := filepath.Join(s.imagesDir, rec.ID+".png")
		if err := s.driver.Screenshot(ctx, path); err != nil {
			s.fail(log, rec, &types.StepError{Step: StepScreenshot, Err: err})
		} else {
			rec.ScreenshotPath = path
			s.metrics.Screenshots.Add(1)
		}
	}
	if ctx.Err() != nil {
		return s.abort(rec, StepScreenshot, ctx.Err())
	}

	if err := s.collectSources(ctx, rec); err != nil {
		if ctx.Err() != nil {
			return s.abort(rec, StepSources, ctx.Err())
		}
		s.fail(log, rec, err)
	}

	return s.finish(log, rec), nil
}

func (s *Scraper) finish(log *slog.Logger, rec *types.Record) *types.Record {
	if rec.Failed() {
		s.metrics.RowsFailed.Add(1)
	}
	log.Info("row scraped",
		"citations", len(rec.Citations),
		"search_results", len(rec.SearchResults),
		"failed", rec.Failed(),
	)
	return rec
}

// collectResponse snapshots the answer HTML and its plain-text rendering.
// If the live element cannot be read, the answer is taken from a snapshot
// of the whole page instead.
func (s *Scraper) collectResponse(ctx context.Context, rec *types.Record) error {
	sel := s.cfg.Selectors.Response
	inner, err := s.driver.InnerHTML(ctx, sel)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Debug("live response read failed, using page snapshot", "row", rec.ID, "error", err)
		pageHTML, herr := s.driver.HTML(ctx)
		if herr != nil {
			return &types.StepError{Step: StepResponse, Err: errors.Join(err, herr)}
		}
		inner, err = extract.Response(pageHTML, sel)
		if err != nil {
			return &types.StepError{Step: StepResponse, Err: err}
		}
	}
	rec.ResponseHTML = inner

	plain, err := extract.PlainText(inner)
	if err != nil {
		s.logger.Warn("plain text rendering failed", "row", rec.ID, "error", err)
		return nil
	}
	rec.ResponsePlain = plain
	return nil
}

// collectSources opens the sources panel and extracts both of its sections.
// The sections are independent: a missing "More" keeps the citations.
func (s *Scraper) collectSources(ctx context.Context, rec *types.Record) error {
	if err := s.driver.Click(ctx, s.cfg.Selectors.SourcesButton); err != nil {
		return &types.StepError{Step: StepSources, Err: err}
	}
	if err := s.waiter.Wait(ctx, s.cfg.Waits.Sources); err != nil {
		return err
	}

	pageHTML, err := s.driver.HTML(ctx)
	if err != nil {
		return &types.StepError{Step: StepSources, Err: err}
	}

	var errs []error
	citations, err := extract.Sources(pageHTML, s.cfg.CitationHeader, s.cfg.TrackingSuffix)
	if err != nil {
		errs = append(errs, &types.StepError{Step: StepCitations, Err: err})
	} else {
		rec.Citations = citations
		s.metrics.Citations.Add(int64(len(citations)))
	}

	if s.cfg.MoreHeader != "" {
		more, err := extract.Sources(pageHTML, s.cfg.MoreHeader, s.cfg.TrackingSuffix)
		if err != nil {
			errs = append(errs, &types.StepError{Step: StepMore, Err: err})
		} else {
			rec.SearchResults = more
			s.metrics.SearchResults.Add(int64(len(more)))
		}
	}
	return errors.Join(errs...)
}

func (s *Scraper) fail(log *slog.Logger, rec *types.Record, err error) {
	log.Warn("scrape step failed", "error", err)
	rec.AddError(err)
}

func (s *Scraper) abort(rec *types.Record, step string, err error) (*types.Record, error) {
	rec.AddError(&types.StepError{Step: step, Err: err})
	s.metrics.RowsFailed.Add(1)
	return rec, err
}
