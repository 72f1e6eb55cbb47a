package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrNoHeadlines      = errors.New("no headlines returned")
	ErrElementNotFound  = errors.New("element not found")
	ErrSectionNotFound  = errors.New("sources section not found")
	ErrNoResponse       = errors.New("no response rendered")
	ErrSessionClosed    = errors.New("browser session closed")
	ErrMissingAPIKey    = errors.New("api key not set")
	ErrEmptyResponse    = errors.New("empty response body")
	ErrProxyExhausted   = errors.New("all proxies exhausted")
	ErrUnknownSource    = errors.New("unknown headline source")
	ErrUnknownCategory  = errors.New("unknown news category")
	ErrBodyTooLarge     = errors.New("response body exceeds size limit")
	ErrUnknownStorage   = errors.New("unknown storage type")
	ErrTemplateNoOutput = errors.New("prompt template rendered empty")
)

// FetchError wraps errors that occur while fetching a feed.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ExtractError wraps errors that occur while locating or reading page elements.
type ExtractError struct {
	Selector string
	Err      error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract error (selector=%q): %v", e.Selector, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// StepError records which step of the scrape sequence failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the record pipeline.
type PipelineError struct {
	Stage  string
	Record *Record
	Err    error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
