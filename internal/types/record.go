package types

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestTimeLayout is the timestamp format written to the request_time column.
const RequestTimeLayout = "2006-01-02 15:04:05"

// Source is one entry of the sources panel: a cited or suggested link.
type Source struct {
	URL      string `json:"url"`
	Headline string `json:"headline"`
	Snippet  string `json:"snippet"`
}

// Record is a single scraped row: one headline, one prompt, one answer.
type Record struct {
	ID             string
	Headline       string
	Description    string
	SourceName     string
	Prompt         string
	ResponseHTML   string
	ResponsePlain  string
	Citations      []Source
	SearchResults  []Source
	ScreenshotPath string
	RequestTime    string
	Error          string
	CreatedAt      time.Time
}

// NewRecord creates a Record for a headline with a fresh row identifier.
func NewRecord(headline string) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Headline:  headline,
		CreatedAt: time.Now(),
	}
}

// Columns returns the fixed CSV header, in output order.
func Columns() []string {
	return []string{
		"id",
		"headline",
		"description",
		"source",
		"prompt",
		"response_text",
		"response_plain",
		"response_citations",
		"response_search_results",
		"screenshot_path",
		"request_time",
		"error",
	}
}

// Row renders the record in Columns() order. Source lists are JSON-encoded.
func (r *Record) Row() []string {
	return []string{
		r.ID,
		r.Headline,
		r.Description,
		r.SourceName,
		r.Prompt,
		r.ResponseHTML,
		r.ResponsePlain,
		encodeSources(r.Citations),
		encodeSources(r.SearchResults),
		r.ScreenshotPath,
		r.RequestTime,
		r.Error,
	}
}

// ToMap returns the record keyed by column name, with source lists kept
// structured. Used by the JSON and document-store backends.
func (r *Record) ToMap() map[string]any {
	return map[string]any{
		"id":                      r.ID,
		"headline":                r.Headline,
		"description":             r.Description,
		"source":                  r.SourceName,
		"prompt":                  r.Prompt,
		"response_text":           r.ResponseHTML,
		"response_plain":          r.ResponsePlain,
		"response_citations":      nonNil(r.Citations),
		"response_search_results": nonNil(r.SearchResults),
		"screenshot_path":         r.ScreenshotPath,
		"request_time":            r.RequestTime,
		"error":                   r.Error,
		"created_at":              r.CreatedAt,
	}
}

// AddError appends a failure message, keeping earlier ones.
func (r *Record) AddError(err error) {
	if err == nil {
		return
	}
	if r.Error == "" {
		r.Error = err.Error()
		return
	}
	r.Error = strings.Join([]string{r.Error, err.Error()}, "; ")
}

// Failed reports whether any step recorded an error.
func (r *Record) Failed() bool { return r.Error != "" }

// Clone creates a deep copy of the record.
func (r *Record) Clone() *Record {
	clone := *r
	if r.Citations != nil {
		clone.Citations = append(make([]Source, 0, len(r.Citations)), r.Citations...)
	}
	if r.SearchResults != nil {
		clone.SearchResults = append(make([]Source, 0, len(r.SearchResults)), r.SearchResults...)
	}
	return &clone
}

// encodeSources renders a source list as a JSON array. An unscraped list is
// left empty rather than written as "null".
func encodeSources(s []Source) string {
	if s == nil {
		return ""
	}
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b)
}

func nonNil(s []Source) []Source {
	if s == nil {
		return []Source{}
	}
	return s
}
