// Package prompt turns headlines into chat prompts.
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/IshaanNene/chatprobe/internal/trends"
	"github.com/IshaanNene/chatprobe/internal/types"
)

// DefaultTemplate asks about the headline verbatim.
const DefaultTemplate = `Tell me about "{{.Headline}}"`

// Data is what a prompt template can reference.
type Data struct {
	Headline    string
	Description string
	Source      string
}

// Builder renders prompts from a template.
type Builder struct {
	tmpl *template.Template
}

// NewBuilder compiles a prompt template. An empty text selects DefaultTemplate.
func NewBuilder(text string) (*Builder, error) {
	if text == "" {
		text = DefaultTemplate
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &Builder{tmpl: tmpl}, nil
}

// Build renders the prompt for a headline.
func (b *Builder) Build(h trends.Headline) (string, error) {
	var sb strings.Builder
	err := b.tmpl.Execute(&sb, Data{
		Headline:    h.Title,
		Description: h.Description,
		Source:      h.Source,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", types.ErrTemplateNoOutput
	}
	return out, nil
}

// ForRecord renders the prompt for a record's headline.
func (b *Builder) ForRecord(r *types.Record) (string, error) {
	return b.Build(trends.Headline{
		Title:       r.Headline,
		Description: r.Description,
		Source:      r.SourceName,
	})
}
