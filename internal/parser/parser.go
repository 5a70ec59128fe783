// Package parser turns free text into skill actions by asking the
// language model to fill a prompt template.
package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/youmna-rabie/line-assistant/internal/llm"
	"github.com/youmna-rabie/line-assistant/internal/prompt"
	"github.com/youmna-rabie/line-assistant/internal/types"
)

// ErrUnparsable is returned when no action list could be obtained from the
// model. It is distinct from a successful parse that yields zero actions.
var ErrUnparsable = errors.New("could not parse model response")

// Parser fills a template, calls the model once and decodes the answer.
type Parser struct {
	provider llm.Provider
	tmpl     prompt.Template
	logger   *slog.Logger
}

// New creates a parser for one prompt template.
func New(provider llm.Provider, tmpl prompt.Template, logger *slog.Logger) *Parser {
	return &Parser{provider: provider, tmpl: tmpl, logger: logger}
}

// Template returns the template this parser fills.
func (p *Parser) Template() prompt.Template {
	return p.tmpl
}

// Parse returns the actions requested by text. On any failure it returns
// an empty slice and an error wrapping ErrUnparsable.
func (p *Parser) Parse(ctx context.Context, text string, now time.Time) ([]types.Action, error) {
	if p.tmpl.Text == "" {
		return []types.Action{}, fmt.Errorf("%w: template %q is empty", ErrUnparsable, p.tmpl.Name)
	}

	filled := p.tmpl.Fill(now, text)
	raw, err := p.provider.Generate(ctx, filled)
	if err != nil {
		p.logger.Error("model call failed", "template", p.tmpl.Name, "provider", p.provider.Name(), "error", err)
		return []types.Action{}, fmt.Errorf("%w: %w", ErrUnparsable, err)
	}

	payload := Decode(raw)
	if payload.Kind == Malformed {
		p.logger.Warn("malformed model response", "template", p.tmpl.Name, "error", payload.Err, "raw", truncate(raw, 500))
		return []types.Action{}, fmt.Errorf("%w: %w", ErrUnparsable, payload.Err)
	}
	if payload.Repaired {
		p.logger.Debug("repaired model response", "template", p.tmpl.Name)
	}

	p.logger.Info("parsed actions", "template", p.tmpl.Name, "kind", payload.Kind.String(), "count", len(payload.Actions))
	return payload.Actions, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
