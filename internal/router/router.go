// Package router picks the domain agent that should handle a message.
package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/youmna-rabie/line-assistant/internal/llm"
	"github.com/youmna-rabie/line-assistant/internal/parser"
	"github.com/youmna-rabie/line-assistant/internal/prompt"
	"github.com/youmna-rabie/line-assistant/internal/types"
)

// Intent is the coarse domain of a message.
type Intent string

const (
	Calendar Intent = "CALENDAR"
	Expense  Intent = "EXPENSE"
	// Chat means no skill applies and nothing is sent.
	Chat Intent = "CHAT"
)

// ParseIntent reads an intent name. Unknown names are Chat.
func ParseIntent(s string) Intent {
	switch Intent(strings.ToUpper(strings.TrimSpace(s))) {
	case Calendar:
		return Calendar
	case Expense:
		return Expense
	default:
		return Chat
	}
}

// Handler answers a message for one domain.
type Handler interface {
	Handle(ctx context.Context, text string) []types.Message
}

// Router classifies messages and forwards them to the matching handler.
type Router struct {
	provider llm.Provider
	tmpl     prompt.Template
	handlers map[Intent]Handler
	// fixed, when not empty, bypasses classification.
	fixed  Intent
	logger *slog.Logger
	now    func() time.Time
}

// New creates a router that classifies with the given template.
func New(provider llm.Provider, tmpl prompt.Template, logger *slog.Logger) *Router {
	return &Router{
		provider: provider,
		tmpl:     tmpl,
		handlers: make(map[Intent]Handler),
		logger:   logger,
		now:      time.Now,
	}
}

// Fixed creates a router that sends every message to intent without
// calling the model.
func Fixed(intent Intent, logger *slog.Logger) *Router {
	return &Router{handlers: make(map[Intent]Handler), fixed: intent, logger: logger, now: time.Now}
}

// Register sets the handler for intent.
func (r *Router) Register(intent Intent, h Handler) {
	r.handlers[intent] = h
}

// Classify asks the model for the message's intent. Any failure yields Chat.
func (r *Router) Classify(ctx context.Context, text string) Intent {
	if r.fixed != "" {
		return r.fixed
	}
	raw, err := r.provider.Generate(ctx, r.tmpl.Fill(r.now(), text))
	if err != nil {
		r.logger.Warn("classification failed", "error", err)
		return Chat
	}

	cleaned := parser.StripFences(raw)
	var doc struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(cleaned), &doc); err == nil {
		return ParseIntent(doc.Intent)
	}
	return ParseIntent(strings.Trim(cleaned, `"'.`))
}

// Respond classifies text and returns the handler's replies. Chat, or an
// intent without a handler, produces no replies.
func (r *Router) Respond(ctx context.Context, text string) (Intent, []types.Message) {
	intent := r.Classify(ctx, text)
	h, ok := r.handlers[intent]
	if intent == Chat || !ok {
		r.logger.Debug("no handler for message", "intent", intent)
		return intent, nil
	}
	r.logger.Info("routed message", "intent", intent)
	return intent, h.Handle(ctx, text)
}
