// Package agent runs parsed actions against a domain's skills and turns
// their outcomes into a bounded list of replies.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/youmna-rabie/line-assistant/internal/metrics"
	"github.com/youmna-rabie/line-assistant/internal/normalize"
	"github.com/youmna-rabie/line-assistant/internal/skill"
	"github.com/youmna-rabie/line-assistant/internal/types"
)

// MaxReplies is the most messages one reply token accepts.
const MaxReplies = 5

// Default reply texts.
const (
	NoActionText      = "🤔 No valid operation recognized."
	NotUnderstoodText = "😵‍💫 Sorry, I couldn't understand that. Please try again."
)

// Parser turns user text into actions.
type Parser interface {
	Parse(ctx context.Context, text string, now time.Time) ([]types.Action, error)
}

// Agent dispatches one domain's actions.
type Agent struct {
	name          string
	parser        Parser
	skills        skill.Table
	logger        *slog.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
	notUnderstood string
}

// Option configures an Agent.
type Option func(*Agent)

// WithMetrics records skill outcomes and truncations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// WithClock overrides the time passed to the parser.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// WithNotUnderstood sets the reply sent when parsing fails.
func WithNotUnderstood(text string) Option {
	return func(a *Agent) { a.notUnderstood = text }
}

// New creates an agent.
func New(name string, parser Parser, skills skill.Table, logger *slog.Logger, opts ...Option) *Agent {
	a := &Agent{
		name:          name,
		parser:        parser,
		skills:        skills,
		logger:        logger.With("agent", name),
		now:           time.Now,
		notUnderstood: NotUnderstoodText,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the agent's domain name.
func (a *Agent) Name() string {
	return a.name
}

// Skills returns the registered skill names.
func (a *Agent) Skills() []string {
	return a.skills.Names()
}

// Handle parses text and dispatches the resulting actions.
func (a *Agent) Handle(ctx context.Context, text string) []types.Message {
	actions, err := a.parser.Parse(ctx, text, a.now())
	if err != nil {
		a.logger.Warn("parse failed", "text", text, "error", err)
		a.metrics.ParseFailure(a.name)
		return []types.Message{types.TextMessage(a.notUnderstood)}
	}
	return a.Dispatch(ctx, actions)
}

// Dispatch runs actions in order and returns between 1 and MaxReplies
// messages. A failing action never stops the ones after it.
func (a *Agent) Dispatch(ctx context.Context, actions []types.Action) []types.Message {
	var replies []types.Message
	for i, action := range actions {
		replies = append(replies, a.run(ctx, i, action)...)
	}

	if len(replies) > MaxReplies {
		omitted := len(replies) - (MaxReplies - 1)
		a.logger.Warn("replies truncated", "total", len(replies), "omitted", omitted)
		a.metrics.Truncated()
		replies = append(replies[:MaxReplies-1:MaxReplies-1],
			types.TextMessage(fmt.Sprintf("⚠️ %d more actions omitted.", omitted)))
	}
	if len(replies) == 0 {
		replies = []types.Message{types.TextMessage(NoActionText)}
	}
	return replies
}

func (a *Agent) run(ctx context.Context, index int, action types.Action) []types.Message {
	s, ok := a.skills.Lookup(action.Skill)
	if !ok {
		a.logger.Warn("unsupported skill", "index", index, "skill", action.Skill)
		a.metrics.SkillOutcome(action.Skill, "unsupported")
		return []types.Message{types.TextMessage("🤔 Skill not supported yet: " + action.Skill)}
	}

	args := skill.Args(normalize.Normalize(action.Args))
	out := execute(ctx, s, args)

	switch out.Kind {
	case skill.KindParams:
		a.logger.Warn("skill parameters rejected", "index", index, "skill", action.Skill, "args", args, "error", out.Err)
		a.metrics.SkillOutcome(action.Skill, out.Kind.String())
		return []types.Message{types.TextMessage(fmt.Sprintf("❌ Invalid parameters for %s, please try again.", action.Skill))}

	case skill.KindExecution:
		a.logger.Error("skill execution failed", "index", index, "skill", action.Skill, "args", args, "error", out.Err)
		a.metrics.SkillOutcome(action.Skill, out.Kind.String())
		return []types.Message{types.TextMessage(fmt.Sprintf("❌ Something went wrong while running %s.", action.Skill))}
	}

	status := "ok"
	if !out.Result.Success {
		status = "failed"
		a.logger.Warn("skill reported failure", "index", index, "skill", action.Skill, "args", args, "message", out.Result.Message)
	} else {
		a.logger.Info("skill succeeded", "index", index, "skill", action.Skill)
	}
	a.metrics.SkillOutcome(action.Skill, status)

	msgs, err := present(s, out.Result)
	if err != nil {
		a.logger.Error("presenting result failed", "index", index, "skill", action.Skill, "error", err)
		return []types.Message{types.TextMessage(fmt.Sprintf("❌ Something went wrong while running %s.", action.Skill))}
	}
	return msgs
}

// execute runs the skill, converting a panic into an execution failure.
func execute(ctx context.Context, s skill.Skill, args skill.Args) (out skill.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = skill.Broken(fmt.Errorf("panic in %s: %v", s.Name(), r))
		}
	}()
	return s.Execute(ctx, args)
}

func present(s skill.Skill, res skill.Result) (msgs []types.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic presenting %s: %v", s.Name(), r)
		}
	}()
	return s.Present(res), nil
}
