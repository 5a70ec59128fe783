// Package app builds every long-lived dependency once from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/api/option"

	"github.com/youmna-rabie/line-assistant/internal/agent"
	"github.com/youmna-rabie/line-assistant/internal/calendar"
	"github.com/youmna-rabie/line-assistant/internal/channel"
	"github.com/youmna-rabie/line-assistant/internal/config"
	"github.com/youmna-rabie/line-assistant/internal/event"
	"github.com/youmna-rabie/line-assistant/internal/expense"
	"github.com/youmna-rabie/line-assistant/internal/llm"
	"github.com/youmna-rabie/line-assistant/internal/metrics"
	"github.com/youmna-rabie/line-assistant/internal/parser"
	"github.com/youmna-rabie/line-assistant/internal/prompt"
	"github.com/youmna-rabie/line-assistant/internal/report"
	"github.com/youmna-rabie/line-assistant/internal/router"
	"github.com/youmna-rabie/line-assistant/internal/server"
	"github.com/youmna-rabie/line-assistant/internal/skill"
	"github.com/youmna-rabie/line-assistant/internal/types"
)

// CalendarNotUnderstood is the calendar agent's reply to an unparsable message.
const CalendarNotUnderstood = "❌ I couldn't understand your calendar request."

// App holds the assembled application.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Prompts  *prompt.Registry
	Calendar *calendar.Service
	Expense  *expense.Service
	Router   *router.Router
	Channels map[string]types.Channel
	Store    *event.MemoryStore

	agents  []*agent.Agent
	closers []io.Closer
}

// Option adjusts how New assembles the App.
type Option func(*options)

type options struct {
	provider llm.Provider
	calendar calendar.Backend
	ledger   expense.Ledger
}

// WithProvider replaces the configured language model.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithCalendarBackend replaces the configured calendar backend.
func WithCalendarBackend(b calendar.Backend) Option {
	return func(o *options) { o.calendar = b }
}

// WithLedger replaces the configured expense ledger.
func WithLedger(l expense.Ledger) Option {
	return func(o *options) { o.ledger = l }
}

// New assembles the App. Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var err error
	if a.Metrics, err = metrics.New(a.Registry); err != nil {
		return nil, err
	}
	if a.Prompts, err = prompt.NewRegistry(cfg.Prompts.Dirs); err != nil {
		return nil, fmt.Errorf("loading prompts: %w", err)
	}

	provider := o.provider
	if provider == nil {
		if provider, err = llm.NewProvider(ctx, cfg.LLM); err != nil {
			return nil, fmt.Errorf("creating llm provider: %w", err)
		}
	}
	provider = llm.Timed{Provider: provider, Observe: a.Metrics.ObserveLLM}

	loc := cfg.Location()

	backend := o.calendar
	if backend == nil {
		if backend, err = newCalendarBackend(ctx, cfg.Calendar, loc); err != nil {
			return nil, err
		}
	}
	a.Calendar = calendar.NewService(backend, loc, cfg.Calendar.ListWindow, logger.With("component", "calendar"))

	ledger := o.ledger
	if ledger == nil {
		if ledger, err = a.newLedger(ctx, cfg.Expense); err != nil {
			return nil, err
		}
	}
	a.Expense = expense.NewService(ledger, loc, logger.With("component", "expense"))

	calAgent, err := a.newAgent("calendar", provider, calendar.Skills(a.Calendar),
		agent.WithNotUnderstood(CalendarNotUnderstood))
	if err != nil {
		return nil, a.fail(err)
	}
	expAgent, err := a.newAgent("expense", provider, expense.Skills(a.Expense))
	if err != nil {
		return nil, a.fail(err)
	}

	if cfg.Router.Enabled {
		tmpl, err := a.Prompts.MustGet("router")
		if err != nil {
			return nil, a.fail(err)
		}
		a.Router = router.New(provider, tmpl, logger.With("component", "router"))
	} else {
		a.Router = router.Fixed(router.ParseIntent(cfg.Router.Default), logger.With("component", "router"))
	}
	a.Router.Register(router.Calendar, calAgent)
	a.Router.Register(router.Expense, expAgent)

	a.Channels = make(map[string]types.Channel, len(cfg.Channels))
	for _, cc := range cfg.Channels {
		switch cc.Type {
		case "line":
			line, err := channel.NewLineChannel(cc.Name, cc.Secret, cc.Token, cc.APIBase, nil)
			if err != nil {
				return nil, a.fail(err)
			}
			a.Channels[cc.Name] = line
		default:
			a.Channels[cc.Name] = channel.NewDummyChannel(cc.Name, logger)
		}
	}

	if a.Store, err = event.NewMemoryStore(cfg.Store.Capacity); err != nil {
		return nil, a.fail(fmt.Errorf("creating event store: %w", err))
	}
	return a, nil
}

func newCalendarBackend(ctx context.Context, cfg config.CalendarConfig, loc *time.Location) (calendar.Backend, error) {
	if cfg.Backend != "google" {
		return calendar.NewMemoryBackend(), nil
	}
	b, err := calendar.NewGoogleBackend(ctx, cfg.CalendarID, loc, credentials(cfg.CredentialsFile)...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar backend: %w", err)
	}
	return b, nil
}

func (a *App) newLedger(ctx context.Context, cfg config.ExpenseConfig) (expense.Ledger, error) {
	if cfg.Backend == "sheets" {
		l, err := expense.NewSheetsLedger(ctx, cfg.SpreadsheetID, cfg.Template, credentials(cfg.CredentialsFile)...)
		if err != nil {
			return nil, fmt.Errorf("creating sheets ledger: %w", err)
		}
		return l, nil
	}
	l, err := expense.OpenSQLite(cfg.Path, cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("opening expense ledger: %w", err)
	}
	a.closers = append(a.closers, l)
	return l, nil
}

func credentials(file string) []option.ClientOption {
	if file == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(file)}
}

// newAgent builds the agent for one domain. The domain name is also the
// prompt template name.
func (a *App) newAgent(name string, provider llm.Provider, skills skill.Table, opts ...agent.Option) (*agent.Agent, error) {
	tmpl, err := a.Prompts.MustGet(name)
	if err != nil {
		return nil, err
	}
	p := parser.New(provider, tmpl, a.Logger.With("component", "parser", "agent", name))
	ag := agent.New(name, p, skills, a.Logger, append([]agent.Option{agent.WithMetrics(a.Metrics)}, opts...)...)
	a.agents = append(a.agents, ag)
	return ag, nil
}

// fail releases what New opened so far and returns err.
func (a *App) fail(err error) error {
	return errors.Join(err, a.Close())
}

// Skills lists every registered skill by domain, sorted by name.
func (a *App) Skills() []types.SkillInfo {
	var out []types.SkillInfo
	for _, ag := range a.agents {
		for _, name := range ag.Skills() {
			out = append(out, types.SkillInfo{Name: name, Domain: ag.Name()})
		}
	}
	return sortSkills(out)
}

// Catalog lists the skills every deployment registers without building
// any backend.
func Catalog() []types.SkillInfo {
	var out []types.SkillInfo
	for domain, t := range map[string]skill.Table{
		"calendar": calendar.Skills(nil),
		"expense":  expense.Skills(nil),
	} {
		for _, name := range t.Names() {
			out = append(out, types.SkillInfo{Name: name, Domain: domain})
		}
	}
	return sortSkills(out)
}

func sortSkills(s []types.SkillInfo) []types.SkillInfo {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Domain != s[j].Domain {
			return s[i].Domain < s[j].Domain
		}
		return s[i].Name < s[j].Name
	})
	return s
}

// Server builds the HTTP server over the App.
func (a *App) Server() (*server.Server, error) {
	return server.NewServer(a.Config, server.Deps{
		Store:     a.Store,
		Channels:  a.Channels,
		Responder: a.Router,
		Skills:    a.Skills(),
		Logger:    a.Logger,
		Metrics:   a.Metrics,
		Gatherer:  a.Registry,
	})
}

// Reporter builds the digest sender for the configured report channel.
func (a *App) Reporter() (*report.Reporter, error) {
	ch, ok := a.Channels[a.Config.Report.Channel]
	if !ok {
		return nil, fmt.Errorf("report channel %q not configured", a.Config.Report.Channel)
	}
	return report.New(a.Calendar, ch, a.Config.Report.Target, a.Logger.With("component", "report")), nil
}

// Close releases open ledgers.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
