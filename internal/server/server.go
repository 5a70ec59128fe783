package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/youmna-rabie/line-assistant/internal/config"
	"github.com/youmna-rabie/line-assistant/internal/event"
	"github.com/youmna-rabie/line-assistant/internal/metrics"
	"github.com/youmna-rabie/line-assistant/internal/router"
	"github.com/youmna-rabie/line-assistant/internal/types"
)

const maxBodySize = 1 << 20 // 1 MB

// Responder produces the replies for one message.
type Responder interface {
	Respond(ctx context.Context, text string) (router.Intent, []types.Message)
}

// Deps are the collaborators a Server needs.
type Deps struct {
	Store     event.Store
	Channels  map[string]types.Channel
	Responder Responder
	Skills    []types.SkillInfo
	Logger    *slog.Logger
	// Metrics and Gatherer are optional.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// Server receives webhooks, answers them through the Responder and exposes
// admin and health endpoints.
type Server struct {
	cfg       *config.Config
	store     event.Store
	channels  map[string]types.Channel
	responder Responder
	skills    []types.SkillInfo
	metrics   *metrics.Metrics
	seen      *lru.Cache[string, struct{}]
	router    chi.Router
	logger    *slog.Logger
	httpSrv   *http.Server
}

// NewServer creates a Server wired with the given dependencies.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	size := cfg.Dedupe.Size
	if size <= 0 {
		size = 2048
	}
	seen, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("creating dedupe cache: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		store:     deps.Store,
		channels:  deps.Channels,
		responder: deps.Responder,
		skills:    deps.Skills,
		metrics:   deps.Metrics,
		seen:      seen,
		logger:    deps.Logger,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logging(s.logger))
	r.Use(Recovery(s.logger))

	r.Post("/webhooks/{channel}", s.handleWebhook)
	r.Get("/health", s.handleHealth)
	r.Get("/admin/events", s.handleAdminEvents)
	r.Get("/admin/channels", s.handleAdminChannels)
	r.Get("/admin/skills", s.handleAdminSkills)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	s.router = r
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the configured host:port. It
// returns http.ErrServerClosed after Shutdown.
func (s *Server) ListenAndServe() error {
	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	s.logger.Info("server starting", "addr", addr)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// handleWebhook processes POST /webhooks/{channel}.
// Pipeline: read → validate → parse → per message: dedupe, gate, respond, reply.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	channelName := chi.URLParam(r, "channel")

	ch, ok := s.channels[channelName]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("unknown channel: %s", channelName),
		})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reading request body failed"})
		return
	}
	if len(body) > maxBodySize {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body exceeds 1MB limit"})
		return
	}

	if err := ch.ValidateRequest(r, body); err != nil {
		s.logger.Warn("webhook rejected", "channel", channelName, "error", err,
			"request_id", RequestIDFromContext(r.Context()))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	inbound, err := ch.ParseRequest(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	// Replies go out on their own connection; a dropped webhook request
	// must not cancel them.
	ctx := context.WithoutCancel(r.Context())
	for _, in := range inbound {
		s.handleMessage(ctx, channelName, ch, in)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

func (s *Server) handleMessage(ctx context.Context, channelName string, ch types.Channel, in types.Inbound) {
	ev := types.Event{
		ID:         newEventID(),
		DeliveryID: in.DeliveryID,
		ChannelID:  channelName,
		Source:     in.Source,
		SourceID:   in.SourceID,
		Text:       in.Text,
		Status:     types.EventStatusReceived,
		Timestamp:  in.Timestamp,
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	log := s.logger.With("channel", channelName, "event_id", ev.ID, "request_id", RequestIDFromContext(ctx))

	if err := s.store.Save(ev); err != nil {
		log.Error("failed to save event", "error", err)
	}
	finish := func(status types.EventStatus) {
		err := s.store.Update(ev.ID, func(stored *types.Event) {
			stored.Status = status
			stored.Intent = ev.Intent
			stored.Replies = ev.Replies
		})
		if err != nil {
			log.Warn("failed to update event", "status", status, "error", err)
		}
		s.metrics.WebhookEvent(channelName, string(status))
	}

	if in.DeliveryID != "" {
		key := channelName + "/" + in.DeliveryID
		if dup, _ := s.seen.ContainsOrAdd(key, struct{}{}); dup {
			log.Info("duplicate delivery skipped", "delivery_id", in.DeliveryID)
			finish(types.EventStatusDuplicate)
			return
		}
		// A delivery that panicked was never handled; let its redelivery through.
		defer func() {
			if p := recover(); p != nil {
				s.seen.Remove(key)
				panic(p)
			}
		}()
	}

	text, ok := s.gate(channelName, in)
	if !ok {
		finish(types.EventStatusIgnored)
		return
	}

	intent, msgs := s.responder.Respond(ctx, text)
	ev.Intent = string(intent)
	ev.Replies = len(msgs)
	if len(msgs) == 0 {
		log.Debug("no reply", "intent", intent)
		finish(types.EventStatusIgnored)
		return
	}

	if err := ch.Reply(ctx, in.ReplyToken, msgs); err != nil {
		log.Error("reply failed", "intent", intent, "replies", len(msgs), "error", err)
		finish(types.EventStatusFailed)
		return
	}
	log.Info("replied", "intent", intent, "replies", len(msgs))
	finish(types.EventStatusReplied)
}

// handleHealth responds to GET /health with a simple liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAdminEvents responds to GET /admin/events with recent events.
// Query parameters: channel, status, limit (default 50), offset.
func (s *Server) handleAdminEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := event.Filter{
		ChannelID: q.Get("channel"),
		Status:    types.EventStatus(q.Get("status")),
		Limit:     50,
	}
	var err error
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil || f.Limit < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if f.Offset, err = strconv.Atoi(v); err != nil || f.Offset < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
			return
		}
	}

	events, err := s.store.List(f)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list events",
		})
		return
	}
	if events == nil {
		events = []types.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
		"total":  s.store.Count(),
	})
}

// handleAdminChannels responds to GET /admin/channels with configured channels.
func (s *Server) handleAdminChannels(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string]any{
		"channels": names,
		"count":    len(names),
	})
}

// handleAdminSkills responds to GET /admin/skills with registered skills.
func (s *Server) handleAdminSkills(w http.ResponseWriter, _ *http.Request) {
	skills := s.skills
	if skills == nil {
		skills = []types.SkillInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"skills": skills,
		"count":  len(skills),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
