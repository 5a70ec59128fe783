package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/youmna-rabie/line-assistant/internal/channel"
	"github.com/youmna-rabie/line-assistant/internal/config"
	"github.com/youmna-rabie/line-assistant/internal/event"
	"github.com/youmna-rabie/line-assistant/internal/metrics"
	"github.com/youmna-rabie/line-assistant/internal/router"
	"github.com/youmna-rabie/line-assistant/internal/types"
)

// stubResponder answers every message with a fixed intent and replies, and
// records the texts it was asked about.
type stubResponder struct {
	intent router.Intent
	msgs   []types.Message

	mu     sync.Mutex
	texts  []string
	panics int
}

func (s *stubResponder) Respond(_ context.Context, text string) (router.Intent, []types.Message) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	boom := s.panics > 0
	if boom {
		s.panics--
	}
	s.mu.Unlock()
	if boom {
		panic("responder exploded")
	}
	return s.intent, s.msgs
}

func (s *stubResponder) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type fixture struct {
	srv       *Server
	store     *event.MemoryStore
	dummy     *channel.DummyChannel
	responder *stubResponder
	line      *httptest.Server

	mu        sync.Mutex
	lineCalls []string
}

func (f *fixture) replies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lineCalls...)
}

// testSetup creates a Server with a dummy channel, a LINE channel pointed at
// a fake API, a stub responder, and an in-memory store.
func testSetup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}

	f.line = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.lineCalls = append(f.lineCalls, string(body))
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "{}")
	}))
	t.Cleanup(f.line.Close)

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Channels: []config.ChannelConfig{
			{Name: "dummy", Type: "dummy", WakeWord: "bot"},
			{Name: "line", Type: "line", Secret: "s3cret", Token: "tok", WakeWord: "bot"},
		},
		Dedupe: config.DedupeConfig{Size: 16},
	}

	store, err := event.NewMemoryStore(100)
	if err != nil {
		t.Fatal(err)
	}
	f.store = store

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.dummy = channel.NewDummyChannel("dummy", logger)
	f.responder = &stubResponder{
		intent: router.Calendar,
		msgs:   []types.Message{types.TextMessage("✅ Event created")},
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		t.Fatal(err)
	}

	line, err := channel.NewLineChannel("line", "s3cret", "tok", f.line.URL, f.line.Client())
	if err != nil {
		t.Fatal(err)
	}

	srv, err := NewServer(cfg, Deps{
		Store: store,
		Channels: map[string]types.Channel{
			"dummy": f.dummy,
			"line":  line,
		},
		Responder: f.responder,
		Skills: []types.SkillInfo{
			{Name: "create_event", Domain: "calendar"},
			{Name: "add_expense", Domain: "expense"},
		},
		Logger:   logger,
		Metrics:  m,
		Gatherer: reg,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.srv = srv
	return f
}

func (f *fixture) post(t *testing.T, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) events(t *testing.T) []types.Event {
	t.Helper()
	events, err := f.store.List(event.Filter{Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	return events
}

// --- Health endpoint ---

func TestHealthEndpoint(t *testing.T) {
	f := testSetup(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	f.srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %q", body["status"])
	}
}

// --- Webhook pipeline ---

func TestWebhookPipeline(t *testing.T) {
	f := testSetup(t)

	rec := f.post(t, "/webhooks/dummy", `{"id":"d1","text":"meeting tomorrow 3pm"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "OK" {
		t.Fatalf("expected body OK, got %q", rec.Body.String())
	}

	sent := f.dummy.Sent()
	if len(sent) != 1 || len(sent[0].Messages) != 1 {
		t.Fatalf("expected one reply with one message, got %+v", sent)
	}
	if sent[0].Messages[0].Text != "✅ Event created" {
		t.Fatalf("unexpected reply %q", sent[0].Messages[0].Text)
	}

	events := f.events(t)
	if len(events) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(events))
	}
	ev := events[0]
	if ev.Status != types.EventStatusReplied {
		t.Fatalf("expected status replied, got %s", ev.Status)
	}
	if ev.Intent != string(router.Calendar) {
		t.Fatalf("unexpected intent %q", ev.Intent)
	}
	if ev.Replies != 1 || ev.DeliveryID != "d1" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestWebhookUnknownChannel(t *testing.T) {
	f := testSetup(t)

	rec := f.post(t, "/webhooks/unknown", `{}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestWebhookWrongMethod(t *testing.T) {
	f := testSetup(t)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/dummy", nil)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	// chi returns 405 for wrong method on a route that only has Post
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestWebhookMalformedBody(t *testing.T) {
	f := testSetup(t)

	rec := f.post(t, "/webhooks/dummy", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(f.responder.Texts()) != 0 {
		t.Fatal("responder must not run for a malformed body")
	}
}

func TestWebhookBodyTooLarge(t *testing.T) {
	f := testSetup(t)

	rec := f.post(t, "/webhooks/dummy", strings.Repeat("x", maxBodySize+1))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	f := testSetup(t)

	for i := 0; i < 2; i++ {
		if rec := f.post(t, "/webhooks/dummy", `{"id":"same","text":"hello"}`); rec.Code != http.StatusOK {
			t.Fatalf("post %d: expected 200, got %d", i, rec.Code)
		}
	}

	if n := len(f.responder.Texts()); n != 1 {
		t.Fatalf("expected responder to run once, ran %d times", n)
	}
	events := f.events(t)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Status != types.EventStatusDuplicate {
		t.Fatalf("expected newest event duplicate, got %s", events[0].Status)
	}
}

func TestWebhookRedeliveryAfterPanic(t *testing.T) {
	f := testSetup(t)
	f.responder.panics = 1

	if rec := f.post(t, "/webhooks/dummy", `{"id":"again","text":"hello"}`); rec.Code != http.StatusInternalServerError {
		t.Fatalf("first post: expected 500, got %d", rec.Code)
	}
	if rec := f.post(t, "/webhooks/dummy", `{"id":"again","text":"hello"}`); rec.Code != http.StatusOK {
		t.Fatalf("redelivery: expected 200, got %d", rec.Code)
	}

	if n := len(f.responder.Texts()); n != 2 {
		t.Fatalf("expected responder to run twice, ran %d times", n)
	}
	if sent := f.dummy.Sent(); len(sent) != 1 {
		t.Fatalf("expected redelivery to be answered once, got %d replies", len(sent))
	}
	if events := f.events(t); events[0].Status != types.EventStatusReplied {
		t.Fatalf("expected redelivery replied, got %s", events[0].Status)
	}
}

func TestWebhookWakeWord(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantText string
		status   types.EventStatus
	}{
		{"direct message passes", `{"id":"1","text":"lunch 120"}`, "lunch 120", types.EventStatusReplied},
		{"group without wake word", `{"id":"2","text":"lunch 120","source":"group"}`, "", types.EventStatusIgnored},
		{"group with wake word", `{"id":"3","text":"bot  lunch 120","source":"group"}`, "lunch 120", types.EventStatusReplied},
		{"room with wake word", `{"id":"4","text":"bot list","source":"room"}`, "list", types.EventStatusReplied},
		{"wake word alone", `{"id":"5","text":"bot","source":"group"}`, "", types.EventStatusIgnored},
		{"empty direct message", `{"id":"6","text":"   "}`, "", types.EventStatusIgnored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testSetup(t)
			if rec := f.post(t, "/webhooks/dummy", tt.body); rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}

			texts := f.responder.Texts()
			if tt.wantText == "" {
				if len(texts) != 0 {
					t.Fatalf("expected no responder call, got %q", texts)
				}
			} else if len(texts) != 1 || texts[0] != tt.wantText {
				t.Fatalf("expected responder text %q, got %q", tt.wantText, texts)
			}
			if got := f.events(t)[0].Status; got != tt.status {
				t.Fatalf("expected status %s, got %s", tt.status, got)
			}
		})
	}
}

func TestWebhookChatIsSilent(t *testing.T) {
	f := testSetup(t)
	f.responder.intent = router.Chat
	f.responder.msgs = nil

	if rec := f.post(t, "/webhooks/dummy", `{"id":"c1","text":"how are you"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if sent := f.dummy.Sent(); len(sent) != 0 {
		t.Fatalf("expected no reply, got %+v", sent)
	}
	ev := f.events(t)[0]
	if ev.Status != types.EventStatusIgnored || ev.Intent != string(router.Chat) {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestWebhookReplyFailure(t *testing.T) {
	f := testSetup(t)
	// More messages than a reply may carry makes the channel refuse it.
	f.responder.msgs = make([]types.Message, channel.MaxMessages+1)
	for i := range f.responder.msgs {
		f.responder.msgs[i] = types.TextMessage("x")
	}

	if rec := f.post(t, "/webhooks/dummy", `{"id":"f1","text":"hi"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := f.events(t)[0].Status; got != types.EventStatusFailed {
		t.Fatalf("expected status failed, got %s", got)
	}
}

const lineBody = `{"destination":"U0","events":[{"type":"message","webhookEventId":"w1","replyToken":"rt1",
"timestamp":1735696800000,"source":{"type":"user","userId":"U1"},"message":{"type":"text","text":"lunch 120"}}]}`

func TestWebhookLineSigned(t *testing.T) {
	f := testSetup(t)

	rec := f.post(t, "/webhooks/line", lineBody, channel.SignatureHeader, channel.Sign("s3cret", []byte(lineBody)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	calls := f.replies()
	if len(calls) != 1 {
		t.Fatalf("expected one reply call, got %d", len(calls))
	}
	if !strings.Contains(calls[0], `"replyToken":"rt1"`) {
		t.Fatalf("reply did not carry the token: %s", calls[0])
	}
}

func TestWebhookLineBadSignature(t *testing.T) {
	f := testSetup(t)

	rec := f.post(t, "/webhooks/line", lineBody, channel.SignatureHeader, channel.Sign("wrong", []byte(lineBody)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(f.responder.Texts()) != 0 || len(f.replies()) != 0 {
		t.Fatal("a rejected webhook must not be processed")
	}
	if f.store.Count() != 0 {
		t.Fatal("a rejected webhook must not be stored")
	}
}

// --- Admin endpoints ---

func TestAdminEventsEmpty(t *testing.T) {
	f := testSetup(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/events", nil)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["count"].(float64) != 0 {
		t.Fatalf("expected 0 events, got %v", body["count"])
	}
}

func TestAdminEventsFilter(t *testing.T) {
	f := testSetup(t)

	f.post(t, "/webhooks/dummy", `{"id":"a","text":"one"}`)
	f.post(t, "/webhooks/dummy", `{"id":"b","text":"two","source":"group"}`)
	f.post(t, "/webhooks/dummy", `{"id":"c","text":"three"}`)

	tests := []struct {
		query string
		want  float64
	}{
		{"", 3},
		{"?status=replied", 2},
		{"?status=ignored", 1},
		{"?channel=line", 0},
		{"?limit=1", 1},
		{"?offset=2", 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/events"+tt.query, nil)
			rec := httptest.NewRecorder()
			f.srv.ServeHTTP(rec, req)

			var body map[string]any
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body["count"].(float64) != tt.want {
				t.Fatalf("expected %v events, got %v", tt.want, body["count"])
			}
		})
	}
}

func TestAdminEventsBadQuery(t *testing.T) {
	f := testSetup(t)

	for _, q := range []string{"?limit=abc", "?offset=-1"} {
		req := httptest.NewRequest(http.MethodGet, "/admin/events"+q, nil)
		rec := httptest.NewRecorder()
		f.srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestAdminChannels(t *testing.T) {
	f := testSetup(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/channels", nil)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	channels := body["channels"].([]any)
	if len(channels) != 2 || channels[0] != "dummy" || channels[1] != "line" {
		t.Fatalf("unexpected channels %v", channels)
	}
}

func TestAdminSkills(t *testing.T) {
	f := testSetup(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/skills", nil)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["count"].(float64) != 2 {
		t.Fatalf("expected 2 skills, got %v", body["count"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := testSetup(t)
	f.post(t, "/webhooks/dummy", `{"id":"m1","text":"hi"}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `assistant_webhook_events_total{channel="dummy",status="replied"} 1`) {
		t.Fatalf("metrics output missing webhook counter:\n%s", rec.Body.String())
	}
}

// --- Middleware ---

func TestRequestIDMiddleware(t *testing.T) {
	f := testSetup(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header to be set")
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	f := testSetup(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "test-id-123")
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	if rid := rec.Header().Get("X-Request-ID"); rid != "test-id-123" {
		t.Fatalf("expected X-Request-ID test-id-123, got %q", rid)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), requestIDKey, "test-recovery"))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "internal server error" {
		t.Fatalf("expected internal server error, got %q", body["error"])
	}
}

// --- Response format ---

func TestResponsesAreJSON(t *testing.T) {
	f := testSetup(t)

	for _, path := range []string{"/health", "/admin/events", "/admin/channels", "/admin/skills"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			f.srv.ServeHTTP(rec, req)

			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected Content-Type application/json, got %q", ct)
			}
		})
	}
}
