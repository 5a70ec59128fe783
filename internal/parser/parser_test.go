package parser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/youmna-rabie/line-assistant/internal/llm"
	"github.com/youmna-rabie/line-assistant/internal/prompt"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n[1]\n```  ", "[1]"},
		{"  {\"a\":1}  ", `{"a":1}`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StripFences(tt.in); got != tt.want {
			t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantKind  PayloadKind
		wantSkill []string
	}{
		{"single object", `{"skill":"create_event","args":{"title":"Meeting"}}`, Single, []string{"create_event"}},
		{"array", `[{"skill":"list_events","args":{}},{"skill":"delete_event","args":{}}]`, Batch, []string{"list_events", "delete_event"}},
		{"empty array", `[]`, Batch, nil},
		{"fenced", "```json\n{\"skill\":\"list_events\",\"args\":{}}\n```", Single, []string{"list_events"}},
		{"missing args", `{"skill":"list_events"}`, Single, []string{"list_events"}},
		{"legacy record", `{"action":"RECORD","data":{"amount":120}}`, Single, []string{"add_expense"}},
		{"legacy query", `{"action":"QUERY","params":{"start_date":"2025-01-01"}}`, Single, []string{"query_expenses"}},
		{"trailing comma", `{"skill":"list_events","args":{"time_min":"2025-01-01"},}`, Single, []string{"list_events"}},
		{"string top level", `"hello"`, Malformed, nil},
		{"number top level", `42`, Malformed, nil},
		{"array of scalars", `[1,2]`, Malformed, nil},
		{"no skill", `{"args":{}}`, Malformed, nil},
		{"args not object", `{"skill":"x","args":[1]}`, Malformed, nil},
		{"unknown legacy verb", `{"action":"DELETE"}`, Malformed, nil},
		{"empty", "```json\n```", Malformed, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Decode(tt.raw)
			if p.Kind != tt.wantKind {
				t.Fatalf("Kind = %v, want %v (err %v)", p.Kind, tt.wantKind, p.Err)
			}
			if p.Kind == Malformed {
				if p.Err == nil {
					t.Error("Malformed payload should carry an error")
				}
				return
			}
			if len(p.Actions) != len(tt.wantSkill) {
				t.Fatalf("got %d actions, want %d", len(p.Actions), len(tt.wantSkill))
			}
			for i, want := range tt.wantSkill {
				if p.Actions[i].Skill != want {
					t.Errorf("action[%d] = %q, want %q", i, p.Actions[i].Skill, want)
				}
				if p.Actions[i].Args == nil {
					t.Errorf("action[%d] args is nil", i)
				}
			}
		})
	}
}

func TestDecodeLegacyArgs(t *testing.T) {
	p := Decode(`{"action":"record","data":{"item":"Lunch","amount":120}}`)
	if p.Kind != Single {
		t.Fatalf("Kind = %v", p.Kind)
	}
	if p.Actions[0].Args["item"] != "Lunch" {
		t.Errorf("args = %v", p.Actions[0].Args)
	}
}

func newParser(provider llm.Provider, text string) *Parser {
	return New(provider, prompt.Template{Name: "calendar", Text: text}, testLogger())
}

func TestParse(t *testing.T) {
	stub := &llm.StubProvider{Responses: []string{"```json\n[{\"skill\":\"list_events\",\"args\":{\"time_min\":\"2025-01-01T00:00:00+08:00\"}}]\n```"}}
	p := newParser(stub, "Now: {{CURRENT_TIME}}\nInput: {{USER_INPUT}}")

	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.FixedZone("CST", 8*3600))
	actions, err := p.Parse(context.Background(), "what's on today", now)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(actions) != 1 || actions[0].Skill != "list_events" {
		t.Fatalf("actions = %+v", actions)
	}

	prompts := stub.Prompts()
	if len(prompts) != 1 {
		t.Fatalf("model called %d times, want 1", len(prompts))
	}
	if !strings.Contains(prompts[0], "2025-01-01T09:00:00+08:00") || !strings.Contains(prompts[0], "what's on today") {
		t.Errorf("prompt not filled: %q", prompts[0])
	}
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider *llm.StubProvider
		template string
	}{
		{"garbage", &llm.StubProvider{Responses: []string{"Sorry, I cannot help with that."}}, "{{USER_INPUT}}"},
		{"model error", &llm.StubProvider{Err: errors.New("quota exceeded")}, "{{USER_INPUT}}"},
		{"wrong shape", &llm.StubProvider{Responses: []string{"[1, 2, 3]"}}, "{{USER_INPUT}}"},
		{"empty template", &llm.StubProvider{Responses: []string{"[]"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions, err := newParser(tt.provider, tt.template).Parse(context.Background(), "hi", time.Now())
			if !errors.Is(err, ErrUnparsable) {
				t.Fatalf("error = %v, want ErrUnparsable", err)
			}
			if actions == nil || len(actions) != 0 {
				t.Errorf("actions = %v, want empty non-nil slice", actions)
			}
		})
	}
}

func TestParseNoRetry(t *testing.T) {
	stub := &llm.StubProvider{Err: errors.New("timeout")}
	_, _ = newParser(stub, "{{USER_INPUT}}").Parse(context.Background(), "hi", time.Now())
	if n := len(stub.Prompts()); n != 1 {
		t.Errorf("model called %d times, want 1", n)
	}
}

func TestParseZeroActions(t *testing.T) {
	stub := &llm.StubProvider{Responses: []string{"[]"}}
	actions, err := newParser(stub, "{{USER_INPUT}}").Parse(context.Background(), "hi", time.Now())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(actions) != 0 {
		t.Errorf("actions = %v, want none", actions)
	}
}
