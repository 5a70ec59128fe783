package llm

import (
	"context"
	"log/slog"
	"sync"
)

// StubProvider is a Provider that returns canned responses and records
// each prompt it receives. Useful for testing and development.
type StubProvider struct {
	Logger *slog.Logger
	// Responses are returned in order; the last one repeats.
	Responses []string
	// Err, when set, is returned instead of a response.
	Err error

	mu      sync.Mutex
	prompts []string
}

func (s *StubProvider) Name() string {
	return "stub"
}

// Generate logs the prompt and returns the next canned response.
func (s *StubProvider) Generate(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.prompts)
	s.prompts = append(s.prompts, prompt)
	if s.Logger != nil {
		s.Logger.Debug("stub generate", "call", n+1, "prompt_len", len(prompt))
	}

	if s.Err != nil {
		return "", s.Err
	}
	if len(s.Responses) == 0 {
		return "", nil
	}
	if n >= len(s.Responses) {
		n = len(s.Responses) - 1
	}
	return s.Responses[n], nil
}

// Prompts returns every prompt received so far.
func (s *StubProvider) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}
