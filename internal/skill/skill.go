// Package skill defines the contract between the dispatcher and the
// domain operations it runs.
package skill

import (
	"context"
	"sort"

	"github.com/youmna-rabie/line-assistant/internal/types"
)

// Result is the uniform shape every skill call returns.
type Result struct {
	Success bool
	// Message explains a failure.
	Message string
	// Data is the skill's payload on success.
	Data any
}

// ErrorKind classifies why a skill could not produce a Result.
type ErrorKind int

const (
	// KindNone means the skill ran; its Result says whether it succeeded.
	KindNone ErrorKind = iota
	// KindParams means the arguments were missing or malformed.
	KindParams
	// KindExecution means the skill failed for any other reason.
	KindExecution
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindParams:
		return "params"
	case KindExecution:
		return "execution"
	default:
		return "unknown"
	}
}

// Outcome is what a skill invocation produced.
type Outcome struct {
	Kind   ErrorKind
	Result Result
	Err    error
}

// Succeeded returns an outcome carrying a successful result.
func Succeeded(data any) Outcome {
	return Outcome{Result: Result{Success: true, Data: data}}
}

// Failed returns an outcome carrying a result the backend rejected.
func Failed(message string, data any) Outcome {
	return Outcome{Result: Result{Message: message, Data: data}}
}

// BadParams returns a parameter-error outcome.
func BadParams(err error) Outcome {
	return Outcome{Kind: KindParams, Err: err}
}

// Broken returns an execution-error outcome.
func Broken(err error) Outcome {
	return Outcome{Kind: KindExecution, Err: err}
}

// Skill is one named operation against an external backend.
type Skill interface {
	Name() string
	// Execute validates args and runs the operation.
	Execute(ctx context.Context, args Args) Outcome
	// Present turns a Result into reply messages.
	Present(res Result) []types.Message
}

// Table maps skill names to skills. It is built at startup and read-only
// afterwards.
type Table map[string]Skill

// NewTable registers skills under their own names.
func NewTable(skills ...Skill) Table {
	t := make(Table, len(skills))
	for _, s := range skills {
		t[s.Name()] = s
	}
	return t
}

// Alias registers an existing skill under an additional name.
func (t Table) Alias(alias, name string) {
	if s, ok := t[name]; ok {
		t[alias] = s
	}
}

// Lookup returns the skill registered under name.
func (t Table) Lookup(name string) (Skill, bool) {
	s, ok := t[name]
	return s, ok
}

// Names returns the registered names, aliases included, sorted.
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
