package skill

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrParams is the sentinel matched by every ParamError.
var ErrParams = errors.New("invalid skill arguments")

// ParamError reports a missing or malformed argument.
type ParamError struct {
	Field  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("argument %q: %s", e.Field, e.Reason)
}

func (e *ParamError) Is(target error) bool {
	return target == ErrParams
}

// Args is a normalized argument map as produced by the language model.
type Args map[string]any

// Has reports whether key is present with a non-nil value.
func (a Args) Has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}

// String returns a required string argument. Numbers are formatted.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", &ParamError{Field: key, Reason: "is required"}
	}
	s, ok := scalarString(v)
	if !ok {
		return "", &ParamError{Field: key, Reason: fmt.Sprintf("must be a string, got %T", v)}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &ParamError{Field: key, Reason: "is empty"}
	}
	return s, nil
}

// OptString returns an optional string argument or def.
func (a Args) OptString(key, def string) (string, error) {
	if !a.Has(key) {
		return def, nil
	}
	s, ok := scalarString(a[key])
	if !ok {
		return "", &ParamError{Field: key, Reason: fmt.Sprintf("must be a string, got %T", a[key])}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	return s, nil
}

// Int returns a required integer argument. Whole floats and numeric
// strings such as "1,200" are accepted.
func (a Args) Int(key string) (int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, &ParamError{Field: key, Reason: "is required"}
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, &ParamError{Field: key, Reason: "must be a whole number"}
		}
		if math.Abs(n) > math.MaxInt32 {
			return 0, &ParamError{Field: key, Reason: "is out of range"}
		}
		return int(n), nil
	case string:
		clean := strings.NewReplacer(",", "", " ", "").Replace(strings.TrimSpace(n))
		i, err := strconv.Atoi(clean)
		if err != nil {
			return 0, &ParamError{Field: key, Reason: fmt.Sprintf("%q is not a number", n)}
		}
		return i, nil
	default:
		return 0, &ParamError{Field: key, Reason: fmt.Sprintf("must be a number, got %T", v)}
	}
}

// List returns a list argument whose elements are argument maps.
func (a Args) List(key string) ([]Args, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, &ParamError{Field: key, Reason: "is required"}
	}
	items, ok := v.([]any)
	if !ok {
		return nil, &ParamError{Field: key, Reason: fmt.Sprintf("must be a list, got %T", v)}
	}
	out := make([]Args, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, &ParamError{Field: fmt.Sprintf("%s[%d]", key, i), Reason: "must be an object"}
		}
		out = append(out, Args(m))
	}
	return out, nil
}

func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return "", false
	}
}
