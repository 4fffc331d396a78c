package query

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ErrBindVarConflict is returned when two query fragments bind the same
// parameter name to different values.
var ErrBindVarConflict = errors.New("bind variable conflict")

// Query is a query text plus the values bound to its parameters.
// The text is opaque to this module; fragments are composed by plain
// concatenation and bind variable union.
type Query struct {
	Text     string         `json:"query"`
	BindVars map[string]any `json:"bindVars,omitempty"`
}

// New builds a Query. The bind variable map is copied.
func New(text string, bindVars map[string]any) Query {
	q := Query{Text: text}
	if len(bindVars) > 0 {
		q.BindVars = make(map[string]any, len(bindVars))
		for k, v := range bindVars {
			q.BindVars[k] = v
		}
	}
	return q
}

// IsEmpty reports whether the query has no text.
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.Text) == ""
}

// String implements fmt.Stringer.
func (q Query) String() string {
	if len(q.BindVars) == 0 {
		return q.Text
	}
	names := make([]string, 0, len(q.BindVars))
	for name := range q.BindVars {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("@%s=%v", name, q.BindVars[name])
	}
	return q.Text + " [" + strings.Join(parts, " ") + "]"
}

// Executor runs a query against the store and returns its rows in order.
type Executor interface {
	Execute(ctx context.Context, q Query) ([]any, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, q Query) ([]any, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, q Query) ([]any, error) {
	return f(ctx, q)
}

// MergeBindVars returns the union of the given bind variable sets.
// A name bound twice must carry the same value.
func MergeBindVars(sets ...map[string]any) (map[string]any, error) {
	var out map[string]any
	for _, set := range sets {
		for name, value := range set {
			if out == nil {
				out = make(map[string]any)
			}
			if existing, ok := out[name]; ok && !reflect.DeepEqual(existing, value) {
				return nil, fmt.Errorf("%w: @%s", ErrBindVarConflict, name)
			}
			out[name] = value
		}
	}
	return out, nil
}

// Join concatenates the non empty fragments with sep and merges their bind
// variables.
func Join(sep string, parts ...Query) (Query, error) {
	texts := make([]string, 0, len(parts))
	sets := make([]map[string]any, 0, len(parts))
	for _, part := range parts {
		if part.IsEmpty() {
			continue
		}
		texts = append(texts, part.Text)
		sets = append(sets, part.BindVars)
	}

	bindVars, err := MergeBindVars(sets...)
	if err != nil {
		return Query{}, err
	}

	return Query{Text: strings.Join(texts, sep), BindVars: bindVars}, nil
}
