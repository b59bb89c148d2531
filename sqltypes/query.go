package sqltypes

import (
	"fmt"
	"strings"
)

// ParameterizedQuery is an immutable template of literal text fragments
// interleaved with ordered parameter slots. For N parameters there are
// always N+1 fragments; the rendered statement is
//
//	fragments[0] @p1 fragments[1] @p2 ... @pN fragments[N]
//
// Construct one per call site and discard it after execution.
type ParameterizedQuery struct {
	fragments []string
	params    []Value
}

// NewQuery builds a ParameterizedQuery from literal fragments and the
// parameters that sit between them. Construction fails when
// len(fragments) != len(params)+1, or when a raw parameter's host type has
// no entry in the inference table.
func NewQuery(fragments []string, params ...interface{}) (*ParameterizedQuery, error) {
	if len(fragments) != len(params)+1 {
		return nil, fmt.Errorf("sqltypes: query needs %d fragments for %d parameters, got %d",
			len(params)+1, len(params), len(fragments))
	}
	typed := make([]Value, len(params))
	for i, p := range params {
		v, err := Infer(p)
		if err != nil {
			return nil, fmt.Errorf("sqltypes: parameter %d: %w", i+1, err)
		}
		typed[i] = v
	}
	q := &ParameterizedQuery{
		fragments: append([]string(nil), fragments...),
		params:    typed,
	}
	return q, nil
}

// Compose builds a ParameterizedQuery from an alternating sequence of
// string literals and parameter values, merging adjacent literals. It is a
// convenience over NewQuery for call sites assembled piecewise:
//
//	q, err := sqltypes.Compose("SELECT * FROM users WHERE id = ", 42, " AND name = ", sqltypes.NVarchar("bob"))
func Compose(parts ...interface{}) (*ParameterizedQuery, error) {
	fragments := []string{""}
	var params []interface{}
	for _, part := range parts {
		if s, ok := part.(string); ok {
			fragments[len(fragments)-1] += s
			continue
		}
		params = append(params, part)
		fragments = append(fragments, "")
	}
	return NewQuery(fragments, params...)
}

// Statement builds a query with no parameters from raw SQL text.
func Statement(text string) *ParameterizedQuery {
	return &ParameterizedQuery{fragments: []string{text}}
}

// SQL renders the statement text with positional @pN placeholders in
// declaration order.
func (q *ParameterizedQuery) SQL() string {
	if len(q.params) == 0 {
		return q.fragments[0]
	}
	var sb strings.Builder
	for i, frag := range q.fragments {
		sb.WriteString(frag)
		if i < len(q.params) {
			fmt.Fprintf(&sb, "@p%d", i+1)
		}
	}
	return sb.String()
}

// Parameters returns the typed parameter values in declaration order.
// The returned slice is a copy; the query itself stays immutable.
func (q *ParameterizedQuery) Parameters() []Value {
	return append([]Value(nil), q.params...)
}

// Fragments returns the literal text fragments in source order.
func (q *ParameterizedQuery) Fragments() []string {
	return append([]string(nil), q.fragments...)
}

// String returns the rendered statement text for logging. Parameter values
// are never included.
func (q *ParameterizedQuery) String() string {
	return q.SQL()
}
