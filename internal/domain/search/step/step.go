// Package step records builder operations for later compilation.
package step

import (
	"maps"
	"slices"

	"github.com/kailas-cloud/searchkit/internal/domain/search/action"
	"github.com/kailas-cloud/searchkit/internal/domain/search/filter"
)

// Action names a recorded builder operation.
type Action string

// Step actions.
const (
	ESConfig   Action = "es_config"
	ESBuilder  Action = "es_builder"
	Indexes    Action = "indexes"
	Doctypes   Action = "doctypes"
	Explain    Action = "explain"
	ValuesList Action = "values_list"
	ValuesDict Action = "values_dict"
	OrderBy    Action = "order_by"
	Query      Action = "query"
	Filter     Action = "filter"
	Demote     Action = "demote"
	Facet      Action = "facet"
	FacetRaw   Action = "facet_raw"
	Highlight  Action = "highlight"
	// Boost is consumed by the builder and ignored by the compiler.
	Boost Action = "boost"
)

// Step is a single recorded operation.
type Step struct {
	Action Action
	Value  any
}

// List is an append-only sequence of steps.
type List []Step

// With returns a copy of l with s appended. l is never modified.
func (l List) With(s Step) List {
	out := make(List, len(l), len(l)+1)
	copy(out, l)
	return append(out, s)
}

// Last returns the most recent step with one of the given actions.
func (l List) Last(actions ...Action) (Step, bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if slices.Contains(actions, l[i].Action) {
			return l[i], true
		}
	}
	return Step{}, false
}

// Strings returns the value of the most recent step with the given action
// when it holds a string list.
func (l List) Strings(a Action) ([]string, bool) {
	s, ok := l.Last(a)
	if !ok {
		return nil, false
	}
	v, ok := s.Value.([]string)
	return v, ok
}

// FilterValue is the payload of a filter step: pre-built expressions
// followed by field-action pairs.
type FilterValue struct {
	Exprs []filter.Expression
	Pairs action.Pairs
}

// DemoteValue is the payload of a demote step.
type DemoteValue struct {
	Amount float64
	Pairs  action.Pairs
}

// FacetValue is the payload of a facet step.
type FacetValue struct {
	Fields []string
	// Global scopes the facets to the whole index. It wins over Filtered.
	Global bool
	// Filtered restricts the facets with the final filter document.
	Filtered bool
}

// HighlightValue is the payload of a highlight step.
type HighlightValue struct {
	Fields []string
	// Clear drops every previously requested highlight field.
	Clear   bool
	Options map[string]any
}

// Clone returns a deep copy of the option map and fields.
func (h HighlightValue) Clone() HighlightValue {
	return HighlightValue{
		Fields:  slices.Clone(h.Fields),
		Clear:   h.Clear,
		Options: maps.Clone(h.Options),
	}
}
