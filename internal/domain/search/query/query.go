// Package query turns field-action pairs into scoring query clauses.
package query

import (
	"fmt"

	"github.com/kailas-cloud/searchkit/internal/domain"
	"github.com/kailas-cloud/searchkit/internal/domain/search/action"
)

// Clause is a single query clause in wire form.
type Clause = map[string]any

// clauseNames maps value-style actions to their clause names.
var clauseNames = map[action.Action]string{
	action.None:       "term",
	action.Term:       "term",
	action.In:         "in",
	action.StartsWith: "prefix",
	action.Prefix:     "prefix",
	action.Text:       "text",
	action.TextPhrase: "text_phrase",
	action.Fuzzy:      "fuzzy",
}

// Clauses resolves pairs into clauses in pair order. An or_ group becomes a
// bool.should clause appended after the others.
func Clauses(pairs action.Pairs, boosts map[string]float64, delimiter string) ([]Clause, error) {
	out := make([]Clause, 0, len(pairs))
	var should []Clause

	for _, p := range pairs {
		field, act := action.Split(p.Key, delimiter)

		if field == action.OrKey && act == action.None {
			nested, ok := action.Nested(p.Value)
			if !ok {
				return nil, fmt.Errorf("query %q: expected nested pairs, got %T", p.Key, p.Value)
			}
			sub, err := Clauses(nested, boosts, delimiter)
			if err != nil {
				return nil, err
			}
			should = append(should, sub...)
			continue
		}

		c, err := clause(p.Key, field, act, p.Value, boosts)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	if len(should) > 0 {
		out = append(out, Clause{"bool": map[string]any{"should": toAny(should)}})
	}
	return out, nil
}

func clause(key, field string, act action.Action, value any, boosts map[string]float64) (Clause, error) {
	if name, ok := clauseNames[act]; ok {
		w, boostedOK := boost(boosts, key, field)
		return Clause{name: boosted(field, act, value, w, boostedOK)}, nil
	}

	switch {
	case act == action.QueryString:
		// Boosts for query_string live in the query text.
		return Clause{"query_string": map[string]any{
			"default_field": field,
			"query":         value,
		}}, nil
	case act.IsRange():
		bound := map[string]any{string(act): value}
		if w, ok := boost(boosts, key, field); ok {
			bound["boost"] = w
		}
		return Clause{"range": map[string]any{field: bound}}, nil
	}
	return nil, domain.NewInvalidFieldAction(key, string(act))
}

// boost looks up "field__action" first and falls back to "field".
func boost(boosts map[string]float64, key, field string) (float64, bool) {
	if w, ok := boosts[key]; ok {
		return w, true
	}
	w, ok := boosts[field]
	return w, ok
}

func boosted(field string, act action.Action, value any, w float64, ok bool) map[string]any {
	if !ok {
		return map[string]any{field: value}
	}
	valueKey := "value"
	if act == action.Text {
		valueKey = "query"
	}
	return map[string]any{field: map[string]any{
		"boost":  w,
		valueKey: value,
	}}
}

func toAny(cs []Clause) []any {
	out := make([]any, len(cs))
	for i := range cs {
		out[i] = cs[i]
	}
	return out
}
