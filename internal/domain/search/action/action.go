// Package action resolves "field__action" keys used by queries and filters.
package action

import (
	"slices"
	"strings"
)

// DefaultDelimiter separates a field name from its action suffix.
const DefaultDelimiter = "__"

// OrKey groups nested pairs into a disjunction.
const OrKey = "or_"

// Action is the suffix of a field key selecting the clause kind.
type Action string

// Field actions.
const (
	None        Action = ""
	Term        Action = "term"
	In          Action = "in"
	StartsWith  Action = "startswith"
	Prefix      Action = "prefix"
	Text        Action = "text"
	TextPhrase  Action = "text_phrase"
	Fuzzy       Action = "fuzzy"
	QueryString Action = "query_string"
	GT          Action = "gt"
	GTE         Action = "gte"
	LT          Action = "lt"
	LTE         Action = "lte"
)

// IsRange reports whether the action is one of gt, gte, lt, lte.
func (a Action) IsRange() bool {
	return a == GT || a == GTE || a == LT || a == LTE
}

// Split breaks key on the last delimiter into field and action.
// A key without the delimiter has no action.
func Split(key, delimiter string) (string, Action) {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	i := strings.LastIndex(key, delimiter)
	if i < 0 {
		return key, None
	}
	return key[:i], Action(key[i+len(delimiter):])
}

// Pair is a single "field[__action]" = value argument.
type Pair struct {
	Key   string
	Value any
}

// Pairs is an ordered list of field-action arguments.
type Pairs []Pair

// Clone returns a copy that does not share the backing array.
func (p Pairs) Clone() Pairs {
	if p == nil {
		return nil
	}
	out := make(Pairs, len(p))
	copy(out, p)
	return out
}

// Nested returns the value as Pairs when it holds nested arguments.
func Nested(v any) (Pairs, bool) {
	switch n := v.(type) {
	case Pairs:
		return n, true
	case []Pair:
		return Pairs(n), true
	case map[string]any:
		// Map order is not stable; keys are applied in sorted order.
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		out := make(Pairs, 0, len(n))
		for _, k := range keys {
			out = append(out, Pair{Key: k, Value: n[k]})
		}
		return out, true
	}
	return nil, false
}
