package searchkit

import (
	"github.com/kailas-cloud/searchkit/internal/domain/search/action"
	"github.com/kailas-cloud/searchkit/internal/domain/search/filter"
)

// Pair is a field-action key and its value, e.g. P("price__gte", 10).
// Pairs keep the order they are written in.
type Pair struct {
	Key   string
	Value any
}

// P builds a Pair.
func P(key string, value any) Pair {
	return Pair{Key: key, Value: value}
}

// OrPairs groups pairs under the or_ key. In a query the group becomes a
// should clause; in a filter it becomes an or filter.
func OrPairs(pairs ...Pair) Pair {
	return Pair{Key: action.OrKey, Value: toPairs(pairs)}
}

func (Pair) filterArg() {}

// FilterArg is accepted by Search.Filter: an F or a Pair.
type FilterArg interface {
	filterArg()
}

// F is an immutable filter expression. The zero F matches everything.
type F struct {
	x filter.Expression
}

func (F) filterArg() {}

// NewF builds a filter from field-action pairs, AND-ing them together.
func NewF(pairs ...Pair) (F, error) {
	x, err := filter.FromPairs(toPairs(pairs), action.DefaultDelimiter)
	if err != nil {
		return F{}, err //nolint:wrapcheck // InvalidFieldActionError names the key
	}
	return F{x: x}, nil
}

// Term matches documents whose field equals value.
func Term(field string, value any) F {
	return F{x: filter.Term(field, value)}
}

// In matches documents whose field equals any of values.
func In(field string, values ...any) F {
	return F{x: filter.In(field, values...)}
}

// Range matches documents whose field compares to value with op, one of
// gt, gte, lt or lte.
func Range(field, op string, value any) (F, error) {
	x, err := filter.NewRange(field, action.Action(op), value)
	if err != nil {
		return F{}, err //nolint:wrapcheck // InvalidFieldActionError names the op
	}
	return F{x: x}, nil
}

// And combines filters. Nested ANDs are flattened.
func And(fs ...F) F {
	return F{x: filter.And(exprs(fs)...)}
}

// Or combines filters. Nested ORs are flattened.
func Or(fs ...F) F {
	return F{x: filter.Or(exprs(fs)...)}
}

// Not negates f. Negating twice yields f.
func Not(f F) F {
	return F{x: filter.Not(f.x)}
}

// And returns f AND o.
func (f F) And(o F) F { return And(f, o) }

// Or returns f OR o.
func (f F) Or(o F) F { return Or(f, o) }

// Not returns NOT f.
func (f F) Not() F { return Not(f) }

// IsEmpty reports whether f has no tests.
func (f F) IsEmpty() bool { return f.x.IsEmpty() }

// Source renders f in wire form. An empty filter renders as nil.
func (f F) Source() map[string]any { return f.x.Source() }

func exprs(fs []F) []filter.Expression {
	out := make([]filter.Expression, len(fs))
	for i := range fs {
		out[i] = fs[i].x
	}
	return out
}

func toPairs(pairs []Pair) action.Pairs {
	out := make(action.Pairs, len(pairs))
	for i, p := range pairs {
		out[i] = action.Pair{Key: p.Key, Value: p.Value}
	}
	return out
}
