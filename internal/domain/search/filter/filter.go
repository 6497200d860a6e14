package filter

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/kailas-cloud/searchkit/internal/domain"
	"github.com/kailas-cloud/searchkit/internal/domain/search/action"
)

// Kind identifies the node type of an Expression.
type Kind int

const (
	// KindEmpty is the zero Expression; it is the identity for And/Or.
	KindEmpty Kind = iota
	// KindTerm is an exact value test.
	KindTerm
	// KindRange is a gt/gte/lt/lte bound test.
	KindRange
	// KindSet is an "in" membership test.
	KindSet
	// KindAnd requires every operand.
	KindAnd
	// KindOr requires any operand.
	KindOr
	// KindNot negates its single operand.
	KindNot
)

// Expression is an immutable boolean filter tree.
type Expression struct {
	kind     Kind
	field    string
	op       action.Action
	value    any
	values   []any
	children []Expression
}

// Term creates an exact value test.
func Term(field string, value any) Expression {
	return Expression{kind: KindTerm, field: field, value: value}
}

// NewRange creates a bound test. op must be gt, gte, lt or lte.
func NewRange(field string, op action.Action, value any) (Expression, error) {
	if !op.IsRange() {
		return Expression{}, domain.NewInvalidFieldAction(field, string(op))
	}
	return Expression{kind: KindRange, field: field, op: op, value: value}, nil
}

// In creates a membership test.
func In(field string, values ...any) Expression {
	return Expression{kind: KindSet, field: field, values: slices.Clone(values)}
}

// And combines expressions, flattening nested conjunctions and dropping empties.
func And(exprs ...Expression) Expression { return combine(KindAnd, exprs) }

// Or combines expressions, flattening nested disjunctions and dropping empties.
func Or(exprs ...Expression) Expression { return combine(KindOr, exprs) }

// Not negates x. Negating a negation returns the original expression.
func Not(x Expression) Expression {
	switch x.kind {
	case KindEmpty:
		return x
	case KindNot:
		return x.children[0]
	}
	return Expression{kind: KindNot, children: []Expression{x}}
}

// And returns e AND o.
func (e Expression) And(o Expression) Expression { return And(e, o) }

// Or returns e OR o.
func (e Expression) Or(o Expression) Expression { return Or(e, o) }

// Not returns NOT e.
func (e Expression) Not() Expression { return Not(e) }

// Kind returns the node type.
func (e Expression) Kind() Kind { return e.kind }

// Field returns the tested field of a leaf.
func (e Expression) Field() string { return e.field }

// Op returns the range operator of a range leaf.
func (e Expression) Op() action.Action { return e.op }

// Value returns the tested value of a term or range leaf.
func (e Expression) Value() any { return e.value }

// Values returns a copy of the members of a set leaf.
func (e Expression) Values() []any { return slices.Clone(e.values) }

// Children returns a copy of the operands of a combinator.
func (e Expression) Children() []Expression { return slices.Clone(e.children) }

// IsEmpty reports whether the expression has no tests.
func (e Expression) IsEmpty() bool { return e.kind == KindEmpty }

func combine(kind Kind, exprs []Expression) Expression {
	var operands []Expression
	for _, x := range exprs {
		switch x.kind {
		case KindEmpty:
			continue
		case kind:
			operands = append(operands, x.children...)
		default:
			operands = append(operands, x)
		}
	}
	switch len(operands) {
	case 0:
		return Expression{}
	case 1:
		return operands[0]
	}
	return Expression{kind: kind, children: operands}
}

// FromPairs builds an expression from ordered field-action pairs.
// Several resulting tests are AND-ed together.
func FromPairs(pairs action.Pairs, delimiter string) (Expression, error) {
	tests := make([]Expression, 0, len(pairs))
	for _, p := range pairs {
		x, err := fromPair(p, delimiter)
		if err != nil {
			return Expression{}, err
		}
		tests = append(tests, x)
	}
	return And(tests...), nil
}

func fromPair(p action.Pair, delimiter string) (Expression, error) {
	field, act := action.Split(p.Key, delimiter)

	if field == action.OrKey && act == action.None {
		nested, ok := action.Nested(p.Value)
		if !ok {
			return Expression{}, fmt.Errorf("filter %q: expected nested pairs, got %T", p.Key, p.Value)
		}
		group := make([]Expression, 0, len(nested))
		for _, n := range nested {
			x, err := fromPair(n, delimiter)
			if err != nil {
				return Expression{}, err
			}
			group = append(group, x)
		}
		return Or(group...), nil
	}

	switch {
	case act == action.None:
		return Term(field, p.Value), nil
	case act == action.In:
		return In(field, toSlice(p.Value)...), nil
	case act.IsRange():
		return NewRange(field, act, p.Value)
	}
	return Expression{}, domain.NewInvalidFieldAction(p.Key, string(act))
}

// toSlice spreads any slice or array value; scalars become a single member.
func toSlice(v any) []any {
	switch s := v.(type) {
	case nil:
		return nil
	case []any:
		return slices.Clone(s)
	case []string:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// Source renders the expression as the engine's filter document.
// The empty expression renders as nil.
func (e Expression) Source() map[string]any {
	switch e.kind {
	case KindTerm:
		return map[string]any{"term": map[string]any{e.field: e.value}}
	case KindSet:
		return map[string]any{"in": map[string]any{e.field: slices.Clone(e.values)}}
	case KindRange:
		return map[string]any{"range": map[string]any{e.field: map[string]any{string(e.op): e.value}}}
	case KindAnd:
		return map[string]any{"and": sources(e.children)}
	case KindOr:
		return map[string]any{"or": sources(e.children)}
	case KindNot:
		return map[string]any{"not": map[string]any{"filter": e.children[0].Source()}}
	}
	return nil
}

func sources(exprs []Expression) []any {
	out := make([]any, len(exprs))
	for i := range exprs {
		out[i] = exprs[i].Source()
	}
	return out
}
