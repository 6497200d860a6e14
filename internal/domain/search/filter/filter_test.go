package filter

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/searchkit/internal/domain"
	"github.com/kailas-cloud/searchkit/internal/domain/search/action"
)

func mustRange(t *testing.T, field string, op action.Action, v any) Expression {
	t.Helper()
	r, err := NewRange(field, op, v)
	if err != nil {
		t.Fatalf("NewRange: %v", err)
	}
	return r
}

// --- leaf tests ---

func TestTerm_Source(t *testing.T) {
	got := Term("status", "published").Source()
	want := map[string]any{"term": map[string]any{"status": "published"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Source() = %v, want %v", got, want)
	}
}

func TestIn_Source(t *testing.T) {
	got := In("tag", "a", "b").Source()
	want := map[string]any{"in": map[string]any{"tag": []any{"a", "b"}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Source() = %v, want %v", got, want)
	}
}

func TestNewRange_Valid(t *testing.T) {
	for _, op := range []action.Action{action.GT, action.GTE, action.LT, action.LTE} {
		t.Run(string(op), func(t *testing.T) {
			r := mustRange(t, "price", op, 10)
			want := map[string]any{"range": map[string]any{"price": map[string]any{string(op): 10}}}
			if !reflect.DeepEqual(r.Source(), want) {
				t.Errorf("Source() = %v, want %v", r.Source(), want)
			}
		})
	}
}

func TestNewRange_InvalidOp(t *testing.T) {
	_, err := NewRange("price", action.Prefix, 10)
	if !errors.Is(err, domain.ErrInvalidFieldAction) {
		t.Fatalf("err = %v, want ErrInvalidFieldAction", err)
	}
}

// --- algebra tests ---

func TestEmpty_IsIdentity(t *testing.T) {
	x := Term("a", 1)
	var empty Expression

	cases := map[string]Expression{
		"and left":  And(empty, x),
		"and right": x.And(empty),
		"or left":   Or(empty, x),
		"or right":  x.Or(empty),
	}
	for name, got := range cases {
		if !reflect.DeepEqual(got, x) {
			t.Errorf("%s: got %v, want %v", name, got.Source(), x.Source())
		}
	}
	if !And(empty, empty).IsEmpty() {
		t.Error("And(empty, empty) should be empty")
	}
	if empty.Source() != nil {
		t.Error("empty Source() should be nil")
	}
}

func TestAnd_FlattensGroups(t *testing.T) {
	a, b, c, d := Term("a", 1), Term("b", 2), Term("c", 3), Term("d", 4)

	got := a.And(b).And(c.And(d))
	if got.Kind() != KindAnd {
		t.Fatalf("Kind() = %v, want KindAnd", got.Kind())
	}
	if n := len(got.Children()); n != 4 {
		t.Fatalf("children = %d, want 4", n)
	}
	want := map[string]any{"and": []any{a.Source(), b.Source(), c.Source(), d.Source()}}
	if !reflect.DeepEqual(got.Source(), want) {
		t.Errorf("Source() = %v, want %v", got.Source(), want)
	}
}

func TestOr_DoesNotFlattenAnd(t *testing.T) {
	a, b, c := Term("a", 1), Term("b", 2), Term("c", 3)

	got := a.And(b).Or(c)
	want := map[string]any{"or": []any{
		map[string]any{"and": []any{a.Source(), b.Source()}},
		c.Source(),
	}}
	if !reflect.DeepEqual(got.Source(), want) {
		t.Errorf("Source() = %v, want %v", got.Source(), want)
	}
}

func TestCombine_DoesNotMutateOperands(t *testing.T) {
	a, b, c := Term("a", 1), Term("b", 2), Term("c", 3)
	ab := a.And(b)

	_ = ab.And(c)
	_ = ab.And(Term("d", 4))

	if n := len(ab.Children()); n != 2 {
		t.Fatalf("original group mutated: %d children", n)
	}
}

func TestNot_DoubleNegation(t *testing.T) {
	x := Term("a", 1).Or(Term("b", 2))
	if !reflect.DeepEqual(Not(Not(x)), x) {
		t.Errorf("Not(Not(x)) = %v, want %v", Not(Not(x)).Source(), x.Source())
	}

	want := map[string]any{"not": map[string]any{"filter": x.Source()}}
	if !reflect.DeepEqual(x.Not().Source(), want) {
		t.Errorf("Not().Source() = %v", x.Not().Source())
	}

	var empty Expression
	if !empty.Not().IsEmpty() {
		t.Error("Not(empty) should be empty")
	}
}

// --- pairs tests ---

func TestFromPairs(t *testing.T) {
	pairs := action.Pairs{
		{Key: "status", Value: "published"},
		{Key: "tag__in", Value: []string{"go", "rust"}},
		{Key: "price__lt", Value: 50},
	}
	got, err := FromPairs(pairs, action.DefaultDelimiter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]any{"and": []any{
		map[string]any{"term": map[string]any{"status": "published"}},
		map[string]any{"in": map[string]any{"tag": []any{"go", "rust"}}},
		map[string]any{"range": map[string]any{"price": map[string]any{"lt": 50}}},
	}}
	if !reflect.DeepEqual(got.Source(), want) {
		t.Errorf("Source() = %v, want %v", got.Source(), want)
	}
}

func TestFromPairs_SingleUnwrapped(t *testing.T) {
	got, err := FromPairs(action.Pairs{{Key: "status", Value: "draft"}}, "__")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind() != KindTerm {
		t.Errorf("Kind() = %v, want KindTerm", got.Kind())
	}
}

func TestFromPairs_OrGroup(t *testing.T) {
	pairs := action.Pairs{{Key: action.OrKey, Value: action.Pairs{
		{Key: "status", Value: "draft"},
		{Key: "author", Value: "bob"},
	}}}
	got, err := FromPairs(pairs, "__")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]any{"or": []any{
		map[string]any{"term": map[string]any{"status": "draft"}},
		map[string]any{"term": map[string]any{"author": "bob"}},
	}}
	if !reflect.DeepEqual(got.Source(), want) {
		t.Errorf("Source() = %v, want %v", got.Source(), want)
	}
}

func TestFromPairs_InvalidAction(t *testing.T) {
	_, err := FromPairs(action.Pairs{{Key: "title__text", Value: "x"}}, "__")
	if !errors.Is(err, domain.ErrInvalidFieldAction) {
		t.Fatalf("err = %v, want ErrInvalidFieldAction", err)
	}
	var fae *domain.InvalidFieldActionError
	if !errors.As(err, &fae) || fae.Action != "text" {
		t.Errorf("error does not name the suffix: %v", err)
	}
	if err.Error() != "text is not a valid field action" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestFromPairs_OrRequiresNested(t *testing.T) {
	_, err := FromPairs(action.Pairs{{Key: action.OrKey, Value: "x"}}, "__")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestIn_ScalarAndArray(t *testing.T) {
	x, err := FromPairs(action.Pairs{{Key: "id__in", Value: [2]int{1, 2}}}, "__")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(x.Values(), []any{1, 2}) {
		t.Errorf("Values() = %v", x.Values())
	}

	x, err = FromPairs(action.Pairs{{Key: "id__in", Value: 7}}, "__")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(x.Values(), []any{7}) {
		t.Errorf("Values() = %v", x.Values())
	}
}
