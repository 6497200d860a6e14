package step

import (
	"reflect"
	"testing"
)

func TestList_WithDoesNotAlias(t *testing.T) {
	base := List{{Action: OrderBy, Value: []string{"a"}}}
	base = base.With(Step{Action: Explain, Value: true})

	left := base.With(Step{Action: Indexes, Value: []string{"left"}})
	right := base.With(Step{Action: Indexes, Value: []string{"right"}})

	if len(base) != 2 {
		t.Fatalf("base mutated: %d steps", len(base))
	}
	l, _ := left.Strings(Indexes)
	r, _ := right.Strings(Indexes)
	if l[0] != "left" || r[0] != "right" {
		t.Errorf("branches share state: left=%v right=%v", l, r)
	}
}

func TestList_Last(t *testing.T) {
	l := List{
		{Action: ESConfig, Value: "first"},
		{Action: ESBuilder, Value: "builder"},
		{Action: ESConfig, Value: "second"},
	}

	s, ok := l.Last(ESBuilder)
	if !ok || s.Value != "builder" {
		t.Errorf("Last(ESBuilder) = %v, %v", s, ok)
	}
	s, ok = l.Last(ESConfig, ESBuilder)
	if !ok || s.Value != "second" {
		t.Errorf("Last(ESConfig, ESBuilder) = %v, %v", s, ok)
	}
	if _, ok := l.Last(Doctypes); ok {
		t.Error("Last(Doctypes) should not be found")
	}
}

func TestList_Strings(t *testing.T) {
	l := List{
		{Action: Indexes, Value: []string{"a"}},
		{Action: Indexes, Value: []string{"b", "c"}},
	}
	got, ok := l.Strings(Indexes)
	if !ok || !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("Strings = %v, %v", got, ok)
	}
	if _, ok := l.Strings(Doctypes); ok {
		t.Error("Strings(Doctypes) should not be found")
	}
}

func TestHighlightValue_Clone(t *testing.T) {
	h := HighlightValue{Fields: []string{"title"}, Options: map[string]any{"pre_tags": "<b>"}}
	c := h.Clone()
	c.Fields[0] = "body"
	c.Options["pre_tags"] = "<i>"

	if h.Fields[0] != "title" || h.Options["pre_tags"] != "<b>" {
		t.Errorf("Clone shares state: %+v", h)
	}
}
