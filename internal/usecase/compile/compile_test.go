package compile

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/searchkit/internal/db"
	"github.com/kailas-cloud/searchkit/internal/domain"
	"github.com/kailas-cloud/searchkit/internal/domain/search/action"
	"github.com/kailas-cloud/searchkit/internal/domain/search/filter"
	"github.com/kailas-cloud/searchkit/internal/domain/search/mode"
	"github.com/kailas-cloud/searchkit/internal/domain/search/step"
)

func intPtr(v int) *int { return &v }

func mustCompile(t *testing.T, in Input) Output {
	t.Helper()
	out, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return out
}

func steps(ss ...step.Step) step.List {
	var l step.List
	for _, s := range ss {
		l = l.With(s)
	}
	return l
}

func filterStep(exprs []filter.Expression, pairs ...action.Pair) step.Step {
	return step.Step{Action: step.Filter, Value: step.FilterValue{Exprs: exprs, Pairs: pairs}}
}

func queryStep(pairs ...action.Pair) step.Step {
	return step.Step{Action: step.Query, Value: action.Pairs(pairs)}
}

func TestCompile_Empty(t *testing.T) {
	out := mustCompile(t, Input{})
	want := db.Document{"fields": []string{"id"}}
	if !reflect.DeepEqual(out.Doc, want) {
		t.Errorf("Doc = %v, want %v", out.Doc, want)
	}
	if out.Shape != mode.Default {
		t.Errorf("Shape = %v", out.Shape)
	}
}

func TestCompile_OrderByLastWins(t *testing.T) {
	out := mustCompile(t, Input{Steps: steps(
		step.Step{Action: step.OrderBy, Value: []string{"title"}},
		step.Step{Action: step.OrderBy, Value: []string{"-date", "id"}},
	)})
	want := []any{map[string]any{"date": "desc"}, "id"}
	if !reflect.DeepEqual(out.Doc["sort"], want) {
		t.Errorf("sort = %v, want %v", out.Doc["sort"], want)
	}
}

func TestCompile_Shapes(t *testing.T) {
	tests := []struct {
		name       string
		steps      step.List
		wantShape  mode.Mode
		wantFields []string
	}{
		{
			name: "list then dict",
			steps: steps(
				step.Step{Action: step.ValuesList, Value: []string{"a"}},
				step.Step{Action: step.ValuesDict, Value: []string{"b", "a"}},
			),
			wantShape:  mode.Dict,
			wantFields: []string{"a", "b"},
		},
		{
			name: "dict then list",
			steps: steps(
				step.Step{Action: step.ValuesDict, Value: []string{"a"}},
				step.Step{Action: step.ValuesList, Value: []string{"b"}},
			),
			wantShape:  mode.List,
			wantFields: []string{"a", "b"},
		},
		{
			name: "empty dict clears",
			steps: steps(
				step.Step{Action: step.ValuesList, Value: []string{"a"}},
				step.Step{Action: step.ValuesDict, Value: []string(nil)},
			),
			wantShape: mode.Dict,
		},
		{
			name:      "empty list wants sources",
			steps:     steps(step.Step{Action: step.ValuesList, Value: []string{}}),
			wantShape: mode.List,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := mustCompile(t, Input{Steps: tc.steps})
			if out.Shape != tc.wantShape {
				t.Errorf("Shape = %v, want %v", out.Shape, tc.wantShape)
			}
			if !reflect.DeepEqual(out.Fields, tc.wantFields) {
				t.Errorf("Fields = %v, want %v", out.Fields, tc.wantFields)
			}
			got, ok := out.Doc["fields"]
			if tc.wantFields == nil && ok {
				t.Errorf("fields should be omitted, got %v", got)
			}
			if tc.wantFields != nil && !reflect.DeepEqual(got, tc.wantFields) {
				t.Errorf("doc fields = %v", got)
			}
		})
	}
}

func TestCompile_QueriesMerge(t *testing.T) {
	single := mustCompile(t, Input{Steps: steps(queryStep(action.Pair{Key: "title__text", Value: "go"}))})
	want := map[string]any{"text": map[string]any{"title": "go"}}
	if !reflect.DeepEqual(single.Doc["query"], want) {
		t.Errorf("single query = %v", single.Doc["query"])
	}

	merged := mustCompile(t, Input{Steps: steps(
		queryStep(action.Pair{Key: "title__text", Value: "go"}),
		queryStep(action.Pair{Key: "tag", Value: "lang"}),
	)})
	want = map[string]any{"bool": map[string]any{"must": []any{
		map[string]any{"text": map[string]any{"title": "go"}},
		map[string]any{"term": map[string]any{"tag": "lang"}},
	}}}
	if !reflect.DeepEqual(merged.Doc["query"], want) {
		t.Errorf("merged query = %v", merged.Doc["query"])
	}
}

func TestCompile_SameFieldRanges(t *testing.T) {
	out := mustCompile(t, Input{Steps: steps(queryStep(
		action.Pair{Key: "price__gte", Value: 10},
		action.Pair{Key: "price__lte", Value: 50},
	))})
	want := map[string]any{"bool": map[string]any{"must": []any{
		map[string]any{"range": map[string]any{"price": map[string]any{"gte": 10}}},
		map[string]any{"range": map[string]any{"price": map[string]any{"lte": 50}}},
	}}}
	if !reflect.DeepEqual(out.Doc["query"], want) {
		t.Errorf("query = %v", out.Doc["query"])
	}
}

func TestCompile_FilterMergeAssociative(t *testing.T) {
	x := filter.Term("status", "published")
	y := filter.In("tag", "go", "rust")

	chained := mustCompile(t, Input{Steps: steps(
		filterStep([]filter.Expression{x}),
		filterStep([]filter.Expression{y}),
	)})
	together := mustCompile(t, Input{Steps: steps(
		filterStep([]filter.Expression{x, y}),
	)})
	if !reflect.DeepEqual(chained.Doc["filter"], together.Doc["filter"]) {
		t.Errorf("chained %v != together %v", chained.Doc["filter"], together.Doc["filter"])
	}

	pairs := mustCompile(t, Input{Steps: steps(
		filterStep(nil, action.Pair{Key: "status", Value: "published"}),
		filterStep(nil, action.Pair{Key: "tag__in", Value: []any{"go", "rust"}}),
	)})
	if !reflect.DeepEqual(pairs.Doc["filter"], together.Doc["filter"]) {
		t.Errorf("pairs %v != together %v", pairs.Doc["filter"], together.Doc["filter"])
	}
}

func TestCompile_FilterDoubleNegation(t *testing.T) {
	x := filter.Term("a", 1).Or(filter.Term("b", 2))
	plain := mustCompile(t, Input{Steps: steps(filterStep([]filter.Expression{x}))})
	negated := mustCompile(t, Input{Steps: steps(filterStep([]filter.Expression{x.Not().Not()}))})
	if !reflect.DeepEqual(plain.Doc["filter"], negated.Doc["filter"]) {
		t.Errorf("not(not(x)) = %v, want %v", negated.Doc["filter"], plain.Doc["filter"])
	}
}

func TestCompile_InvalidFieldAction(t *testing.T) {
	_, err := Compile(Input{Steps: steps(filterStep(nil, action.Pair{Key: "title__text", Value: "x"}))})
	if !errors.Is(err, domain.ErrInvalidFieldAction) {
		t.Errorf("filter err = %v", err)
	}
	_, err = Compile(Input{Steps: steps(queryStep(action.Pair{Key: "title__nope", Value: "x"}))})
	if !errors.Is(err, domain.ErrInvalidFieldAction) {
		t.Errorf("query err = %v", err)
	}
}

func TestCompile_Demote(t *testing.T) {
	demote := step.Step{Action: step.Demote, Value: step.DemoteValue{
		Amount: 0.5,
		Pairs:  action.Pairs{{Key: "tag", Value: "spam"}},
	}}

	out := mustCompile(t, Input{Steps: steps(queryStep(action.Pair{Key: "title__text", Value: "go"}), demote)})
	want := map[string]any{"boosting": map[string]any{
		"positive":       map[string]any{"text": map[string]any{"title": "go"}},
		"negative":       map[string]any{"term": map[string]any{"tag": "spam"}},
		"negative_boost": 0.5,
	}}
	if !reflect.DeepEqual(out.Doc["query"], want) {
		t.Errorf("query = %v", out.Doc["query"])
	}

	noQuery := mustCompile(t, Input{Steps: steps(demote)})
	positive := noQuery.Doc["query"].(map[string]any)["boosting"].(map[string]any)["positive"]
	if !reflect.DeepEqual(positive, map[string]any{"match_all": map[string]any{}}) {
		t.Errorf("positive = %v", positive)
	}
}

func TestCompile_FilteredFacetBackfill(t *testing.T) {
	out := mustCompile(t, Input{Steps: steps(
		step.Step{Action: step.Facet, Value: step.FacetValue{Fields: []string{"tag"}, Filtered: true}},
		filterStep(nil, action.Pair{Key: "category", Value: "a"}),
	)})
	facets := out.Doc["facets"].(map[string]any)
	tag := facets["tag"].(map[string]any)
	if !reflect.DeepEqual(tag["facet_filter"], out.Doc["filter"]) {
		t.Errorf("facet_filter = %v, want %v", tag["facet_filter"], out.Doc["filter"])
	}
}

func TestCompile_Facets(t *testing.T) {
	out := mustCompile(t, Input{Steps: steps(
		step.Step{Action: step.Facet, Value: step.FacetValue{Fields: []string{"tag"}}},
		step.Step{Action: step.Facet, Value: step.FacetValue{Fields: []string{"year"}, Global: true, Filtered: true}},
		step.Step{Action: step.Facet, Value: step.FacetValue{Fields: []string{"author"}, Filtered: true}},
		step.Step{Action: step.FacetRaw, Value: map[string]any{"price": map[string]any{"range": "raw"}}},
	)})
	want := map[string]any{
		"tag":  map[string]any{"terms": map[string]any{"field": "tag"}},
		"year": map[string]any{"terms": map[string]any{"field": "year"}, "global": true},
		"author": map[string]any{
			"terms":        map[string]any{"field": "author"},
			"facet_filter": map[string]any{"match_all": map[string]any{}},
		},
		"price": map[string]any{"range": "raw"},
	}
	if !reflect.DeepEqual(out.Doc["facets"], want) {
		t.Errorf("facets = %v, want %v", out.Doc["facets"], want)
	}
}

func TestCompile_Highlight(t *testing.T) {
	out := mustCompile(t, Input{Steps: steps(
		step.Step{Action: step.Highlight, Value: step.HighlightValue{Fields: []string{"title"}}},
		step.Step{Action: step.Highlight, Value: step.HighlightValue{
			Fields:  []string{"body"},
			Options: map[string]any{"pre_tags": []string{"<b>"}, "order": "none"},
		}},
	)})
	want := map[string]any{
		"fields":   map[string]any{"title": map[string]any{}, "body": map[string]any{}},
		"order":    "none",
		"pre_tags": []string{"<b>"},
	}
	if !reflect.DeepEqual(out.Doc["highlight"], want) {
		t.Errorf("highlight = %v, want %v", out.Doc["highlight"], want)
	}

	cleared := mustCompile(t, Input{Steps: steps(
		step.Step{Action: step.Highlight, Value: step.HighlightValue{Fields: []string{"title"}}},
		step.Step{Action: step.Highlight, Value: step.HighlightValue{Clear: true}},
	)})
	if _, ok := cleared.Doc["highlight"]; ok {
		t.Errorf("highlight should be cleared, got %v", cleared.Doc["highlight"])
	}
}

func TestCompile_Paging(t *testing.T) {
	tests := []struct {
		name      string
		start     int
		stop      *int
		wantFrom  any
		wantSize  any
		wantFound [2]bool
	}{
		{"unbounded", 0, nil, nil, nil, [2]bool{false, false}},
		{"first page", 0, intPtr(10), nil, 10, [2]bool{false, true}},
		{"offset page", 5, intPtr(15), 5, 10, [2]bool{true, true}},
		{"offset only", 20, nil, 20, nil, [2]bool{true, false}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := mustCompile(t, Input{Start: tc.start, Stop: tc.stop})
			from, hasFrom := out.Doc["from"]
			size, hasSize := out.Doc["size"]
			if hasFrom != tc.wantFound[0] || hasSize != tc.wantFound[1] {
				t.Fatalf("from=%v size=%v", out.Doc["from"], out.Doc["size"])
			}
			if hasFrom && from != tc.wantFrom {
				t.Errorf("from = %v, want %v", from, tc.wantFrom)
			}
			if hasSize && size != tc.wantSize {
				t.Errorf("size = %v, want %v", size, tc.wantSize)
			}
		})
	}
}

func TestCompile_Explain(t *testing.T) {
	off := mustCompile(t, Input{Steps: steps(step.Step{Action: step.Explain, Value: false})})
	if _, ok := off.Doc["explain"]; ok {
		t.Error("explain=false should be omitted")
	}
	on := mustCompile(t, Input{Steps: steps(step.Step{Action: step.Explain, Value: true})})
	if on.Doc["explain"] != true {
		t.Errorf("explain = %v", on.Doc["explain"])
	}
}

func TestCompile_IgnoredAndUnsupportedSteps(t *testing.T) {
	ignored := steps(
		step.Step{Action: step.ESConfig, Value: db.Settings{}},
		step.Step{Action: step.ESBuilder, Value: nil},
		step.Step{Action: step.Indexes, Value: []string{"a"}},
		step.Step{Action: step.Doctypes, Value: []string{"b"}},
		step.Step{Action: step.Boost, Value: map[string]float64{"title": 2}},
	)
	if _, err := Compile(Input{Steps: ignored}); err != nil {
		t.Fatalf("ignored steps: %v", err)
	}

	_, err := Compile(Input{Steps: steps(step.Step{Action: "bogus"})})
	var use *domain.UnsupportedStepError
	if !errors.As(err, &use) || use.Action != "bogus" {
		t.Errorf("err = %v, want UnsupportedStepError", err)
	}
	if !errors.Is(err, domain.ErrUnsupportedStep) {
		t.Errorf("err = %v, want ErrUnsupportedStep", err)
	}
}

func TestCompile_CountOnly(t *testing.T) {
	out := mustCompile(t, Input{
		Steps: steps(
			filterStep(nil, action.Pair{Key: "status", Value: "published"}),
			queryStep(action.Pair{Key: "title__text", Value: "go"}),
			step.Step{Action: step.OrderBy, Value: []string{"-date"}},
			step.Step{Action: step.ValuesList, Value: []string{"title"}},
			step.Step{Action: step.Facet, Value: step.FacetValue{Fields: []string{"tag"}}},
			step.Step{Action: step.Highlight, Value: step.HighlightValue{Fields: []string{"title"}}},
			step.Step{Action: step.Explain, Value: true},
		),
		Start:     10,
		Stop:      intPtr(20),
		CountOnly: true,
	})
	for _, key := range []string{"fields", "sort", "facets", "highlight", "explain", "from"} {
		if _, ok := out.Doc[key]; ok {
			t.Errorf("count request should not contain %q", key)
		}
	}
	if out.Doc["size"] != 0 {
		t.Errorf("size = %v, want 0", out.Doc["size"])
	}
	if out.Doc["filter"] == nil || out.Doc["query"] == nil {
		t.Errorf("count request lost its constraints: %v", out.Doc)
	}
}

func TestCompile_EndToEnd(t *testing.T) {
	out := mustCompile(t, Input{
		Steps: steps(
			filterStep(nil, action.Pair{Key: "status", Value: "published"}),
			step.Step{Action: step.OrderBy, Value: []string{"-date"}},
			step.Step{Action: step.Boost, Value: map[string]float64{"title": 2}},
			queryStep(action.Pair{Key: "title__text", Value: "rust"}),
		),
		Stop:   intPtr(10),
		Boosts: map[string]float64{"title": 2},
	})
	want := db.Document{
		"filter": map[string]any{"term": map[string]any{"status": "published"}},
		"sort":   []any{map[string]any{"date": "desc"}},
		"query":  map[string]any{"text": map[string]any{"title": map[string]any{"query": "rust", "boost": 2.0}}},
		"size":   10,
		"fields": []string{"id"},
	}
	if !reflect.DeepEqual(out.Doc, want) {
		t.Errorf("Doc = %v\nwant %v", out.Doc, want)
	}
}
