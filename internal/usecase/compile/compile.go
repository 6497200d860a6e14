// Package compile turns recorded builder steps into a search request document.
package compile

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/kailas-cloud/searchkit/internal/db"
	"github.com/kailas-cloud/searchkit/internal/domain"
	"github.com/kailas-cloud/searchkit/internal/domain/search/action"
	"github.com/kailas-cloud/searchkit/internal/domain/search/filter"
	"github.com/kailas-cloud/searchkit/internal/domain/search/mode"
	"github.com/kailas-cloud/searchkit/internal/domain/search/query"
	"github.com/kailas-cloud/searchkit/internal/domain/search/step"
)

// DefaultField is requested when no output shape was chosen.
const DefaultField = "id"

// Input is everything a compilation depends on.
type Input struct {
	Steps     step.List
	Start     int
	Stop      *int
	Boosts    map[string]float64
	Delimiter string
	// CountOnly requests the total alone: no documents, sort, highlight,
	// facets or explanation.
	CountOnly bool
}

// Output is a compiled request and how its hits are materialized.
type Output struct {
	Doc db.Document
	// Fields are the stored fields requested on the wire. Empty means full
	// source documents.
	Fields []string
	Shape  mode.Mode
}

type state struct {
	sort       []any
	fields     []string
	cleared    bool
	shape      mode.Mode
	explain    bool
	queries    []query.Clause
	filters    []filter.Expression
	demote     *step.DemoteValue
	facets     map[string]map[string]any
	filtered   []string
	facetsRaw  map[string]any
	highlights []string
	hlOptions  map[string]any
}

// Compile builds the request document. It is pure and runs on every send.
func Compile(in Input) (Output, error) {
	st := state{}
	for _, s := range in.Steps {
		if err := st.apply(s, in); err != nil {
			return Output{}, err
		}
	}

	doc := db.Document{}

	filterDoc := filter.And(st.filters...).Source()
	if filterDoc != nil {
		doc["filter"] = filterDoc
	}

	var q map[string]any
	switch len(st.queries) {
	case 0:
	case 1:
		q = st.queries[0]
	default:
		q = map[string]any{"bool": map[string]any{"must": clausesToAny(st.queries)}}
	}
	if st.demote != nil {
		negative, err := demotion(st.demote, in)
		if err != nil {
			return Output{}, err
		}
		positive := q
		if positive == nil {
			positive = map[string]any{"match_all": map[string]any{}}
		}
		q = map[string]any{"boosting": map[string]any{
			"positive":       positive,
			"negative":       negative,
			"negative_boost": st.demote.Amount,
		}}
	}
	if q != nil {
		doc["query"] = q
	}

	out := Output{Shape: st.shape, Fields: st.wireFields()}

	if in.CountOnly {
		doc["size"] = 0
		out.Fields = nil
		out.Doc = doc
		return out, nil
	}

	if len(out.Fields) > 0 {
		doc["fields"] = slices.Clone(out.Fields)
	}

	if facets := st.facetDoc(filterDoc); facets != nil {
		doc["facets"] = facets
	}

	if len(st.sort) > 0 {
		doc["sort"] = st.sort
	}
	if in.Start != 0 {
		doc["from"] = in.Start
	}
	if in.Stop != nil {
		doc["size"] = *in.Stop - in.Start
	}

	if len(st.highlights) > 0 {
		doc["highlight"] = st.highlightDoc()
	}

	if st.explain {
		doc["explain"] = true
	}

	out.Doc = doc
	return out, nil
}

func (st *state) apply(s step.Step, in Input) error {
	switch s.Action {
	case step.OrderBy:
		keys, err := payload[[]string](s)
		if err != nil {
			return err
		}
		st.sort = nil
		for _, k := range keys {
			if field, ok := strings.CutPrefix(k, "-"); ok {
				st.sort = append(st.sort, map[string]any{field: "desc"})
			} else {
				st.sort = append(st.sort, k)
			}
		}

	case step.ValuesList, step.ValuesDict:
		fields, err := payload[[]string](s)
		if err != nil {
			return err
		}
		if s.Action == step.ValuesDict && len(fields) == 0 {
			st.fields = nil
			st.cleared = true
		}
		for _, f := range fields {
			if !slices.Contains(st.fields, f) {
				st.fields = append(st.fields, f)
			}
		}
		st.shape = mode.List
		if s.Action == step.ValuesDict {
			st.shape = mode.Dict
		}

	case step.Explain:
		v, err := payload[bool](s)
		if err != nil {
			return err
		}
		st.explain = v

	case step.Query:
		pairs, err := payload[action.Pairs](s)
		if err != nil {
			return err
		}
		clauses, err := query.Clauses(pairs, in.Boosts, in.Delimiter)
		if err != nil {
			return err
		}
		st.queries = append(st.queries, clauses...)

	case step.Filter:
		v, err := payload[step.FilterValue](s)
		if err != nil {
			return err
		}
		st.filters = append(st.filters, v.Exprs...)
		if len(v.Pairs) > 0 {
			x, err := filter.FromPairs(v.Pairs, in.Delimiter)
			if err != nil {
				return err
			}
			st.filters = append(st.filters, x)
		}

	case step.Demote:
		v, err := payload[step.DemoteValue](s)
		if err != nil {
			return err
		}
		st.demote = &v

	case step.Facet:
		v, err := payload[step.FacetValue](s)
		if err != nil {
			return err
		}
		if st.facets == nil {
			st.facets = map[string]map[string]any{}
		}
		for _, f := range v.Fields {
			facet := map[string]any{"terms": map[string]any{"field": f}}
			st.filtered = slices.DeleteFunc(st.filtered, func(n string) bool { return n == f })
			switch {
			case v.Global:
				facet["global"] = true
			case v.Filtered:
				st.filtered = append(st.filtered, f)
			}
			st.facets[f] = facet
		}

	case step.FacetRaw:
		v, err := payload[map[string]any](s)
		if err != nil {
			return err
		}
		if st.facetsRaw == nil {
			st.facetsRaw = map[string]any{}
		}
		maps.Copy(st.facetsRaw, v)

	case step.Highlight:
		v, err := payload[step.HighlightValue](s)
		if err != nil {
			return err
		}
		if v.Clear {
			st.highlights = nil
		}
		for _, f := range v.Fields {
			if !slices.Contains(st.highlights, f) {
				st.highlights = append(st.highlights, f)
			}
		}
		if len(v.Options) > 0 {
			if st.hlOptions == nil {
				st.hlOptions = map[string]any{}
			}
			maps.Copy(st.hlOptions, v.Options)
		}

	case step.ESConfig, step.ESBuilder, step.Indexes, step.Doctypes, step.Boost:
		// Consumed when the backend is resolved.

	default:
		return &domain.UnsupportedStepError{Action: string(s.Action)}
	}
	return nil
}

// wireFields returns the requested fields, the default field when no shape
// was chosen, or nothing when full documents are wanted.
func (st *state) wireFields() []string {
	if len(st.fields) > 0 {
		return slices.Clone(st.fields)
	}
	if st.shape == mode.Default && !st.cleared {
		return []string{DefaultField}
	}
	return nil
}

func (st *state) facetDoc(filterDoc map[string]any) map[string]any {
	if len(st.facets) == 0 && len(st.facetsRaw) == 0 {
		return nil
	}
	out := make(map[string]any, len(st.facets)+len(st.facetsRaw))
	for name, f := range st.facets {
		out[name] = f
	}
	// Filtered facets are back-filled once the whole filter is known.
	for _, name := range st.filtered {
		f := maps.Clone(st.facets[name])
		if filterDoc != nil {
			f["facet_filter"] = filterDoc
		} else {
			f["facet_filter"] = map[string]any{"match_all": map[string]any{}}
		}
		out[name] = f
	}
	maps.Copy(out, st.facetsRaw)
	return out
}

func (st *state) highlightDoc() map[string]any {
	fields := make(map[string]any, len(st.highlights))
	for _, f := range st.highlights {
		fields[f] = map[string]any{}
	}
	hl := map[string]any{"fields": fields, "order": "score"}
	maps.Copy(hl, st.hlOptions)
	return hl
}

func demotion(v *step.DemoteValue, in Input) (map[string]any, error) {
	clauses, err := query.Clauses(v.Pairs, in.Boosts, in.Delimiter)
	if err != nil {
		return nil, err
	}
	switch len(clauses) {
	case 0:
		return map[string]any{"match_all": map[string]any{}}, nil
	case 1:
		return clauses[0], nil
	}
	return map[string]any{"bool": map[string]any{"must": clausesToAny(clauses)}}, nil
}

func payload[T any](s step.Step) (T, error) {
	v, ok := s.Value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("step %s: unexpected payload %T", s.Action, s.Value)
	}
	return v, nil
}

func clausesToAny(cs []query.Clause) []any {
	out := make([]any, len(cs))
	for i := range cs {
		out[i] = cs[i]
	}
	return out
}
