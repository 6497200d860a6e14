package embedded

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/kailas-cloud/searchkit/internal/db"
)

// ErrUnsupportedClause is returned for request parts the in-process engine
// does not evaluate.
var ErrUnsupportedClause = errors.New("unsupported clause")

const defaultSize = 10

// plan is a compiled request document decoded into bleve queries.
type plan struct {
	query     query.Query // nil means match everything
	filter    query.Query
	doctypes  query.Query
	demote    *demotion
	from      int
	size      int
	sort      []string
	fields    []string
	hasFields bool
	highlight []string
	explain   bool
	facets    []facetSpec
}

type demotion struct {
	negative query.Query
	amount   float64
}

type facetKind int

const (
	facetTerms facetKind = iota
	facetRange
)

type facetSpec struct {
	name   string
	kind   facetKind
	field  string
	size   int
	ranges []bucket
	global bool
	filter query.Query
}

type bucket struct {
	from, to *float64
}

func parse(doc db.Document, doctypes []string) (*plan, error) {
	p := &plan{size: defaultSize}

	if raw, ok := doc["query"]; ok {
		if err := p.parseQuery(raw); err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
	}
	if raw, ok := doc["filter"]; ok {
		f, err := filterQuery(raw)
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		p.filter = f
	}
	if len(doctypes) > 0 {
		qs := make([]query.Query, 0, len(doctypes))
		for _, t := range doctypes {
			tq := bleve.NewTermQuery(t)
			tq.SetField(doctypeField)
			qs = append(qs, tq)
		}
		p.doctypes = bleve.NewDisjunctionQuery(qs...)
	}

	if v, ok := doc["from"]; ok {
		n, ok := toInt(v)
		if !ok || n < 0 {
			return nil, fmt.Errorf("%w: from %v", ErrUnsupportedClause, v)
		}
		p.from = n
	}
	if v, ok := doc["size"]; ok {
		n, ok := toInt(v)
		if !ok {
			return nil, fmt.Errorf("%w: size %v", ErrUnsupportedClause, v)
		}
		p.size = max(n, 0)
	}

	if v, ok := doc["sort"]; ok {
		order, err := sortOrder(v)
		if err != nil {
			return nil, err
		}
		p.sort = order
	}
	if v, ok := doc["fields"]; ok {
		p.fields = toStrings(v)
		p.hasFields = true
	}
	if v, ok := doc["highlight"].(map[string]any); ok {
		if fields, ok := v["fields"].(map[string]any); ok {
			for f := range fields {
				p.highlight = append(p.highlight, f)
			}
			slices.Sort(p.highlight)
		}
	}
	if v, ok := doc["explain"].(bool); ok {
		p.explain = v
	}
	if v, ok := doc["facets"].(map[string]any); ok {
		specs, err := facetSpecs(v)
		if err != nil {
			return nil, err
		}
		p.facets = specs
	}
	return p, nil
}

// parseQuery unwraps a top-level boosting clause. Nested boosting is not
// supported.
func (p *plan) parseQuery(raw any) error {
	kind, body, err := single(raw)
	if err != nil {
		return err
	}
	if kind != "boosting" {
		q, err := scoringQuery(raw)
		if err != nil {
			return err
		}
		p.query = q
		return nil
	}

	m, ok := body.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: boosting %v", ErrUnsupportedClause, body)
	}
	positive, err := scoringQuery(m["positive"])
	if err != nil {
		return fmt.Errorf("boosting positive: %w", err)
	}
	negative, err := scoringQuery(m["negative"])
	if err != nil {
		return fmt.Errorf("boosting negative: %w", err)
	}
	amount, ok := toFloat(m["negative_boost"])
	if !ok {
		return fmt.Errorf("%w: negative_boost %v", ErrUnsupportedClause, m["negative_boost"])
	}
	p.query = positive
	p.demote = &demotion{negative: negative, amount: amount}
	return nil
}

// scoringQuery translates a query clause.
func scoringQuery(raw any) (query.Query, error) {
	kind, body, err := single(raw)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "match_all":
		return bleve.NewMatchAllQuery(), nil
	case "term", "prefix", "fuzzy":
		field, v, err := single(body)
		if err != nil {
			return nil, err
		}
		value, w := unboost(v, "value")
		var q query.Query
		switch kind {
		case "term":
			q, err = termQuery(field, value)
		case "prefix":
			pq := bleve.NewPrefixQuery(fmt.Sprint(value))
			pq.SetField(field)
			q = pq
		default:
			fq := bleve.NewFuzzyQuery(fmt.Sprint(value))
			fq.SetField(field)
			fq.SetFuzziness(1)
			q = fq
		}
		if err != nil {
			return nil, err
		}
		return withBoost(q, w), nil
	case "text", "text_phrase":
		field, v, err := single(body)
		if err != nil {
			return nil, err
		}
		if kind == "text" {
			value, w := unboost(v, "query")
			mq := bleve.NewMatchQuery(fmt.Sprint(value))
			mq.SetField(field)
			return withBoost(mq, w), nil
		}
		value, w := unboost(v, "value")
		pq := bleve.NewMatchPhraseQuery(fmt.Sprint(value))
		pq.SetField(field)
		return withBoost(pq, w), nil
	case "in":
		return setQuery(body)
	case "range":
		return rangeQuery(body)
	case "query_string":
		m, ok := body.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: query_string %v", ErrUnsupportedClause, body)
		}
		defaultField, _ := m["default_field"].(string)
		return queryStringQuery(fmt.Sprint(m["query"]), defaultField)
	case "bool":
		return boolQuery(body, scoringQuery)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedClause, kind)
}

// filterQuery translates a filter clause.
func filterQuery(raw any) (query.Query, error) {
	kind, body, err := single(raw)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "match_all":
		return bleve.NewMatchAllQuery(), nil
	case "term":
		field, v, err := single(body)
		if err != nil {
			return nil, err
		}
		return termQuery(field, v)
	case "in", "terms":
		return setQuery(body)
	case "range":
		return rangeQuery(body)
	case "and", "or":
		list := toList(body)
		if m, ok := body.(map[string]any); ok {
			if fs, ok := m["filters"]; ok {
				list = toList(fs)
			}
		}
		qs := make([]query.Query, 0, len(list))
		for _, c := range list {
			q, err := filterQuery(c)
			if err != nil {
				return nil, err
			}
			qs = append(qs, q)
		}
		if kind == "and" {
			return bleve.NewConjunctionQuery(qs...), nil
		}
		return bleve.NewDisjunctionQuery(qs...), nil
	case "not":
		inner := body
		if m, ok := body.(map[string]any); ok {
			if f, ok := m["filter"]; ok {
				inner = f
			}
		}
		q, err := filterQuery(inner)
		if err != nil {
			return nil, err
		}
		return negate(q), nil
	case "bool":
		return boolQuery(body, filterQuery)
	case "query":
		return scoringQuery(body)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedClause, kind)
}

func boolQuery(body any, translate func(any) (query.Query, error)) (query.Query, error) {
	m, ok := body.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: bool %v", ErrUnsupportedClause, body)
	}
	group := func(key string) ([]query.Query, error) {
		var qs []query.Query
		for _, c := range toList(m[key]) {
			q, err := translate(c)
			if err != nil {
				return nil, err
			}
			qs = append(qs, q)
		}
		return qs, nil
	}

	must, err := group("must")
	if err != nil {
		return nil, err
	}
	should, err := group("should")
	if err != nil {
		return nil, err
	}
	mustNot, err := group("must_not")
	if err != nil {
		return nil, err
	}

	bq := bleve.NewBooleanQuery()
	if len(must) > 0 {
		bq.AddMust(must...)
	}
	if len(should) > 0 {
		bq.AddShould(should...)
		if len(must) == 0 {
			bq.SetMinShould(1)
		}
	}
	if len(mustNot) > 0 {
		bq.AddMustNot(mustNot...)
		if len(must) == 0 && len(should) == 0 {
			bq.AddMust(bleve.NewMatchAllQuery())
		}
	}
	return bq, nil
}

func negate(q query.Query) query.Query {
	bq := bleve.NewBooleanQuery()
	bq.AddMust(bleve.NewMatchAllQuery())
	bq.AddMustNot(q)
	return bq
}

func termQuery(field string, value any) (query.Query, error) {
	switch v := value.(type) {
	case string:
		q := bleve.NewTermQuery(v)
		q.SetField(field)
		return q, nil
	case bool:
		q := bleve.NewBoolFieldQuery(v)
		q.SetField(field)
		return q, nil
	}
	f, ok := toFloat(value)
	if !ok {
		return nil, fmt.Errorf("%w: term %s=%T", ErrUnsupportedClause, field, value)
	}
	inclusive := true
	q := bleve.NewNumericRangeInclusiveQuery(&f, &f, &inclusive, &inclusive)
	q.SetField(field)
	return q, nil
}

func setQuery(body any) (query.Query, error) {
	field, v, err := single(body)
	if err != nil {
		return nil, err
	}
	values := toList(v)
	if len(values) == 0 {
		return bleve.NewMatchNoneQuery(), nil
	}
	qs := make([]query.Query, 0, len(values))
	for _, value := range values {
		q, err := termQuery(field, value)
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return bleve.NewDisjunctionQuery(qs...), nil
}

func rangeQuery(body any) (query.Query, error) {
	field, v, err := single(body)
	if err != nil {
		return nil, err
	}
	bounds, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: range %s=%v", ErrUnsupportedClause, field, v)
	}

	var (
		minF, maxF     *float64
		minS, maxS     string
		minInc, maxInc *bool
		textual        bool
		w              *float64
	)
	for op, raw := range bounds {
		if op == "boost" {
			if b, ok := toFloat(raw); ok {
				w = &b
			}
			continue
		}
		inclusive := op == "gte" || op == "lte"
		lower := op == "gt" || op == "gte"
		if op != "gt" && op != "gte" && op != "lt" && op != "lte" {
			return nil, fmt.Errorf("%w: range operator %s", ErrUnsupportedClause, op)
		}

		if s, isText := raw.(string); isText {
			textual = true
			if lower {
				minS, minInc = s, &inclusive
			} else {
				maxS, maxInc = s, &inclusive
			}
			continue
		}
		f, ok := toFloat(raw)
		if !ok {
			return nil, fmt.Errorf("%w: range %s %s=%T", ErrUnsupportedClause, field, op, raw)
		}
		if lower {
			minF, minInc = &f, &inclusive
		} else {
			maxF, maxInc = &f, &inclusive
		}
	}

	if textual {
		if minF != nil || maxF != nil {
			return nil, fmt.Errorf("%w: range %s mixes numbers and strings", ErrUnsupportedClause, field)
		}
		q := bleve.NewTermRangeInclusiveQuery(minS, maxS, minInc, maxInc)
		q.SetField(field)
		return withBoost(q, w), nil
	}
	q := bleve.NewNumericRangeInclusiveQuery(minF, maxF, minInc, maxInc)
	q.SetField(field)
	return withBoost(q, w), nil
}

func facetSpecs(raw map[string]any) ([]facetSpec, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]facetSpec, 0, len(names))
	for _, name := range names {
		body, ok := raw[name].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: facet %s", ErrUnsupportedClause, name)
		}
		spec := facetSpec{name: name, size: defaultSize}
		spec.global, _ = body["global"].(bool)
		if ff, ok := body["facet_filter"]; ok {
			q, err := filterQuery(ff)
			if err != nil {
				return nil, fmt.Errorf("facet %s: %w", name, err)
			}
			spec.filter = q
		}

		switch {
		case body["terms"] != nil:
			t, _ := body["terms"].(map[string]any)
			spec.kind = facetTerms
			spec.field, _ = t["field"].(string)
			if n, ok := toInt(t["size"]); ok && n > 0 {
				spec.size = n
			}
		case body["range"] != nil:
			r, _ := body["range"].(map[string]any)
			spec.kind = facetRange
			spec.field, _ = r["field"].(string)
			for _, b := range toList(r["ranges"]) {
				bm, _ := b.(map[string]any)
				var bk bucket
				if f, ok := toFloat(bm["from"]); ok {
					bk.from = &f
				}
				if t, ok := toFloat(bm["to"]); ok {
					bk.to = &t
				}
				spec.ranges = append(spec.ranges, bk)
			}
			spec.size = max(len(spec.ranges), 1)
		default:
			return nil, fmt.Errorf("%w: facet %s type", ErrUnsupportedClause, name)
		}
		if spec.field == "" {
			return nil, fmt.Errorf("%w: facet %s has no field", ErrUnsupportedClause, name)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// sortOrder converts wire sort keys into bleve sort strings.
func sortOrder(raw any) ([]string, error) {
	var out []string
	for _, item := range toList(raw) {
		switch v := item.(type) {
		case string:
			out = append(out, sortKey(v, v == "_score"))
		case map[string]any:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				dir := v[k]
				if m, ok := dir.(map[string]any); ok {
					dir = m["order"]
				}
				out = append(out, sortKey(k, strings.EqualFold(fmt.Sprint(dir), "desc")))
			}
		default:
			return nil, fmt.Errorf("%w: sort %v", ErrUnsupportedClause, item)
		}
	}
	return out, nil
}

func sortKey(field string, desc bool) string {
	if desc {
		return "-" + field
	}
	return field
}

func withBoost(q query.Query, w *float64) query.Query {
	if w == nil {
		return q
	}
	if b, ok := q.(query.BoostableQuery); ok {
		b.SetBoost(*w)
	}
	return q
}

// queryStringQuery parses q and scopes its unqualified terms to
// defaultField. An empty default field searches every field.
func queryStringQuery(q, defaultField string) (query.Query, error) {
	qs := bleve.NewQueryStringQuery(q)
	if defaultField == "" {
		return qs, nil
	}
	parsed, err := qs.Parse()
	if err != nil {
		return nil, fmt.Errorf("query_string %q: %w", q, err)
	}
	setDefaultField(parsed, defaultField)
	return parsed, nil
}

func setDefaultField(q query.Query, field string) {
	switch x := q.(type) {
	case *query.BooleanQuery:
		for _, sub := range []query.Query{x.Must, x.Should, x.MustNot} {
			if sub != nil {
				setDefaultField(sub, field)
			}
		}
	case *query.ConjunctionQuery:
		for _, sub := range x.Conjuncts {
			setDefaultField(sub, field)
		}
	case *query.DisjunctionQuery:
		for _, sub := range x.Disjuncts {
			setDefaultField(sub, field)
		}
	case query.FieldableQuery:
		if x.Field() == "" {
			x.SetField(field)
		}
	}
}

// unboost splits {valueKey: v, "boost": w} into its parts.
func unboost(v any, valueKey string) (any, *float64) {
	m, ok := v.(map[string]any)
	if !ok {
		return v, nil
	}
	value, ok := m[valueKey]
	if !ok {
		return v, nil
	}
	if w, ok := toFloat(m["boost"]); ok {
		return value, &w
	}
	return value, nil
}

func single(raw any) (string, any, error) {
	m, ok := raw.(map[string]any)
	if !ok || len(m) != 1 {
		return "", nil, fmt.Errorf("%w: %v", ErrUnsupportedClause, raw)
	}
	for k, v := range m {
		return k, v, nil
	}
	return "", nil, nil
}

func toList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case map[string]any:
		return []any{t}
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

func toStrings(v any) []string {
	list := toList(v)
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, fmt.Sprint(item))
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}
