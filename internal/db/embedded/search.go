package embedded

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/searchkit/internal/db"
)

// Search runs a compiled request document. Facets see the query but not
// the top-level filter, unless a facet carries its own facet_filter.
func (s *Store) Search(ctx context.Context, doc db.Document, indexes, doctypes []string) (*db.Response, error) {
	idx, name, err := s.target(indexes)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	p, err := parse(doc, doctypes)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	var (
		res    *bleve.SearchResult
		facets map[string]db.Facet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		res, err = s.hits(gctx, idx, p)
		return err
	})
	if len(p.facets) > 0 {
		g.Go(func() error {
			var err error
			facets, err = s.facets(gctx, idx, p)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	resp, err := p.response(res, name)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	resp.Facets = facets
	return resp, nil
}

// hits fetches the requested page. A demotion rescores the candidates,
// so the whole match set is fetched and paged afterwards.
func (s *Store) hits(ctx context.Context, idx bleve.Index, p *plan) (*bleve.SearchResult, error) {
	q := conjoin(p.query, p.filter, p.doctypes)
	req := bleve.NewSearchRequestOptions(q, p.size, p.from, p.explain)
	req.Fields = []string{sourceField, doctypeField}
	if len(p.sort) > 0 {
		req.SortBy(p.sort)
	}
	if len(p.highlight) > 0 {
		req.Highlight = bleve.NewHighlight()
		for _, f := range p.highlight {
			req.Highlight.AddField(f)
		}
	}

	if p.demote == nil {
		return idx.SearchInContext(ctx, req)
	}

	count, err := idx.DocCount()
	if err != nil {
		return nil, err
	}
	demoted, err := matching(ctx, idx, conjoin(p.demote.negative, p.doctypes), int(count))
	if err != nil {
		return nil, fmt.Errorf("demote: %w", err)
	}

	req.From, req.Size = 0, int(count)
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, hit := range res.Hits {
		if _, ok := demoted[hit.ID]; ok {
			hit.Score *= p.demote.amount
		}
	}
	if len(p.sort) == 0 {
		slices.SortStableFunc(res.Hits, func(a, b *search.DocumentMatch) int {
			switch {
			case a.Score > b.Score:
				return -1
			case a.Score < b.Score:
				return 1
			}
			return 0
		})
	}
	res.MaxScore = 0
	for _, hit := range res.Hits {
		res.MaxScore = max(res.MaxScore, hit.Score)
	}
	lo := min(p.from, len(res.Hits))
	hi := min(lo+p.size, len(res.Hits))
	res.Hits = res.Hits[lo:hi]
	return res, nil
}

// facets runs one sub-search per distinct facet scope.
func (s *Store) facets(ctx context.Context, idx bleve.Index, p *plan) (map[string]db.Facet, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]db.Facet, len(p.facets))
	)

	var shared []facetSpec
	g, gctx := errgroup.WithContext(ctx)
	run := func(scope query.Query, specs []facetSpec) {
		g.Go(func() error {
			req := bleve.NewSearchRequestOptions(scope, 0, 0, false)
			for _, spec := range specs {
				req.AddFacet(spec.name, spec.request())
			}
			res, err := idx.SearchInContext(gctx, req)
			if err != nil {
				return fmt.Errorf("facets: %w", err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, spec := range specs {
				if fr, ok := res.Facets[spec.name]; ok {
					out[spec.name] = spec.result(fr)
				}
			}
			return nil
		})
	}

	for _, spec := range p.facets {
		switch {
		case spec.global:
			run(conjoin(nil, spec.filter, p.doctypes), []facetSpec{spec})
		case spec.filter != nil:
			run(conjoin(p.query, spec.filter, p.doctypes), []facetSpec{spec})
		default:
			shared = append(shared, spec)
		}
	}
	if len(shared) > 0 {
		run(conjoin(p.query, nil, p.doctypes), shared)
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (f facetSpec) request() *bleve.FacetRequest {
	fr := bleve.NewFacetRequest(f.field, f.size)
	if f.kind == facetRange {
		for i, b := range f.ranges {
			fr.AddNumericRange(rangeName(i), b.from, b.to)
		}
	}
	return fr
}

func (f facetSpec) result(fr *search.FacetResult) db.Facet {
	if f.kind == facetRange {
		out := db.Facet{Type: "range"}
		counts := make(map[string]int64, len(fr.NumericRanges))
		for _, r := range fr.NumericRanges {
			counts[r.Name] = int64(r.Count)
		}
		for i, b := range f.ranges {
			out.Ranges = append(out.Ranges, db.FacetRange{
				From:  b.from,
				To:    b.to,
				Count: counts[rangeName(i)],
			})
		}
		return out
	}

	out := db.Facet{
		Type:    "terms",
		Missing: int64(fr.Missing),
		Total:   int64(fr.Total),
		Other:   int64(fr.Other),
	}
	if fr.Terms != nil {
		for _, t := range fr.Terms.Terms() {
			out.Terms = append(out.Terms, db.FacetTerm{Term: t.Term, Count: int64(t.Count)})
		}
	}
	return out
}

func rangeName(i int) string {
	return fmt.Sprintf("range_%d", i)
}

// response builds the engine envelope from a bleve result.
func (p *plan) response(res *bleve.SearchResult, index string) (*db.Response, error) {
	resp := &db.Response{
		Took: res.Took.Milliseconds(),
		Hits: db.Hits{
			Total: db.Total(res.Total),
			Hits:  make([]db.Hit, 0, len(res.Hits)),
		},
	}
	if len(res.Hits) > 0 {
		maxScore := res.MaxScore
		resp.Hits.MaxScore = &maxScore
	}

	for _, h := range res.Hits {
		hit, err := p.hit(h, index)
		if err != nil {
			return nil, err
		}
		resp.Hits.Hits = append(resp.Hits.Hits, hit)
	}
	return resp, nil
}

func (p *plan) hit(h *search.DocumentMatch, index string) (db.Hit, error) {
	score := h.Score
	hit := db.Hit{Index: h.Index, ID: h.ID, Score: &score}
	if hit.Index == "" {
		hit.Index = index
	}
	if t, ok := h.Fields[doctypeField].(string); ok && t != "" {
		hit.Type = &t
	}

	src := db.NewSource()
	if raw, ok := h.Fields[sourceField].(string); ok {
		if err := src.UnmarshalJSON([]byte(raw)); err != nil {
			return db.Hit{}, fmt.Errorf("hit %s: decode source: %w", h.ID, err)
		}
	}

	if p.hasFields {
		hit.Fields = make(map[string]any, len(p.fields))
		for _, f := range p.fields {
			if f == sourceField {
				hit.Source = src
				continue
			}
			if v, ok := lookup(src, f); ok {
				hit.Fields[f] = v
			}
		}
	} else {
		hit.Source = src
	}

	if len(h.Fragments) > 0 {
		hit.Highlight = make(map[string][]string, len(h.Fragments))
		for f, frags := range h.Fragments {
			hit.Highlight[f] = slices.Clone(frags)
		}
	}

	if h.Expl != nil {
		data, err := json.Marshal(h.Expl)
		if err != nil {
			return db.Hit{}, fmt.Errorf("hit %s: encode explanation: %w", h.ID, err)
		}
		if err := json.Unmarshal(data, &hit.Explanation); err != nil {
			return db.Hit{}, fmt.Errorf("hit %s: decode explanation: %w", h.ID, err)
		}
	}
	return hit, nil
}

// lookup resolves a dotted field path inside a source document.
func lookup(src *db.Source, path string) (any, bool) {
	head, rest, nested := strings.Cut(path, ".")
	v, ok := src.Get(head)
	if !ok {
		return nil, false
	}
	for nested {
		m, isMap := v.(map[string]any)
		if !isMap {
			return nil, false
		}
		head, rest, nested = strings.Cut(rest, ".")
		if v, ok = m[head]; !ok {
			return nil, false
		}
	}
	return v, true
}

// matching returns the ids of every document matching q.
func matching(ctx context.Context, idx bleve.Index, q query.Query, limit int) (map[string]struct{}, error) {
	res, err := idx.SearchInContext(ctx, bleve.NewSearchRequestOptions(q, limit, 0, false))
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(res.Hits))
	for _, h := range res.Hits {
		ids[h.ID] = struct{}{}
	}
	return ids, nil
}

// conjoin ANDs the non-nil queries. None means match everything.
func conjoin(qs ...query.Query) query.Query {
	var parts []query.Query
	for _, q := range qs {
		if q != nil {
			parts = append(parts, q)
		}
	}
	switch len(parts) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return parts[0]
	}
	return bleve.NewConjunctionQuery(parts...)
}
