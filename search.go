package searchkit

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/kailas-cloud/searchkit/internal/db"
	"github.com/kailas-cloud/searchkit/internal/domain"
	"github.com/kailas-cloud/searchkit/internal/domain/search/result"
	"github.com/kailas-cloud/searchkit/internal/domain/search/step"
	"github.com/kailas-cloud/searchkit/internal/usecase/compile"
	searchuc "github.com/kailas-cloud/searchkit/internal/usecase/search"
)

// Search is an immutable, lazily executed search. Chaining methods return
// a new Search with its own steps, boosts and empty response cache.
type Search struct {
	client *Client
	target string
	steps  step.List
	start  int
	stop   *int
	boosts map[string]float64
	cache  *responseCache
}

// responseCache holds the one response a Search instance fetches and the
// result set materialized from it.
type responseCache struct {
	mu   sync.Mutex
	resp *db.Response
	set  result.Set
}

func (c *responseCache) get() *db.Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resp
}

// FacetOptions scopes a facet request.
type FacetOptions struct {
	// Global counts over every document, ignoring the query.
	Global bool
	// Filtered restricts the counts with the search's combined filter.
	Filtered bool
}

func (s *Search) clone() *Search {
	out := *s
	out.steps = slices.Clone(s.steps)
	out.boosts = maps.Clone(s.boosts)
	if s.stop != nil {
		stop := *s.stop
		out.stop = &stop
	}
	out.cache = &responseCache{}
	return &out
}

func (s *Search) with(a step.Action, v any) *Search {
	out := s.clone()
	out.steps = s.steps.With(step.Step{Action: a, Value: v})
	return out
}

// Target returns the type hits resolve to, if bound.
func (s *Search) Target() string { return s.target }

// ES sends the search to a backend built from settings by the client's
// factory. Zero fields keep the client defaults.
func (s *Search) ES(settings Settings) *Search {
	return s.with(step.ESConfig, settings)
}

// BackendBuilder returns the backend for the search being sent. It sees
// the final search, so it may read its target or steps.
type BackendBuilder func(s *Search) (Backend, error)

// ESBuilder sends the search to the backend fn returns. It takes precedence
// over ES.
func (s *Search) ESBuilder(fn BackendBuilder) *Search {
	return s.with(step.ESBuilder, fn)
}

// Indexes restricts the indexes searched. The last call wins.
func (s *Search) Indexes(names ...string) *Search {
	return s.with(step.Indexes, slices.Clone(names))
}

// Doctypes restricts the doctypes searched. The last call wins.
func (s *Search) Doctypes(names ...string) *Search {
	return s.with(step.Doctypes, slices.Clone(names))
}

// Explain asks the engine to explain each hit's score.
func (s *Search) Explain(on bool) *Search {
	return s.with(step.Explain, on)
}

// ValuesList returns tuples of the given fields. Fields accumulate across
// ValuesList and ValuesDict calls; the last of the two picks the shape.
// Without fields every source value is returned.
func (s *Search) ValuesList(fields ...string) *Search {
	return s.with(step.ValuesList, slices.Clone(fields))
}

// ValuesDict returns mappings of the given fields. Called without fields it
// clears the field set so whole source documents are returned.
func (s *Search) ValuesDict(fields ...string) *Search {
	return s.with(step.ValuesDict, slices.Clone(fields))
}

// OrderBy replaces the sort order. A "-" prefix sorts descending.
func (s *Search) OrderBy(keys ...string) *Search {
	return s.with(step.OrderBy, slices.Clone(keys))
}

// Query adds scoring clauses. Clauses from every call must all match.
func (s *Search) Query(pairs ...Pair) *Search {
	return s.with(step.Query, toPairs(pairs))
}

// Filter adds filters. Filters from every call are AND-ed together.
func (s *Search) Filter(args ...FilterArg) *Search {
	var v step.FilterValue
	var pairs []Pair
	for _, a := range args {
		switch x := a.(type) {
		case F:
			v.Exprs = append(v.Exprs, x.x)
		case Pair:
			pairs = append(pairs, x)
		}
	}
	v.Pairs = toPairs(pairs)
	return s.with(step.Filter, v)
}

// Boost merges per-field weights. Keys are "field" or "field__action";
// the exact action wins over the bare field.
func (s *Search) Boost(weights map[string]float64) *Search {
	out := s.with(step.Boost, maps.Clone(weights))
	if out.boosts == nil {
		out.boosts = make(map[string]float64, len(weights))
	}
	maps.Copy(out.boosts, weights)
	return out
}

// Demote multiplies the score of documents matching pairs by amount.
// The last call wins.
func (s *Search) Demote(amount float64, pairs ...Pair) *Search {
	return s.with(step.Demote, step.DemoteValue{Amount: amount, Pairs: toPairs(pairs)})
}

// Facet requests term counts for fields.
func (s *Search) Facet(fields ...string) *Search {
	return s.FacetWith(FacetOptions{}, fields...)
}

// FacetWith requests scoped term counts for fields. Global wins over
// Filtered.
func (s *Search) FacetWith(opts FacetOptions, fields ...string) *Search {
	return s.with(step.Facet, step.FacetValue{
		Fields:   slices.Clone(fields),
		Global:   opts.Global,
		Filtered: opts.Filtered,
	})
}

// FacetRaw merges facet definitions verbatim.
func (s *Search) FacetRaw(facets map[string]any) *Search {
	return s.with(step.FacetRaw, maps.Clone(facets))
}

// Highlight adds highlighted fields and merges highlight options.
func (s *Search) Highlight(options map[string]any, fields ...string) *Search {
	return s.with(step.Highlight, step.HighlightValue{
		Fields:  slices.Clone(fields),
		Options: maps.Clone(options),
	})
}

// ClearHighlight drops every highlighted field set so far.
func (s *Search) ClearHighlight() *Search {
	return s.with(step.Highlight, step.HighlightValue{Clear: true})
}

// Slice sets the page window to [start, stop).
func (s *Search) Slice(start, stop int) *Search {
	out := s.clone()
	out.start = max(start, 0)
	stop = max(stop, out.start)
	out.stop = &stop
	return out
}

// Offset starts the page at start with the engine's default size.
func (s *Search) Offset(start int) *Search {
	out := s.clone()
	out.start = max(start, 0)
	out.stop = nil
	return out
}

// Compile builds the request document without sending it.
func (s *Search) Compile() (Document, error) {
	out, err := s.compile(false)
	if err != nil {
		return nil, err
	}
	return out.Doc, nil
}

func (s *Search) compile(countOnly bool) (compile.Output, error) {
	out, err := compile.Compile(compile.Input{
		Steps:     s.steps,
		Start:     s.start,
		Stop:      s.stop,
		Boosts:    s.boosts,
		Delimiter: s.client.delimiter,
		CountOnly: countOnly,
	})
	if err != nil {
		return compile.Output{}, err //nolint:wrapcheck // domain errors reach the caller unchanged
	}
	return out, nil
}

// send compiles and runs the search once.
func (s *Search) send(ctx context.Context, countOnly bool) (*db.Response, error) {
	out, err := s.compile(countOnly)
	if err != nil {
		return nil, err
	}
	target, err := searchuc.Resolve(s.boundSteps(), s.client.defaults)
	if err != nil {
		return nil, err //nolint:wrapcheck // resolution errors are already descriptive
	}
	return s.client.executor.Execute(ctx, target.Backend, out.Doc, target.Indexes, target.Doctypes) //nolint:wrapcheck // backend errors reach the caller unchanged
}

// boundSteps hands the search to every BackendBuilder payload.
func (s *Search) boundSteps() step.List {
	out := s.steps
	cloned := false
	for i, st := range s.steps {
		fn, ok := st.Value.(BackendBuilder)
		if !ok || st.Action != step.ESBuilder {
			continue
		}
		if !cloned {
			out, cloned = slices.Clone(s.steps), true
		}
		out[i].Value = searchuc.BackendFunc(func() (db.Backend, error) { return fn(s) })
	}
	return out
}

// Raw returns the engine response, fetching it on first use.
func (s *Search) Raw(ctx context.Context) (*Response, error) {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	return s.fetchLocked(ctx)
}

func (s *Search) fetchLocked(ctx context.Context) (*db.Response, error) {
	if s.cache.resp != nil {
		return s.cache.resp, nil
	}
	resp, err := s.send(ctx, false)
	if err != nil {
		return nil, err
	}
	s.cache.resp = resp
	return resp, nil
}

// Results materializes the page: tuples after ValuesList, dicts after
// ValuesDict or when no target is bound, objects otherwise. The set is
// built once, so objects are looked up once per search.
func (s *Search) Results(ctx context.Context) (ResultSet, error) {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	if s.cache.set != nil {
		return s.cache.set, nil
	}
	resp, err := s.fetchLocked(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.compile(false)
	if err != nil {
		return nil, err
	}
	var lookup searchuc.ObjectLookup
	if s.client.lookup != nil {
		lookup = s.client.lookup
	}
	set, err := searchuc.Materialize(ctx, resp, out.Shape, out.Fields, s.target, lookup)
	if err != nil {
		return nil, err //nolint:wrapcheck // lookup errors are wrapped by the result package
	}
	s.cache.set = set
	return set, nil
}

// Len returns the number of items on the page.
func (s *Search) Len(ctx context.Context) (int, error) {
	set, err := s.Results(ctx)
	if err != nil {
		return 0, err
	}
	return set.Len(), nil
}

// Count returns the total number of matches. It reuses a fetched response
// and otherwise asks for the count alone.
func (s *Search) Count(ctx context.Context) (int64, error) {
	if resp := s.cache.get(); resp != nil {
		return int64(resp.Hits.Total), nil
	}
	resp, err := s.send(ctx, true)
	if err != nil {
		return 0, err
	}
	return int64(resp.Hits.Total), nil
}

// At returns the element at absolute position i by fetching the window
// [i, i+1).
func (s *Search) At(ctx context.Context, i int) (Item, error) {
	if i < 0 {
		return nil, domain.ErrIndexOutOfRange
	}
	set, err := s.Slice(i, i+1).Results(ctx)
	if err != nil {
		return nil, err
	}
	items := set.Items()
	if len(items) == 0 {
		return nil, domain.ErrIndexOutOfRange
	}
	return items[0], nil
}

// FacetCounts returns the facet buckets of the response.
func (s *Search) FacetCounts(ctx context.Context) (map[string]FacetCount, error) {
	resp, err := s.Raw(ctx)
	if err != nil {
		return nil, err
	}
	return result.FacetCounts(resp.Facets), nil
}
