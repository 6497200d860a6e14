// Package result materializes raw search responses into decorated items.
package result

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/searchkit/internal/db"
	"github.com/kailas-cloud/searchkit/internal/domain"
)

// Metadata is the hit envelope attached to every item.
type Metadata struct {
	ID          string
	Score       *float64
	DocType     *string
	Explanation map[string]any
	Highlight   map[string][]string
}

func newMetadata(h *db.Hit) Metadata {
	m := Metadata{
		ID:          h.ID,
		Score:       h.Score,
		DocType:     h.Type,
		Explanation: h.Explanation,
		Highlight:   h.Highlight,
	}
	if m.Explanation == nil {
		m.Explanation = map[string]any{}
	}
	if m.Highlight == nil {
		m.Highlight = map[string][]string{}
	}
	return m
}

// Meta returns the hit metadata.
func (m Metadata) Meta() Metadata { return m }

// Item is one decorated element of a result set.
type Item interface {
	Meta() Metadata
}

// Set is a materialized page of results.
type Set interface {
	// Total is the number of matches, not the page size.
	Total() int64
	Took() int64
	Len() int
	Items() []Item
	Facets() map[string]db.Facet
}

type base struct {
	resp *db.Response
}

func (b base) Total() int64                { return int64(b.resp.Hits.Total) }
func (b base) Took() int64                 { return b.resp.Took }
func (b base) Facets() map[string]db.Facet { return b.resp.Facets }

// Dict is a hit's fields as a mapping.
type Dict struct {
	Metadata
	Values map[string]any
}

// DictSet yields one Dict per hit.
type DictSet struct {
	base
	items []Dict
}

// NewDictSet reads each hit's fields when fields were requested and its
// source document otherwise.
func NewDictSet(resp *db.Response, fields []string) *DictSet {
	s := &DictSet{base: base{resp: resp}, items: make([]Dict, 0, len(resp.Hits.Hits))}
	for i := range resp.Hits.Hits {
		h := &resp.Hits.Hits[i]
		var values map[string]any
		if len(fields) > 0 {
			values = copyMap(h.Fields)
		} else {
			values = sourceMap(h.Source)
		}
		s.items = append(s.items, Dict{Metadata: newMetadata(h), Values: values})
	}
	return s
}

// Len returns the number of items on the page.
func (s *DictSet) Len() int { return len(s.items) }

// Dicts returns the typed items.
func (s *DictSet) Dicts() []Dict { return s.items }

// Items returns the items.
func (s *DictSet) Items() []Item {
	out := make([]Item, len(s.items))
	for i := range s.items {
		out[i] = s.items[i]
	}
	return out
}

// Tuple is a hit's values in a fixed order.
type Tuple struct {
	Metadata
	Values []any
}

// TupleSet yields one Tuple per hit.
type TupleSet struct {
	base
	items []Tuple
}

// NewTupleSet projects the requested fields in order. A single field still
// yields a one-element tuple. Without fields every source value is
// projected in source order.
func NewTupleSet(resp *db.Response, fields []string) *TupleSet {
	s := &TupleSet{base: base{resp: resp}, items: make([]Tuple, 0, len(resp.Hits.Hits))}
	for i := range resp.Hits.Hits {
		h := &resp.Hits.Hits[i]
		var values []any
		if len(fields) > 0 {
			values = make([]any, len(fields))
			for j, f := range fields {
				values[j] = h.Fields[f]
			}
		} else {
			values = sourceValues(h.Source)
		}
		s.items = append(s.items, Tuple{Metadata: newMetadata(h), Values: values})
	}
	return s
}

// Len returns the number of items on the page.
func (s *TupleSet) Len() int { return len(s.items) }

// Tuples returns the typed items.
func (s *TupleSet) Tuples() []Tuple { return s.items }

// Items returns the items.
func (s *TupleSet) Items() []Item {
	out := make([]Item, len(s.items))
	for i := range s.items {
		out[i] = s.items[i]
	}
	return out
}

// ObjectLookup fetches domain objects of a target type by id.
// Ids without a stored object are absent from the returned map.
type ObjectLookup interface {
	FindByIDs(ctx context.Context, target string, ids []string) (map[string]any, error)
}

// Object is a domain object resolved from a hit id.
type Object struct {
	Metadata
	Object any
}

// ObjectSet yields the domain objects behind the hits in rank order.
type ObjectSet struct {
	base
	items []Object
}

// NewObjectSet performs one bulk lookup for every hit id. Hits whose id is
// not found are skipped.
func NewObjectSet(ctx context.Context, lookup ObjectLookup, target string, resp *db.Response) (*ObjectSet, error) {
	if lookup == nil {
		return nil, domain.ErrNoObjectLookup
	}
	hits := resp.Hits.Hits
	ids := make([]string, len(hits))
	for i := range hits {
		ids[i] = hits[i].ID
	}

	objs, err := lookup.FindByIDs(ctx, target, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup %s objects: %w", target, err)
	}

	s := &ObjectSet{base: base{resp: resp}, items: make([]Object, 0, len(objs))}
	for i := range hits {
		obj, ok := objs[hits[i].ID]
		if !ok {
			continue
		}
		s.items = append(s.items, Object{Metadata: newMetadata(&hits[i]), Object: obj})
	}
	return s, nil
}

// Len returns the number of resolved objects.
func (s *ObjectSet) Len() int { return len(s.items) }

// Objects returns the typed items.
func (s *ObjectSet) Objects() []Object { return s.items }

// Items returns the items.
func (s *ObjectSet) Items() []Item {
	out := make([]Item, len(s.items))
	for i := range s.items {
		out[i] = s.items[i]
	}
	return out
}

// FacetCount is the bucket list of one facet.
type FacetCount struct {
	Type   string
	Terms  []db.FacetTerm
	Ranges []db.FacetRange
}

// FacetCounts extracts terms and range buckets. Other facet types are
// skipped.
func FacetCounts(facets map[string]db.Facet) map[string]FacetCount {
	out := make(map[string]FacetCount, len(facets))
	for name, f := range facets {
		switch f.Type {
		case "terms":
			out[name] = FacetCount{Type: f.Type, Terms: f.Terms}
		case "range":
			out[name] = FacetCount{Type: f.Type, Ranges: f.Ranges}
		}
	}
	return out
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sourceMap(src *db.Source) map[string]any {
	if src == nil {
		return map[string]any{}
	}
	out := make(map[string]any, src.Len())
	for p := src.Oldest(); p != nil; p = p.Next() {
		out[p.Key] = p.Value
	}
	return out
}

func sourceValues(src *db.Source) []any {
	if src == nil {
		return nil
	}
	out := make([]any, 0, src.Len())
	for p := src.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Value)
	}
	return out
}
