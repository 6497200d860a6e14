// Package request decodes and validates JSON search requests.
package request

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/kailas-cloud/searchkit/internal/domain/search/action"
	"github.com/kailas-cloud/searchkit/internal/domain/search/mode"
)

// Search request limits.
const (
	// MaxSize is the largest page a single request may ask for.
	MaxSize = 1000
)

// Args keeps field-action arguments in the order they were written.
type Args = orderedmap.OrderedMap[string, any]

// Demote is a demotion clause.
type Demote struct {
	Amount float64 `json:"amount"`
	Query  *Args   `json:"query"`
}

// Facet requests term facets for fields.
type Facet struct {
	Fields   []string `json:"fields"`
	Global   bool     `json:"global,omitempty"`
	Filtered bool     `json:"filtered,omitempty"`
}

// Highlight requests highlighted snippets.
type Highlight struct {
	Fields  []string       `json:"fields"`
	Options map[string]any `json:"options,omitempty"`
}

// Request is a search described as JSON.
type Request struct {
	Target    string             `json:"target,omitempty"`
	Indexes   []string           `json:"indexes,omitempty"`
	Doctypes  []string           `json:"doctypes,omitempty"`
	Query     *Args              `json:"query,omitempty"`
	Filter    *Args              `json:"filter,omitempty"`
	Boost     map[string]float64 `json:"boost,omitempty"`
	Demote    *Demote            `json:"demote,omitempty"`
	OrderBy   []string           `json:"order_by,omitempty"`
	Mode      mode.Mode          `json:"mode,omitempty"`
	Fields    []string           `json:"fields,omitempty"`
	Facets    []Facet            `json:"facets,omitempty"`
	FacetRaw  map[string]any     `json:"facet_raw,omitempty"`
	Highlight *Highlight         `json:"highlight,omitempty"`
	From      int                `json:"from,omitempty"`
	Size      *int               `json:"size,omitempty"`
	Explain   bool               `json:"explain,omitempty"`
}

// Parse decodes and validates a request body.
func Parse(data []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}

// Validate checks paging bounds and the output mode.
func (r *Request) Validate() error {
	if !r.Mode.IsValid() {
		return fmt.Errorf("invalid mode: %q", r.Mode)
	}
	if r.From < 0 {
		return fmt.Errorf("from must be non-negative")
	}
	if r.Size != nil && (*r.Size < 0 || *r.Size > MaxSize) {
		return fmt.Errorf("size must be between 0 and %d", MaxSize)
	}
	if r.Demote != nil && r.Demote.Query == nil {
		return fmt.Errorf("demote requires a query")
	}
	for _, f := range r.Facets {
		if len(f.Fields) == 0 {
			return fmt.Errorf("facet requires at least one field")
		}
	}
	return nil
}

// Pairs converts ordered arguments into field-action pairs.
// Nested objects keep their decoded form and are resolved by the caller.
func Pairs(args *Args) action.Pairs {
	if args == nil {
		return nil
	}
	out := make(action.Pairs, 0, args.Len())
	for p := args.Oldest(); p != nil; p = p.Next() {
		out = append(out, action.Pair{Key: p.Key, Value: p.Value})
	}
	return out
}
