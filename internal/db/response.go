package db

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Source is a hit's stored document with its original key order.
type Source = orderedmap.OrderedMap[string, any]

// NewSource creates an empty ordered source document.
func NewSource() *Source {
	return orderedmap.New[string, any]()
}

// Response is the engine's search response envelope.
type Response struct {
	Took     int64            `json:"took"`
	TimedOut bool             `json:"timed_out"`
	Hits     Hits             `json:"hits"`
	Facets   map[string]Facet `json:"facets,omitempty"`
}

// Hits holds the total match count and the returned page.
type Hits struct {
	Total    Total    `json:"total"`
	MaxScore *float64 `json:"max_score"`
	Hits     []Hit    `json:"hits"`
}

// Hit is one matched document.
type Hit struct {
	Index       string              `json:"_index,omitempty"`
	Type        *string             `json:"_type,omitempty"`
	ID          string              `json:"_id"`
	Score       *float64            `json:"_score"`
	Source      *Source             `json:"_source,omitempty"`
	Fields      map[string]any      `json:"fields,omitempty"`
	Explanation map[string]any      `json:"_explanation,omitempty"`
	Highlight   map[string][]string `json:"highlight,omitempty"`
}

// Total is the hit count. Engines report it either as a number or as
// an object with a "value" key.
type Total int64

// UnmarshalJSON accepts both total encodings.
func (t *Total) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*t = Total(n)
		return nil
	}
	var obj struct {
		Value int64 `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode hits.total: %w", err)
	}
	*t = Total(obj.Value)
	return nil
}

// Facet is a single facet result.
type Facet struct {
	Type    string       `json:"_type"`
	Missing int64        `json:"missing,omitempty"`
	Total   int64        `json:"total,omitempty"`
	Other   int64        `json:"other,omitempty"`
	Terms   []FacetTerm  `json:"terms,omitempty"`
	Ranges  []FacetRange `json:"ranges,omitempty"`
}

// FacetTerm is a value and its document frequency.
type FacetTerm struct {
	Term  any   `json:"term"`
	Count int64 `json:"count"`
}

// FacetRange is a numeric bucket.
type FacetRange struct {
	From  *float64 `json:"from,omitempty"`
	To    *float64 `json:"to,omitempty"`
	Count int64    `json:"count"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
	Mean  *float64 `json:"mean,omitempty"`
}

// DecodeResponse parses a response body.
func DecodeResponse(data []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &r, nil
}
