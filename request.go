package searchkit

import (
	"github.com/kailas-cloud/searchkit/internal/domain/search/mode"
	"github.com/kailas-cloud/searchkit/internal/domain/search/request"
)

// Request describes a search as JSON. Query and filter keys keep the
// order they were written in.
type Request = request.Request

// ParseRequest decodes and validates a JSON search request.
func ParseRequest(data []byte) (Request, error) {
	return request.Parse(data) //nolint:wrapcheck // decode errors are already descriptive
}

// FromRequest builds the search a request describes.
func (c *Client) FromRequest(req Request) (*Search, error) {
	if err := req.Validate(); err != nil {
		return nil, err //nolint:wrapcheck // validation errors are already descriptive
	}

	s := c.Search()
	if req.Target != "" {
		s = c.For(req.Target)
	}
	if len(req.Indexes) > 0 {
		s = s.Indexes(req.Indexes...)
	}
	if len(req.Doctypes) > 0 {
		s = s.Doctypes(req.Doctypes...)
	}
	if len(req.Boost) > 0 {
		s = s.Boost(req.Boost)
	}
	if req.Query != nil {
		s = s.Query(pairsOf(req.Query)...)
	}
	if req.Filter != nil {
		pairs := pairsOf(req.Filter)
		args := make([]FilterArg, len(pairs))
		for i := range pairs {
			args[i] = pairs[i]
		}
		s = s.Filter(args...)
	}
	if req.Demote != nil {
		s = s.Demote(req.Demote.Amount, pairsOf(req.Demote.Query)...)
	}
	if len(req.OrderBy) > 0 {
		s = s.OrderBy(req.OrderBy...)
	}

	switch req.Mode {
	case mode.List:
		s = s.ValuesList(req.Fields...)
	case mode.Dict:
		s = s.ValuesDict(req.Fields...)
	case mode.Default:
		if len(req.Fields) > 0 {
			s = s.ValuesDict(req.Fields...)
		}
	}

	for _, f := range req.Facets {
		s = s.FacetWith(FacetOptions{Global: f.Global, Filtered: f.Filtered}, f.Fields...)
	}
	if len(req.FacetRaw) > 0 {
		s = s.FacetRaw(req.FacetRaw)
	}
	if req.Highlight != nil {
		s = s.Highlight(req.Highlight.Options, req.Highlight.Fields...)
	}
	if req.Explain {
		s = s.Explain(true)
	}

	switch {
	case req.Size != nil:
		s = s.Slice(req.From, req.From+*req.Size)
	case req.From > 0:
		s = s.Offset(req.From)
	}
	return s, nil
}

func pairsOf(args *request.Args) []Pair {
	src := request.Pairs(args)
	out := make([]Pair, len(src))
	for i, p := range src {
		out[i] = Pair{Key: p.Key, Value: p.Value}
	}
	return out
}
