// Package searchkit is a lazy query builder over a full-text search engine.
//
// A Search accumulates query intent through chained calls. Every call
// returns a new Search and leaves the receiver untouched. Nothing is sent
// until results are needed:
//
//	c := searchkit.New(searchkit.WithHosts("localhost:9200"))
//	s := c.Search().
//		Filter(searchkit.P("status", "published")).
//		OrderBy("-date").
//		Boost(map[string]float64{"title": 2}).
//		Query(searchkit.P("title__text", "rust")).
//		Slice(0, 10)
//
//	set, err := s.Results(ctx)
//
// Field keys carry an optional action suffix after the delimiter ("__" by
// default): term, in, startswith, prefix, text, text_phrase, fuzzy,
// query_string, gt, gte, lt, lte. Each Search sends at most one request;
// the response is cached on the instance.
package searchkit
