package search

import (
	"context"

	"github.com/kailas-cloud/searchkit/internal/db"
	"github.com/kailas-cloud/searchkit/internal/domain/search/mode"
	"github.com/kailas-cloud/searchkit/internal/domain/search/result"
	"github.com/kailas-cloud/searchkit/internal/metrics"
)

// Materialize wraps resp in the result set variant for shape: tuples for
// list, dicts for dict or when no target is bound, objects otherwise.
func Materialize(
	ctx context.Context, resp *db.Response, shape mode.Mode, fields []string,
	target string, lookup ObjectLookup,
) (result.Set, error) {
	switch {
	case shape == mode.List:
		return result.NewTupleSet(resp, fields), nil
	case shape == mode.Dict || target == "":
		return result.NewDictSet(resp, fields), nil
	}

	set, err := result.NewObjectSet(ctx, lookup, target, resp)
	if err != nil {
		return nil, err //nolint:wrapcheck // already wrapped by the result package
	}
	found := set.Len()
	metrics.ObjectLookupsTotal.WithLabelValues("found").Add(float64(found))
	metrics.ObjectLookupsTotal.WithLabelValues("missing").Add(float64(len(resp.Hits.Hits) - found))
	return set, nil
}
