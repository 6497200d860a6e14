package search

import (
	"context"

	"github.com/kailas-cloud/searchkit/internal/db"
)

// BackendFunc builds a backend on demand. It is the payload of an
// es_builder step.
type BackendFunc func() (db.Backend, error)

// ObjectLookup fetches domain objects of a target type by id.
type ObjectLookup interface {
	FindByIDs(ctx context.Context, target string, ids []string) (map[string]any, error)
}
