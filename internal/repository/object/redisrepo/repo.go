// Package redisrepo looks up domain objects stored as Redis hashes.
package redisrepo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/searchkit/internal/db"
)

// DefaultPrefix namespaces object keys.
const DefaultPrefix = "searchkit:"

// store is the consumer interface for objects (ISP).
type store interface {
	PutHashes(ctx context.Context, hashes []db.Hash) error
	GetHashes(ctx context.Context, keys []string) ([]map[string]string, error)
}

// Repo implements search.ObjectLookup over Redis hashes.
type Repo struct {
	store  store
	prefix string
}

// New creates an object repository. An empty prefix uses DefaultPrefix.
func New(s store, prefix string) *Repo {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Repo{store: s, prefix: prefix}
}

// Object is a stored domain object.
type Object struct {
	ID     string
	Fields map[string]any
}

// Save writes objects of a target type in one pipeline.
func (r *Repo) Save(ctx context.Context, target string, objects []Object) error {
	if len(objects) == 0 {
		return nil
	}
	hashes := make([]db.Hash, 0, len(objects))
	for _, o := range objects {
		hashes = append(hashes, db.Hash{
			Key:    r.key(target, o.ID),
			Fields: toHash(o.ID, o.Fields),
		})
	}
	if err := r.store.PutHashes(ctx, hashes); err != nil {
		return fmt.Errorf("save %s objects: %w", target, err)
	}
	return nil
}

// FindByIDs returns the objects found for ids, keyed by id. Missing ids
// are absent from the result.
func (r *Repo) FindByIDs(ctx context.Context, target string, ids []string) (map[string]any, error) {
	if len(ids) == 0 {
		return map[string]any{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(target, id)
	}

	hashes, err := r.store.GetHashes(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("find %s objects: %w", target, err)
	}

	out := make(map[string]any, len(ids))
	for i, h := range hashes {
		if i >= len(ids) || len(h) == 0 {
			continue
		}
		out[ids[i]] = fromHash(h)
	}
	return out, nil
}

func (r *Repo) key(target, id string) string {
	return r.prefix + target + ":" + id
}

// toHash flattens an object into string fields. The id is always stored.
func toHash(id string, fields map[string]any) map[string]string {
	m := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		switch x := v.(type) {
		case string:
			m[k] = x
		case float64:
			m[k] = strconv.FormatFloat(x, 'f', -1, 64)
		case nil:
		default:
			m[k] = fmt.Sprint(x)
		}
	}
	m["id"] = id
	return m
}

// fromHash restores numeric fields parsed from their string form.
func fromHash(h map[string]string) map[string]any {
	m := make(map[string]any, len(h))
	for k, v := range h {
		if k != "id" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				m[k] = f
				continue
			}
		}
		m[k] = v
	}
	return m
}
