package redisrepo

import (
	"context"
	"testing"

	"github.com/kailas-cloud/searchkit/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	putFn func(ctx context.Context, hashes []db.Hash) error
	getFn func(ctx context.Context, keys []string) ([]map[string]string, error)
}

func (m *mockStore) PutHashes(ctx context.Context, hashes []db.Hash) error {
	if m.putFn != nil {
		return m.putFn(ctx, hashes)
	}
	return nil
}

func (m *mockStore) GetHashes(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.getFn != nil {
		return m.getFn(ctx, keys)
	}
	return make([]map[string]string, len(keys)), nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "test:"), ms
}
