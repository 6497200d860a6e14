// Package redis keeps domain objects as flat Redis hashes, one key per
// object, read and written in pipelined batches.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/searchkit/internal/db"
)

var _ db.Store = (*Store)(nil)

const readyPollInterval = 100 * time.Millisecond

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	// TTL expires written objects. Zero keeps them forever.
	TTL time.Duration
}

// Store implements db.Store via rueidis.
type Store struct {
	client rueidis.Client
	ttl    time.Duration
}

// NewStore connects to Redis. The client side cache stays off: objects are
// read once per result page.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("redis: addrs is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: connect %v: %w", cfg.Addrs, err)
	}
	return newStore(client, cfg.TTL), nil
}

func newStore(c rueidis.Client, ttl time.Duration) *Store {
	return &Store{client: c, ttl: ttl}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until Redis answers or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	var last error
	for {
		select {
		case <-ctx.Done():
			if last != nil {
				return fmt.Errorf("redis not ready after %s: %w", timeout, last)
			}
			return fmt.Errorf("redis not ready after %s: %w", timeout, ctx.Err())
		case <-ticker.C:
			if last = s.Ping(ctx); last == nil {
				return nil
			}
		}
	}
}

// PutHashes writes every hash in a single DoMulti round trip. When the store
// has a TTL each HSET is followed by an EXPIRE on the same key.
func (s *Store) PutHashes(ctx context.Context, hashes []db.Hash) error {
	if len(hashes) == 0 {
		return nil
	}
	per := 1
	if s.ttl > 0 {
		per = 2
	}
	cmds := make([]rueidis.Completed, 0, len(hashes)*per)
	for _, h := range hashes {
		hset := s.client.B().Hset().Key(h.Key).FieldValue()
		for k, v := range h.Fields {
			hset = hset.FieldValue(k, v)
		}
		cmds = append(cmds, hset.Build())
		if s.ttl > 0 {
			cmds = append(cmds, s.client.B().Expire().Key(h.Key).Seconds(int64(s.ttl/time.Second)).Build())
		}
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", hashes[i/per].Key, err)}
		}
	}
	return nil
}

// GetHashes reads hashes in a single DoMulti round trip. The result is
// parallel to keys; a missing key yields an empty map.
func (s *Store) GetHashes(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.client.B().Hgetall().Key(key).Build()
	}

	out := make([]map[string]string, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = m
	}
	return out, nil
}
