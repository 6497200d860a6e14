package db

import (
	"context"
	"time"
)

// Document is a compiled search request in wire form.
type Document = map[string]any

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Searcher runs a compiled request against indexes and doctypes.
// Empty selectors search everything.
type Searcher interface {
	Search(ctx context.Context, doc Document, indexes, doctypes []string) (*Response, error)
}

// Backend is a search engine handle.
type Backend interface {
	Pinger
	Searcher
}

// Indexer stores source documents so they become searchable.
// Source key order is preserved in search responses.
type Indexer interface {
	Index(ctx context.Context, index, doctype, id string, source *Source) error
}

// Hash is one object stored as flat string fields under a key.
type Hash struct {
	Key    string
	Fields map[string]string
}

// HashStore reads and writes hashes in batches.
type HashStore interface {
	PutHashes(ctx context.Context, hashes []Hash) error
	GetHashes(ctx context.Context, keys []string) ([]map[string]string, error)
}

// Store is a hash store holding domain objects.
type Store interface {
	Pinger
	HashStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Settings selects and configures a backend.
type Settings struct {
	Hosts           []string
	DefaultIndexes  []string
	DefaultDoctypes []string
	Timeout         time.Duration
}

// Factory builds a backend from settings.
type Factory func(s Settings) (Backend, error)
