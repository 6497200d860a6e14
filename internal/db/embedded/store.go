// Package embedded is an in-process search backend built on bleve.
//
// Every index is held in memory. When a data directory is configured,
// writes go to a write-ahead log first and are replayed on open.
package embedded

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/tidwall/wal"

	"github.com/kailas-cloud/searchkit/internal/db"
)

const (
	sourceField  = "_source"
	doctypeField = "_doctype"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("embedded: store closed")

// Config configures the store.
type Config struct {
	// Dir holds the write-ahead log. Empty keeps everything in memory.
	Dir string
}

// Store is a set of named bleve indexes.
type Store struct {
	mu      sync.RWMutex
	indexes map[string]bleve.Index
	log     *wal.Log
	closed  bool
}

// LogEntry is one indexed document in the write-ahead log.
type LogEntry struct {
	Index   string          `json:"index"`
	Doctype string          `json:"doctype,omitempty"`
	ID      string          `json:"id"`
	Source  json.RawMessage `json:"source"`
}

// Open creates a store and replays its log, if any.
func Open(cfg Config) (*Store, error) {
	s := &Store{indexes: make(map[string]bleve.Index)}
	if cfg.Dir == "" {
		return s, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	log, err := wal.Open(filepath.Join(cfg.Dir, "wal"), nil)
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}
	s.log = log

	if err := s.replay(); err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("replay wal: %w", err)
	}
	return s, nil
}

// Factory returns a backend factory that always yields this store.
// Hosts in the settings are ignored.
func (s *Store) Factory() db.Factory {
	return func(db.Settings) (db.Backend, error) {
		return s, nil
	}
}

func (s *Store) replay() error {
	last, err := s.log.LastIndex()
	if err != nil {
		return err
	}
	if last == 0 {
		return nil
	}
	first, err := s.log.FirstIndex()
	if err != nil {
		return err
	}

	for i := first; i <= last; i++ {
		data, err := s.log.Read(i)
		if err != nil {
			return err
		}
		var e LogEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		src := db.NewSource()
		if err := src.UnmarshalJSON(e.Source); err != nil {
			return fmt.Errorf("entry %d source: %w", i, err)
		}
		if err := s.put(e.Index, e.Doctype, e.ID, src, e.Source); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}

// Index stores a document under index and doctype. The index is created
// on first use.
func (s *Store) Index(_ context.Context, index, doctype, id string, source *db.Source) error {
	if !db.IsValidIdentifier(index) {
		return &db.Error{Op: db.OpIndex, Err: fmt.Errorf("invalid index name %q", index)}
	}
	if source == nil {
		source = db.NewSource()
	}
	raw, err := json.Marshal(source)
	if err != nil {
		return &db.Error{Op: db.OpIndex, Err: fmt.Errorf("encode source: %w", err)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &db.Error{Op: db.OpIndex, Err: ErrClosed}
	}

	if s.log != nil {
		entry, err := json.Marshal(LogEntry{Index: index, Doctype: doctype, ID: id, Source: raw})
		if err != nil {
			return &db.Error{Op: db.OpIndex, Err: err}
		}
		last, err := s.log.LastIndex()
		if err != nil {
			return &db.Error{Op: db.OpIndex, Err: err}
		}
		if err := s.log.Write(last+1, entry); err != nil {
			return &db.Error{Op: db.OpIndex, Err: fmt.Errorf("write wal: %w", err)}
		}
	}

	if err := s.put(index, doctype, id, source, raw); err != nil {
		return &db.Error{Op: db.OpIndex, Err: err}
	}
	return nil
}

// put indexes a document. Callers hold the write lock or own the store.
func (s *Store) put(index, doctype, id string, source *db.Source, raw []byte) error {
	idx, ok := s.indexes[index]
	if !ok {
		var err error
		idx, err = bleve.NewMemOnly(defaultMapping())
		if err != nil {
			return fmt.Errorf("create index %s: %w", index, err)
		}
		idx.SetName(index)
		s.indexes[index] = idx
	}

	data := make(map[string]any, source.Len()+2)
	for pair := source.Oldest(); pair != nil; pair = pair.Next() {
		data[pair.Key] = pair.Value
	}
	data[sourceField] = string(raw)
	data[doctypeField] = doctype
	return idx.Index(id, data)
}

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &db.Error{Op: db.OpPing, Err: ErrClosed}
	}
	return nil
}

// Indexes lists the known index names in sorted order.
func (s *Store) Indexes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.indexes))
	for name := range s.indexes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close releases every index and the log.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, idx := range s.indexes {
		errs = append(errs, idx.Close())
	}
	if s.log != nil {
		errs = append(errs, s.log.Close())
	}
	return errors.Join(errs...)
}

// target returns the indexes a search runs against and, when there is
// exactly one, its name. No names means all.
func (s *Store) target(names []string) (bleve.Index, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, "", ErrClosed
	}

	if len(names) == 0 {
		for name := range s.indexes {
			names = append(names, name)
		}
		if len(names) == 0 {
			return nil, "", db.ErrIndexNotFound
		}
		slices.Sort(names)
	}
	list := make([]bleve.Index, 0, len(names))
	for _, name := range names {
		idx, ok := s.indexes[name]
		if !ok {
			return nil, "", fmt.Errorf("%w: %s", db.ErrIndexNotFound, name)
		}
		list = append(list, idx)
	}
	if len(list) == 1 {
		return list[0], names[0], nil
	}
	return bleve.NewIndexAlias(list...), "", nil
}

func defaultMapping() mapping.IndexMapping {
	m := bleve.NewIndexMapping()

	source := bleve.NewTextFieldMapping()
	source.Store = true
	source.Index = false
	source.IncludeInAll = false
	m.DefaultMapping.AddFieldMappingsAt(sourceField, source)

	doctype := bleve.NewKeywordFieldMapping()
	doctype.Store = true
	doctype.IncludeInAll = false
	m.DefaultMapping.AddFieldMappingsAt(doctypeField, doctype)
	return m
}
