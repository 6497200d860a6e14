// Package querylog keeps a request-scoped record of compiled searches.
package querylog

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kailas-cloud/searchkit/internal/db"
)

// Entry is one search sent during a request.
type Entry struct {
	Query db.Document `json:"query"`
	// Took is the engine-reported time in milliseconds.
	Took int64 `json:"time"`
}

type log struct {
	mu      sync.Mutex
	entries []Entry
}

type ctxKey struct{}

// Start returns a context carrying a fresh, empty log. Call it at the
// beginning of every request.
func Start(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, &log{})
}

// Record appends e to the log in ctx. Without a log it does nothing.
func Record(ctx context.Context, e Entry) {
	l, ok := ctx.Value(ctxKey{}).(*log)
	if !ok {
		return
	}
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// Entries returns a copy of the entries recorded in ctx.
func Entries(ctx context.Context) []Entry {
	l, ok := ctx.Value(ctxKey{}).(*log)
	if !ok {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// PanelEntry is an entry placed on a timeline.
type PanelEntry struct {
	Entry
	// WidthRatio is the entry's share of the total time, in percent.
	WidthRatio float64 `json:"width_ratio"`
	// StartOffset is the sum of the preceding width ratios.
	StartOffset float64 `json:"start_offset"`
}

// Panel summarizes the searches of one request.
type Panel struct {
	Queries []PanelEntry `json:"queries"`
	TotalMS float64      `json:"total_ms"`
}

// NewPanel lays the entries out on a timeline.
func NewPanel(entries []Entry) Panel {
	p := Panel{Queries: make([]PanelEntry, len(entries))}
	for _, e := range entries {
		p.TotalMS += float64(e.Took)
	}
	var tally float64
	for i, e := range entries {
		pe := PanelEntry{Entry: e, StartOffset: tally}
		if p.TotalMS > 0 {
			pe.WidthRatio = float64(e.Took) / p.TotalMS * 100
		}
		tally += pe.WidthRatio
		p.Queries[i] = pe
	}
	return p
}

// Summary returns e.g. "2 queries in 13.00ms".
func (p Panel) Summary() string {
	noun := "queries"
	if len(p.Queries) == 1 {
		noun = "query"
	}
	return fmt.Sprintf("%d %s in %.2fms", len(p.Queries), noun, p.TotalMS)
}
