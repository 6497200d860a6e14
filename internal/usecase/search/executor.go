// Package search sends compiled requests to a backend and materializes
// the responses.
package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchkit/internal/db"
	"github.com/kailas-cloud/searchkit/internal/metrics"
	"github.com/kailas-cloud/searchkit/internal/querylog"
)

// Executor sends compiled documents to a backend.
type Executor struct {
	logger *zap.Logger
	debug  bool
}

// NewExecutor creates an executor. With debug on, every successful search
// is recorded in the request's query log.
func NewExecutor(logger *zap.Logger, debug bool) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{logger: logger, debug: debug}
}

// Execute runs one search. Backend errors are logged with the offending
// document and returned unchanged.
func (e *Executor) Execute(
	ctx context.Context, backend db.Searcher, doc db.Document, indexes, doctypes []string,
) (*db.Response, error) {
	start := time.Now()
	resp, err := backend.Search(ctx, doc, indexes, doctypes)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		e.logger.Error("Search failed",
			zap.Any("query", doc),
			zap.Strings("indexes", indexes),
			zap.Strings("doctypes", doctypes),
			zap.Error(err),
		)
		return nil, err //nolint:wrapcheck // backend failures reach the caller unchanged
	}

	metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
	metrics.SearchHitsTotal.Add(float64(len(resp.Hits.Hits)))

	e.logger.Debug("Search completed",
		zap.Int64("took_ms", resp.Took),
		zap.Any("query", doc),
	)

	if e.debug {
		querylog.Record(ctx, querylog.Entry{Query: doc, Took: resp.Took})
	}
	return resp, nil
}
