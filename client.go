package searchkit

import (
	"context"
	"sync/atomic"

	"github.com/kailas-cloud/searchkit/internal/db"
	"github.com/kailas-cloud/searchkit/internal/domain"
	"github.com/kailas-cloud/searchkit/internal/domain/search/action"
	"github.com/kailas-cloud/searchkit/internal/domain/search/result"
	"github.com/kailas-cloud/searchkit/internal/querylog"
	searchuc "github.com/kailas-cloud/searchkit/internal/usecase/search"
)

// DefaultDelimiter separates a field name from its action.
const DefaultDelimiter = action.DefaultDelimiter

// Backend contract types.
type (
	// Backend is a search engine handle.
	Backend = db.Backend
	// Factory builds a backend from settings.
	Factory = db.Factory
	// Settings selects and configures a backend.
	Settings = db.Settings
	// Document is a compiled request document.
	Document = db.Document
	// Response is the engine's response envelope.
	Response = db.Response
)

// Result types.
type (
	// ResultSet is a materialized page: dicts, tuples or objects.
	ResultSet = result.Set
	// Item is one element of a ResultSet.
	Item = result.Item
	// Metadata is the hit envelope attached to every item.
	Metadata = result.Metadata
	// Dict is a hit's fields as a mapping.
	Dict = result.Dict
	// Tuple is a hit's values in a fixed order.
	Tuple = result.Tuple
	// Object is a domain object resolved from a hit id.
	Object = result.Object
	// FacetCount is the bucket list of one facet.
	FacetCount = result.FacetCount
	// ObjectLookup fetches domain objects of a target type by id.
	ObjectLookup = result.ObjectLookup
	// QueryLogEntry is one search recorded while debugging.
	QueryLogEntry = querylog.Entry
)

// Errors surfaced by searches.
var (
	ErrInvalidFieldAction = domain.ErrInvalidFieldAction
	ErrUnsupportedStep    = domain.ErrUnsupportedStep
	ErrIndexOutOfRange    = domain.ErrIndexOutOfRange
	ErrNoObjectLookup     = domain.ErrNoObjectLookup
	ErrNoBackend          = domain.ErrNoBackend
)

// Client holds what searches share: the default backend, the executor,
// the object lookup and the field-action delimiter.
type Client struct {
	defaults  searchuc.Defaults
	executor  *searchuc.Executor
	lookup    ObjectLookup
	delimiter string
}

// New creates a Client. Without options it talks to an engine on
// localhost:9200 over HTTP.
func New(opts ...Option) *Client {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	return &Client{
		defaults:  searchuc.Defaults{Factory: cfg.factory, Settings: cfg.settings},
		executor:  searchuc.NewExecutor(cfg.logger, cfg.debug),
		lookup:    cfg.lookup,
		delimiter: cfg.delimiter,
	}
}

// Search starts an empty search not bound to a target type.
func (c *Client) Search() *Search {
	return &Search{client: c, cache: &responseCache{}}
}

// For starts an empty search whose hits resolve to objects of target.
func (c *Client) For(target string) *Search {
	s := c.Search()
	s.target = target
	return s
}

// Ping checks the default backend.
func (c *Client) Ping(ctx context.Context) error {
	t, err := searchuc.Resolve(nil, c.defaults)
	if err != nil {
		return err //nolint:wrapcheck // resolution errors are already descriptive
	}
	return t.Backend.Ping(ctx) //nolint:wrapcheck // backend errors reach the caller unchanged
}

var defaultClient atomic.Pointer[Client]

func init() {
	defaultClient.Store(New())
}

// SetDefault replaces the client used by S.
func SetDefault(c *Client) {
	if c != nil {
		defaultClient.Store(c)
	}
}

// Default returns the client used by S.
func Default() *Client {
	return defaultClient.Load()
}

// S starts a search on the default client.
func S() *Search {
	return Default().Search()
}

// StartQueryLog returns a context carrying a fresh query log. Searches run
// with it by a client with debugging on are recorded there.
func StartQueryLog(ctx context.Context) context.Context {
	return querylog.Start(ctx)
}

// QueryLog returns the searches recorded in ctx.
func QueryLog(ctx context.Context) []QueryLogEntry {
	return querylog.Entries(ctx)
}
