package searchkit

import (
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchkit/internal/db"
	"github.com/kailas-cloud/searchkit/internal/db/elastic"
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	factory   db.Factory
	settings  db.Settings
	logger    *zap.Logger
	debug     bool
	lookup    ObjectLookup
	delimiter string
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		factory:   elastic.Factory,
		settings:  db.Settings{Hosts: []string{"localhost:9200"}},
		logger:    zap.NewNop(),
		delimiter: DefaultDelimiter,
	}
}

// WithFactory sets the factory used when a search selects no backend.
func WithFactory(f Factory) Option {
	return func(c *clientConfig) {
		c.factory = f
	}
}

// WithBackend makes every search without its own backend use b.
func WithBackend(b Backend) Option {
	return func(c *clientConfig) {
		c.factory = func(Settings) (Backend, error) { return b, nil }
	}
}

// WithSettings replaces the default backend settings.
func WithSettings(s Settings) Option {
	return func(c *clientConfig) {
		c.settings = s
	}
}

// WithHosts sets the default engine hosts.
func WithHosts(hosts ...string) Option {
	return func(c *clientConfig) {
		c.settings.Hosts = hosts
	}
}

// WithDefaultIndexes sets the indexes searched when a search names none.
func WithDefaultIndexes(names ...string) Option {
	return func(c *clientConfig) {
		c.settings.DefaultIndexes = names
	}
}

// WithDefaultDoctypes sets the doctypes searched when a search names none.
func WithDefaultDoctypes(names ...string) Option {
	return func(c *clientConfig) {
		c.settings.DefaultDoctypes = names
	}
}

// WithTimeout sets the default backend request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.settings.Timeout = d
	}
}

// WithLogger sets the logger. Searches are logged at debug level and
// failures at error level.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDebug records every search in the query log carried by the context.
// See StartQueryLog.
func WithDebug(on bool) Option {
	return func(c *clientConfig) {
		c.debug = on
	}
}

// WithObjectLookup sets how target-bound searches resolve hit ids.
func WithObjectLookup(l ObjectLookup) Option {
	return func(c *clientConfig) {
		c.lookup = l
	}
}

// WithDelimiter changes the separator between a field and its action.
func WithDelimiter(d string) Option {
	return func(c *clientConfig) {
		if d != "" {
			c.delimiter = d
		}
	}
}
