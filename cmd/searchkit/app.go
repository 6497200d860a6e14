package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchkit"
	"github.com/kailas-cloud/searchkit/internal/config"
	"github.com/kailas-cloud/searchkit/internal/db"
	"github.com/kailas-cloud/searchkit/internal/db/elastic"
	"github.com/kailas-cloud/searchkit/internal/db/embedded"
	dbRedis "github.com/kailas-cloud/searchkit/internal/db/redis"
	logpkg "github.com/kailas-cloud/searchkit/internal/logger"
	"github.com/kailas-cloud/searchkit/internal/repository/object/redisrepo"
	"github.com/kailas-cloud/searchkit/internal/repository/object/sqlrepo"
)

const readinessTimeout = 5 * time.Second

// app is the composition root shared by every command.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	client  *searchkit.Client
	backend db.Backend
	store   *embedded.Store
	objects db.Pinger
	redis   *redisrepo.Repo
	closers []func() error
}

// newApp loads the config and opens the stores. One-shot commands log at
// warn level to stderr whatever the config says.
func newApp(ctx context.Context, oneShot bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	var logger *zap.Logger
	if oneShot {
		logger, err = logpkg.NewLogger(logpkg.EnvCLI)
	} else {
		logger, err = logpkg.NewLogger(env, cfg.Logging.Level)
	}
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.openBackend(); err != nil {
		_ = a.Close()
		return nil, err
	}
	lookup, err := a.openObjects(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	opts := []searchkit.Option{
		searchkit.WithSettings(db.Settings{
			Hosts:           cfg.Backend.Hosts,
			DefaultIndexes:  cfg.Backend.DefaultIndexes,
			DefaultDoctypes: cfg.Backend.DefaultDoctypes,
			Timeout:         cfg.Backend.Timeout(),
		}),
		searchkit.WithLogger(logger),
		searchkit.WithDebug(cfg.Search.Debug),
		searchkit.WithDelimiter(cfg.Search.ActionDelimiter),
	}
	if a.store != nil {
		opts = append(opts, searchkit.WithFactory(a.store.Factory()))
	}
	if lookup != nil {
		opts = append(opts, searchkit.WithObjectLookup(lookup))
	}
	a.client = searchkit.New(opts...)
	return a, nil
}

func (a *app) openBackend() error {
	switch a.cfg.Backend.Driver {
	case config.DriverBleve:
		store, err := embedded.Open(embedded.Config{Dir: a.cfg.Backend.DataDir})
		if err != nil {
			return fmt.Errorf("open bleve store: %w", err)
		}
		a.store, a.backend = store, store
		a.closers = append(a.closers, store.Close)
		a.logger.Info("Opened bleve store",
			zap.String("data_dir", a.cfg.Backend.DataDir),
			zap.Strings("indexes", store.Indexes()),
		)
	default:
		backend, err := elastic.New(db.Settings{
			Hosts:   a.cfg.Backend.Hosts,
			Timeout: a.cfg.Backend.Timeout(),
		})
		if err != nil {
			return fmt.Errorf("create http backend: %w", err)
		}
		a.backend = backend
	}
	return nil
}

func (a *app) openObjects(ctx context.Context) (searchkit.ObjectLookup, error) {
	oc := a.cfg.Objects
	switch oc.Driver {
	case config.ObjectsRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    oc.Addrs,
			Password: oc.Password,
			TTL:      time.Duration(oc.TTLSec) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		if err := store.WaitForReady(ctx, readinessTimeout); err != nil {
			return nil, err //nolint:wrapcheck // names the timeout and last ping error
		}
		a.objects = store
		a.redis = redisrepo.New(store, oc.KeyPrefix)
		return a.redis, nil
	case config.ObjectsSQLite:
		repo, err := sqlrepo.Open(oc.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, repo.Close)
		a.objects = repo
		return repo, nil
	}
	return nil, nil
}

// Close releases stores in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
