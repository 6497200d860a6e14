package search

import (
	"fmt"
	"slices"

	"github.com/kailas-cloud/searchkit/internal/db"
	"github.com/kailas-cloud/searchkit/internal/domain"
	"github.com/kailas-cloud/searchkit/internal/domain/search/step"
)

// Defaults apply when no step selects a backend, indexes or doctypes.
type Defaults struct {
	Factory  db.Factory
	Settings db.Settings
}

// Target is where a search is sent.
type Target struct {
	Backend  db.Backend
	Indexes  []string
	Doctypes []string
}

// Resolve picks the backend, indexes and doctypes for steps. The most
// recent es_builder step wins outright. Otherwise the most recent es_config
// step is overlaid on the default settings and passed to the default
// factory.
func Resolve(steps step.List, d Defaults) (Target, error) {
	settings := d.Settings
	if s, ok := steps.Last(step.ESConfig); ok {
		cfg, isCfg := s.Value.(db.Settings)
		if !isCfg {
			return Target{}, fmt.Errorf("step %s: unexpected payload %T", s.Action, s.Value)
		}
		settings = mergeSettings(d.Settings, cfg)
	}

	var backend db.Backend
	if s, ok := steps.Last(step.ESBuilder); ok {
		fn, isFn := s.Value.(BackendFunc)
		if !isFn || fn == nil {
			return Target{}, fmt.Errorf("step %s: unexpected payload %T", s.Action, s.Value)
		}
		b, err := fn()
		if err != nil {
			return Target{}, fmt.Errorf("build backend: %w", err)
		}
		backend = b
	} else {
		if d.Factory == nil {
			return Target{}, domain.ErrNoBackend
		}
		b, err := d.Factory(settings)
		if err != nil {
			return Target{}, fmt.Errorf("create backend: %w", err)
		}
		backend = b
	}

	t := Target{Backend: backend}
	if v, found := steps.Strings(step.Indexes); found {
		t.Indexes = slices.Clone(v)
	} else {
		t.Indexes = slices.Clone(settings.DefaultIndexes)
	}
	if v, found := steps.Strings(step.Doctypes); found {
		t.Doctypes = slices.Clone(v)
	} else {
		t.Doctypes = slices.Clone(settings.DefaultDoctypes)
	}
	return t, nil
}

// mergeSettings overlays the non-zero fields of o on base.
func mergeSettings(base, o db.Settings) db.Settings {
	if len(o.Hosts) > 0 {
		base.Hosts = o.Hosts
	}
	if len(o.DefaultIndexes) > 0 {
		base.DefaultIndexes = o.DefaultIndexes
	}
	if len(o.DefaultDoctypes) > 0 {
		base.DefaultDoctypes = o.DefaultDoctypes
	}
	if o.Timeout > 0 {
		base.Timeout = o.Timeout
	}
	return base
}
