// internal/component/registry.go
//
// Component registry (cycle-free).
//
// Each concrete component lives under components/<name> and calls
// component.Register() in an init() function.  cmd/web imports the
// components it serves, builds one Deps value, and calls MountAll, which
// runs every component's optional Init and then its Mount, in name order
// so route-name collisions fail the same way on every start.

package component

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/ajaxviews/internal/plugin"
	"github.com/yanizio/ajaxviews/internal/routing"
	"github.com/yanizio/ajaxviews/internal/session"
)

// Deps is what a component may use while mounting.
type Deps struct {
	Env      *plugin.Env
	Names    *routing.Registry
	Sessions *session.Manager
	Root     string // application root, for component assets
}

// Initializer is optional.  If a Component implements it, MountAll calls
// Init(d) once before Mount.
type Initializer interface {
	Init(d Deps) error
}

// Component contract.
//
// Migrations() may return nil if the component has no schema.
// Mount() should route BOTH page and API endpoints, usually through
// views.Mount so every view name is reversible:
//
//	return views.Mount(r, d.Names, "/books", views.Route{...}, ...)
type Component interface {
	Name() string
	Mount(r chi.Router, d Deps) error
	Migrations() []string
}

var (
	mu       sync.RWMutex
	registry = map[string]Component{}
)

// Register is invoked from component init() functions.
func Register(c Component) {
	mu.Lock()
	registry[c.Name()] = c
	mu.Unlock()
}

// All returns every registered component sorted by name.
func All() []Component {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Component, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// MountAll initializes and mounts every registered component on r.
func MountAll(r chi.Router, d Deps) error {
	for _, c := range All() {
		if in, ok := c.(Initializer); ok {
			if err := in.Init(d); err != nil {
				return fmt.Errorf("component %s: init: %w", c.Name(), err)
			}
		}
		if err := c.Mount(r, d); err != nil {
			return fmt.Errorf("component %s: mount: %w", c.Name(), err)
		}
	}
	return nil
}
