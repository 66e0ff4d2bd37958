package runtime

import (
	"fmt"
	"path/filepath"
	"plugin"
	"reflect"
)

// Module is the decoded export surface of one plugin file.
type Module struct {
	// Handler is the module's function export. Required.
	Handler any

	// Order overrides DefaultOrder when the module exports one.
	Order int

	// Condition is an optional guard expression; middleware with a
	// condition only runs for requests the expression accepts.
	Condition string

	// Config, when non-nil, is a pointer to the module's config struct.
	// The loader applies defaults, merges the matching section of the
	// application config, and validates before Initialize runs.
	Config any

	// Initialize and Shutdown are optional lifecycle hooks. Initialize
	// failure aborts startup; Shutdown runs when a snapshot is discarded.
	Initialize func() error
	Shutdown   func() error
}

// ModuleLoader resolves a file path to its exported bindings.
type ModuleLoader interface {
	// Extensions lists the file extensions the loader accepts, dot included.
	Extensions() []string
	// Load opens the module at the given tree-relative path.
	Load(filePath string) (*Module, error)
}

// SharedObjectLoader loads modules compiled with -buildmode=plugin.
//
// Exports are looked up by name: Handler (required), Order (int),
// Condition (string), Config (struct var), Initialize and Shutdown
// (func() error). Note that the OS caches an opened shared object for the
// life of the process, so editing a .so in place requires a restart;
// watch mode picks up added and removed files.
type SharedObjectLoader struct {
	// BaseDir is joined with tree-relative paths before opening.
	BaseDir string
}

func (l *SharedObjectLoader) Extensions() []string {
	return []string{".so"}
}

func (l *SharedObjectLoader) Load(filePath string) (*Module, error) {
	p, err := plugin.Open(filepath.Join(l.BaseDir, filepath.FromSlash(filePath)))
	if err != nil {
		return nil, fmt.Errorf("opening plugin: %w", err)
	}

	m := &Module{Order: DefaultOrder}

	if sym, err := p.Lookup("Handler"); err == nil {
		m.Handler = derefSymbol(sym)
	}
	if m.Handler == nil {
		// Fall back to the first exported function-typed var we know how
		// to call, under its conventional alias.
		if sym, err := p.Lookup("Middleware"); err == nil {
			m.Handler = derefSymbol(sym)
		}
	}

	if sym, err := p.Lookup("Order"); err == nil {
		if order, ok := derefSymbol(sym).(int); ok {
			m.Order = order
		}
	}
	if sym, err := p.Lookup("Condition"); err == nil {
		if cond, ok := derefSymbol(sym).(string); ok {
			m.Condition = cond
		}
	}
	if sym, err := p.Lookup("Config"); err == nil {
		// Keep the pointer: defaults and merged values are written through it.
		if reflect.TypeOf(sym).Kind() == reflect.Ptr {
			m.Config = sym
		}
	}
	if sym, err := p.Lookup("Initialize"); err == nil {
		if fn, ok := derefSymbol(sym).(func() error); ok {
			m.Initialize = fn
		}
	}
	if sym, err := p.Lookup("Shutdown"); err == nil {
		if fn, ok := derefSymbol(sym).(func() error); ok {
			m.Shutdown = fn
		}
	}

	return m, nil
}

// derefSymbol unwraps the pointer indirection plugin.Lookup applies to
// package-level variables. Function symbols come through as-is.
func derefSymbol(sym plugin.Symbol) any {
	v := reflect.ValueOf(sym)
	if v.Kind() == reflect.Ptr {
		return v.Elem().Interface()
	}
	return sym
}

// cachingLoader wraps a ModuleLoader with a per-pass cache keyed by file
// path. A reload pass consults the previous pass's cache to avoid redundant
// imports, then replaces it wholesale; entries for files that vanished are
// simply not carried over.
type cachingLoader struct {
	inner ModuleLoader
	prev  map[string]*Module
	seen  map[string]*Module
}

func newCachingLoader(inner ModuleLoader, prev map[string]*Module) *cachingLoader {
	return &cachingLoader{
		inner: inner,
		prev:  prev,
		seen:  make(map[string]*Module),
	}
}

func (c *cachingLoader) Extensions() []string {
	return c.inner.Extensions()
}

func (c *cachingLoader) Load(filePath string) (*Module, error) {
	if m, ok := c.prev[filePath]; ok {
		c.seen[filePath] = m
		return m, nil
	}
	m, err := c.inner.Load(filePath)
	if err != nil {
		return nil, err
	}
	c.seen[filePath] = m
	return m, nil
}

// modules returns the cache built during this pass.
func (c *cachingLoader) modules() map[string]*Module {
	return c.seen
}
