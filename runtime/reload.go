package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Snapshot is the result of one load pass: the task list, the server it was
// registered against, and the module cache for the next pass. Snapshots are
// immutable once built; a reload builds a new one and swaps it in whole.
type Snapshot struct {
	Generation string
	Tasks      []PluginTask
	LoadedAt   time.Time

	server  *Server
	modules map[string]*Module
}

// shutdown runs the Shutdown hook of every distinct module, in reverse
// registration order.
func (s *Snapshot) shutdown(logger *slog.Logger) {
	done := make(map[*Module]bool)
	for i := len(s.Tasks) - 1; i >= 0; i-- {
		m := s.Tasks[i].module
		if m == nil || m.Shutdown == nil || done[m] {
			continue
		}
		done[m] = true
		if err := m.Shutdown(); err != nil {
			logger.Warn("plugin shutdown failed", "name", s.Tasks[i].Name, "error", err)
		}
	}
}

// App ties the loader to a swappable server snapshot and the optional file
// watcher. It serves HTTP through whichever snapshot is current; a reload
// rebuilds everything from scratch and swaps atomically.
type App struct {
	cfg     *Config
	logger  *slog.Logger
	fsys    fs.FS
	modules ModuleLoader

	current atomic.Pointer[Snapshot]

	// Reloads are serialized: a change burst arriving mid-pass coalesces
	// into exactly one follow-up pass.
	reloadMu sync.Mutex
	pending  atomic.Bool

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewApp builds an App over the real filesystem and the shared-object
// module loader.
func NewApp(cfg *Config, logger *slog.Logger) *App {
	return NewAppWith(cfg, os.DirFS(cfg.PluginsDir), &SharedObjectLoader{BaseDir: cfg.PluginsDir}, logger)
}

// NewAppWith injects the plugin tree and module loader, for tests and
// alternative backends.
func NewAppWith(cfg *Config, fsys fs.FS, modules ModuleLoader, logger *slog.Logger) *App {
	return &App{
		cfg:     cfg,
		logger:  logger,
		fsys:    fsys,
		modules: modules,
	}
}

// Start runs the initial load pass. Errors here are fatal by design:
// a misconfigured plugin tree should not boot.
func (a *App) Start() error {
	snap, err := a.buildSnapshot()
	if err != nil {
		return err
	}
	a.current.Store(snap)
	return nil
}

// Current returns the serving snapshot.
func (a *App) Current() *Snapshot {
	return a.current.Load()
}

// ServeHTTP delegates to the current snapshot's server.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap := a.current.Load()
	if snap == nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	snap.server.Handler().ServeHTTP(w, r)
}

// Close shuts down the current snapshot's modules.
func (a *App) Close() {
	if snap := a.current.Swap(nil); snap != nil {
		snap.shutdown(a.logger)
	}
}

func (a *App) buildSnapshot() (*Snapshot, error) {
	prev := a.current.Load()
	var prevModules map[string]*Module
	if prev != nil {
		prevModules = prev.modules
	}
	cache := newCachingLoader(a.modules, prevModules)

	srv := NewServer(a.cfg, a.logger)
	loader := NewLoader(a.cfg, a.fsys, cache, a.logger)

	tasks, err := loader.Load(srv)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Generation: srv.Generation(),
		Tasks:      tasks,
		LoadedAt:   time.Now(),
		server:     srv,
		modules:    cache.modules(),
	}, nil
}

// Reload runs a full rescan-and-reregister pass. Concurrent calls coalesce;
// two passes never interleave their registrations. A failed reload keeps
// the previous snapshot serving.
func (a *App) Reload() {
	a.pending.Store(true)
	if !a.reloadMu.TryLock() {
		return
	}

	for a.pending.Swap(false) {
		snap, err := a.buildSnapshot()
		if err != nil {
			a.logger.Error("reload failed, keeping previous snapshot", "error", err)
			continue
		}
		if old := a.current.Swap(snap); old != nil {
			old.shutdown(a.logger)
		}
		a.logger.Info("reloaded plugins", "generation", snap.Generation, "tasks", len(snap.Tasks))
	}

	a.reloadMu.Unlock()

	// A request that arrived in the window between the final pending check
	// and the unlock would otherwise be lost.
	if a.pending.Load() {
		go a.Reload()
	}
}

// Watch blocks watching the plugin tree until ctx is done, debouncing
// change bursts into single reloads. Newly created directories are added to
// the watch set.
func (a *App) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(a.cfg.PluginsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watching plugin tree: %w", err)
	}

	a.logger.Info("watching plugin tree", "dir", a.cfg.PluginsDir, "debounce", a.cfg.Debounce())

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						a.logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
					}
				}
			}
			a.scheduleReload()

		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watcher error", "error", werr)
		}
	}
}

// scheduleReload resets the debounce timer; only the last event of a burst
// within the window triggers a reload.
func (a *App) scheduleReload() {
	a.debounceMu.Lock()
	defer a.debounceMu.Unlock()

	if a.debounceTimer != nil {
		a.debounceTimer.Stop()
	}
	a.debounceTimer = time.AfterFunc(a.cfg.Debounce(), a.Reload)
}
