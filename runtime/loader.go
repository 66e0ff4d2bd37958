package runtime

import (
	"fmt"
	"io/fs"
	"log/slog"
	"time"
)

// Loader runs one full load pass: scan the plugin tree into a task list,
// prepare module configs and lifecycle, then register everything against a
// server. Both phases are strictly sequential; scan order is the tie-break
// among equal-order tasks and registration order is the execution order.
type Loader struct {
	cfg     *Config
	fsys    fs.FS
	modules ModuleLoader
	logger  *slog.Logger
}

func NewLoader(cfg *Config, fsys fs.FS, modules ModuleLoader, logger *slog.Logger) *Loader {
	return &Loader{
		cfg:     cfg,
		fsys:    fsys,
		modules: modules,
		logger:  logger,
	}
}

// Load scans and registers. The returned task list is sorted in
// registration order. Scan-phase module failures are skipped; config,
// Initialize, or registration failures abort the pass.
func (l *Loader) Load(srv *Server) ([]PluginTask, error) {
	started := time.Now()

	scanner := NewScanner(l.fsys, l.modules, l.logger)
	tasks, err := scanner.Scan(".")
	if err != nil {
		return nil, err
	}

	if err := l.prepareModules(tasks); err != nil {
		return nil, err
	}

	registrar := NewRegistrar(srv, l.logger)
	if err := registrar.RegisterAll(tasks); err != nil {
		return nil, err
	}

	srv.SetManifest(BuildManifest(srv.Generation(), started, tasks))

	l.logger.Info("plugin load complete",
		"generation", srv.Generation(),
		"tasks", len(tasks),
		"elapsed", time.Since(started))

	return tasks, nil
}

// prepareModules runs the setup-time module contract for each distinct
// module: config initialization (defaults, merged section, validation) and
// the optional Initialize hook. Failures here are configuration errors and
// abort startup.
func (l *Loader) prepareModules(tasks []PluginTask) error {
	prepared := make(map[*Module]bool)

	for i := range tasks {
		t := &tasks[i]
		if prepared[t.module] {
			continue
		}
		prepared[t.module] = true

		if t.module.Config != nil {
			if err := InitializeConfig(t.module.Config, l.cfg.Plugins[t.Name]); err != nil {
				return fmt.Errorf("config for %s (%s): %w", t.Name, t.FilePath, err)
			}
		}

		if t.module.Initialize != nil {
			if err := t.module.Initialize(); err != nil {
				return fmt.Errorf("initializing %s (%s): %w", t.Name, t.FilePath, err)
			}
		}
	}

	return nil
}
