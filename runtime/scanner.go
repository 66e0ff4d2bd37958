package runtime

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
)

const (
	// middlewareDirName is the reserved top-level directory whose files are
	// always global middleware, regardless of filename convention.
	middlewareDirName = "middleware"

	routeMiddlewareMarker = ".md"
	prefixedPluginMarker  = ".pg"
)

// Scanner walks a plugin tree and produces the ordered task list.
//
// Scan order is canonical and determines the tie-break among equal-order
// tasks: the middleware/ directory first, then regular files in
// lexicographic order, then subdirectories in lexicographic order,
// depth-first (files before directories at every level). fs.ReadDir returns
// sorted entries, so two scans of an unchanged tree produce identical lists.
//
// The tree is injected as an fs.FS and modules through a ModuleLoader, so
// the scan is a pure function of the directory listing.
type Scanner struct {
	fsys   fs.FS
	loader ModuleLoader
	logger *slog.Logger
}

func NewScanner(fsys fs.FS, loader ModuleLoader, logger *slog.Logger) *Scanner {
	return &Scanner{
		fsys:   fsys,
		loader: loader,
		logger: logger,
	}
}

// Scan collects every loadable module under root into a task list.
// Individual modules that fail to load or export nothing invocable are
// logged and skipped; only an unreadable directory aborts the scan.
func (s *Scanner) Scan(root string) ([]PluginTask, error) {
	entries, err := fs.ReadDir(s.fsys, root)
	if err != nil {
		return nil, fmt.Errorf("reading plugin root %s: %w", root, err)
	}

	var tasks []PluginTask

	// Global middleware loads first so that, at equal order, its hooks sort
	// before everything else discovered later.
	for _, e := range entries {
		if e.IsDir() && e.Name() == middlewareDirName {
			if err := s.scanDir(path.Join(root, middlewareDirName), "", true, &tasks); err != nil {
				return nil, err
			}
		}
	}

	if err := s.scanLevel(root, entries, "", false, true, &tasks); err != nil {
		return nil, err
	}

	return tasks, nil
}

func (s *Scanner) scanDir(dir, prefix string, isMiddleware bool, tasks *[]PluginTask) error {
	entries, err := fs.ReadDir(s.fsys, dir)
	if err != nil {
		return fmt.Errorf("reading plugin directory %s: %w", dir, err)
	}
	return s.scanLevel(dir, entries, prefix, isMiddleware, false, tasks)
}

// scanLevel processes one directory level: files first, then
// subdirectories. skipMiddlewareDir is set only for the root level, where
// the middleware/ directory has already been handled.
func (s *Scanner) scanLevel(dir string, entries []fs.DirEntry, prefix string, isMiddleware, skipMiddlewareDir bool, tasks *[]PluginTask) error {
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		s.classifyFile(dir, e.Name(), prefix, isMiddleware, tasks)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if skipMiddlewareDir && e.Name() == middlewareDirName {
			continue
		}
		childPrefix := prefix
		if !isMiddleware {
			childPrefix = joinPrefix(prefix, e.Name())
		}
		if err := s.scanDir(path.Join(dir, e.Name()), childPrefix, isMiddleware, tasks); err != nil {
			return err
		}
	}

	return nil
}

// classifyFile resolves one file into a task, loading its module. Every
// failure here is non-fatal: the file is logged and excluded.
func (s *Scanner) classifyFile(dir, name, prefix string, isMiddleware bool, tasks *[]PluginTask) {
	stem, ext := splitStem(name)
	if !s.supported(ext) {
		return
	}

	task := PluginTask{
		Name:         taskName(stem),
		FilePath:     path.Join(dir, name),
		FileName:     name,
		Prefix:       prefix,
		IsMiddleware: isMiddleware,
	}

	switch {
	case isMiddleware:
		// Forced by the middleware/ directory; filename markers are ignored
		// and no prefix ever applies.
		task.Prefix = ""

	case strings.HasSuffix(stem, routeMiddlewareMarker):
		task.IsMiddleware = true
		task.Route = "/" + strings.ToLower(strings.TrimSuffix(stem, routeMiddlewareMarker))
		// Middleware scoping happens by URL comparison, never by prefix.
		task.Prefix = ""

	case strings.HasSuffix(stem, prefixedPluginMarker):
		// The filename-derived prefix only applies when directory nesting
		// has not already produced one.
		if prefix == "" {
			task.Prefix = "/" + strings.ToLower(strings.TrimSuffix(stem, prefixedPluginMarker))
		}
	}

	mod, err := s.loader.Load(task.FilePath)
	if err != nil {
		s.logger.Warn("skipping plugin: load failed", "file", task.FilePath, "error", err)
		return
	}

	kind, err := classifyHandler(mod.Handler)
	if err != nil {
		s.logger.Warn("skipping plugin: no usable handler", "file", task.FilePath, "error", err)
		return
	}
	if task.IsMiddleware && kind != KindRequest {
		s.logger.Warn("skipping plugin: middleware must export a request handler", "file", task.FilePath)
		return
	}

	var guard *conditionGuard
	if mod.Condition != "" {
		guard, err = compileCondition(mod.Condition)
		if err != nil {
			s.logger.Warn("skipping plugin: bad condition expression", "file", task.FilePath, "error", err)
			return
		}
	}

	task.Order = mod.Order
	task.Kind = kind
	task.module = mod
	task.guard = guard
	task.discovery = len(*tasks)

	s.logger.Info("discovered plugin",
		"file", task.FilePath,
		"classification", task.Classification(),
		"prefix", task.Prefix,
		"route", task.Route,
		"order", task.Order)

	*tasks = append(*tasks, task)
}

func (s *Scanner) supported(ext string) bool {
	for _, e := range s.loader.Extensions() {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
