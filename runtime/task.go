package runtime

import (
	"path"
	"strings"
)

// DefaultOrder is the execution priority assigned to modules that do not
// export their own Order. Lower values register (and therefore run) earlier.
const DefaultOrder = 10

// HandlerKind tags how a loaded handler participates in registration.
// The kind is computed once at load time from the handler's parameter count;
// see classifyHandler.
type HandlerKind int

const (
	// KindSetup handlers run once during registration and receive a *Scope.
	KindSetup HandlerKind = iota
	// KindRequest handlers run per matching request.
	KindRequest
)

func (k HandlerKind) String() string {
	switch k {
	case KindSetup:
		return "setup"
	case KindRequest:
		return "request"
	default:
		return "unknown"
	}
}

// PluginTask is one discovered unit of behavior: a loaded module plus the
// prefix/route/order metadata resolved from its position in the plugin tree
// and its filename. Tasks are built fresh on every load pass and never
// mutated after the scan.
type PluginTask struct {
	// Name identifies the task in logs, the manifest, and the per-plugin
	// config section. It is the filename stem with any .md/.pg marker
	// removed, lower-cased.
	Name string

	FilePath string
	FileName string

	// Prefix scopes a plugin's internally-registered routes and hooks.
	// Middleware tasks never carry a prefix.
	Prefix string

	// Route restricts a middleware task to exact-match requests on one path.
	Route string

	Order        int
	IsMiddleware bool
	Kind         HandlerKind

	// discovery is the scan position, the tie-break for equal Order values.
	discovery int

	module *Module
	guard  *conditionGuard
}

// Classification returns the single category the task falls into.
// Every task has exactly one.
func (t *PluginTask) Classification() string {
	switch {
	case t.IsMiddleware && t.Route != "":
		return "route middleware"
	case t.IsMiddleware:
		return "global middleware"
	case t.Prefix != "":
		return "prefixed plugin"
	default:
		return "global plugin"
	}
}

// taskName derives the task name from a filename stem, stripping the
// classification marker if present.
func taskName(stem string) string {
	stem = strings.TrimSuffix(stem, routeMiddlewareMarker)
	stem = strings.TrimSuffix(stem, prefixedPluginMarker)
	return strings.ToLower(stem)
}

// joinPrefix appends one directory segment to an accumulated prefix,
// lower-casing the segment.
func joinPrefix(prefix, segment string) string {
	return prefix + "/" + strings.ToLower(segment)
}

// splitStem separates a filename into its stem and extension, where the
// extension is the final path.Ext component ("logger.md.so" -> "logger.md",
// ".so").
func splitStem(name string) (stem, ext string) {
	ext = path.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}
