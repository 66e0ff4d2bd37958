// Package pluginapi is the surface gantry plugin authors build against.
//
// Plugin authors should ONLY import:
//
//	import "gantry/runtime/pluginapi"
//
// and never the parent "gantry/runtime" package directly.
//
// # Module contract
//
// A plugin is a Go main package compiled with -buildmode=plugin that
// exports, at package level:
//
//	var Handler = ...        // required; a function of one of the shapes below
//	var Order = 10           // optional; lower registers (and runs) earlier
//	var Condition = "..."    // optional; request guard expression
//	var Config = MyConfig{}  // optional; struct with default/validate tags
//
//	func Initialize() error  // optional; runs before registration, fatal on error
//	func Shutdown() error    // optional; runs when the plugin is unloaded
//
// # Handler shapes
//
// The handler's parameter count decides its role, once, at load time:
//
//	var Handler = func(s *pluginapi.Scope) error { ... }
//
// is a setup plugin: it runs once during registration and installs routes
// and hooks through the scope. When the plugin sits in a named directory
// (or uses the .pg. filename marker) the scope is confined to that prefix.
//
//	var Handler = func(w http.ResponseWriter, r *http.Request) { ... }
//	var Handler = func(w http.ResponseWriter, r *http.Request, s *pluginapi.Scope) { ... }
//
// is a per-request handler. In a middleware position (the middleware/
// directory, or the .md. filename marker) it runs as a request hook;
// elsewhere it is wrapped into a setup that installs the hook under the
// plugin's prefix. Writing to the ResponseWriter ends the request.
//
// # File placement
//
//	plugins/middleware/anything.so   global middleware, any filename
//	plugins/auth.md.so               middleware for the exact route /auth
//	plugins/checkout.pg.so           plugin scoped under /checkout
//	plugins/users/index.so           plugin scoped under /users
//	plugins/cors.so                  global plugin
//
// Directory-derived prefixes win: plugins/users/checkout.pg.so is scoped
// under /users, not /checkout.
//
// # Conditions
//
// A Condition narrows when a middleware handler fires. The expression sees
// path, method, host, query, and header("Name"):
//
//	var Condition = `method == "POST" && path != "/health"`
//
// # Config
//
// Exported Config structs use yaml tags for field mapping plus the usual
// default/validate tags. The framework applies defaults, merges the
// matching section of gantry.yaml, and validates before Initialize runs.
// Plugin authors never call validation functions themselves.
//
//	type MyConfig struct {
//	    DSN     string        `yaml:"dsn" validate:"required"`
//	    Timeout time.Duration `yaml:"timeout" default:"5s" validate:"gte=1s"`
//	}
//	var Config MyConfig
package pluginapi
