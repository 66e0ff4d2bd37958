package runtime

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HookPhase names a point in request dispatch. Hooks within a phase run in
// registration order (FIFO); that guarantee is what the whole ordering
// scheme rests on.
type HookPhase string

const (
	// PhaseOnRequest hooks run first, before any handler-adjacent logic.
	// Discovered middleware installs here.
	PhaseOnRequest HookPhase = "onRequest"
	// PhasePreHandler hooks run after every onRequest hook. Wrapped
	// request-logic plugins install here so global middleware always
	// observes a request first, even at equal order.
	PhasePreHandler HookPhase = "preHandler"
)

// phaseSequence is the dispatch order of the phases.
var phaseSequence = []HookPhase{PhaseOnRequest, PhasePreHandler}

// HookFunc is a request-time hook. Writing to the ResponseWriter ends the
// request: later hooks and the route handler are skipped.
type HookFunc func(w http.ResponseWriter, r *http.Request)

// SetupFunc configures routes and hooks inside a scope during registration.
type SetupFunc func(s *Scope) error

type hookEntry struct {
	name  string
	guard func(r *http.Request) bool
	fn    HookFunc
}

const requestIDHeader = "X-Request-Id"

// Server is the host the registration engine targets. It wraps a gin engine
// with an internal FIFO hook chain so that hook execution order equals
// registration order regardless of when routes were added.
type Server struct {
	engine *gin.Engine
	base   *gin.RouterGroup
	hooks  map[HookPhase][]hookEntry
	logger *slog.Logger

	// generation identifies the load pass that built this server.
	generation string

	manifest []byte
}

func NewServer(cfg *Config, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:     engine,
		hooks:      make(map[HookPhase][]hookEntry),
		logger:     logger,
		generation: uuid.New().String(),
	}

	engine.Use(s.stampRequestID)
	engine.Use(s.dispatchHooks)

	// The base group must be created after the Use calls: gin snapshots the
	// middleware chain when a group is created.
	s.base = engine.Group(cfg.BasePrefix)

	if cfg.Debug {
		s.base.GET(ManifestRoute, func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json", s.manifest)
		})
	}

	return s
}

// Generation returns the load-pass identifier baked into this server.
func (s *Server) Generation() string {
	return s.generation
}

// routePath joins a registration-relative route with the base prefix.
func (s *Server) routePath(route string) string {
	base := s.base.BasePath()
	if base == "" || base == "/" {
		return route
	}
	return base + route
}

// Handler exposes the server for mounting into an http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// AddRequestHook appends a hook to the given phase's chain. An optional
// guard decides per request whether the hook runs; a nil guard means always.
func (s *Server) AddRequestHook(phase HookPhase, name string, guard func(r *http.Request) bool, fn HookFunc) {
	s.hooks[phase] = append(s.hooks[phase], hookEntry{name: name, guard: guard, fn: fn})
}

// RegisterScoped runs setup inside an isolated child context under prefix.
// Registering the same prefix twice is legal; each call gets its own
// context and their registrations stack.
func (s *Server) RegisterScoped(prefix string, setup SetupFunc) error {
	scope := &Scope{
		srv:    s,
		group:  s.base.Group(prefix),
		prefix: prefix,
	}
	if err := setup(scope); err != nil {
		return fmt.Errorf("scoped registration under %s: %w", prefix, err)
	}
	return nil
}

// RegisterGlobal runs setup with no confinement.
func (s *Server) RegisterGlobal(setup SetupFunc) error {
	if err := setup(s.globalScope()); err != nil {
		return fmt.Errorf("global registration: %w", err)
	}
	return nil
}

func (s *Server) globalScope() *Scope {
	return &Scope{srv: s, group: s.base}
}

func (s *Server) stampRequestID(c *gin.Context) {
	if c.GetHeader(requestIDHeader) == "" {
		c.Request.Header.Set(requestIDHeader, uuid.New().String())
	}
	c.Writer.Header().Set(requestIDHeader, c.GetHeader(requestIDHeader))
	c.Next()
}

// dispatchHooks runs the phase chains in sequence. A hook that writes a
// response aborts the rest of the chain and the route handler.
func (s *Server) dispatchHooks(c *gin.Context) {
	for _, phase := range phaseSequence {
		for _, h := range s.hooks[phase] {
			if h.guard != nil && !h.guard(c.Request) {
				continue
			}
			h.fn(c.Writer, c.Request)
			if c.Writer.Written() {
				c.Abort()
				return
			}
		}
	}
	c.Next()
}

// Scope is the surface a setup handler registers against. Routes and hooks
// added through a scope are confined to its prefix; the global scope has an
// empty prefix and no confinement.
type Scope struct {
	srv    *Server
	group  *gin.RouterGroup
	prefix string
}

// Prefix returns the path space this scope is confined to ("" for global).
func (sc *Scope) Prefix() string {
	return sc.prefix
}

// Handle registers a route inside the scope.
func (sc *Scope) Handle(method, relativePath string, h http.HandlerFunc) {
	sc.group.Handle(method, relativePath, gin.WrapF(h))
}

func (sc *Scope) GET(relativePath string, h http.HandlerFunc)    { sc.Handle(http.MethodGet, relativePath, h) }
func (sc *Scope) POST(relativePath string, h http.HandlerFunc)   { sc.Handle(http.MethodPost, relativePath, h) }
func (sc *Scope) PUT(relativePath string, h http.HandlerFunc)    { sc.Handle(http.MethodPut, relativePath, h) }
func (sc *Scope) DELETE(relativePath string, h http.HandlerFunc) { sc.Handle(http.MethodDelete, relativePath, h) }

// AddHook registers a request hook confined to the scope's prefix. In the
// global scope the hook runs for every request.
func (sc *Scope) AddHook(phase HookPhase, name string, fn HookFunc) {
	guard := sc.prefixGuard()
	sc.srv.AddRequestHook(phase, name, guard, fn)
}

// Router exposes the underlying gin group for plugins that want gin-native
// registration.
func (sc *Scope) Router() gin.IRouter {
	return sc.group
}

func (sc *Scope) prefixGuard() func(r *http.Request) bool {
	if sc.prefix == "" {
		return nil
	}
	full := sc.group.BasePath()
	return func(r *http.Request) bool {
		p := strings.TrimSuffix(r.URL.Path, "/")
		return p == full || strings.HasPrefix(r.URL.Path, full+"/")
	}
}
