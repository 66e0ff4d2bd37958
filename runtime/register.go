package runtime

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
)

// Registrar performs the second phase: registering a sorted task list
// against the host server. Registration is sequential and awaited per task
// because the server's hook chain is FIFO; the computed order must be the
// order side effects land in.
type Registrar struct {
	server *Server
	logger *slog.Logger
}

func NewRegistrar(server *Server, logger *slog.Logger) *Registrar {
	return &Registrar{server: server, logger: logger}
}

// RegisterAll sorts tasks by ascending order (stable, so equal-order tasks
// keep discovery order) and registers each. Any registration failure is
// fatal: it indicates a structural misconfiguration.
func (r *Registrar) RegisterAll(tasks []PluginTask) error {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Order < tasks[j].Order
	})

	for i := range tasks {
		t := &tasks[i]
		if err := r.register(t); err != nil {
			return fmt.Errorf("registering %s (%s): %w", t.Name, t.FilePath, err)
		}
		r.logger.Info("registered plugin",
			"name", t.Name,
			"classification", t.Classification(),
			"prefix", t.Prefix,
			"route", t.Route,
			"order", t.Order)
	}

	return nil
}

// register dispatches one task to its registration strategy. The cases are
// evaluated in priority order; exactly one applies.
func (r *Registrar) register(t *PluginTask) error {
	switch {
	case t.IsMiddleware && t.Route != "":
		r.server.AddRequestHook(PhaseOnRequest, t.Name, routeGuard(r.server.routePath(t.Route), t.guard), r.requestFunc(t, r.server.globalScope()))
		return nil

	case t.IsMiddleware:
		r.server.AddRequestHook(PhaseOnRequest, t.Name, conditionOnly(t.guard), r.requestFunc(t, r.server.globalScope()))
		return nil

	case t.Prefix != "":
		return r.server.RegisterScoped(t.Prefix, r.setupFunc(t))

	default:
		return r.server.RegisterGlobal(r.setupFunc(t))
	}
}

// setupFunc adapts a task into a SetupFunc. Setup-kind handlers run
// directly; request-kind handlers (logic plugins) are wrapped into a setup
// that installs a preHandler hook confined to the scope.
func (r *Registrar) setupFunc(t *PluginTask) SetupFunc {
	if t.Kind == KindSetup {
		return func(s *Scope) error {
			return invokeSetup(t.module.Handler, s)
		}
	}
	return func(s *Scope) error {
		fn := r.requestFunc(t, s)
		guard := t.guard
		s.AddHook(PhasePreHandler, t.Name, func(w http.ResponseWriter, req *http.Request) {
			if !guard.allows(req) {
				return
			}
			fn(w, req)
		})
		return nil
	}
}

func (r *Registrar) requestFunc(t *PluginTask, s *Scope) HookFunc {
	handler := t.module.Handler
	return func(w http.ResponseWriter, req *http.Request) {
		invokeRequest(handler, w, req, s)
	}
}

// routeGuard matches the inbound path against a fixed route, trailing slash
// stripped. Exact match only: /checkout does not match /checkout/items.
func routeGuard(route string, cond *conditionGuard) func(r *http.Request) bool {
	route = strings.TrimSuffix(route, "/")
	return func(r *http.Request) bool {
		p := strings.TrimSuffix(r.URL.Path, "/")
		if p != route {
			return false
		}
		return cond.allows(r)
	}
}

func conditionOnly(cond *conditionGuard) func(r *http.Request) bool {
	if cond == nil {
		return nil
	}
	return cond.allows
}
