package runtime

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(DefaultConfig(), testLogger())
}

func middlewareTask(name string, order int, fn HookFunc) PluginTask {
	return PluginTask{
		Name:         name,
		FileName:     name + ".so",
		Order:        order,
		IsMiddleware: true,
		Kind:         KindRequest,
		module:       &Module{Handler: (func(http.ResponseWriter, *http.Request))(fn)},
	}
}

func setupTask(name, prefix string, order int, setup func(s *Scope) error) PluginTask {
	return PluginTask{
		Name:     name,
		FileName: name + ".so",
		Prefix:   prefix,
		Order:    order,
		Kind:     KindSetup,
		module:   &Module{Handler: setup},
	}
}

func do(srv *Server, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRegisterAll_OrderDeterminesHookSequence(t *testing.T) {
	srv := newTestServer(t)
	var seen []string
	record := func(name string) HookFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, name)
		}
	}

	// Deliberately registered out of order.
	tasks := []PluginTask{
		middlewareTask("late", 20, record("late")),
		middlewareTask("early", 1, record("early")),
	}

	if err := NewRegistrar(srv, testLogger()).RegisterAll(tasks); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		seen = nil
		do(srv, http.MethodGet, "/anything")
		if len(seen) != 2 || seen[0] != "early" || seen[1] != "late" {
			t.Fatalf("Request %d: expected [early late], got %v", i, seen)
		}
	}
}

func TestRegisterAll_EqualOrderKeepsDiscoveryOrder(t *testing.T) {
	srv := newTestServer(t)
	var seen []string
	record := func(name string) HookFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, name)
		}
	}

	a := middlewareTask("a", 5, record("a"))
	a.discovery = 0
	b := middlewareTask("b", 5, record("b"))
	b.discovery = 1

	if err := NewRegistrar(srv, testLogger()).RegisterAll([]PluginTask{a, b}); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}

	do(srv, http.MethodGet, "/x")
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Errorf("Expected stable tie-break [a b], got %v", seen)
	}
}

func TestRouteMiddleware_ExactMatchOnly(t *testing.T) {
	srv := newTestServer(t)
	fired := 0

	task := middlewareTask("checkout", DefaultOrder, func(w http.ResponseWriter, r *http.Request) {
		fired++
	})
	task.Route = "/checkout"

	if err := NewRegistrar(srv, testLogger()).RegisterAll([]PluginTask{task}); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}

	do(srv, http.MethodGet, "/checkout")
	if fired != 1 {
		t.Errorf("Expected exact match to fire, count=%d", fired)
	}

	do(srv, http.MethodGet, "/checkout/")
	if fired != 2 {
		t.Errorf("Expected trailing slash to be stripped, count=%d", fired)
	}

	do(srv, http.MethodGet, "/checkout/items")
	if fired != 2 {
		t.Errorf("Route middleware must not fire for sub-paths, count=%d", fired)
	}
}

func TestScopedPlugin_ConfinedToPrefix(t *testing.T) {
	srv := newTestServer(t)
	hookPaths := []string{}

	task := setupTask("users", "/users", DefaultOrder, func(s *Scope) error {
		s.GET("/list", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("users"))
		})
		s.AddHook(PhaseOnRequest, "users-hook", func(w http.ResponseWriter, r *http.Request) {
			hookPaths = append(hookPaths, r.URL.Path)
		})
		return nil
	})

	if err := NewRegistrar(srv, testLogger()).RegisterAll([]PluginTask{task}); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}

	w := do(srv, http.MethodGet, "/users/list")
	if w.Code != http.StatusOK || w.Body.String() != "users" {
		t.Errorf("Expected scoped route to serve, got %d %q", w.Code, w.Body.String())
	}

	do(srv, http.MethodGet, "/other")
	for _, p := range hookPaths {
		if !strings.HasPrefix(p, "/users") {
			t.Errorf("Scoped hook fired outside its prefix: %s", p)
		}
	}
}

func TestDuplicatePrefixesStack(t *testing.T) {
	srv := newTestServer(t)

	first := setupTask("users-a", "/users", DefaultOrder, func(s *Scope) error {
		s.GET("/a", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("a")) })
		return nil
	})
	second := setupTask("users-b", "/users", DefaultOrder, func(s *Scope) error {
		s.GET("/b", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("b")) })
		return nil
	})

	if err := NewRegistrar(srv, testLogger()).RegisterAll([]PluginTask{first, second}); err != nil {
		t.Fatalf("Duplicate prefixes must not error: %v", err)
	}

	if w := do(srv, http.MethodGet, "/users/a"); w.Body.String() != "a" {
		t.Errorf("First scoped registration unreachable: %q", w.Body.String())
	}
	if w := do(srv, http.MethodGet, "/users/b"); w.Body.String() != "b" {
		t.Errorf("Second scoped registration unreachable: %q", w.Body.String())
	}
}

func TestLogicPlugin_WrappedIntoScopedHook(t *testing.T) {
	srv := newTestServer(t)
	var paths []string

	// Request-shaped handler without the middleware flag: gets wrapped into
	// a setup that installs a preHandler hook under its prefix.
	task := PluginTask{
		Name:   "audit",
		Prefix: "/admin",
		Order:  DefaultOrder,
		Kind:   KindRequest,
		module: &Module{Handler: func(w http.ResponseWriter, r *http.Request) {
			paths = append(paths, r.URL.Path)
		}},
	}

	if err := NewRegistrar(srv, testLogger()).RegisterAll([]PluginTask{task}); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}

	do(srv, http.MethodGet, "/admin/settings")
	do(srv, http.MethodGet, "/public")

	if len(paths) != 1 || paths[0] != "/admin/settings" {
		t.Errorf("Expected wrapped hook to fire only under /admin, got %v", paths)
	}
}

func TestGlobalMiddleware_RunsBeforeLogicPluginAtEqualOrder(t *testing.T) {
	srv := newTestServer(t)
	var seen []string

	mw := middlewareTask("logger", DefaultOrder, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, "logger")
	})
	logic := PluginTask{
		Name:  "logic",
		Order: DefaultOrder,
		Kind:  KindRequest,
		module: &Module{Handler: func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, "logic")
		}},
	}

	// Logic plugin registers first, but it installs at preHandler while
	// middleware installs at onRequest.
	if err := NewRegistrar(srv, testLogger()).RegisterAll([]PluginTask{logic, mw}); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}

	do(srv, http.MethodGet, "/x")
	if len(seen) != 2 || seen[0] != "logger" || seen[1] != "logic" {
		t.Errorf("Expected middleware before logic plugin, got %v", seen)
	}
}

func TestRegisterAll_SetupErrorIsFatal(t *testing.T) {
	srv := newTestServer(t)

	task := setupTask("broken", "", DefaultOrder, func(s *Scope) error {
		return fmt.Errorf("conflicting route")
	})

	err := NewRegistrar(srv, testLogger()).RegisterAll([]PluginTask{task})
	if err == nil {
		t.Fatal("Expected registration failure to propagate")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("Error should name the task: %v", err)
	}
}

func TestRouteMiddleware_HonorsBasePrefix(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BasePrefix = "/api"
	srv := NewServer(cfg, testLogger())
	fired := 0

	task := middlewareTask("checkout", DefaultOrder, func(w http.ResponseWriter, r *http.Request) {
		fired++
	})
	task.Route = "/checkout"

	if err := NewRegistrar(srv, testLogger()).RegisterAll([]PluginTask{task}); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}

	do(srv, http.MethodGet, "/api/checkout")
	if fired != 1 {
		t.Errorf("Expected prefixed route to fire, count=%d", fired)
	}
	do(srv, http.MethodGet, "/checkout")
	if fired != 1 {
		t.Errorf("Unprefixed path must not fire, count=%d", fired)
	}
}

func TestLogicPlugin_ConditionApplies(t *testing.T) {
	srv := newTestServer(t)
	fired := 0

	guard, err := compileCondition(`method == "DELETE"`)
	if err != nil {
		t.Fatalf("compileCondition failed: %v", err)
	}
	task := PluginTask{
		Name:  "audit",
		Order: DefaultOrder,
		Kind:  KindRequest,
		guard: guard,
		module: &Module{Handler: func(w http.ResponseWriter, r *http.Request) {
			fired++
		}},
	}

	if err := NewRegistrar(srv, testLogger()).RegisterAll([]PluginTask{task}); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}

	do(srv, http.MethodGet, "/x")
	do(srv, http.MethodDelete, "/x")
	if fired != 1 {
		t.Errorf("Expected condition to admit only DELETE, count=%d", fired)
	}
}

func TestConditionGuard_FiltersRequests(t *testing.T) {
	srv := newTestServer(t)
	fired := 0

	guard, err := compileCondition(`method == "POST"`)
	if err != nil {
		t.Fatalf("compileCondition failed: %v", err)
	}
	task := middlewareTask("posts-only", DefaultOrder, func(w http.ResponseWriter, r *http.Request) {
		fired++
	})
	task.guard = guard

	if err := NewRegistrar(srv, testLogger()).RegisterAll([]PluginTask{task}); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}

	do(srv, http.MethodGet, "/x")
	do(srv, http.MethodPost, "/x")
	if fired != 1 {
		t.Errorf("Expected condition to admit only POST, count=%d", fired)
	}
}
