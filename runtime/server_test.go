package runtime

import (
	"net/http"
	"testing"
	"time"
)

func TestServer_HookWritingResponseAbortsChain(t *testing.T) {
	srv := newTestServer(t)
	reached := false

	srv.AddRequestHook(PhaseOnRequest, "deny", nil, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	srv.AddRequestHook(PhaseOnRequest, "after", nil, func(w http.ResponseWriter, r *http.Request) {
		reached = true
	})
	err := srv.RegisterGlobal(func(s *Scope) error {
		s.GET("/ok", func(w http.ResponseWriter, r *http.Request) {
			reached = true
		})
		return nil
	})
	if err != nil {
		t.Fatalf("RegisterGlobal failed: %v", err)
	}

	w := do(srv, http.MethodGet, "/ok")
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 from the hook, got %d", w.Code)
	}
	if reached {
		t.Errorf("Later hooks and the route handler must be skipped")
	}
}

func TestServer_PhaseSequence(t *testing.T) {
	srv := newTestServer(t)
	var seen []string

	// preHandler registered first still runs after onRequest.
	srv.AddRequestHook(PhasePreHandler, "pre", nil, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, "pre")
	})
	srv.AddRequestHook(PhaseOnRequest, "on", nil, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, "on")
	})

	do(srv, http.MethodGet, "/x")
	if len(seen) != 2 || seen[0] != "on" || seen[1] != "pre" {
		t.Errorf("Expected onRequest before preHandler, got %v", seen)
	}
}

func TestServer_StampsRequestID(t *testing.T) {
	srv := newTestServer(t)

	w := do(srv, http.MethodGet, "/missing")
	if w.Header().Get("X-Request-Id") == "" {
		t.Errorf("Expected a generated request id header")
	}
}

func TestServer_BasePrefixAppliesToScopes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BasePrefix = "/api"
	srv := NewServer(cfg, testLogger())

	err := srv.RegisterScoped("/users", func(s *Scope) error {
		s.GET("/list", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		})
		return nil
	})
	if err != nil {
		t.Fatalf("RegisterScoped failed: %v", err)
	}

	if w := do(srv, http.MethodGet, "/api/users/list"); w.Code != http.StatusOK {
		t.Errorf("Expected route under base prefix, got %d", w.Code)
	}
	if w := do(srv, http.MethodGet, "/users/list"); w.Code == http.StatusOK {
		t.Errorf("Route must not exist outside the base prefix")
	}
}

func TestServer_ManifestRouteWhenDebug(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Debug = true
	srv := NewServer(cfg, testLogger())
	srv.SetManifest(BuildManifest(srv.Generation(), time.Now(), nil))

	w := do(srv, http.MethodGet, ManifestRoute)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected manifest route to serve, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Expected JSON content type, got %s", w.Header().Get("Content-Type"))
	}

	// And absent without debug.
	plain := newTestServer(t)
	if w := do(plain, http.MethodGet, ManifestRoute); w.Code == http.StatusOK {
		t.Errorf("Manifest route must not exist without debug")
	}
}

func TestServer_DistinctGenerations(t *testing.T) {
	a := newTestServer(t)
	b := newTestServer(t)
	if a.Generation() == b.Generation() {
		t.Errorf("Each server must carry its own generation id")
	}
}
