// Route-scoped auth middleware.
//
// Build with the .md marker so the hook fires only for the exact /admin
// path:
//
//	go build -buildmode=plugin -o plugins/admin.md.so ./plugins/authguard
package main

import (
	"net/http"
)

// AuthConfig holds the guard settings, merged from the plugins section of
// gantry.yaml.
type AuthConfig struct {
	HeaderName string `yaml:"header_name" default:"Authorization" validate:"required"`
	Token      string `yaml:"token" validate:"required"`
}

var Config AuthConfig

// Skip preflight requests entirely.
var Condition = `method != "OPTIONS"`

var Handler = func(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(Config.HeaderName) != "Bearer "+Config.Token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func main() {}
