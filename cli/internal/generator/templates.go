package generator

const setupPluginTemplate = `package main

import (
	"net/http"

	"gantry/runtime/pluginapi"
)

// Order controls registration priority; lower runs first.
var Order = pluginapi.DefaultOrder

// Handler runs once during registration. Routes and hooks installed here
// are confined to this plugin's prefix.
var Handler = func(s *pluginapi.Scope) error {
	s.GET("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{{.Name}}: hello"))
	})
	return nil
}

func main() {}
`

const middlewareTemplate = `package main

import (
	"net/http"

	"gantry/runtime/pluginapi"
)

// Order controls hook priority; lower runs first.
var Order = pluginapi.DefaultOrder

// Handler runs for every matching request. Writing a response ends the
// request; otherwise the chain continues.
var Handler = func(w http.ResponseWriter, r *http.Request) {
	// inspect or annotate the request here
	_ = r
}

func main() {}
`
