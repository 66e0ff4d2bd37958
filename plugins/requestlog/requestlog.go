// Request logging middleware.
//
// Build into the global middleware directory:
//
//	go build -buildmode=plugin -o plugins/middleware/requestlog.so ./plugins/requestlog
package main

import (
	"log/slog"
	"net/http"
	"os"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

// Runs early so every later hook and handler is already covered by the log
// line.
var Order = 1

var Handler = func(w http.ResponseWriter, r *http.Request) {
	logger.Info("request",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", r.Header.Get("X-Request-Id"))
}

func main() {}
