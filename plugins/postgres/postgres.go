// Postgres-backed setup plugin.
//
// Build into a named directory to scope its routes, e.g. under /db:
//
//	go build -buildmode=plugin -o plugins/db/postgres.so ./plugins/postgres
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"gantry/runtime/pluginapi"
)

// PostgresConfig holds the connection settings, merged from the plugins
// section of gantry.yaml.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn" validate:"required"`
	MaxOpenConns    int           `yaml:"max_open_conns" default:"10" validate:"gte=1,lte=100"`
	MaxIdleConns    int           `yaml:"max_idle_conns" default:"5" validate:"gte=0,lte=50"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"5m" validate:"gte=0"`
	PingTimeout     time.Duration `yaml:"ping_timeout" default:"3s" validate:"gte=1s"`
}

var Config PostgresConfig

var db *sql.DB

// Initialize opens the connection pool. Config is already validated.
func Initialize() error {
	var err error
	db, err = sql.Open("postgres", Config.DSN)
	if err != nil {
		return fmt.Errorf("opening postgres pool: %w", err)
	}
	db.SetMaxOpenConns(Config.MaxOpenConns)
	db.SetMaxIdleConns(Config.MaxIdleConns)
	db.SetConnMaxLifetime(Config.ConnMaxLifetime)
	return nil
}

func Shutdown() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

var Handler = func(s *pluginapi.Scope) error {
	s.GET("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := contextWithTimeout(r, Config.PingTimeout)
		defer cancel()

		status := "ok"
		code := http.StatusOK
		if err := db.PingContext(ctx); err != nil {
			status = err.Error()
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"database": status})
	})
	return nil
}

func contextWithTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

func main() {}
