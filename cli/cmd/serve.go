package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gantry/runtime"
)

var (
	serveConfigPath string
	serveAddr       string
	servePluginsDir string
	serveWatch      bool
	serveDebug      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the plugin tree and serve HTTP",
	Long: `Serve scans the plugin directory, registers every discovered plugin and
middleware in order, and starts the HTTP server.

Example:
  gantry serve
  gantry serve --plugins-dir ./plugins --addr :9090 --watch
`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "gantry.yaml", "Path to the config file")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
	serveCmd.Flags().StringVar(&servePluginsDir, "plugins-dir", "", "Plugin tree root (overrides config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Watch the plugin tree and reload on changes")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Expose the plugin manifest route")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := runtime.LoadConfig(serveConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	if servePluginsDir != "" {
		cfg.PluginsDir = servePluginsDir
	}
	if serveWatch {
		cfg.Watch = true
	}
	if serveDebug {
		cfg.Debug = true
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	app := runtime.NewApp(cfg, logger)
	if err := app.Start(); err != nil {
		return fmt.Errorf("failed to load plugins: %w", err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Watch {
		go func() {
			if err := app.Watch(ctx); err != nil {
				logger.Error("watcher stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: app,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", "addr", cfg.Addr, "plugins_dir", cfg.PluginsDir)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
