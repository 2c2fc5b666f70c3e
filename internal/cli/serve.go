package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/budgetpool/budgetpool/internal/api"
	"github.com/budgetpool/budgetpool/internal/daemon"
	"github.com/budgetpool/budgetpool/internal/infra/memstore"
	"github.com/budgetpool/budgetpool/internal/infra/sqlite"
	"github.com/budgetpool/budgetpool/internal/ledger"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the budgetpool API server",
	Long: `Start the HTTP API server that the admin dashboard and sub-admin
purchase UI talk to. State lives in a local SQLite database by default.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	server, cleanup, err := buildServer(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("budgetpool listening on http://%s", cfg.Addr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case sig := <-stop:
		log.Printf("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}

// buildServer wires the store, engine, and HTTP server from config.
// The cleanup func closes the store; callers must invoke it on exit.
func buildServer(cfg daemon.Config) (*api.Server, func(), error) {
	var server *api.Server
	cleanup := func() {}

	switch cfg.Store.Backend {
	case "sqlite", "":
		db, err := sqlite.Open(cfg.Store.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
		cleanup = func() { db.Close() }

		engine := ledger.New(cfg.EngineConfig(), db, db)
		server = api.NewServer(engine)
		server.SetActivityReader(db)
		server.SetCatalog(db)

	case "memory":
		engine := ledger.New(cfg.EngineConfig(), memstore.New(), nil)
		server = api.NewServer(engine)

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q (want sqlite or memory)", cfg.Store.Backend)
	}

	if cfg.API.EnableMetrics {
		server.EnableMetrics()
	}
	return server, cleanup, nil
}

// loadConfig resolves the --config flag to a daemon.Config.
func loadConfig(cmd *cobra.Command) (daemon.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = daemon.DefaultConfigPath()
	}
	return daemon.Load(path)
}
