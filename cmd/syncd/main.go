// Command syncd runs the multi-device change synchronization gateway.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Saluana/or3-chat-sub017/cmd/syncd/handlers"
	"github.com/Saluana/or3-chat-sub017/internal/config"
	"github.com/Saluana/or3-chat-sub017/internal/db"
	"github.com/Saluana/or3-chat-sub017/internal/logging"
	"github.com/Saluana/or3-chat-sub017/internal/sync"
	"github.com/Saluana/or3-chat-sub017/internal/sync/memory"
	"github.com/Saluana/or3-chat-sub017/internal/sync/sqlite"
	"github.com/Saluana/or3-chat-sub017/internal/telemetry"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "syncd",
		Short: "Multi-device change synchronization gateway",
		Long: `syncd maintains an append-only, strictly ordered change log per
workspace. Devices push idempotent change batches, pull incrementally from a
cursor, and report read progress so acknowledged history can be pruned.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	root.AddCommand(serveCmd(), migrateCmd(), gcCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves configuration and initializes the global logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logging.Init(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// openBackend opens the configured storage backend, migrated and ready.
func openBackend(cfg *config.Config) (sync.Backend, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		database, err := db.Open(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(database.DB); err != nil {
			database.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		return sqlite.NewStore(database.DB), nil
	case config.BackendMemory:
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			backend, err := openBackend(cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			engine := sync.NewEngine(backend, backend)
			retention := time.Duration(cfg.RetentionSeconds) * time.Second

			hub := NewWSHub()
			syncHandler := handlers.NewSyncHandler(engine, retention)
			syncHandler.SetWebSocketHub(hub)

			mux := http.NewServeMux()
			mux.HandleFunc("POST /api/sync/push", syncHandler.Push)
			mux.HandleFunc("POST /api/sync/pull", syncHandler.Pull)
			mux.HandleFunc("POST /api/sync/cursor", syncHandler.UpdateCursor)
			mux.HandleFunc("POST /api/sync/gc", syncHandler.Collect)
			mux.HandleFunc("/api/health", handlers.Health)
			mux.HandleFunc("GET /ws", HandleWebSocket(hub))

			if cfg.MetricsEnabled {
				telemetry.Register()
				mux.Handle("GET /metrics", telemetry.Handler())
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Periodic retention sweep over all workspaces.
			go engine.Collector().Run(ctx, time.Duration(cfg.GCIntervalSecs)*time.Second, retention)

			server := &http.Server{
				Addr:    cfg.ListenAddr,
				Handler: mux,
			}

			errCh := make(chan error, 1)
			go func() {
				logging.Info("syncd listening", map[string]interface{}{
					"addr":    cfg.ListenAddr,
					"backend": string(cfg.Backend),
				})
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			logging.Info("syncd stopped")
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or roll back) database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Backend != config.BackendSQLite {
				return fmt.Errorf("migrate applies to the sqlite backend only")
			}

			database, err := db.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer database.Close()

			migrator := db.NewMigrator(database.DB, db.Migrations())
			if err := migrator.Initialize(); err != nil {
				return err
			}

			if down {
				if err := migrator.Down(); err != nil {
					return err
				}
			} else {
				if err := migrator.Up(); err != nil {
					return err
				}
			}

			version, err := migrator.CurrentVersion()
			if err != nil {
				return err
			}
			fmt.Printf("schema version: %d\n", version)
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the last migration")
	return cmd
}

func gcCmd() *cobra.Command {
	var workspaceID string
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Run one retention collection pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			backend, err := openBackend(cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			engine := sync.NewEngine(backend, backend)
			retention := time.Duration(cfg.RetentionSeconds) * time.Second
			ctx := cmd.Context()

			workspaces := []string{workspaceID}
			if workspaceID == "" {
				workspaces, err = backend.Workspaces(ctx)
				if err != nil {
					return err
				}
			}

			var total int64
			for _, ws := range workspaces {
				deleted, err := engine.Collect(ctx, ws, retention)
				if err != nil {
					return fmt.Errorf("collect %s: %w", ws, err)
				}
				total += deleted
			}
			fmt.Printf("deleted %d records across %d workspaces\n", total, len(workspaces))
			return nil
		},
	}
	cmd.Flags().StringVarP(&workspaceID, "workspace", "w", "", "collect a single workspace (default: all)")
	return cmd
}
