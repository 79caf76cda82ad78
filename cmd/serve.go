package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scenerelay/config"
	"scenerelay/server"
	"scenerelay/storage"
	"scenerelay/storage/memory"
	"scenerelay/storage/postgres"
	"scenerelay/storage/postgres/migrations"
	redisstorage "scenerelay/storage/redis"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := server.NewLogger(logOptions(cfg))
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer server.SyncLogger(log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error {
	gateway, err := openGateway(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := gateway.Close(); err != nil {
			log.Warnw("close storage", "error", err)
		}
	}()

	opts := server.DefaultOptions()
	opts.GuestPrefix = cfg.Game.GuestPrefix
	opts.SinglePlayerScenes = cfg.Game.SinglePlayerScenes
	relay := server.NewRelay(gateway, opts, log)

	srv := server.NewServer(ctx, relay, server.ServerOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SendQueueSize:  cfg.Server.SendQueueSize,
		PongWait:       cfg.Server.ReadTimeout,
		StaticDir:      cfg.Server.StaticDir,
	}, log)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("scenerelay listening", "addr", cfg.Server.Addr, "storage", cfg.Storage.Type)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown: %w", err))
	}
	// websockets are hijacked, so Shutdown left them open; the gateway
	// closes only after their read loops are done
	if err := srv.CloseConnections(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("close websockets: %w", err))
	}
	return errors.Join(errs...)
}

// openGateway builds the Persistence Gateway selected by storage.type.
func openGateway(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (storage.Gateway, error) {
	reset := cfg.Game.ResetProgressOnDeath
	switch cfg.Storage.Type {
	case config.StoragePostgres:
		pg := cfg.Storage.Postgres
		if pg.Migrate {
			if err := runMigrations(pg.URL, log, (*migrations.Migrator).Up); err != nil {
				return nil, err
			}
		}
		return postgres.New(ctx, postgres.Config{
			URL:                  pg.URL,
			MaxConns:             pg.MaxConns,
			MinConns:             pg.MinConns,
			ResetProgressOnDeath: reset,
		})
	case config.StorageRedis:
		rcfg := redisstorage.DefaultConfig()
		rcfg.URL = cfg.Storage.Redis.URL
		rcfg.PoolSize = cfg.Storage.Redis.PoolSize
		rcfg.MinIdleConns = cfg.Storage.Redis.MinIdleConns
		rcfg.ResetProgressOnDeath = reset
		return redisstorage.New(rcfg)
	case config.StorageMemory:
		log.Warn("memory storage: persisted players start from spawn defaults every session")
		return memory.New(reset), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStorage, cfg.Storage.Type)
	}
}
