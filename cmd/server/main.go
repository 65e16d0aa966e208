package main

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

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/dentalsettle/backend/internal/api"
	"github.com/dentalsettle/backend/internal/auth"
	"github.com/dentalsettle/backend/internal/calculator"
	"github.com/dentalsettle/backend/internal/config"
	"github.com/dentalsettle/backend/internal/metrics"
	"github.com/dentalsettle/backend/internal/service"
	"github.com/dentalsettle/backend/internal/storage"
	"github.com/dentalsettle/backend/internal/storage/sqlite"
	"github.com/dentalsettle/backend/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logging.SetupWithLevel(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	logger := slog.Default()

	// Initialize SQLite storage
	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logger.Info("Storage initialized", "database", cfg.DB.Path)

	m := metrics.New()
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authSvc := service.NewAuthService(auth.NewPasswordAuthenticator(store), jwtManager, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Seed.Admin {
		if err := seed(ctx, store, authSvc, cfg); err != nil {
			return err
		}
	}

	router := api.NewRouter(api.Deps{
		Auth:        authSvc,
		Records:     service.NewRecordService(store, m, logger),
		Settlements: service.NewSettlementService(store, calculator.DefaultTierRules(), m, logger),
		CashDrawer:  service.NewCashDrawerService(store, logger),
		Catalog:     service.NewCatalogService(store),
		JWT:         jwtManager,
		Metrics:     m,
		Logger:      logger,
		CORSOrigin:  cfg.HTTP.CORSOrigin,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           h2c.NewHandler(router, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", cfg.HTTP.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down", "timeout", cfg.HTTP.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

// seed creates the first site and the owner account on an empty database.
func seed(ctx context.Context, store storage.Store, authSvc *service.AuthService, cfg *config.Config) error {
	sites, err := store.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}
	if len(sites) == 0 {
		site, err := store.CreateSite(ctx, cfg.Seed.SiteName)
		if err != nil {
			return fmt.Errorf("failed to create site: %w", err)
		}
		slog.Info("Site created", "site_id", site.ID, "name", site.Name)
	}
	return authSvc.EnsureOwner(ctx, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword)
}
