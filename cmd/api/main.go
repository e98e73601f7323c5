package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bizhub.io/internal/access"
	"bizhub.io/internal/audit"
	"bizhub.io/internal/auth"
	"bizhub.io/internal/config"
	"bizhub.io/internal/httpapi"
	"bizhub.io/internal/migrate"
	"bizhub.io/internal/obs"
	"bizhub.io/internal/permission"
	"bizhub.io/internal/store/memory"
	"bizhub.io/internal/store/pg"
	"bizhub.io/internal/sweep"
	"bizhub.io/migrations"
)

var (
	version = "0.1.0"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", os.Getenv("BIZHUB_CONFIG"), "Path to YAML config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		obs.Logger().Error("bizhub-api exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := obs.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	obs.SetLogger(logger)

	if err := permission.Validate(); err != nil {
		return err
	}
	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store access.Store
		ready httpapi.ReadyChecker
		sink  audit.Sink = audit.LogSink{Logger: logger}
	)
	if cfg.Postgres.DSN != "" {
		db, err := pg.Open(cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.Ping(pingCtx)
		cancel()
		if err != nil {
			return err
		}
		if cfg.Postgres.AutoMigrate {
			applied, err := migrate.NewManager(db.DB(), migrations.FS()).Up(ctx)
			if err != nil {
				return err
			}
			if len(applied) > 0 {
				logger.Info("migrations applied", slog.Any("files", applied))
			}
		}
		if cfg.Postgres.PersistAudit {
			sink = audit.Multi(sink, audit.StoreSink{Store: db})
		}
		store, ready = db, db
	} else {
		logger.Warn("no postgres dsn configured; using in-memory store")
		store = memory.New()
	}

	svc, err := access.NewService(store,
		access.WithAuditSink(sink),
		access.WithLogger(logger),
		access.WithDefaultExpiry(cfg.Invitations.DefaultExpiry),
	)
	if err != nil {
		return err
	}
	if email := cfg.Bootstrap.AdminEmail; email != "" {
		created, err := svc.EnsureBootstrapAdmin(ctx, email)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			logger.Info("created bootstrap super_admin", slog.String("email", email))
		}
	} else if ready == nil {
		logger.Warn("in-memory store starts with no users; every registration check answers first-user setup until one exists",
			slog.String("hint", config.EnvBootstrapAdminEmail),
		)
	}
	verifier, err := auth.NewVerifier([]byte(cfg.Auth.Secret), auth.WithIssuer(cfg.Auth.Issuer))
	if err != nil {
		return err
	}

	opts := []httpapi.Option{
		httpapi.WithVersion(version),
		httpapi.WithLogger(logger),
		httpapi.WithAuditSink(sink),
		httpapi.WithRegistrationLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		httpapi.WithTrustedProxy(cfg.HTTP.TrustProxy),
	}
	if ready != nil {
		opts = append(opts, httpapi.WithReadyCheck(ready))
	}
	api, err := httpapi.New(svc, verifier, opts...)
	if err != nil {
		return err
	}

	if cfg.Invitations.CleanupInterval > 0 {
		stopSweep := sweep.New(svc, cfg.Invitations.CleanupInterval, logger).Start(ctx)
		defer stopSweep()
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting bizhub-api", slog.String("version", version), slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}
