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

	"golang.org/x/sync/errgroup"

	jwttoken "guardian/internal/jwt_token"
	"guardian/internal/platform/config"
	"guardian/internal/platform/logger"
	httptransport "guardian/internal/transport/http"
)

// main wires the stores, collaborators, services, and workers, then serves
// the HTTP API until SIGINT or SIGTERM.
func main() {
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing guardian",
		"environment", cfg.Environment,
		"addr", cfg.Server.Addr,
	)

	infra, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close(log)

	app, err := build(ctx, cfg, infra, log)
	if err != nil {
		return err
	}
	defer app.actions.Close()

	signingKey := cfg.Auth.JWTSigningKey
	if signingKey == "" {
		log.Warn("auth.jwt_signing_key is not set, using the development key")
		signingKey = devSigningKey
	}
	tokens := jwttoken.NewJWTService(signingKey, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	router := httptransport.NewRouter(app.handlers, tokens, log, httptransport.Options{
		RequestTimeout: cfg.Server.RequestTimeout,
		Metrics:        app.httpMetrics,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.RequestTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return ignoreCancel(app.recovery.Start(gctx))
	})
	g.Go(func() error {
		return ignoreCancel(app.restoration.Start(gctx))
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
