package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"innersight/internal/auth"
	"innersight/internal/config"
	"innersight/internal/insights"
	"innersight/internal/logger"
	"innersight/internal/persistence"
	"innersight/internal/server"
)

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the innersight HTTP API.

The server provides:
  • /api/insights for analysis, reflection, title and perspective
  • /api/entries and /api/profile for stored entries and personalization
  • /api/providers to inspect and switch the active provider
  • /health and Prometheus metrics

Requests are authenticated with an OIDC ID token when auth.issuer is set.
Without an issuer the user id is taken from the X-User-ID header, which is
only suitable for local development.

Examples:
  # Start server on default port 8080
  innersight serve

  # Start on custom port
  innersight serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")

	return cmd
}

func runServe(ctx context.Context, port int, host string) error {
	log := logger.Get()
	cfg := config.Get()

	serverCfg := cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	db, err := persistence.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Record store ready", "driver", cfg.Database.Driver)

	stack, err := newInsightStack(cfg,
		insights.WithPersonalization(persistence.NewProfilePersonalization(db.Profiles(), log)),
	)
	if err != nil {
		return err
	}
	defer func() { _ = stack.posthog.Shutdown(context.Background()) }()

	authMW, err := newAuthMiddleware(ctx, cfg.Auth)
	if err != nil {
		return err
	}

	var opts []server.Option
	if cfg.Metrics.Enabled {
		opts = append(opts, server.WithMetricsHandler(cfg.Metrics.Path, promhttp.Handler()))
	}
	srv := server.New(db, stack.service, authMW, serverCfg, opts...)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info("Server shutdown initiated", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", "error", err)
			return fmt.Errorf("server shutdown failed: %w", err)
		}
	}
	return nil
}

func newAuthMiddleware(ctx context.Context, cfg config.Auth) (*auth.Middleware, error) {
	log := logger.Get()
	if cfg.Issuer == "" {
		log.Warn("No OIDC issuer configured, trusting the development user header", "header", cfg.DevUserHeader)
		return auth.NewMiddleware(nil, cfg.DevUserHeader, log), nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	verifier, err := auth.NewOIDCVerifier(ctx, cfg.Issuer, cfg.ClientID)
	if err != nil {
		return nil, err
	}
	log.Info("OIDC authentication enabled", "issuer", cfg.Issuer)
	return auth.NewMiddleware(verifier, "", log), nil
}
