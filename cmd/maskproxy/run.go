package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maskproxy/maskproxy/internal/config"
	"github.com/maskproxy/maskproxy/internal/gateway"
	"github.com/maskproxy/maskproxy/internal/logging"
	"github.com/maskproxy/maskproxy/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var configPath string
	var envFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the masking proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configPath, envFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := logging.New(logging.Options{
				Level:   cfg.Logging.Level,
				Format:  cfg.Logging.Format,
				Version: version,
			})
			return runProxy(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (optional)")
	cmd.Flags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "Path to .env file")

	return cmd
}

func runProxy(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Logging.ExchangeLog != "" {
		exchLog, closer, err := logging.OpenExchangeLog(cfg.ResolvePath(cfg.Logging.ExchangeLog))
		if err != nil {
			return err
		}
		defer func() { _ = closer() }()
		gw.SetExchangeLogger(exchLog)
	}

	adminSrv := startAdminServer(cfg, gw, logger)
	defer func() {
		if adminSrv != nil {
			_ = adminSrv.Shutdown(context.Background())
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           gateway.WithCORS(cfg.CORS, gw),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if cfg.Server.TLS.Enabled {
			serverErr <- srv.ListenAndServeTLS(cfg.ResolvePath(cfg.Server.TLS.CertFile), cfg.ResolvePath(cfg.Server.TLS.KeyFile))
			return
		}
		serverErr <- srv.ListenAndServe()
	}()

	logger.Info().
		Str("listen", cfg.Server.Listen).
		Str("upstream", cfg.Upstream.URL).
		Str("proxy_key", config.Redact(cfg.Credentials.Inbound())).
		Msg("maskproxy listening")
	if !cfg.Credentials.HasUpstream() {
		logger.Warn().Msgf("%s is not set; forwarded requests will fail with 500", config.EnvOpenAIKey)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-signalCtx.Done():
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func startAdminServer(cfg *config.Config, gw *gateway.Gateway, logger zerolog.Logger) *http.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	gw.SetMetrics(metrics)

	srv := &http.Server{
		Addr:              cfg.Metrics.Listen,
		Handler:           observability.AdminMux(metrics, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("admin server stopped")
		}
	}()
	return srv
}
