package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/giygas/mfds-oncology-api/aggregator"
	"github.com/giygas/mfds-oncology-api/auth"
	"github.com/giygas/mfds-oncology-api/config"
	"github.com/giygas/mfds-oncology-api/data"
	"github.com/giygas/mfds-oncology-api/handlers"
	"github.com/giygas/mfds-oncology-api/health"
	"github.com/giygas/mfds-oncology-api/logging"
	"github.com/giygas/mfds-oncology-api/mailer"
	"github.com/giygas/mfds-oncology-api/registry"
	"github.com/giygas/mfds-oncology-api/scheduler"
	"github.com/giygas/mfds-oncology-api/server"
	"github.com/giygas/mfds-oncology-api/validation"
	"github.com/joho/godotenv"
)

const sessionCleanupInterval = 15 * time.Minute

// loadEnv reads .env from the working directory, then from the directory of
// the executable.
func loadEnv() {
	if err := godotenv.Load(); err == nil {
		return
	}

	ex, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	exPath := filepath.Dir(ex)
	if err := os.Chdir(exPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to change directory: %v\n", err)
		os.Exit(1)
	}
	_ = godotenv.Load()
}

func main() {
	loadEnv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logging.InitLoggerWithRetention("logs", cfg.Env, cfg.LogLevel, cfg.LogRetentionWeeks, cfg.MaxLogFileSize)
	defer logging.Shutdown()

	logging.Info("Configuration loaded", "env", cfg.Env.String(), "address", cfg.Address, "port", cfg.Port)

	if err := run(cfg); err != nil {
		logging.Error("Server stopped with error", "error", err)
		logging.Shutdown()
		os.Exit(1)
	}
}

// run validates the admin and mail settings before the initial sweep, so
// a bad configuration fails without waiting on the registry.
func run(cfg *config.Config) error {
	authCfg := auth.Config{
		PasswordHash: cfg.AdminPasswordHash,
		TokenSecret:  cfg.AuthTokenSecret,
		SessionTTL:   cfg.SessionTTL,
	}
	if err := authCfg.Validate(); err != nil {
		return err
	}

	sender, err := mailer.NewSender(mailer.Config{
		Provider:     cfg.MailProvider,
		ResendAPIKey: cfg.ResendAPIKey,
		SMTPHost:     cfg.SMTPHost,
		SMTPPort:     cfg.SMTPPort,
		SMTPUsername: cfg.SMTPUsername,
		SMTPPassword: cfg.SMTPPassword,
	})
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}
	reports := mailer.NewService(sender, cfg.MailFrom, cfg.DashboardURL)
	if !reports.Enabled() {
		logging.Warn("Email dispatch disabled", "provider", cfg.MailProvider)
	}

	client, err := registry.NewClient(registry.Config{
		BaseURL:        cfg.RegistryBaseURL,
		ServiceKey:     cfg.RegistryAPIKey,
		PageSize:       cfg.RegistryPageSize,
		RequestTimeout: cfg.RegistryRequestTimeout,
		MaxRetries:     cfg.RegistryMaxRetries,
		RatePerSecond:  cfg.RegistryRatePerSecond,
	})
	if err != nil {
		return fmt.Errorf("registry client: %w", err)
	}

	fetcher := aggregator.New(client, aggregator.WithConcurrency(cfg.SweepConcurrency))
	dataContainer := data.NewDataContainer()

	sched := scheduler.NewScheduler(dataContainer, fetcher,
		scheduler.WithRefreshTimes(cfg.RefreshTimes),
		scheduler.WithSweepTimeout(cfg.SweepTimeout),
	)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	defer sched.Stop()

	authenticator := auth.New(authCfg)
	if !authenticator.Enabled() {
		logging.Warn("Admin access disabled, ADMIN_PASSWORD_HASH is not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go authenticator.Sessions().RunCleanup(ctx, sessionCleanupInterval)

	handler := handlers.NewHTTPHandler(dataContainer, validation.NewDataValidator(),
		handlers.WithFetcher(fetcher),
		handlers.WithScheduler(sched),
		handlers.WithHealthChecker(health.NewHealthChecker(dataContainer, sched)),
		handlers.WithAuthenticator(authenticator),
		handlers.WithMailer(reports),
		handlers.WithMaxUploadSize(cfg.MaxUploadSize),
		handlers.WithFetchTimeout(cfg.SweepTimeout),
	)

	srv := server.NewServer(cfg, handler, authenticator)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case sig := <-quit:
		logging.Info("Shutdown signal received", "signal", sig.String())
	case err := <-errChan:
		return fmt.Errorf("server failed to start: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}
