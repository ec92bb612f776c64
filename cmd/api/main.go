// Package main is the entrypoint for the form collector API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/fdcollector/fdc/internal/auth"
	"github.com/fdcollector/fdc/internal/cache"
	"github.com/fdcollector/fdc/internal/config"
	"github.com/fdcollector/fdc/internal/metrics"
	"github.com/fdcollector/fdc/internal/middleware"
	"github.com/fdcollector/fdc/internal/repository"
	"github.com/fdcollector/fdc/internal/server"
	"github.com/fdcollector/fdc/internal/service"
	"github.com/fdcollector/fdc/internal/wordpress"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return errors.New("database unavailable")
	}
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		repo.Close()
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return errors.New("redis unavailable")
	}
	logger.Info("connected to Redis")

	sealer, err := auth.NewSealer(cfg.CredentialsKey)
	if err != nil {
		repo.Close()
		_ = cacheClient.Close()
		return fmt.Errorf("credentials key: %w", err)
	}
	sessions, err := auth.NewSessionManager(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		repo.Close()
		_ = cacheClient.Close()
		return fmt.Errorf("session manager: %w", err)
	}

	// Initialize services
	recorder := metrics.NewInMemory()
	services := server.Services{
		Resolver: service.NewResolver(repo, sessions, recorder),
		Accounts: service.NewAccountService(repo, sessions, cfg.SignupCode),
		Clients:  service.NewClientService(repo, sealer),
		APIKeys:  service.NewAPIKeyService(repo, sealer),
		Forms:    service.NewFormService(repo, repo, logger, recorder),
		Sync: service.NewSyncService(service.SyncServiceConfig{
			Store:     repo,
			WordPress: wordpress.NewClient(cfg.WordPressTimeout),
			Sealer:    sealer,
			Logger:    logger,
			Metrics:   recorder,
		}),
		Stats: service.NewStatsService(repo, repo),
	}

	r := server.NewRouter(server.RouterConfig{
		Logger:             logger,
		Services:           services,
		Cache:              cacheClient,
		Metrics:            recorder,
		DB:                 repo,
		Redis:              cacheClient,
		IsDevelopment:      cfg.IsDevelopment(),
		CORSAllowedOrigins: cfg.GetCORSAllowedOrigins(),
		TrustProxyHeaders:  cfg.TrustProxyHeaders,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		RateLimit: middleware.RateLimitConfig{
			APIEnabled:  cfg.RateLimitAPIEnabled,
			APIRPM:      cfg.RateLimitAPIRPM,
			APIBurst:    cfg.RateLimitAPIBurst,
			LoginLimit:  cfg.LoginRateLimit,
			LoginWindow: cfg.LoginRateWindow,
		},
	})

	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Registered first, closed last.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
	)

	return srv.Run(ctx)
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "fdc-api")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

// redactURL drops the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	q := parsed.Query()
	if q.Has("password") {
		q.Set("password", "redacted")
		parsed.RawQuery = q.Encode()
	}

	return parsed.String()
}

// sanitizeError replaces connection secrets that drivers echo back in
// their error messages.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
