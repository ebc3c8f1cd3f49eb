package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/auth"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, applog.ComponentApp)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	logger.InfoContext(ctx, "Starting fintrack server",
		applog.FieldOperation, applog.OpStartup,
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"auth_mode", cfg.AuthMode)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create backend",
			applog.FieldErrorType, applog.ErrorTypeDatabase,
			applog.FieldError, err)
		os.Exit(1)
	}

	resolver, err := newResolver(cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to configure identity", applog.FieldError, err)
		os.Exit(1)
	}

	limiter, redisClient, err := newLimiter(ctx, cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to connect rate limit store",
			applog.FieldErrorType, applog.ErrorTypeNetwork,
			applog.FieldError, err)
		os.Exit(1)
	}

	detector, err := security.NewDetector(cfg.TrustedProxies...)
	if err != nil {
		logger.ErrorContext(ctx, "Invalid trusted proxy list",
			applog.FieldErrorType, applog.ErrorTypeConfiguration,
			applog.FieldError, err)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:        ":" + cfg.Port,
		Ledger:      result.Ledger,
		Resolver:    resolver,
		Ready:       result.Ping,
		Limiter:     limiter,
		Detector:    detector,
		CORSOrigins: cfg.CORSAllowedOrigins,
		Logger:      logger,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()
	if runErr != nil {
		logger.ErrorContext(ctx, "Server error",
			applog.FieldErrorType, applog.ErrorTypeNetwork,
			applog.FieldError, runErr,
			"port", cfg.Port)
	}

	cli.RunCleanup(logger, cfg.ShutdownTimeout, func(context.Context) error {
		var errs []error
		if redisClient != nil {
			errs = append(errs, redisClient.Close())
		}
		if result.Cleanup != nil {
			errs = append(errs, result.Cleanup())
		}
		return errors.Join(errs...)
	})

	if runErr != nil {
		os.Exit(1)
	}
}

func newResolver(cfg *config.Config) (auth.Resolver, error) {
	if cfg.AuthMode == config.AuthHeader {
		return auth.HeaderResolver{}, nil
	}
	return auth.NewJWTResolver(cfg.JWTSecret, cfg.JWTIssuer)
}

// newLimiter prefers the shared redis window so limits hold across replicas.
func newLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, *redis.Client, error) {
	rlCfg := ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute, CleanupInterval: 5 * time.Minute}
	if cfg.RateLimitRedisURL == "" {
		return ratelimit.NewMemory(rlCfg), nil, nil
	}
	limiter, client, err := ratelimit.NewRedisFromURL(ctx, cfg.RateLimitRedisURL, rlCfg)
	if err != nil {
		return nil, nil, err
	}
	return limiter, client, nil
}
