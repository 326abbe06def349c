package cmd

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

	"github.com/allez-events/server/internal/api"
	"github.com/allez-events/server/internal/api/handlers"
	"github.com/allez-events/server/internal/auth"
	"github.com/allez-events/server/internal/cache"
	"github.com/allez-events/server/internal/config"
	"github.com/allez-events/server/internal/domain/events"
	"github.com/allez-events/server/internal/domain/users"
	"github.com/allez-events/server/internal/images"
	"github.com/allez-events/server/internal/jobs"
	"github.com/allez-events/server/internal/metrics"
	"github.com/allez-events/server/internal/payments"
	"github.com/allez-events/server/internal/storage/postgres"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Server flags (override config/env)
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Allez HTTP server",
	Long: `Start the Allez HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables
- Connect to PostgreSQL, Redis, the payment provider and object storage
- Start the background job workers
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Msg("starting allez server")

	metrics.AppInfo.WithLabelValues(Version, GitCommit, BuildDate).Set(1)

	poolCtx, poolCancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := postgres.NewPool(poolCtx, cfg.Database.URL)
	poolCancel()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return fmt.Errorf("repository init failed: %w", err)
	}

	// Database pool metrics, collected every 15 seconds.
	dbCollector := metrics.NewDBCollector(pool)
	collectorCtx, collectorCancel := context.WithCancel(context.Background())
	go dbCollector.Start(collectorCtx, 15*time.Second)
	defer collectorCancel()
	defer dbCollector.Stop()

	redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
	redisClient, err := cache.NewClient(redisCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	redisCancel()
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}()
	views := cache.NewRecentViews(redisClient)

	s3Ctx, s3Cancel := context.WithTimeout(context.Background(), 10*time.Second)
	s3Client, err := images.NewClient(s3Ctx, cfg.Storage.Region)
	s3Cancel()
	if err != nil {
		return fmt.Errorf("object storage init failed: %w", err)
	}
	eventImages := images.NewStore(s3Client, cfg.Storage.EventBucket, cfg.Storage.CDNBaseURL)
	userImages := images.NewStore(s3Client, cfg.Storage.UserBucket, cfg.Storage.CDNBaseURL)

	stripeClient := payments.New(cfg.Stripe.APIKey, cfg.Storage.CDNBaseURL)

	jobLogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = jobs.Migrate(migrateCtx, pool)
	migrateCancel()
	if err != nil {
		return fmt.Errorf("job queue migration failed: %w", err)
	}

	workers, err := jobs.NewWorkers(stripeClient, eventImages, userImages, repo.Users(), repo.Events(), jobLogger)
	if err != nil {
		return fmt.Errorf("job workers init failed: %w", err)
	}
	riverClient, err := jobs.NewClient(pool, workers, jobLogger)
	if err != nil {
		return fmt.Errorf("job client init failed: %w", err)
	}

	riverCtx, riverCancel := context.WithCancel(context.Background())
	defer riverCancel()
	if err := riverClient.Start(riverCtx); err != nil {
		return fmt.Errorf("job workers failed to start: %w", err)
	}
	logger.Info().Msg("background job workers started")
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			logger.Error().Err(err).Msg("job workers shutdown error")
		}
	}()

	enqueuer := jobs.NewEnqueuer(riverClient)

	eventService := events.NewService(repo.Events(), repo.Users(), stripeClient, eventImages, views, enqueuer, logger)
	userService := users.NewService(repo.Users(), eventService, userImages, logger)

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer)

	router := api.NewRouter(cfg, logger, api.Deps{
		Events: handlers.NewEventsHandler(eventService, eventImages, views, cfg.Environment),
		Users:  handlers.NewUsersHandler(userService, userImages, eventImages, cfg.Environment),
		Health: handlers.NewHealthHandler(repo, handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}), Version, GitCommit),
		JWT: jwtManager,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	return gracefulShutdown(server, logger)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}

func gracefulShutdown(server *http.Server, logger zerolog.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
