package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"innkeeper/internal/config"
	"innkeeper/internal/credentials"
	"innkeeper/internal/database"
	"innkeeper/internal/domain"
	"innkeeper/internal/events"
	"innkeeper/internal/export"
	"innkeeper/internal/logging"
	"innkeeper/internal/metrics"
	"innkeeper/internal/repository"
	"innkeeper/internal/server"
	"innkeeper/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}
	logger := baseLogger.With().Str("component", "server-main").Logger()

	metrics.Register()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("database initialization failed")
		return err
	}
	defer db.Close()

	creds, err := credentials.NewStore(cfg.Credentials.Path)
	if err != nil {
		logger.Error().Err(err).Msg("credential store initialization failed")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := initLoginLimiter(ctx, cfg, &logger)

	eventBus := events.NewEventBus()
	subscribeEventLog(eventBus, &logger)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	if cfg.Exports.Enabled {
		exportService := export.NewService(db, cfg.Exports, cfg.Hotel.Capacity, &logger)
		go exportService.Start(ctx)
	}

	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	fsm := server.NewFSM(server.FSMConfig{
		Credentials: creds,
		Bookings:    db,
		Limiter:     limiter,
		Publisher:   eventBus,
		Capacity:    cfg.Hotel.Capacity,
		Year:        cfg.Hotel.Year,
		LoginLimit:  cfg.LoginLimit.Attempts,
		LoginWindow: time.Duration(cfg.LoginLimit.Window) * time.Second,
		Retry: worker.RetryPolicy{
			MaxRetries:    5,
			InitialDelay:  10 * time.Millisecond,
			MaxDelay:      500 * time.Millisecond,
			BackoffFactor: 2,
		},
		Logger: &logger,
	})

	handler := server.NewSessionHandler(fsm, &logger)
	srv := server.New(cfg.Server, handler, &logger)
	return srv.Serve(ctx)
}

func initLoginLimiter(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) domain.LoginLimiter {
	fallback := repository.NewMemoryLoginLimiter()
	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, using in-memory login limiter")
		return fallback
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, limiter will fail over to memory")
	}
	primary := repository.NewRedisLoginLimiter(redisClient)
	return repository.NewFailoverLoginLimiter(primary, fallback, logger)
}

func subscribeEventLog(bus *events.EventBus, logger *zerolog.Logger) {
	for _, eventType := range []string{
		events.EventUserRegistered,
		events.EventReservationCreated,
		events.EventReservationReleased,
	} {
		bus.Subscribe(eventType, func(event *events.Event) error {
			logger.Info().
				Str("event", event.Type).
				RawJSON("payload", event.Payload).
				Msg("domain event")
			return nil
		})
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
