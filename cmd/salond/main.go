package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/aaleksandraa/frizerino-backend-sub001/internal/api"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/config"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/db"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/events"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/grpcapi"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/lock"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/metrics"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/service"
)

const eventsChannel = "frizerino:events"

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	if err := config.LoadEnv(os.Getenv("SALON_ENV_FILE")); err != nil {
		logger.Fatal().Err(err).Msg("failed to load .env")
	}
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		logger = logger.Level(lvl)
	}

	cfg, err := config.Load(os.Getenv("SALON_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	database, err := db.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	err = config.WatchSalons(ctx, cfg.SalonsConfigPath, 30*time.Second, &logger, func(sc *config.SalonsConfig) {
		syncCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		err := database.SyncSalonsFromConfig(syncCtx, sc)
		metrics.IncConfigReload(metrics.Result(err))
		if err != nil {
			logger.Error().Err(err).Msg("salons config sync failed")
		}
	})
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.SalonsConfigPath).Msg("failed to load salons config")
	}

	bus := events.NewEventBus(&logger)
	for _, t := range []string{events.BookingCreated, events.BookingStatusChanged} {
		bus.Subscribe(t, events.LogHandler(&logger))
		bus.Subscribe(t, events.StoreHandler(database))
	}

	var locker lock.Locker = lock.NewLocalLocker(cfg.LockWait())
	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()

		locker = lock.NewFailoverLocker(
			lock.NewRedisLocker(rdb, cfg.LockTTL(), cfg.LockWait()),
			locker,
			&logger,
		)
		for _, t := range []string{events.BookingCreated, events.BookingStatusChanged} {
			bus.Subscribe(t, events.RedisForwarder(rdb, eventsChannel))
		}
		logger.Info().Str("addr", cfg.Redis.Address).Msg("using redis for booking locks")
	}

	avail := service.NewAvailabilityService(database, &logger, service.WithMinAdvance(cfg.BookingMinAdvance()))
	bookings := service.NewBookingService(database, avail, locker, bus, &logger)

	backup := db.NewBackupService(database, cfg.Backup, &logger)
	go backup.Start(ctx)

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, locker, &logger)
	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.GRPC.Enabled {
		go startGRPCServer(ctx, cfg.GRPC.Address, avail, bookings, &logger)
	}

	httpServer := api.NewHTTPServer(api.Options{
		Address:        cfg.HTTP.Address,
		APIKey:         cfg.HTTP.APIKey,
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, avail, bookings, database, &logger)
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("http shutdown")
		}
	}()

	logger.Info().Msg("salon availability service started")
	if err := httpServer.Start(); err != nil {
		logger.Error().Err(err).Msg("http server error")
		stop()
	}
	logger.Info().Msg("salon availability service stopped")
}

func startGRPCServer(ctx context.Context, addr string, avail *service.AvailabilityService, bookings *service.BookingService, logger *zerolog.Logger) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error().Err(err).Str("addr", addr).Msg("grpc listen")
		return
	}
	srv := grpcapi.NewGRPCServer(logger)
	grpcapi.Register(srv, grpcapi.NewServer(avail, bookings, logger))

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()
	logger.Info().Str("addr", addr).Msg("gRPC API listening")
	if err := srv.Serve(lis); err != nil {
		logger.Error().Err(err).Msg("grpc server error")
	}
}

// degradable is implemented by lockers that can fall back to in-process locking.
type degradable interface {
	Degraded() bool
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, locker lock.Locker, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				// Bookings fall back to in-process locks, so this is reported but not fatal.
				logger.Warn().Err(err).Msg("redis not reachable")
			}
		}
		if d, ok := locker.(degradable); ok && d.Degraded() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready (degraded: local booking locks)"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	serve(ctx, fmt.Sprintf(":%d", port), mux, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	serve(ctx, fmt.Sprintf(":%d", port), mux, "metrics", logger)
}

func serve(ctx context.Context, addr string, handler http.Handler, name string, logger *zerolog.Logger) {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
