package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"guestms/internal/api"
	"guestms/internal/config"
	"guestms/internal/database"
	"guestms/internal/domain"
	"guestms/internal/events"
	"guestms/internal/export"
	"guestms/internal/logging"
	"guestms/internal/metrics"
	"guestms/internal/models"
	"guestms/internal/notify"
	"guestms/internal/repository"
	"guestms/internal/reservation"
	"guestms/internal/service"
	"guestms/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	coordinator := initCoordinator(redisClient, &logger)

	eventBus := events.NewEventBus()
	eventBus.OnError(func(ev *events.Event, err error) {
		logger.Error().Err(err).Str("event", ev.Type).Msg("event handler failed")
	})

	notifier := initNotifier(cfg, eventBus, &logger)
	if notifier != nil {
		notifier.Start(ctx)
		defer notifier.Stop()
	}

	// The API process only enqueues; cmd/worker consumes the queue.
	var syncWorker domain.SyncWorker
	if cfg.Google.Enabled() {
		syncWorker = worker.NewSheetsWorker(db, nil, redisClient, worker.RetryPolicy{}, &logger)
	}

	reservations := service.NewReservationService(db, coordinator, eventBus, syncWorker, service.ReservationOptions{
		LockTTL:          cfg.Reservation.LockTTL(),
		LockWait:         cfg.Reservation.LockWait(),
		CreateRateLimit:  cfg.Reservation.CreateRateLimit,
		CreateRateWindow: cfg.Reservation.CreateRateWindow(),
		Limits: reservation.StayLimits{
			MaxNights:      cfg.Reservation.MaxStayNights,
			MaxAdvanceDays: cfg.Reservation.MaxAdvanceDays,
		},
	}, &logger)

	if _, err := reservations.ReconcileAll(ctx); err != nil {
		logger.Error().Err(err).Msg("startup reconciliation failed")
	}

	services := api.Services{
		Rooms:        service.NewRoomService(db, &logger),
		Customers:    service.NewCustomerService(db, &logger),
		Reservations: reservations,
		Exporter:     export.NewExporter(db, cfg.Exports.Path, &logger),
		Pinger:       db,
	}

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.API, services, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, db, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func loadRooms(path string, logger *zerolog.Logger) ([]models.Room, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error().Err(err).Str("rooms_path", path).Msg("read rooms")
		return nil, err
	}

	var roomsFile config.RoomsFile
	if err := yaml.Unmarshal(data, &roomsFile); err != nil {
		logger.Error().Err(err).Str("rooms_path", path).Msg("parse rooms")
		return nil, err
	}

	return roomsFile.BuildRooms()
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("create database directory")
		return nil, err
	}

	db, err := database.NewDBWithTimeout(cfg.Database.Path, cfg.Database.BusyTimeoutMS, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	if _, statErr := os.Stat(cfg.RoomsFile); statErr != nil {
		logger.Warn().Str("rooms_path", cfg.RoomsFile).Msg("rooms file not found, skipping room sync")
		return db, nil
	}

	rooms, err := loadRooms(cfg.RoomsFile, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := db.SyncRooms(context.Background(), rooms); err != nil {
		logger.Error().Err(err).Msg("sync rooms")
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with in-memory locks")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initCoordinator(redisClient *redis.Client, logger *zerolog.Logger) domain.Coordinator {
	memory := repository.NewMemoryCoordinator()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverCoordinator(repository.NewRedisCoordinator(redisClient), memory, logger)
}

func initNotifier(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) *notify.Notifier {
	if !cfg.Telegram.Enabled {
		return nil
	}

	bot, err := notify.NewBotSender(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return nil
	}

	n := notify.NewNotifier(bot, cfg.Telegram.StaffChatIDs, 0, logger)
	n.Attach(bus)
	logger.Info().Int("chats", len(cfg.Telegram.StaffChatIDs)).Msg("telegram notifications enabled")
	return n
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go grpcServer.MonitorHealth(ctx, 15*time.Second)
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Bool("grpc", grpcServer != nil).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
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
