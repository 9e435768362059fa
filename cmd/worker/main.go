package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"guestms/internal/config"
	"guestms/internal/database"
	"guestms/internal/export"
	"guestms/internal/google"
	"guestms/internal/logging"
	"guestms/internal/models"
	"guestms/internal/repository"
	"guestms/internal/service"
	"guestms/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	var (
		resync     = flag.Bool("resync", false, "rewrite the reservations sheet from the database and exit")
		exportFrom = flag.String("export-from", "", "write an xlsx export starting at this date (YYYY-MM-DD) and exit")
		exportTo   = flag.String("export-to", "", "end date of the xlsx export (YYYY-MM-DD)")
		requeue    = flag.Bool("requeue-failed", false, "move permanently failed sync tasks back to pending on start")
	)
	flag.Parse()

	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	db, err := database.NewDBWithTimeout(cfg.Database.Path, cfg.Database.BusyTimeoutMS, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *exportFrom != "" {
		return runExport(ctx, cfg, db, *exportFrom, *exportTo, &logger)
	}

	sheetsService, err := initGoogleSheets(ctx, cfg, &logger)
	if err != nil {
		return err
	}

	if *resync {
		if sheetsService == nil {
			return errors.New("google sheets is not configured")
		}
		return resyncSheet(ctx, db, sheetsService, &logger)
	}

	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = repository.NewRedisClient(cfg.Redis)
		if errPing := repository.Ping(ctx, redisClient); errPing != nil {
			logger.Warn().Err(errPing).Msg("Redis unavailable, polling sync queue from database")
			_ = redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var wg sync.WaitGroup

	if sheetsService != nil {
		maintainSyncQueue(ctx, db, *requeue, &logger)

		sheetsWorker := worker.NewSheetsWorker(db, sheetsService, redisClient, worker.DefaultRetryPolicy, &logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sheetsWorker.Start(ctx)
		}()
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Backup, &logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			backupService.Start(ctx)
		}()
	}

	reservations := service.NewReservationService(db, repository.NewMemoryCoordinator(), nil, nil, service.ReservationOptions{}, &logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reservations.RunReconciler(ctx, cfg.Reservation.ReconcileInterval())
	}()

	logger.Info().
		Bool("sheets", sheetsService != nil).
		Bool("backup", cfg.Backup.Enabled).
		Dur("reconcile_interval", cfg.Reservation.ReconcileInterval()).
		Msg("Worker started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	wg.Wait()
	logger.Info().Msg("Shutdown complete.")
	return nil
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
	logger := baseLogger.With().Str("component", "worker-main").Logger()

	return cfg, logger, closer, nil
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*google.SheetsService, error) {
	if !cfg.Google.Enabled() {
		logger.Info().Msg("Google Sheets is not configured, sync worker disabled")
		return nil, nil
	}

	sheetsSvc, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.ReservationSpreadsheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize Google Sheets service")
		return nil, err
	}

	if err := sheetsSvc.TestConnection(ctx); err != nil {
		if email, emailErr := google.ServiceAccountEmail(cfg.Google.CredentialsFile); emailErr == nil {
			logger.Error().Err(err).Str("service_account", email).Msg("Google Sheets connection test failed; share the spreadsheet with the service account")
		} else {
			logger.Error().Err(err).Msg("Google Sheets connection test failed")
		}
		return nil, err
	}

	if err := sheetsSvc.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to warm up sheets row cache")
	}

	logger.Info().Msg("Google Sheets service initialized successfully")
	return sheetsSvc, nil
}

// completedTaskRetention is how long finished sync tasks stay in the queue table.
const completedTaskRetention = 7 * 24 * time.Hour

func maintainSyncQueue(ctx context.Context, db *database.DB, requeue bool, logger *zerolog.Logger) {
	if purged, err := db.PurgeCompletedSyncTasks(ctx, time.Now().Add(-completedTaskRetention)); err != nil {
		logger.Warn().Err(err).Msg("Failed to purge completed sync tasks")
	} else if purged > 0 {
		logger.Info().Int("count", purged).Msg("Purged completed sync tasks")
	}

	if requeue {
		n, err := db.RequeueFailedSyncTasks(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to requeue sync tasks")
			return
		}
		logger.Info().Int("count", n).Msg("Failed sync tasks requeued")
		return
	}

	failed, err := db.GetFailedSyncTasks(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read failed sync tasks")
		return
	}
	if len(failed) > 0 {
		logger.Warn().Int("count", len(failed)).Msg("Sync tasks failed permanently; restart with -requeue-failed or -resync")
	}
}

func resyncSheet(ctx context.Context, db *database.DB, sheetsService *google.SheetsService, logger *zerolog.Logger) error {
	reservations, err := db.ListReservations(ctx, models.ReservationFilter{})
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}
	if err := sheetsService.ReplaceReservationsSheet(ctx, reservations); err != nil {
		return fmt.Errorf("replace reservations sheet: %w", err)
	}
	logger.Info().Int("count", len(reservations)).Msg("Reservations sheet rebuilt")
	return nil
}

func runExport(ctx context.Context, cfg *config.Config, db *database.DB, fromStr, toStr string, logger *zerolog.Logger) error {
	from, err := models.ParseDate(fromStr)
	if err != nil {
		return fmt.Errorf("invalid -export-from: %w", err)
	}
	to := from
	if toStr != "" {
		if to, err = models.ParseDate(toStr); err != nil {
			return fmt.Errorf("invalid -export-to: %w", err)
		}
	}

	path, err := export.NewExporter(db, cfg.Exports.Path, logger).Save(ctx, from, to)
	if err != nil {
		return err
	}
	logger.Info().Str("file_path", path).Msg("Export written")
	return nil
}
