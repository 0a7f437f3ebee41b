package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/healthcareplus/clinic-scheduler/internal/config"
	"github.com/healthcareplus/clinic-scheduler/internal/domain/booking"
	"github.com/healthcareplus/clinic-scheduler/internal/domain/schedule"
	v1 "github.com/healthcareplus/clinic-scheduler/internal/handler/v1"
	"github.com/healthcareplus/clinic-scheduler/internal/service"
	"github.com/healthcareplus/clinic-scheduler/internal/storage"
	"github.com/healthcareplus/clinic-scheduler/pkg/database"
	"github.com/healthcareplus/clinic-scheduler/pkg/logger"
	"github.com/healthcareplus/clinic-scheduler/pkg/metrics"
	"github.com/healthcareplus/clinic-scheduler/pkg/tracer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting clinic scheduler",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	sched, err := schedule.Load(cfg.Clinic.ScheduleFile, cfg.Clinic.Timezone)
	if err != nil {
		return fmt.Errorf("loading clinic schedule: %w", err)
	}

	collector := metrics.NewCollector("clinic_scheduler")

	var (
		ledger    booking.Ledger
		auditRepo service.AuditRepository
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return err
		}
		if err := database.Migrate(db, log); err != nil {
			return err
		}
		ledger = storage.NewGormLedger(db, sched.BufferMinutes(), collector)
		auditRepo = storage.NewGormAuditLog(db)
	case "memory":
		log.Warn("using in-memory ledger; bookings will not survive a restart")
		ledger = storage.NewMemoryLedger(sched.BufferMinutes())
		auditRepo = storage.NewMemoryAuditLog()
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}

	auditSvc := service.NewAuditService(auditRepo, log, collector)
	defer auditSvc.Shutdown()

	availSvc := service.NewAvailabilityService(sched, ledger, log, collector)
	bookingSvc := service.NewBookingService(sched, ledger, availSvc, auditSvc, log, collector)

	router := v1.NewRouter(cfg, log, collector,
		v1.NewAvailabilityHandler(availSvc, cfg.Clinic.MaxSuggestions),
		v1.NewBookingHandler(bookingSvc),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
