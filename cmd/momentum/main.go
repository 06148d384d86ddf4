package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"momentum/internal/bot"
	"momentum/internal/config"
	"momentum/internal/datex"
	"momentum/internal/event"
	"momentum/internal/logger"
	"momentum/internal/repository"
	"momentum/internal/service"
)

func main() {
	exportPath := flag.String("export", "", "write a JSON snapshot of the database to this file and exit")
	importPath := flag.String("import", "", "restore a JSON snapshot from this file and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := repository.NewDB(cfg.DatabaseURL, zlog)
	if err != nil {
		zlog.Fatal("db", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	occurrenceRepo := repository.NewOccurrenceRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	milestoneRepo := repository.NewMilestoneRepository(db)

	bus := event.NewBus()
	settings := service.Settings{
		Clock:           datex.SystemClock{},
		Location:        cfg.Location,
		HorizonDays:     cfg.HorizonDays,
		TokensPerMonth:  cfg.FreezeTokensPerMonth,
		MaxFreezeTokens: cfg.MaxFreezeTokens,
	}

	backupSvc := service.NewBackupService(repository.NewSnapshotRepository(db), bus, settings, zlog)
	if *exportPath != "" || *importPath != "" {
		if err := runBackup(ctx, backupSvc, *exportPath, *importPath); err != nil {
			zlog.Fatal("backup", zap.Error(err))
		}
		return
	}

	categorySvc := service.NewCategoryService(categoryRepo)
	taskSvc := service.NewTaskService(taskRepo, occurrenceRepo, categoryRepo, userRepo, bus, settings, zlog)
	milestoneSvc := service.NewMilestoneService(milestoneRepo, progressRepo, bus, settings, zlog)
	progressSvc := service.NewProgressService(occurrenceRepo, progressRepo, userRepo, milestoneSvc, bus, settings, zlog)
	analyticsSvc := service.NewAnalyticsService(progressSvc)
	periodicSvc := service.NewPeriodicService(userRepo, progressRepo, taskSvc, progressSvc, settings, zlog)
	reminderSvc := service.NewReminderService(taskSvc, progressSvc, categorySvc, settings)

	if err := cfg.RequireBot(); err != nil {
		zlog.Fatal("config", zap.Error(err))
	}
	telegramBot, err := bot.New(&cfg, userRepo, bot.Services{
		Tasks:      taskSvc,
		Progress:   progressSvc,
		Milestones: milestoneSvc,
		Analytics:  analyticsSvc,
		Categories: categorySvc,
		Reminders:  reminderSvc,
	}, bus, zlog)
	if err != nil {
		zlog.Fatal("bot", zap.Error(err))
	}

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, zlog)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	evaluate := func() {
		jobCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := periodicSvc.EvaluateAll(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			zlog.Error("periodic evaluation", zap.Error(err))
		}
	}

	scheduler := service.NewSchedulerService(cfg.Location, zlog)
	if _, err := scheduler.ScheduleDaily(cfg.EvaluateAt, evaluate); err != nil {
		zlog.Fatal("schedule evaluation", zap.Error(err))
	}
	if cfg.ReportInterval > 0 {
		if _, err := scheduler.ScheduleInterval(cfg.ReportInterval, func() {
			jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				zlog.Error("report", zap.Error(err))
			}
		}); err != nil {
			zlog.Fatal("schedule reports", zap.Error(err))
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	// catch up on days that ended while the process was down
	go evaluate()

	zlog.Info("momentum started", zap.String("evaluate_at", cfg.EvaluateAt), zap.Duration("report_interval", cfg.ReportInterval))
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		zlog.Error("bot stopped with error", zap.Error(err))
	}
	zlog.Info("shutdown complete")
}

func serveMetrics(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()
	log.Info("metrics listening", zap.String("addr", addr))
	return srv
}

func runBackup(ctx context.Context, backup *service.BackupService, exportPath, importPath string) error {
	if exportPath != "" {
		f, err := os.Create(exportPath)
		if err != nil {
			return err
		}
		defer f.Close()
		return backup.Export(ctx, f)
	}

	f, err := os.Open(importPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = backup.Import(ctx, f)
	return err
}
