package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridianhq/meridian/internal/app"
	"github.com/meridianhq/meridian/internal/billing"
	"github.com/meridianhq/meridian/internal/platform/db"
	"github.com/meridianhq/meridian/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, nil, billing.NewNumberGenerator(), logger,
		billing.ServiceConfig{InvoiceDueDays: cfg.InvoiceDueDays})
	sweeps := jobs.NewBillingSweeps(billingService, logger)

	expiryTask, err := jobs.NewQuotationExpiryTask(time.Now().UTC())
	if err != nil {
		logger.Error("build quotation expiry task", slog.Any("error", err))
		os.Exit(1)
	}
	overdueTask, err := jobs.NewInvoiceOverdueTask(time.Now().UTC())
	if err != nil {
		logger.Error("build invoice overdue task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Sweeps:    sweeps,
		Cron: []jobs.CronRegistration{
			{Spec: cfg.QuotationExpirySchedule, Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.InvoiceOverdueSchedule, Task: overdueTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
