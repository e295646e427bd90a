package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/bizcore/internal/app"
	"github.com/odyssey-erp/bizcore/internal/audit"
	"github.com/odyssey-erp/bizcore/internal/employees"
	"github.com/odyssey-erp/bizcore/internal/inventory"
	"github.com/odyssey-erp/bizcore/internal/invoices"
	"github.com/odyssey-erp/bizcore/internal/leave"
	"github.com/odyssey-erp/bizcore/internal/observability"
	"github.com/odyssey-erp/bizcore/internal/payroll"
	"github.com/odyssey-erp/bizcore/internal/platform/db"
	"github.com/odyssey-erp/bizcore/internal/platform/migrate"
	"github.com/odyssey-erp/bizcore/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if cfg.DBAutoMigrate {
		if err := migrate.Up(ctx, cfg.PGDSN, logger); err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	services, err := app.NewServices(app.ServiceDeps{
		Pool:    dbpool,
		Redis:   redisClient,
		Jobs:    jobClient,
		Metrics: metrics,
		Config:  cfg,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("init services", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Metrics:          metrics,
		DB:               dbpool,
		EmployeesHandler: employees.NewHandler(logger, services.Employees),
		LeaveHandler:     leave.NewHandler(logger, services.Leave),
		PayrollHandler:   payroll.NewHandler(logger, services.Payroll),
		InventoryHandler: inventory.NewHandler(logger, services.Inventory),
		InvoicesHandler:  invoices.NewHandler(logger, services.Invoices),
		AuditHandler:     audit.NewHandler(logger, services.Audit),
		JobHandler:       jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
