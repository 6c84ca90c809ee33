package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ledgercore/ledgercore/internal/app"
	"github.com/ledgercore/ledgercore/internal/coordinator"
	jobmetrics "github.com/ledgercore/ledgercore/internal/jobs"
	"github.com/ledgercore/ledgercore/internal/masterdata"
	"github.com/ledgercore/ledgercore/internal/observability"
	"github.com/ledgercore/ledgercore/internal/platform/cache"
	"github.com/ledgercore/ledgercore/internal/platform/db"
	"github.com/ledgercore/ledgercore/internal/store"
	"github.com/ledgercore/ledgercore/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
		logger.Info("schema applied")
	}

	redisClient, err := cache.New(ctx, cfg.CacheOptions())
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	tenants := masterdata.NewPostgresDirectory(pool)
	directory := masterdata.NewCachedDirectory(tenants, redisClient, cfg.DirectoryCacheTTL, logger)
	ledger := coordinator.New(store.NewPostgresStore(pool, cfg.TxOptions()), directory, coordinator.Config{
		OperationTimeout:         cfg.OperationTimeout,
		DefaultTaxRate:           cfg.TaxRate(),
		AllowNegativeAdjustments: cfg.AllowNegativeAdjustments,
		PostCostOfSales:          cfg.PostCostOfSales,
	}, logger, coordinator.NewMetrics(metrics.Registerer()))

	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())
	integrityJob := jobs.NewLedgerIntegrityJob(ledger, tenants, logger, jobMetrics)
	reorderJob := jobs.NewReorderScanJob(ledger, tenants, cfg.SystemActor(), logger, jobMetrics)

	integrityTask, err := jobs.NewLedgerIntegrityTask(jobs.TenantPayload{})
	if err != nil {
		return err
	}
	reorderTask, err := jobs.NewReorderScanTask(jobs.TenantPayload{})
	if err != nil {
		return err
	}

	redisOpts := cfg.QueueOptions()
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Concurrency: cfg.WorkerConcurrency,
		Logger:      logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskInventoryReorderScan, Handler: reorderJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.IntegrityCron, Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.ReorderCron, Task: reorderTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		return err
	}

	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()

	srv := &http.Server{
		Addr: cfg.OpsAddr,
		Handler: app.NewRouter(app.RouterParams{
			Logger:     logger,
			Ledger:     ledger,
			DB:         pool,
			JobHandler: jobs.NewHandler(inspector, logger),
			Metrics:    metrics,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("ops server listening", slog.String("addr", cfg.OpsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
