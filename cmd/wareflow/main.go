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
	"github.com/joho/godotenv"

	"github.com/wareflow/wareflow/internal/app"
	"github.com/wareflow/wareflow/internal/masterdata"
	"github.com/wareflow/wareflow/internal/masterdata/locations"
	"github.com/wareflow/wareflow/internal/masterdata/products"
	"github.com/wareflow/wareflow/internal/masterdata/warehouses"
	"github.com/wareflow/wareflow/internal/observability"
	"github.com/wareflow/wareflow/internal/platform/cache"
	"github.com/wareflow/wareflow/internal/platform/db"
	"github.com/wareflow/wareflow/internal/reporting"
	"github.com/wareflow/wareflow/internal/shared"
	"github.com/wareflow/wareflow/internal/stock"
	"github.com/wareflow/wareflow/jobs"
)

// stockNotifier bumps the reporting cache generation after every committed
// execution so dashboards never serve pre-execution balances for long.
type stockNotifier struct {
	reports *reporting.Service
	logger  *slog.Logger
}

func (n stockNotifier) StockChanged(ctx context.Context) {
	if err := n.reports.Invalidate(ctx); err != nil {
		n.logger.Warn("invalidate report cache", slog.Any("error", err))
	}
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis connect", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := idempotencyStore.Cleanup(ctx, cfg.IdempotencyTTL); err != nil {
					logger.Warn("idempotency cleanup", slog.Any("error", err))
				}
			}
		}
	}()

	productsService := products.NewService(products.NewRepository(pool))
	warehousesService := warehouses.NewService(warehouses.NewRepository(pool))
	locationsService := locations.NewService(locations.NewRepository(pool))
	directory := masterdata.NewDirectory(productsService, locationsService)

	reportingCache := reporting.NewCache(redisClient, cfg.ReportCacheTTL)
	reportingService := reporting.NewService(reporting.NewRepository(pool), reportingCache)
	if err := reportingCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("report cache listener", slog.Any("error", err))
	}

	metrics := observability.NewMetrics()

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, directory, directory)
	stockExecutor := stock.NewExecutor(stockRepo, directory, directory, auditLogger, idempotencyStore, metrics, stock.ExecutorConfig{
		DefaultLocationID: cfg.DefaultLocationID,
		Notifier:          stockNotifier{reports: reportingService, logger: logger},
	})

	stockHandler := stock.NewHandler(logger, stockService, stockExecutor)
	reportingHandler := reporting.NewHandler(logger, reportingService)
	productsHandler := products.NewHandler(logger, productsService)
	warehousesHandler := warehouses.NewHandler(logger, warehousesService)
	locationsHandler := locations.NewHandler(logger, locationsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		StockHandler:      stockHandler,
		ReportingHandler:  reportingHandler,
		ProductsHandler:   productsHandler,
		WarehousesHandler: warehousesHandler,
		LocationsHandler:  locationsHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
		Pool:              pool,
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
