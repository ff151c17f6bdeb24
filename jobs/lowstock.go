package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/wareflow/wareflow/internal/jobs"
)

// AlertSetKey is the Redis set holding SKUs flagged by the last scan.
const AlertSetKey = "stock:lowstock_alerts"

// LowStockScanJob finds products whose aggregate stock has fallen to or below
// the reorder level and publishes the SKU set for dashboards and alerting.
type LowStockScanJob struct {
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockScanJob initialises the scan handler.
func NewLowStockScanJob(pool *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Pool: pool, Redis: rdb, Logger: logger, Metrics: metrics}
}

// Handle executes the scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("lowstock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskLowStockScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	logger := j.logger()
	logger.Info("starting low-stock scan", slog.Bool("include_inactive", payload.IncludeInactive))

	query := `
SELECT p.sku, p.name, p.reorder_level, COALESCE(SUM(b.quantity), 0) AS total
FROM products p
LEFT JOIN stock_balances b ON b.product_id = p.id
WHERE ($1 OR p.is_active)
GROUP BY p.id, p.sku, p.name, p.reorder_level
HAVING COALESCE(SUM(b.quantity), 0) <= p.reorder_level
ORDER BY p.sku`
	rows, err := j.Pool.Query(ctx, query, payload.IncludeInactive)
	if err != nil {
		resultErr = err
		logger.Error("low-stock query failed", slog.Any("error", err))
		return resultErr
	}
	defer rows.Close()

	var skus []interface{}
	for rows.Next() {
		var sku, name string
		var reorder, total decimal.Decimal
		if err := rows.Scan(&sku, &name, &reorder, &total); err != nil {
			resultErr = err
			return resultErr
		}
		logger.Warn("product below reorder level",
			slog.String("sku", sku),
			slog.String("name", name),
			slog.String("stock", total.String()),
			slog.String("reorder_level", reorder.String()),
		)
		skus = append(skus, sku)
	}
	if err := rows.Err(); err != nil {
		resultErr = err
		return resultErr
	}

	if j.Redis != nil {
		pipe := j.Redis.TxPipeline()
		pipe.Del(ctx, AlertSetKey)
		if len(skus) > 0 {
			pipe.SAdd(ctx, AlertSetKey, skus...)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			resultErr = err
			logger.Error("publishing alert set failed", slog.Any("error", err))
			return resultErr
		}
	}

	j.Metrics.SetLowStockProducts(len(skus))
	logger.Info("completed low-stock scan",
		slog.Int("flagged", len(skus)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	return j.Metrics
}
