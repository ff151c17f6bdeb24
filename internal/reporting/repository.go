package reporting

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product or location does not exist.
var ErrNotFound = errors.New("reporting: not found")

// Repository reads the stock projections straight from PostgreSQL. All
// queries are read-only aggregations over balances, movements and master data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productLocationSelect = `
SELECT p.id, p.sku, p.name, p.unit_of_measure, p.reorder_level,
       COALESCE(l.id, 0), COALESCE(l.name, ''), COALESCE(w.name, ''),
       COALESCE(b.quantity, 0)
FROM products p
LEFT JOIN stock_balances b ON b.product_id = p.id AND b.quantity > 0
LEFT JOIN locations l ON l.id = b.location_id
LEFT JOIN warehouses w ON w.id = l.warehouse_id`

// ProductLocationRows returns the balance rows for one product, including a
// zero row when the product holds no stock anywhere.
func (r *Repository) ProductLocationRows(ctx context.Context, productID int64) ([]ProductLocationRow, error) {
	rows, err := r.pool.Query(ctx, productLocationSelect+`
WHERE p.id = $1
ORDER BY l.name NULLS LAST`, productID)
	if err != nil {
		return nil, fmt.Errorf("query product stock: %w", err)
	}
	defer rows.Close()
	result, err := scanProductLocationRows(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// AllProductLocationRows returns balance rows for every product, ordered so
// one product's rows are contiguous.
func (r *Repository) AllProductLocationRows(ctx context.Context) ([]ProductLocationRow, error) {
	rows, err := r.pool.Query(ctx, productLocationSelect+`
ORDER BY p.name, p.id, l.name NULLS LAST`)
	if err != nil {
		return nil, fmt.Errorf("query all product stock: %w", err)
	}
	defer rows.Close()
	return scanProductLocationRows(rows)
}

func scanProductLocationRows(rows pgx.Rows) ([]ProductLocationRow, error) {
	var result []ProductLocationRow
	for rows.Next() {
		var row ProductLocationRow
		if err := rows.Scan(
			&row.ProductID, &row.SKU, &row.Name, &row.UnitOfMeasure, &row.ReorderLevel,
			&row.LocationID, &row.LocationName, &row.WarehouseName, &row.Quantity,
		); err != nil {
			return nil, fmt.Errorf("scan product stock row: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

const locationSummarySelect = `
SELECT l.id, l.name, l.type, w.name,
       COUNT(b.product_id) FILTER (WHERE b.quantity > 0),
       COALESCE(SUM(b.quantity) FILTER (WHERE b.quantity > 0), 0)
FROM locations l
JOIN warehouses w ON w.id = l.warehouse_id
LEFT JOIN stock_balances b ON b.location_id = l.id
GROUP BY l.id, l.name, l.type, w.name`

// LocationSummary aggregates a single location.
func (r *Repository) LocationSummary(ctx context.Context, locationID int64) (LocationStockSummary, error) {
	var summary LocationStockSummary
	err := r.pool.QueryRow(ctx, locationSummarySelect+`
HAVING l.id = $1`, locationID).Scan(
		&summary.LocationID, &summary.LocationName, &summary.LocationType,
		&summary.WarehouseName, &summary.ProductCount, &summary.TotalUnits,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return LocationStockSummary{}, ErrNotFound
	}
	if err != nil {
		return LocationStockSummary{}, fmt.Errorf("query location summary: %w", err)
	}
	return summary, nil
}

// LocationSummaries aggregates every location.
func (r *Repository) LocationSummaries(ctx context.Context) ([]LocationStockSummary, error) {
	rows, err := r.pool.Query(ctx, locationSummarySelect+`
ORDER BY w.name, l.name`)
	if err != nil {
		return nil, fmt.Errorf("query location summaries: %w", err)
	}
	defer rows.Close()
	var result []LocationStockSummary
	for rows.Next() {
		var summary LocationStockSummary
		if err := rows.Scan(
			&summary.LocationID, &summary.LocationName, &summary.LocationType,
			&summary.WarehouseName, &summary.ProductCount, &summary.TotalUnits,
		); err != nil {
			return nil, fmt.Errorf("scan location summary: %w", err)
		}
		result = append(result, summary)
	}
	return result, rows.Err()
}

// ProductCounts computes the dashboard product aggregates in one pass.
func (r *Repository) ProductCounts(ctx context.Context) (ProductCounts, error) {
	var counts ProductCounts
	var totalUnits decimal.Decimal
	err := r.pool.QueryRow(ctx, `
WITH totals AS (
    SELECT p.id, p.reorder_level, COALESCE(SUM(b.quantity), 0) AS total
    FROM products p
    LEFT JOIN stock_balances b ON b.product_id = p.id
    GROUP BY p.id, p.reorder_level
)
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE total > 0 AND total <= reorder_level),
       COUNT(*) FILTER (WHERE total = 0),
       COALESCE(SUM(total), 0)
FROM totals`).Scan(&counts.Total, &counts.LowStock, &counts.OutOfStock, &totalUnits)
	if err != nil {
		return ProductCounts{}, fmt.Errorf("query product counts: %w", err)
	}
	counts.TotalUnits = totalUnits
	return counts, nil
}

const pendingMovementQuery = `
SELECT movement_type, COUNT(*)
FROM stock_movements
WHERE status IN ('draft', 'waiting', 'ready')
GROUP BY movement_type`

// PendingMovementCounts counts non-terminal movements grouped by type.
func (r *Repository) PendingMovementCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, pendingMovementQuery)
	if err != nil {
		return nil, fmt.Errorf("query pending movements: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int64)
	for rows.Next() {
		var typ string
		var n int64
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan pending movement count: %w", err)
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}
