package products

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wareflow/wareflow/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	GetBySKU(ctx context.Context, sku string) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const productSelect = `
SELECT p.id, p.sku, p.name, p.category, p.unit_of_measure, p.reorder_level,
       p.is_active, p.created_at, p.updated_at,
       COALESCE(SUM(b.quantity), 0) AS current_stock
FROM products p
LEFT JOIN stock_balances b ON b.product_id = p.id`

const productGroup = `
GROUP BY p.id, p.sku, p.name, p.category, p.unit_of_measure, p.reorder_level,
         p.is_active, p.created_at, p.updated_at`

// List uses dynamic filtering; the computed stock join makes sqlc impractical
// here.
func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	where := ``
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		n := strconv.Itoa(argCount)
		where += ` AND (p.name ILIKE $` + n + ` OR p.sku ILIKE $` + n + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.Category != "" {
		argCount++
		where += ` AND p.category = $` + strconv.Itoa(argCount)
		args = append(args, filters.Category)
	}
	if filters.IsActive != nil {
		argCount++
		where += ` AND p.is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products p WHERE 1=1`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := productSelect + `
WHERE 1=1` + where + productGroup + `
ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	row := r.pool.QueryRow(ctx, productSelect+`
WHERE p.id = $1`+productGroup, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.ErrNotFound
	}
	return p, err
}

func (r *repository) GetBySKU(ctx context.Context, sku string) (Product, error) {
	row := r.pool.QueryRow(ctx, productSelect+`
WHERE p.sku = $1`+productGroup, sku)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.ErrNotFound
	}
	return p, err
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
INSERT INTO products (sku, name, category, unit_of_measure, reorder_level, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
RETURNING id`,
		product.SKU, product.Name, product.Category, product.UnitOfMeasure,
		product.ReorderLevel, product.IsActive, now,
	).Scan(&product.ID)
	if err != nil {
		return Product{}, translateError(err)
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE products
SET sku = $2, name = $3, category = $4, unit_of_measure = $5,
    reorder_level = $6, is_active = $7, updated_at = NOW()
WHERE id = $1`,
		id, product.SKU, product.Name, product.Category, product.UnitOfMeasure,
		product.ReorderLevel, product.IsActive,
	)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Category, &p.UnitOfMeasure, &p.ReorderLevel,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt, &p.CurrentStock,
	)
	if err != nil {
		return Product{}, err
	}
	p.IsLowStock = p.CurrentStock.LessThanOrEqual(p.ReorderLevel)
	return p, nil
}

func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "sku":
		return "p.sku " + dir
	case "category":
		return "p.category " + dir + ", p.name ASC"
	default:
		return "p.name " + dir
	}
}
