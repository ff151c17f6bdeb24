package locations

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
	List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error)
	Get(ctx context.Context, id int64) (Location, error)
	Create(ctx context.Context, location Location) (Location, error)
	Update(ctx context.Context, id int64, location Location) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const locationSelect = `
SELECT l.id, l.warehouse_id, w.name, l.name, l.type, l.is_active, l.created_at, l.updated_at
FROM locations l
JOIN warehouses w ON w.id = l.warehouse_id`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error) {
	where := ``
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		where += ` AND l.name ILIKE $` + strconv.Itoa(argCount)
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.WarehouseID != nil {
		argCount++
		where += ` AND l.warehouse_id = $` + strconv.Itoa(argCount)
		args = append(args, *filters.WarehouseID)
	}
	if filters.Type != "" {
		argCount++
		where += ` AND l.type = $` + strconv.Itoa(argCount)
		args = append(args, filters.Type)
	}
	if filters.IsActive != nil {
		argCount++
		where += ` AND l.is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM locations l WHERE 1=1`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := locationSelect + `
WHERE 1=1` + where + `
ORDER BY w.name, l.name`
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

	var locations []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.WarehouseID, &l.WarehouseName, &l.Name, &l.Type, &l.IsActive, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, 0, err
		}
		locations = append(locations, l)
	}
	return locations, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Location, error) {
	var l Location
	err := r.pool.QueryRow(ctx, locationSelect+`
WHERE l.id = $1`, id).Scan(
		&l.ID, &l.WarehouseID, &l.WarehouseName, &l.Name, &l.Type, &l.IsActive, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, shared.ErrNotFound
	}
	if err != nil {
		return Location{}, err
	}
	return l, nil
}

func (r *repository) Create(ctx context.Context, location Location) (Location, error) {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
INSERT INTO locations (warehouse_id, name, type, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
RETURNING id`,
		location.WarehouseID, location.Name, location.Type, location.IsActive, now,
	).Scan(&location.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return Location{}, shared.ErrDuplicate
			case "23503":
				// Unknown warehouse.
				return Location{}, shared.ErrNotFound
			}
		}
		return Location{}, err
	}
	location.CreatedAt = now
	location.UpdatedAt = now
	return location, nil
}

func (r *repository) Update(ctx context.Context, id int64, location Location) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE locations
SET warehouse_id = $2, name = $3, type = $4, is_active = $5, updated_at = NOW()
WHERE id = $1`,
		id, location.WarehouseID, location.Name, location.Type, location.IsActive,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicate
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
