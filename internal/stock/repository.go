package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wareflow/wareflow/internal/platform/db"
)

// Repository persists movements, balances and the ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RepositoryPort abstracts repository usage for the service and executor.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetMovement(ctx context.Context, id int64) (Movement, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	QueryLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error)
	GetBalance(ctx context.Context, productID, locationID int64) (decimal.Decimal, error)
}

// TxRepository exposes the operations available inside one atomic unit. The
// balance and ledger writers here are reachable only through WithTx, which is
// how continuously consistent balances are enforced.
type TxRepository interface {
	InsertMovement(ctx context.Context, mov Movement) (int64, error)
	InsertMovementLines(ctx context.Context, movementID int64, lines []MovementLine) error
	UpdateMovement(ctx context.Context, id int64, patch MovementPatch) error
	ReplaceMovementLines(ctx context.Context, movementID int64, lines []MovementLine) error
	GetMovementForUpdate(ctx context.Context, id int64) (Movement, error)
	MarkExecuted(ctx context.Context, id int64, at time.Time) error
	GetBalanceForUpdate(ctx context.Context, productID, locationID int64) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	InsertLedgerEntries(ctx context.Context, entries []LedgerEntry) error
}

// MovementPatch carries the mutable movement fields. Nil pointers are left
// untouched.
type MovementPatch struct {
	Status        *MovementStatus
	ScheduledDate *time.Time
	Notes         *string
}

// ErrBalanceNotFound indicates a missing balance row; callers treat it as a
// zero balance.
var ErrBalanceNotFound = errors.New("stock balance not found")

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const movementColumns = `id, movement_type, status, reference, partner_name, source_location_id, destination_location_id, scheduled_date, notes, created_by, created_at, updated_at, executed_at`

func scanMovement(row pgx.Row) (Movement, error) {
	var mov Movement
	var partner, notes *string
	var src, dst *int64
	err := row.Scan(&mov.ID, &mov.Type, &mov.Status, &mov.Reference, &partner, &src, &dst,
		&mov.ScheduledDate, &notes, &mov.CreatedBy, &mov.CreatedAt, &mov.UpdatedAt, &mov.ExecutedAt)
	if err != nil {
		return Movement{}, err
	}
	if partner != nil {
		mov.PartnerName = *partner
	}
	if notes != nil {
		mov.Notes = *notes
	}
	if src != nil {
		mov.SourceLocationID = *src
	}
	if dst != nil {
		mov.DestinationLocationID = *dst
	}
	return mov, nil
}

// GetMovement loads a movement with its lines.
func (r *Repository) GetMovement(ctx context.Context, id int64) (Movement, error) {
	mov, err := scanMovement(r.pool.QueryRow(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Movement{}, ErrNotFound
		}
		return Movement{}, err
	}
	lines, err := r.loadLines(ctx, []int64{id})
	if err != nil {
		return Movement{}, err
	}
	mov.Lines = lines[id]
	return mov, nil
}

// ListMovements returns movements newest first with optional type/status filters.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+movementColumns+` FROM stock_movements
WHERE ($1 = '' OR movement_type = $1) AND ($2 = '' OR status = $2)
ORDER BY created_at DESC, id DESC
OFFSET $3 LIMIT $4`, string(filter.Type), string(filter.Status), filter.Skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	ids := []int64{}
	for rows.Next() {
		mov, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, mov)
		ids = append(ids, mov.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return movements, nil
	}
	lines, err := r.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range movements {
		movements[i].Lines = lines[movements[i].ID]
	}
	return movements, nil
}

func (r *Repository) loadLines(ctx context.Context, movementIDs []int64) (map[int64][]MovementLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, movement_id, product_id, product_sku, product_name, quantity, unit_of_measure
FROM stock_movement_lines WHERE movement_id = ANY($1) ORDER BY id ASC`, movementIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := map[int64][]MovementLine{}
	for rows.Next() {
		var line MovementLine
		if err := rows.Scan(&line.ID, &line.MovementID, &line.ProductID, &line.ProductSKU, &line.ProductName, &line.Quantity, &line.UnitOfMeasure); err != nil {
			return nil, err
		}
		result[line.MovementID] = append(result[line.MovementID], line)
	}
	return result, rows.Err()
}

// QueryLedger searches ledger entries, newest first.
func (r *Repository) QueryLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, movement_id, product_id, product_sku, product_name, movement_type, reference, location_id, quantity_change, balance_after, occurred_at, created_by
FROM stock_ledger
WHERE ($1 = 0 OR product_id = $1)
  AND ($2 = '' OR product_sku = $2)
  AND ($3 = '' OR movement_type = $3)
  AND occurred_at BETWEEN COALESCE($4, '-infinity') AND COALESCE($5, 'infinity')
ORDER BY occurred_at DESC, id DESC
OFFSET $6 LIMIT $7`,
		filter.ProductID, filter.ProductSKU, string(filter.MovementType), nullTime(filter.From), nullTime(filter.To), filter.Skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.MovementID, &e.ProductID, &e.ProductSKU, &e.ProductName, &e.MovementType, &e.Reference, &e.LocationID, &e.QuantityChange, &e.BalanceAfter, &e.OccurredAt, &e.CreatedBy); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetBalance returns the current quantity for a (product, location) pair,
// zero when absent.
func (r *Repository) GetBalance(ctx context.Context, productID, locationID int64) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT quantity FROM stock_balances WHERE product_id=$1 AND location_id=$2`, productID, locationID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return qty, nil
}

func (r *txRepository) InsertMovement(ctx context.Context, mov Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (movement_type, status, reference, partner_name, source_location_id, destination_location_id, scheduled_date, notes, created_by, created_at, updated_at, executed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW(),$10) RETURNING id`,
		string(mov.Type), string(mov.Status), mov.Reference, nullStr(mov.PartnerName), nullInt(mov.SourceLocationID), nullInt(mov.DestinationLocationID),
		mov.ScheduledDate, nullStr(mov.Notes), mov.CreatedBy, mov.ExecutedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertMovementLines(ctx context.Context, movementID int64, lines []MovementLine) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO stock_movement_lines (movement_id, product_id, product_sku, product_name, quantity, unit_of_measure)
VALUES ($1,$2,$3,$4,$5,$6)`, movementID, line.ProductID, line.ProductSKU, line.ProductName, line.Quantity, line.UnitOfMeasure); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) UpdateMovement(ctx context.Context, id int64, patch MovementPatch) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_movements SET
status = COALESCE($2, status),
scheduled_date = COALESCE($3, scheduled_date),
notes = COALESCE($4, notes),
updated_at = NOW()
WHERE id = $1`, id, statusPtr(patch.Status), patch.ScheduledDate, patch.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) ReplaceMovementLines(ctx context.Context, movementID int64, lines []MovementLine) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM stock_movement_lines WHERE movement_id=$1`, movementID); err != nil {
		return err
	}
	return r.InsertMovementLines(ctx, movementID, lines)
}

func (r *txRepository) GetMovementForUpdate(ctx context.Context, id int64) (Movement, error) {
	mov, err := scanMovement(r.tx.QueryRow(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Movement{}, ErrNotFound
		}
		return Movement{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, movement_id, product_id, product_sku, product_name, quantity, unit_of_measure
FROM stock_movement_lines WHERE movement_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Movement{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line MovementLine
		if err := rows.Scan(&line.ID, &line.MovementID, &line.ProductID, &line.ProductSKU, &line.ProductName, &line.Quantity, &line.UnitOfMeasure); err != nil {
			return Movement{}, err
		}
		mov.Lines = append(mov.Lines, line)
	}
	return mov, rows.Err()
}

// MarkExecuted performs the compare-and-set transition ready -> done. The
// guard lives in the WHERE clause so the guarantee holds across processes; a
// losing racer matches zero rows and is told the movement is already done.
func (r *txRepository) MarkExecuted(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_movements SET status=$2, executed_at=$3, updated_at=NOW() WHERE id=$1 AND status=$4`,
		id, string(StatusDone), at, string(StatusReady))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var current string
	if err := r.tx.QueryRow(ctx, `SELECT status FROM stock_movements WHERE id=$1`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if MovementStatus(current) == StatusDone {
		return ErrAlreadyExecuted
	}
	return ErrInvalidTransition
}

func (r *txRepository) GetBalanceForUpdate(ctx context.Context, productID, locationID int64) (Balance, error) {
	var bal Balance
	err := r.tx.QueryRow(ctx, `SELECT product_id, location_id, quantity, updated_at FROM stock_balances WHERE product_id=$1 AND location_id=$2 FOR UPDATE`, productID, locationID).
		Scan(&bal.ProductID, &bal.LocationID, &bal.Quantity, &bal.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{ProductID: productID, LocationID: locationID, Quantity: decimal.Zero}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return bal, nil
}

func (r *txRepository) UpsertBalance(ctx context.Context, balance Balance) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_balances (product_id, location_id, quantity, updated_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (product_id, location_id) DO UPDATE SET quantity=EXCLUDED.quantity, updated_at=NOW()`,
		balance.ProductID, balance.LocationID, balance.Quantity)
	return err
}

func (r *txRepository) InsertLedgerEntries(ctx context.Context, entries []LedgerEntry) error {
	for _, e := range entries {
		if _, err := r.tx.Exec(ctx, `INSERT INTO stock_ledger (movement_id, product_id, product_sku, product_name, movement_type, reference, location_id, quantity_change, balance_after, occurred_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			e.MovementID, e.ProductID, e.ProductSKU, e.ProductName, string(e.MovementType), e.Reference, e.LocationID, e.QuantityChange, e.BalanceAfter, e.OccurredAt, e.CreatedBy); err != nil {
			return err
		}
	}
	return nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullStr(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func statusPtr(s *MovementStatus) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}
