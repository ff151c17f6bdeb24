package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// memoryRepo is an in-memory stand-in for the PostgreSQL repository. WithTx
// snapshots state and restores it on error so the all-or-nothing behaviour of
// the real transaction is preserved in tests.
type memoryRepo struct {
	movements map[int64]Movement
	balances  map[string]Balance
	ledger    []LedgerEntry
	nextMovID int64
	nextLedID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		movements: make(map[int64]Movement),
		balances:  make(map[string]Balance),
	}
}

func balanceKey(productID, locationID int64) string {
	return fmt.Sprintf("%d:%d", productID, locationID)
}

func (r *memoryRepo) snapshot() *memoryRepo {
	clone := &memoryRepo{
		movements: make(map[int64]Movement, len(r.movements)),
		balances:  make(map[string]Balance, len(r.balances)),
		ledger:    append([]LedgerEntry(nil), r.ledger...),
		nextMovID: r.nextMovID,
		nextLedID: r.nextLedID,
	}
	for id, mov := range r.movements {
		mov.Lines = append([]MovementLine(nil), mov.Lines...)
		clone.movements[id] = mov
	}
	for k, b := range r.balances {
		clone.balances[k] = b
	}
	return clone
}

func (r *memoryRepo) restore(snap *memoryRepo) {
	r.movements = snap.movements
	r.balances = snap.balances
	r.ledger = snap.ledger
	r.nextMovID = snap.nextMovID
	r.nextLedID = snap.nextLedID
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snap := r.snapshot()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *memoryRepo) GetMovement(ctx context.Context, id int64) (Movement, error) {
	mov, ok := r.movements[id]
	if !ok {
		return Movement{}, ErrNotFound
	}
	return mov, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	var result []Movement
	for _, mov := range r.movements {
		if filter.Type != "" && mov.Type != filter.Type {
			continue
		}
		if filter.Status != "" && mov.Status != filter.Status {
			continue
		}
		result = append(result, mov)
	}
	return result, nil
}

func (r *memoryRepo) QueryLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	var result []LedgerEntry
	for _, e := range r.ledger {
		if filter.ProductID != 0 && e.ProductID != filter.ProductID {
			continue
		}
		if filter.ProductSKU != "" && e.ProductSKU != filter.ProductSKU {
			continue
		}
		if filter.MovementType != "" && e.MovementType != filter.MovementType {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func (r *memoryRepo) GetBalance(ctx context.Context, productID, locationID int64) (decimal.Decimal, error) {
	if bal, ok := r.balances[balanceKey(productID, locationID)]; ok {
		return bal.Quantity, nil
	}
	return decimal.Zero, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) InsertMovement(ctx context.Context, mov Movement) (int64, error) {
	tx.repo.nextMovID++
	mov.ID = tx.repo.nextMovID
	now := time.Now().UTC()
	mov.CreatedAt = now
	mov.UpdatedAt = now
	tx.repo.movements[mov.ID] = mov
	return mov.ID, nil
}

func (tx *memoryTx) InsertMovementLines(ctx context.Context, movementID int64, lines []MovementLine) error {
	mov, ok := tx.repo.movements[movementID]
	if !ok {
		return ErrNotFound
	}
	for i := range lines {
		lines[i].MovementID = movementID
		lines[i].ID = int64(len(mov.Lines) + i + 1)
	}
	mov.Lines = append(mov.Lines, lines...)
	tx.repo.movements[movementID] = mov
	return nil
}

func (tx *memoryTx) UpdateMovement(ctx context.Context, id int64, patch MovementPatch) error {
	mov, ok := tx.repo.movements[id]
	if !ok {
		return ErrNotFound
	}
	if patch.Status != nil {
		mov.Status = *patch.Status
	}
	if patch.ScheduledDate != nil {
		mov.ScheduledDate = patch.ScheduledDate
	}
	if patch.Notes != nil {
		mov.Notes = *patch.Notes
	}
	mov.UpdatedAt = time.Now().UTC()
	tx.repo.movements[id] = mov
	return nil
}

func (tx *memoryTx) ReplaceMovementLines(ctx context.Context, movementID int64, lines []MovementLine) error {
	mov, ok := tx.repo.movements[movementID]
	if !ok {
		return ErrNotFound
	}
	mov.Lines = nil
	tx.repo.movements[movementID] = mov
	return tx.InsertMovementLines(ctx, movementID, lines)
}

func (tx *memoryTx) GetMovementForUpdate(ctx context.Context, id int64) (Movement, error) {
	return tx.repo.GetMovement(ctx, id)
}

func (tx *memoryTx) MarkExecuted(ctx context.Context, id int64, at time.Time) error {
	mov, ok := tx.repo.movements[id]
	if !ok {
		return ErrNotFound
	}
	if mov.Status == StatusDone {
		return ErrAlreadyExecuted
	}
	if mov.Status != StatusReady {
		return ErrInvalidTransition
	}
	mov.Status = StatusDone
	mov.ExecutedAt = &at
	tx.repo.movements[id] = mov
	return nil
}

func (tx *memoryTx) GetBalanceForUpdate(ctx context.Context, productID, locationID int64) (Balance, error) {
	if bal, ok := tx.repo.balances[balanceKey(productID, locationID)]; ok {
		return bal, nil
	}
	return Balance{ProductID: productID, LocationID: locationID, Quantity: decimal.Zero}, ErrBalanceNotFound
}

func (tx *memoryTx) UpsertBalance(ctx context.Context, balance Balance) error {
	balance.UpdatedAt = time.Now().UTC()
	tx.repo.balances[balanceKey(balance.ProductID, balance.LocationID)] = balance
	return nil
}

func (tx *memoryTx) InsertLedgerEntries(ctx context.Context, entries []LedgerEntry) error {
	for _, e := range entries {
		tx.repo.nextLedID++
		e.ID = tx.repo.nextLedID
		tx.repo.ledger = append(tx.repo.ledger, e)
	}
	return nil
}

// memoryDirectory backs the product and location lookup ports.
type memoryDirectory struct {
	products  map[int64]ProductInfo
	locations map[int64]LocationInfo
}

func newMemoryDirectory() *memoryDirectory {
	dir := &memoryDirectory{
		products:  make(map[int64]ProductInfo),
		locations: make(map[int64]LocationInfo),
	}
	dir.products[1] = ProductInfo{ID: 1, SKU: "WIDGET-1", Name: "Widget", UnitOfMeasure: "Units", ReorderLevel: decimal.NewFromInt(10)}
	dir.products[2] = ProductInfo{ID: 2, SKU: "BULK-KG", Name: "Bulk Material", UnitOfMeasure: "kg", ReorderLevel: decimal.NewFromInt(5)}
	dir.locations[1] = LocationInfo{ID: 1, WarehouseID: 1, Name: "Main Storage", Type: "storage"}
	dir.locations[2] = LocationInfo{ID: 2, WarehouseID: 1, Name: "Receiving Dock", Type: "receiving"}
	dir.locations[3] = LocationInfo{ID: 3, WarehouseID: 2, Name: "Shipping Bay", Type: "shipping"}
	return dir
}

func (d *memoryDirectory) GetProduct(ctx context.Context, id int64) (ProductInfo, error) {
	if p, ok := d.products[id]; ok {
		return p, nil
	}
	return ProductInfo{}, ErrNotFound
}

func (d *memoryDirectory) GetLocation(ctx context.Context, id int64) (LocationInfo, error) {
	if l, ok := d.locations[id]; ok {
		return l, nil
	}
	return LocationInfo{}, ErrNotFound
}

func newTestStack() (*memoryRepo, *Service, *Executor) {
	repo := newMemoryRepo()
	dir := newMemoryDirectory()
	svc := NewService(repo, dir, dir)
	exec := NewExecutor(repo, dir, dir, nil, nil, nil, ExecutorConfig{DefaultLocationID: 1})
	return repo, svc, exec
}
