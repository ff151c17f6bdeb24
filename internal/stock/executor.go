package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wareflow/wareflow/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort records execution outcomes.
type MetricsPort interface {
	ObserveExecution(movementType, outcome string)
}

// NotifierPort is told after balances change so downstream caches can drop
// stale reads.
type NotifierPort interface {
	StockChanged(ctx context.Context)
}

// Executor applies ready movements and adjustments to balances and the
// ledger as one atomic unit. It is the only writer of either.
type Executor struct {
	repo        RepositoryPort
	products    ProductDirectory
	locations   LocationDirectory
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	metrics     MetricsPort
	notifier    NotifierPort
	defaultLoc  int64
}

// ExecutorConfig groups optional settings.
type ExecutorConfig struct {
	// DefaultLocationID is the storage location used when an adjustment
	// does not name one.
	DefaultLocationID int64
	// Notifier, when set, is called after every committed execution.
	Notifier NotifierPort
}

// NewExecutor builds Executor.
func NewExecutor(repo RepositoryPort, products ProductDirectory, locations LocationDirectory, audit AuditPort, idem *shared.IdempotencyStore, metrics MetricsPort, cfg ExecutorConfig) *Executor {
	return &Executor{
		repo:        repo,
		products:    products,
		locations:   locations,
		audit:       audit,
		idempotency: idem,
		metrics:     metrics,
		notifier:    cfg.Notifier,
		defaultLoc:  cfg.DefaultLocationID,
	}
}

// Execute applies a ready movement. It either fully commits or leaves the
// movement and every balance exactly as they were: the status compare-and-set
// and all balance/ledger writes share one transaction, so a failed line rolls
// the transition back too.
func (e *Executor) Execute(ctx context.Context, id int64, actor string) (Movement, error) {
	var executed Movement
	var movType MovementType
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		mov, err := tx.GetMovementForUpdate(ctx, id)
		if err != nil {
			return err
		}
		movType = mov.Type
		if mov.Status == StatusDone {
			return ErrAlreadyExecuted
		}
		if !mov.Status.CanExecute() {
			return fmt.Errorf("movement %d is %s: %w", id, mov.Status, ErrInvalidTransition)
		}
		if len(mov.Lines) == 0 {
			return NewValidationError("lines", "movement has no lines")
		}

		now := time.Now().UTC()
		if err := tx.MarkExecuted(ctx, id, now); err != nil {
			return err
		}

		entries, err := e.applyMovement(ctx, tx, mov, now)
		if err != nil {
			return err
		}
		if err := tx.InsertLedgerEntries(ctx, entries); err != nil {
			return err
		}

		mov.Status = StatusDone
		mov.ExecutedAt = &now
		executed = mov
		return nil
	})
	if err != nil {
		e.observe(ctx, string(movType), "error", err)
		return Movement{}, err
	}

	e.observeSuccess(string(executed.Type))
	if e.notifier != nil {
		e.notifier.StockChanged(ctx)
	}
	if e.audit != nil {
		_ = e.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Action:   fmt.Sprintf("stock:execute:%s", executed.Type),
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%d", executed.ID),
			Meta: map[string]any{
				"reference": executed.Reference,
				"lines":     len(executed.Lines),
			},
		})
	}
	return executed, nil
}

// applyMovement turns movement lines into balance mutations and ledger
// entries. All entries of one execution carry the same timestamp so no read
// can observe a partial movement.
func (e *Executor) applyMovement(ctx context.Context, tx TxRepository, mov Movement, at time.Time) ([]LedgerEntry, error) {
	var entries []LedgerEntry
	appendEntry := func(line MovementLine, locationID int64, change decimal.Decimal) error {
		balanceAfter, err := applyDelta(ctx, tx, line.ProductID, locationID, change)
		if err != nil {
			return err
		}
		entries = append(entries, LedgerEntry{
			MovementID:     mov.ID,
			ProductID:      line.ProductID,
			ProductSKU:     line.ProductSKU,
			ProductName:    line.ProductName,
			MovementType:   mov.Type,
			Reference:      mov.Reference,
			LocationID:     locationID,
			QuantityChange: change,
			BalanceAfter:   balanceAfter,
			OccurredAt:     at,
			CreatedBy:      mov.CreatedBy,
		})
		return nil
	}

	for _, line := range mov.Lines {
		switch mov.Type {
		case MovementReceipt:
			if err := appendEntry(line, mov.DestinationLocationID, line.Quantity); err != nil {
				return nil, err
			}
		case MovementDelivery:
			if err := appendEntry(line, mov.SourceLocationID, line.Quantity.Neg()); err != nil {
				return nil, err
			}
		case MovementInternal:
			if err := appendEntry(line, mov.SourceLocationID, line.Quantity.Neg()); err != nil {
				return nil, err
			}
			if err := appendEntry(line, mov.DestinationLocationID, line.Quantity); err != nil {
				return nil, err
			}
		default:
			return nil, NewValidationError("type", "movement type cannot be executed")
		}
	}
	return entries, nil
}

// applyDelta is the single mutation path for balances: read the row with a
// lock, enforce the non-negative floor, write back. Called only from inside
// the executor's transaction.
func applyDelta(ctx context.Context, tx TxRepository, productID, locationID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	bal, err := tx.GetBalanceForUpdate(ctx, productID, locationID)
	if err != nil && !errors.Is(err, ErrBalanceNotFound) {
		return decimal.Zero, err
	}
	newQty := bal.Quantity.Add(delta)
	if delta.IsNegative() && newQty.IsNegative() {
		return decimal.Zero, &InsufficientStockError{
			ProductID:  productID,
			LocationID: locationID,
			Requested:  delta.Neg(),
			Available:  bal.Quantity,
		}
	}
	bal.Quantity = newQty
	if err := tx.UpsertBalance(ctx, bal); err != nil {
		return decimal.Zero, err
	}
	return newQty, nil
}

// CreateAdjustment applies an inventory-count correction in one step. There
// is no draft phase: the movement record is born done and the delta commits
// with it. A zero delta succeeds without writing anything.
func (e *Executor) CreateAdjustment(ctx context.Context, req AdjustmentRequest, actor, idempotencyKey string) (AdjustmentResult, error) {
	if req.CountedQuantity.IsNegative() {
		return AdjustmentResult{}, NewValidationError("counted_quantity", "must be zero or greater")
	}
	product, err := e.products.GetProduct(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AdjustmentResult{}, fmt.Errorf("product %d: %w", req.ProductID, ErrNotFound)
		}
		return AdjustmentResult{}, err
	}
	locationID := req.LocationID
	if locationID == 0 {
		locationID = e.defaultLoc
	}
	if locationID == 0 {
		return AdjustmentResult{}, NewValidationError("location_id", "required when no default location is configured")
	}
	if _, err := e.locations.GetLocation(ctx, locationID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return AdjustmentResult{}, fmt.Errorf("location %d: %w", locationID, ErrNotFound)
		}
		return AdjustmentResult{}, err
	}

	insertedKey := false
	if idempotencyKey != "" && e.idempotency != nil {
		if err := e.idempotency.CheckAndInsert(ctx, idempotencyKey, "stock"); err != nil {
			return AdjustmentResult{}, err
		}
		insertedKey = true
	}

	now := time.Now().UTC()
	reference := req.Reference
	if reference == "" {
		reference = fmt.Sprintf("ADJ-%s", now.Format("20060102-150405"))
	}

	result := AdjustmentResult{
		Reference:       reference,
		ProductID:       product.ID,
		LocationID:      locationID,
		CountedQuantity: req.CountedQuantity,
	}
	err = e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bal, err := tx.GetBalanceForUpdate(ctx, product.ID, locationID)
		if err != nil && !errors.Is(err, ErrBalanceNotFound) {
			return err
		}
		result.PreviousQuantity = bal.Quantity
		result.Delta = req.CountedQuantity.Sub(bal.Quantity)
		if result.Delta.IsZero() {
			// Count matched the books; success with nothing to record.
			result.Reference = ""
			return nil
		}

		mov := Movement{
			Type:                  MovementAdjustment,
			Status:                StatusDone,
			Reference:             reference,
			SourceLocationID:      locationID,
			DestinationLocationID: locationID,
			Notes:                 req.Notes,
			CreatedBy:             actor,
			ExecutedAt:            &now,
		}
		movID, err := tx.InsertMovement(ctx, mov)
		if err != nil {
			return err
		}
		result.MovementID = movID
		line := MovementLine{
			ProductID:     product.ID,
			ProductSKU:    product.SKU,
			ProductName:   product.Name,
			Quantity:      result.Delta.Abs(),
			UnitOfMeasure: product.UnitOfMeasure,
		}
		if err := tx.InsertMovementLines(ctx, movID, []MovementLine{line}); err != nil {
			return err
		}

		bal.Quantity = req.CountedQuantity
		if err := tx.UpsertBalance(ctx, bal); err != nil {
			return err
		}
		return tx.InsertLedgerEntries(ctx, []LedgerEntry{{
			MovementID:     movID,
			ProductID:      product.ID,
			ProductSKU:     product.SKU,
			ProductName:    product.Name,
			MovementType:   MovementAdjustment,
			Reference:      reference,
			LocationID:     locationID,
			QuantityChange: result.Delta,
			BalanceAfter:   req.CountedQuantity,
			OccurredAt:     now,
			CreatedBy:      actor,
		}})
	})
	if err != nil {
		if insertedKey {
			_ = e.idempotency.Delete(ctx, idempotencyKey)
		}
		e.observe(ctx, string(MovementAdjustment), "error", err)
		return AdjustmentResult{}, err
	}

	e.observeSuccess(string(MovementAdjustment))
	if e.notifier != nil && !result.Delta.IsZero() {
		e.notifier.StockChanged(ctx)
	}
	if e.audit != nil && !result.Delta.IsZero() {
		_ = e.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Action:   "stock:adjustment",
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%d", result.MovementID),
			Meta: map[string]any{
				"reference": reference,
				"product":   product.ID,
				"location":  locationID,
				"delta":     result.Delta.String(),
			},
		})
	}
	return result, nil
}

func (e *Executor) observeSuccess(movementType string) {
	if e.metrics != nil {
		e.metrics.ObserveExecution(movementType, "success")
	}
}

func (e *Executor) observe(ctx context.Context, movementType, outcome string, err error) {
	if e.metrics == nil {
		return
	}
	if movementType == "" {
		movementType = "unknown"
	}
	switch {
	case errors.Is(err, ErrAlreadyExecuted):
		outcome = "already_executed"
	case IsInsufficientStock(err):
		outcome = "insufficient_stock"
	}
	e.metrics.ObserveExecution(movementType, outcome)
}
