package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProductDirectory is the read-only product lookup the engine consumes from
// master data. The engine never mutates master data.
type ProductDirectory interface {
	GetProduct(ctx context.Context, id int64) (ProductInfo, error)
}

// LocationDirectory is the read-only location lookup.
type LocationDirectory interface {
	GetLocation(ctx context.Context, id int64) (LocationInfo, error)
}

// Service owns the movement lifecycle up to the point of execution.
type Service struct {
	repo      RepositoryPort
	products  ProductDirectory
	locations LocationDirectory
}

// NewService builds Service.
func NewService(repo RepositoryPort, products ProductDirectory, locations LocationDirectory) *Service {
	return &Service{repo: repo, products: products, locations: locations}
}

// Create registers a new movement in a pre-execution status.
func (s *Service) Create(ctx context.Context, req CreateMovementRequest, actor string) (Movement, error) {
	if !req.Type.IsValid() || req.Type == MovementAdjustment {
		return Movement{}, NewValidationError("type", "must be one of receipt, delivery, internal")
	}
	status := req.Status
	if status == "" {
		status = StatusDraft
	}
	if !status.CanEdit() {
		return Movement{}, NewValidationError("status", "initial status must be draft, waiting or ready")
	}
	if err := req.Type.CheckLocations(req.SourceLocationID, req.DestinationLocationID); err != nil {
		return Movement{}, err
	}
	if err := s.checkLocationExists(ctx, req.SourceLocationID); err != nil {
		return Movement{}, err
	}
	if err := s.checkLocationExists(ctx, req.DestinationLocationID); err != nil {
		return Movement{}, err
	}
	lines, err := s.buildLines(ctx, req.Lines)
	if err != nil {
		return Movement{}, err
	}

	mov := Movement{
		Type:                  req.Type,
		Status:                status,
		Reference:             req.Reference,
		PartnerName:           req.PartnerName,
		SourceLocationID:      req.SourceLocationID,
		DestinationLocationID: req.DestinationLocationID,
		ScheduledDate:         req.ScheduledDate,
		Notes:                 req.Notes,
		CreatedBy:             actor,
	}
	if mov.Reference == "" {
		mov.Reference = generateReference(req.Type)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertMovement(ctx, mov)
		if err != nil {
			return err
		}
		mov.ID = id
		return tx.InsertMovementLines(ctx, id, lines)
	})
	if err != nil {
		return Movement{}, err
	}
	return s.repo.GetMovement(ctx, mov.ID)
}

// Update patches a movement while it is still editable. Lines freeze once the
// movement reaches ready; done and canceled reject any edit.
func (s *Service) Update(ctx context.Context, id int64, req UpdateMovementRequest) (Movement, error) {
	existing, err := s.repo.GetMovement(ctx, id)
	if err != nil {
		return Movement{}, err
	}
	if !existing.Status.CanEdit() {
		return Movement{}, fmt.Errorf("movement %d is %s: %w", id, existing.Status, ErrInvalidTransition)
	}
	if req.Status != nil {
		next := *req.Status
		if next == StatusDone {
			return Movement{}, fmt.Errorf("done is reachable only via execution: %w", ErrInvalidTransition)
		}
		if !next.CanEdit() && next != StatusCanceled {
			return Movement{}, fmt.Errorf("cannot move %s to %s: %w", existing.Status, next, ErrInvalidTransition)
		}
	}
	var lines []MovementLine
	if req.Lines != nil {
		if !existing.Status.CanEditLines() {
			return Movement{}, fmt.Errorf("lines are frozen once a movement is %s: %w", existing.Status, ErrInvalidTransition)
		}
		lines, err = s.buildLines(ctx, *req.Lines)
		if err != nil {
			return Movement{}, err
		}
	}

	patch := MovementPatch{Status: req.Status, ScheduledDate: req.ScheduledDate, Notes: req.Notes}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateMovement(ctx, id, patch); err != nil {
			return err
		}
		if lines != nil {
			return tx.ReplaceMovementLines(ctx, id, lines)
		}
		return nil
	})
	if err != nil {
		return Movement{}, err
	}
	return s.repo.GetMovement(ctx, id)
}

// Cancel marks a pre-execution movement canceled. Nothing was ever applied,
// so balances and ledger stay untouched.
func (s *Service) Cancel(ctx context.Context, id int64) (Movement, error) {
	existing, err := s.repo.GetMovement(ctx, id)
	if err != nil {
		return Movement{}, err
	}
	if !existing.Status.CanCancel() {
		return Movement{}, fmt.Errorf("movement %d is %s: %w", id, existing.Status, ErrInvalidTransition)
	}
	canceled := StatusCanceled
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateMovement(ctx, id, MovementPatch{Status: &canceled})
	})
	if err != nil {
		return Movement{}, err
	}
	return s.repo.GetMovement(ctx, id)
}

// Get loads one movement.
func (s *Service) Get(ctx context.Context, id int64) (Movement, error) {
	return s.repo.GetMovement(ctx, id)
}

// List returns movements matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, NewValidationError("type", "unknown movement type")
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, NewValidationError("status", "unknown status")
	}
	return s.repo.ListMovements(ctx, filter)
}

// QueryLedger searches the append-only ledger.
func (s *Service) QueryLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	if filter.MovementType != "" && !filter.MovementType.IsValid() {
		return nil, NewValidationError("movement_type", "unknown movement type")
	}
	return s.repo.QueryLedger(ctx, filter)
}

func (s *Service) buildLines(ctx context.Context, reqs []CreateMovementLineRequest) ([]MovementLine, error) {
	if len(reqs) == 0 {
		return nil, NewValidationError("lines", "at least one line is required")
	}
	lines := make([]MovementLine, 0, len(reqs))
	for i, req := range reqs {
		if !req.Quantity.IsPositive() {
			return nil, NewValidationError(fmt.Sprintf("lines[%d].quantity", i), "must be greater than zero")
		}
		product, err := s.products.GetProduct(ctx, req.ProductID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("product %d: %w", req.ProductID, ErrNotFound)
			}
			return nil, err
		}
		lines = append(lines, MovementLine{
			ProductID:     product.ID,
			ProductSKU:    product.SKU,
			ProductName:   product.Name,
			Quantity:      req.Quantity,
			UnitOfMeasure: product.UnitOfMeasure,
		})
	}
	return lines, nil
}

func (s *Service) checkLocationExists(ctx context.Context, id int64) error {
	if id == 0 {
		return nil
	}
	if _, err := s.locations.GetLocation(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("location %d: %w", id, ErrNotFound)
		}
		return err
	}
	return nil
}

var referencePrefixes = map[MovementType]string{
	MovementReceipt:    "RCPT",
	MovementDelivery:   "DLV",
	MovementInternal:   "TRF",
	MovementAdjustment: "ADJ",
}

func generateReference(t MovementType) string {
	prefix, ok := referencePrefixes[t]
	if !ok {
		prefix = "MOV"
	}
	short := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().UTC().Format("20060102"), strings.ToUpper(short))
}
