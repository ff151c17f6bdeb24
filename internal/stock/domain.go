package stock

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementReceipt represents inbound stock from a partner.
	MovementReceipt MovementType = "receipt"
	// MovementDelivery represents outbound stock to a partner.
	MovementDelivery MovementType = "delivery"
	// MovementInternal moves stock between two locations.
	MovementInternal MovementType = "internal"
	// MovementAdjustment records an inventory-count correction.
	MovementAdjustment MovementType = "adjustment"
)

// IsValid checks if the movement type is known.
func (t MovementType) IsValid() bool {
	switch t {
	case MovementReceipt, MovementDelivery, MovementInternal, MovementAdjustment:
		return true
	default:
		return false
	}
}

// NeedsSource reports whether the type requires a source location.
func (t MovementType) NeedsSource() bool {
	return t == MovementDelivery || t == MovementInternal
}

// NeedsDestination reports whether the type requires a destination location.
func (t MovementType) NeedsDestination() bool {
	return t == MovementReceipt || t == MovementInternal
}

// CheckLocations validates the location pair against the per-type
// requirements at construction time.
func (t MovementType) CheckLocations(sourceID, destinationID int64) error {
	if t.NeedsSource() && sourceID == 0 {
		return NewValidationError("source_location_id", "required for "+string(t)+" movements")
	}
	if t.NeedsDestination() && destinationID == 0 {
		return NewValidationError("destination_location_id", "required for "+string(t)+" movements")
	}
	if t == MovementInternal && sourceID == destinationID {
		return NewValidationError("destination_location_id", "must differ from source location")
	}
	return nil
}

// MovementStatus represents the lifecycle of a stock movement.
type MovementStatus string

const (
	StatusDraft    MovementStatus = "draft"
	StatusWaiting  MovementStatus = "waiting"
	StatusReady    MovementStatus = "ready"
	StatusDone     MovementStatus = "done"
	StatusCanceled MovementStatus = "canceled"
)

// IsValid checks if the status is known.
func (s MovementStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusWaiting, StatusReady, StatusDone, StatusCanceled:
		return true
	default:
		return false
	}
}

// CanEdit reports whether the movement header may still be edited.
func (s MovementStatus) CanEdit() bool {
	return s == StatusDraft || s == StatusWaiting || s == StatusReady
}

// CanEditLines reports whether lines may still be replaced. Lines freeze one
// step earlier than the header: once a movement is ready its quantities are
// what execution will apply.
func (s MovementStatus) CanEditLines() bool {
	return s == StatusDraft || s == StatusWaiting
}

// CanCancel reports whether the movement may be canceled.
func (s MovementStatus) CanCancel() bool {
	return s == StatusDraft || s == StatusWaiting || s == StatusReady
}

// CanExecute reports whether the movement may be handed to the executor.
func (s MovementStatus) CanExecute() bool {
	return s == StatusReady
}

// Movement is the transactional unit of stock change.
type Movement struct {
	ID                    int64          `json:"id"`
	Type                  MovementType   `json:"type"`
	Status                MovementStatus `json:"status"`
	Reference             string         `json:"reference"`
	PartnerName           string         `json:"partner_name,omitempty"`
	SourceLocationID      int64          `json:"source_location_id,omitempty"`
	DestinationLocationID int64          `json:"destination_location_id,omitempty"`
	ScheduledDate         *time.Time     `json:"scheduled_date,omitempty"`
	Notes                 string         `json:"notes,omitempty"`
	CreatedBy             string         `json:"created_by"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	ExecutedAt            *time.Time     `json:"executed_at,omitempty"`
	Lines                 []MovementLine `json:"lines"`
}

// MovementLine is one product quantity within a movement. Product name, SKU
// and unit are denormalized at line-add time so executed movements and ledger
// entries stay stable when master data changes later.
type MovementLine struct {
	ID            int64           `json:"id"`
	MovementID    int64           `json:"movement_id"`
	ProductID     int64           `json:"product_id"`
	ProductSKU    string          `json:"product_sku"`
	ProductName   string          `json:"product_name"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitOfMeasure string          `json:"unit_of_measure"`
}

// LedgerEntry is an immutable record of one signed quantity change with the
// resulting balance snapshot for its (product, location) pair.
type LedgerEntry struct {
	ID             int64           `json:"id"`
	MovementID     int64           `json:"movement_id"`
	ProductID      int64           `json:"product_id"`
	ProductSKU     string          `json:"product_sku"`
	ProductName    string          `json:"product_name"`
	MovementType   MovementType    `json:"movement_type"`
	Reference      string          `json:"reference"`
	LocationID     int64           `json:"location_id"`
	QuantityChange decimal.Decimal `json:"quantity_change"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	OccurredAt     time.Time       `json:"timestamp"`
	CreatedBy      string          `json:"created_by"`
}

// Balance is the current quantity of a product at a location. Mutated only by
// the executor inside its transaction.
type Balance struct {
	ProductID  int64           `json:"product_id"`
	LocationID int64           `json:"location_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ProductInfo is the read-only product view the engine needs from master data.
type ProductInfo struct {
	ID            int64
	SKU           string
	Name          string
	UnitOfMeasure string
	ReorderLevel  decimal.Decimal
}

// LocationInfo is the read-only location view the engine needs from master data.
type LocationInfo struct {
	ID          int64
	WarehouseID int64
	Name        string
	Type        string
}

// MovementFilter filters movement listings.
type MovementFilter struct {
	Type   MovementType
	Status MovementStatus
	Skip   int
	Limit  int
}

// LedgerFilter filters ledger queries. Entries are returned newest first.
type LedgerFilter struct {
	ProductID    int64
	ProductSKU   string
	MovementType MovementType
	From         time.Time
	To           time.Time
	Skip         int
	Limit        int
}

// CreateMovementLineRequest is one line of a creation or line-replace request.
type CreateMovementLineRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
}

// CreateMovementRequest describes a new movement. Adjustments use the
// dedicated one-step endpoint and are rejected here.
type CreateMovementRequest struct {
	Type                  MovementType                `json:"type" validate:"required,oneof=receipt delivery internal"`
	Status                MovementStatus              `json:"status" validate:"omitempty,oneof=draft waiting ready"`
	Reference             string                      `json:"reference" validate:"omitempty,max=100"`
	PartnerName           string                      `json:"partner_name" validate:"omitempty,max=200"`
	SourceLocationID      int64                       `json:"source_location_id"`
	DestinationLocationID int64                       `json:"destination_location_id"`
	ScheduledDate         *time.Time                  `json:"scheduled_date"`
	Notes                 string                      `json:"notes"`
	Lines                 []CreateMovementLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// UpdateMovementRequest patches a movement that has not reached a terminal
// status. Nil fields are left untouched.
type UpdateMovementRequest struct {
	Status        *MovementStatus              `json:"status" validate:"omitempty,oneof=draft waiting ready canceled"`
	ScheduledDate *time.Time                   `json:"scheduled_date"`
	Notes         *string                      `json:"notes"`
	Lines         *[]CreateMovementLineRequest `json:"lines" validate:"omitempty,min=1,dive"`
}

// AdjustmentRequest describes a direct inventory-count correction.
type AdjustmentRequest struct {
	ProductID       int64           `json:"product_id" validate:"required,gt=0"`
	LocationID      int64           `json:"location_id"`
	CountedQuantity decimal.Decimal `json:"counted_quantity"`
	Reference       string          `json:"reference" validate:"omitempty,max=100"`
	Notes           string          `json:"notes"`
}

// AdjustmentResult reports the applied correction.
type AdjustmentResult struct {
	MovementID       int64           `json:"movement_id,omitempty"`
	Reference        string          `json:"reference,omitempty"`
	ProductID        int64           `json:"product_id"`
	LocationID       int64           `json:"location_id"`
	PreviousQuantity decimal.Decimal `json:"previous_quantity"`
	CountedQuantity  decimal.Decimal `json:"counted_quantity"`
	Delta            decimal.Decimal `json:"delta"`
}
