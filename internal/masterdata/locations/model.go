package locations

import (
	"time"
)

// LocationType partitions locations by their role within a warehouse.
type LocationType string

const (
	TypeStorage   LocationType = "storage"
	TypeReceiving LocationType = "receiving"
	TypeShipping  LocationType = "shipping"
)

// IsValid checks if the location type is known.
func (t LocationType) IsValid() bool {
	switch t {
	case TypeStorage, TypeReceiving, TypeShipping:
		return true
	default:
		return false
	}
}

// Location is an addressable spot inside a warehouse.
type Location struct {
	ID            int64        `json:"id"`
	WarehouseID   int64        `json:"warehouse_id"`
	WarehouseName string       `json:"warehouse_name,omitempty"`
	Name          string       `json:"name"`
	Type          LocationType `json:"type"`
	IsActive      bool         `json:"is_active"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
