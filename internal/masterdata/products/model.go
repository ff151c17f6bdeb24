package products

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a sellable or storable item. CurrentStock and IsLowStock
// are computed from the balance table on read, never stored.
type Product struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	UnitOfMeasure string          `json:"unit_of_measure"`
	ReorderLevel  decimal.Decimal `json:"reorder_level"`
	IsActive      bool            `json:"is_active"`
	CurrentStock  decimal.Decimal `json:"current_stock"`
	IsLowStock    bool            `json:"is_low_stock"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
