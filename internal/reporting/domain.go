package reporting

import "github.com/shopspring/decimal"

// LocationQuantity is one positive per-location slice of a product's stock.
type LocationQuantity struct {
	LocationID    int64           `json:"location_id"`
	LocationName  string          `json:"location_name"`
	WarehouseName string          `json:"warehouse_name"`
	Quantity      decimal.Decimal `json:"quantity"`
}

// ProductLocationStock is the per-product breakdown across locations.
type ProductLocationStock struct {
	ProductID     int64              `json:"product_id"`
	SKU           string             `json:"sku"`
	Name          string             `json:"name"`
	UnitOfMeasure string             `json:"unit_of_measure"`
	TotalQuantity decimal.Decimal    `json:"total_quantity"`
	IsLowStock    bool               `json:"is_low_stock"`
	Locations     []LocationQuantity `json:"locations"`
}

// LocationStockSummary aggregates what a single location holds.
type LocationStockSummary struct {
	LocationID    int64           `json:"location_id"`
	LocationName  string          `json:"location_name"`
	LocationType  string          `json:"location_type"`
	WarehouseName string          `json:"warehouse_name"`
	ProductCount  int64           `json:"product_count"`
	TotalUnits    decimal.Decimal `json:"total_units"`
}

// DashboardKPIs are the headline numbers for the operations dashboard.
type DashboardKPIs struct {
	TotalProducts      int64            `json:"total_products"`
	LowStockProducts   int64            `json:"low_stock_products"`
	OutOfStockProducts int64            `json:"out_of_stock_products"`
	TotalUnits         decimal.Decimal  `json:"total_units"`
	PendingMovements   map[string]int64 `json:"pending_movements"`
}

// ProductLocationRow is one (product, location) balance row joined with
// master data, as returned by the repository.
type ProductLocationRow struct {
	ProductID     int64
	SKU           string
	Name          string
	UnitOfMeasure string
	ReorderLevel  decimal.Decimal
	LocationID    int64
	LocationName  string
	WarehouseName string
	Quantity      decimal.Decimal
}

// ProductCounts are product-level aggregates for the dashboard.
type ProductCounts struct {
	Total      int64
	LowStock   int64
	OutOfStock int64
	TotalUnits decimal.Decimal
}
