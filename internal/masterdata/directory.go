package masterdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/wareflow/wareflow/internal/masterdata/locations"
	"github.com/wareflow/wareflow/internal/masterdata/products"
	"github.com/wareflow/wareflow/internal/masterdata/shared"
	"github.com/wareflow/wareflow/internal/stock"
)

// Directory adapts master data services to the read-only lookups the stock
// engine consumes. It translates master data sentinels into the engine's own.
type Directory struct {
	products  *products.Service
	locations *locations.Service
}

// NewDirectory builds the adapter.
func NewDirectory(products *products.Service, locations *locations.Service) *Directory {
	return &Directory{products: products, locations: locations}
}

// GetProduct implements stock.ProductDirectory.
func (d *Directory) GetProduct(ctx context.Context, id int64) (stock.ProductInfo, error) {
	p, err := d.products.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrInvalidID) {
			return stock.ProductInfo{}, stock.ErrNotFound
		}
		return stock.ProductInfo{}, fmt.Errorf("lookup product %d: %w", id, err)
	}
	return stock.ProductInfo{
		ID:            p.ID,
		SKU:           p.SKU,
		Name:          p.Name,
		UnitOfMeasure: p.UnitOfMeasure,
		ReorderLevel:  p.ReorderLevel,
	}, nil
}

// GetLocation implements stock.LocationDirectory.
func (d *Directory) GetLocation(ctx context.Context, id int64) (stock.LocationInfo, error) {
	l, err := d.locations.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrInvalidID) {
			return stock.LocationInfo{}, stock.ErrNotFound
		}
		return stock.LocationInfo{}, fmt.Errorf("lookup location %d: %w", id, err)
	}
	return stock.LocationInfo{
		ID:          l.ID,
		WarehouseID: l.WarehouseID,
		Name:        l.Name,
		Type:        string(l.Type),
	}, nil
}
