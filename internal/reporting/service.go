package reporting

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/singleflight"
)

// Queries is the read surface the service needs from the repository.
type Queries interface {
	ProductLocationRows(ctx context.Context, productID int64) ([]ProductLocationRow, error)
	AllProductLocationRows(ctx context.Context) ([]ProductLocationRow, error)
	LocationSummary(ctx context.Context, locationID int64) (LocationStockSummary, error)
	LocationSummaries(ctx context.Context) ([]LocationStockSummary, error)
	ProductCounts(ctx context.Context) (ProductCounts, error)
	PendingMovementCounts(ctx context.Context) (map[string]int64, error)
}

// Service coordinates stock projections with the cache layer. Concurrent
// cache misses for the same key collapse into one repository round trip.
type Service struct {
	repo  Queries
	cache *Cache
	group singleflight.Group
}

// NewService wires a Queries implementation with a Cache helper.
func NewService(repo Queries, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// GetProductLocationStock returns one product's stock broken down by location.
func (s *Service) GetProductLocationStock(ctx context.Context, productID int64) (ProductLocationStock, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		rows, err := s.repo.ProductLocationRows(ctx, productID)
		if err != nil {
			return ProductLocationStock{}, err
		}
		stocks := assembleProducts(rows)
		if len(stocks) == 0 {
			return ProductLocationStock{}, ErrNotFound
		}
		return stocks[0], nil
	}
	var stock ProductLocationStock
	if err := s.fetch(ctx, keyProductStock(productID), &stock, loader); err != nil {
		return ProductLocationStock{}, err
	}
	return stock, nil
}

// GetAllProductsLocationStock returns the breakdown for every product,
// including products with no stock at all.
func (s *Service) GetAllProductsLocationStock(ctx context.Context) ([]ProductLocationStock, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		rows, err := s.repo.AllProductLocationRows(ctx)
		if err != nil {
			return nil, err
		}
		return assembleProducts(rows), nil
	}
	var stocks []ProductLocationStock
	if err := s.fetch(ctx, keyAllProductStock(), &stocks, loader); err != nil {
		return nil, err
	}
	return stocks, nil
}

// GetLocationStockSummary aggregates one location.
func (s *Service) GetLocationStockSummary(ctx context.Context, locationID int64) (LocationStockSummary, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		return s.repo.LocationSummary(ctx, locationID)
	}
	var summary LocationStockSummary
	if err := s.fetch(ctx, keyLocationSummary(locationID), &summary, loader); err != nil {
		return LocationStockSummary{}, err
	}
	return summary, nil
}

// GetAllLocationsStockSummary aggregates every location.
func (s *Service) GetAllLocationsStockSummary(ctx context.Context) ([]LocationStockSummary, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		return s.repo.LocationSummaries(ctx)
	}
	var summaries []LocationStockSummary
	if err := s.fetch(ctx, keyAllLocationSummaries(), &summaries, loader); err != nil {
		return nil, err
	}
	return summaries, nil
}

// DashboardKPIs resolves the dashboard headline numbers.
func (s *Service) DashboardKPIs(ctx context.Context) (DashboardKPIs, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		counts, err := s.repo.ProductCounts(ctx)
		if err != nil {
			return DashboardKPIs{}, err
		}
		pending, err := s.repo.PendingMovementCounts(ctx)
		if err != nil {
			return DashboardKPIs{}, err
		}
		return DashboardKPIs{
			TotalProducts:      counts.Total,
			LowStockProducts:   counts.LowStock,
			OutOfStockProducts: counts.OutOfStock,
			TotalUnits:         counts.TotalUnits,
			PendingMovements:   pending,
		}, nil
	}
	var kpis DashboardKPIs
	if err := s.fetch(ctx, keyDashboard(), &kpis, loader); err != nil {
		return DashboardKPIs{}, err
	}
	return kpis, nil
}

// Invalidate bumps the cache generation after stock changed.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) fetch(ctx context.Context, keyBase string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	key, err := s.cache.BuildKey(ctx, keyBase)
	if err != nil {
		return err
	}
	value, err, _ := s.group.Do(key, func() (interface{}, error) {
		var raw json.RawMessage
		if err := s.cache.FetchJSON(ctx, key, &raw, loader); err != nil {
			return nil, err
		}
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(value.(json.RawMessage), dest)
}

// assembleProducts folds contiguous rows of one product into a breakdown.
// Zero-quantity padding rows keep the product visible without a location
// slice.
func assembleProducts(rows []ProductLocationRow) []ProductLocationStock {
	var result []ProductLocationStock
	index := make(map[int64]int)
	for _, row := range rows {
		i, ok := index[row.ProductID]
		if !ok {
			i = len(result)
			index[row.ProductID] = i
			result = append(result, ProductLocationStock{
				ProductID:     row.ProductID,
				SKU:           row.SKU,
				Name:          row.Name,
				UnitOfMeasure: row.UnitOfMeasure,
				Locations:     []LocationQuantity{},
			})
		}
		if row.LocationID != 0 && row.Quantity.IsPositive() {
			result[i].TotalQuantity = result[i].TotalQuantity.Add(row.Quantity)
			result[i].Locations = append(result[i].Locations, LocationQuantity{
				LocationID:    row.LocationID,
				LocationName:  row.LocationName,
				WarehouseName: row.WarehouseName,
				Quantity:      row.Quantity,
			})
		}
		result[i].IsLowStock = result[i].TotalQuantity.LessThanOrEqual(row.ReorderLevel)
	}
	return result
}
