package locations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wareflow/wareflow/internal/masterdata/shared"
)

type mockRepo struct {
	created Location
	err     error
}

func (m *mockRepo) List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error) {
	return nil, 0, m.err
}
func (m *mockRepo) Get(ctx context.Context, id int64) (Location, error) { return Location{}, m.err }
func (m *mockRepo) Create(ctx context.Context, location Location) (Location, error) {
	m.created = location
	return location, m.err
}
func (m *mockRepo) Update(ctx context.Context, id int64, location Location) error { return m.err }
func (m *mockRepo) Delete(ctx context.Context, id int64) error                    { return m.err }

func TestCreateValidatesType(t *testing.T) {
	svc := NewService(&mockRepo{})
	ctx := context.Background()

	_, err := svc.Create(ctx, Location{WarehouseID: 1, Name: "Bin A", Type: TypeStorage})
	require.NoError(t, err)

	_, err = svc.Create(ctx, Location{WarehouseID: 1, Name: "Bin A", Type: "mezzanine"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Location{Name: "Bin A", Type: TypeStorage})
	require.ErrorIs(t, err, shared.ErrRequiredField)

	_, err = svc.Create(ctx, Location{WarehouseID: 1, Type: TypeShipping})
	require.ErrorIs(t, err, shared.ErrRequiredField)
}
