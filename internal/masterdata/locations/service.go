package locations

import (
	"context"
	"fmt"

	"github.com/wareflow/wareflow/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Location, error) {
	if id <= 0 {
		return Location{}, fmt.Errorf("location: %w", shared.ErrInvalidID)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, location Location) (Location, error) {
	if err := s.validate(location); err != nil {
		return Location{}, err
	}
	return s.repo.Create(ctx, location)
}

func (s *Service) Update(ctx context.Context, id int64, location Location) error {
	if id <= 0 {
		return fmt.Errorf("location: %w", shared.ErrInvalidID)
	}
	if err := s.validate(location); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, location)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("location: %w", shared.ErrInvalidID)
	}
	return s.repo.Delete(ctx, id)
}
