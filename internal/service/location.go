package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/repo"
)

// LocationService implements business logic for Location operations.
type LocationService struct {
	locations repo.LocationRepo
}

// NewLocationService constructs a LocationService backed by the provided LocationRepo.
func NewLocationService(locations repo.LocationRepo) *LocationService {
	return &LocationService{locations: locations}
}

// Create validates and persists a new location. Blocked weekdays are
// deduplicated and sorted; an empty target accepts every group type.
func (s *LocationService) Create(ctx context.Context, l domain.Location) (domain.Location, error) {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return domain.Location{}, fmt.Errorf("service.LocationService.Create: %w: name is required", domain.ErrValidation)
	}
	if l.Capacity < 0 {
		return domain.Location{}, fmt.Errorf("service.LocationService.Create: %w: capacity must not be negative", domain.ErrValidation)
	}
	for _, d := range l.BlockedWeekdays {
		if d < 0 || d > 6 {
			return domain.Location{}, fmt.Errorf("service.LocationService.Create: %w: weekday %d out of range 0-6", domain.ErrValidation, d)
		}
	}
	if l.TargetGroups == "" {
		l.TargetGroups = domain.TargetAll
	}
	if !l.TargetGroups.Valid() {
		return domain.Location{}, fmt.Errorf("service.LocationService.Create: %w: target_groups must be all, primary or secondary", domain.ErrValidation)
	}
	l.BlockedWeekdays = slices.Compact(slices.Sorted(slices.Values(l.BlockedWeekdays)))

	created, err := s.locations.Create(ctx, l)
	if err != nil {
		return domain.Location{}, fmt.Errorf("service.LocationService.Create: %w", err)
	}
	return created, nil
}

// GetByID returns a single location.
func (s *LocationService) GetByID(ctx context.Context, id uuid.UUID) (domain.Location, error) {
	l, err := s.locations.GetByID(ctx, id)
	if err != nil {
		return domain.Location{}, fmt.Errorf("service.LocationService.GetByID: %w", err)
	}
	return l, nil
}

// List returns all locations.
func (s *LocationService) List(ctx context.Context) ([]domain.Location, error) {
	ls, err := s.locations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.LocationService.List: %w", err)
	}
	return ls, nil
}
