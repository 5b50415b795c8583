package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/repo"
)

// GroupService implements business logic for Group operations and the
// must-visit configuration that feeds each group's plan candidates.
type GroupService struct {
	groups    repo.GroupRepo
	templates repo.PlanTemplateRepo
	locations repo.LocationRepo
}

// NewGroupService constructs a GroupService.
func NewGroupService(groups repo.GroupRepo, templates repo.PlanTemplateRepo, locations repo.LocationRepo) *GroupService {
	return &GroupService{groups: groups, templates: templates, locations: locations}
}

// MustVisit carries the three must-visit sources of a group. The first
// non-empty one wins when the pool is derived.
type MustVisit struct {
	Synced     []domain.SyncedLocation
	TemplateID *uuid.UUID
	ManualIDs  []uuid.UUID
}

// Create validates and persists a new group.
func (s *GroupService) Create(ctx context.Context, g domain.Group) (domain.Group, error) {
	g.Name = strings.TrimSpace(g.Name)
	g.StartDate = domain.DateOnly(g.StartDate)
	g.EndDate = domain.DateOnly(g.EndDate)
	if err := validateGroup(g); err != nil {
		return domain.Group{}, fmt.Errorf("service.GroupService.Create: %w", err)
	}
	created, err := s.groups.Create(ctx, g)
	if err != nil {
		return domain.Group{}, fmt.Errorf("service.GroupService.Create: %w", err)
	}
	return created, nil
}

// GetByID returns a single group.
func (s *GroupService) GetByID(ctx context.Context, id uuid.UUID) (domain.Group, error) {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return domain.Group{}, fmt.Errorf("service.GroupService.GetByID: %w", err)
	}
	return g, nil
}

// List returns all groups.
func (s *GroupService) List(ctx context.Context) ([]domain.Group, error) {
	groups, err := s.groups.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.GroupService.List: %w", err)
	}
	return groups, nil
}

// ListPaged returns one page of groups and the total count.
func (s *GroupService) ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Group, int64, error) {
	groups, total, err := s.groups.ListPaged(ctx, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.GroupService.ListPaged: %w", err)
	}
	return groups, total, nil
}

// SetMustVisit replaces a group's must-visit sources. Every referenced
// location and template must exist.
func (s *GroupService) SetMustVisit(ctx context.Context, id uuid.UUID, mv MustVisit) (domain.Group, error) {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return domain.Group{}, fmt.Errorf("service.GroupService.SetMustVisit: %w", err)
	}

	refs := make([]uuid.UUID, 0, len(mv.Synced)+len(mv.ManualIDs))
	for i, sl := range mv.Synced {
		if sl.DurationMinutes < 0 {
			return domain.Group{}, fmt.Errorf("service.GroupService.SetMustVisit: %w: synced entry %d has a negative duration", domain.ErrValidation, i)
		}
		refs = append(refs, sl.LocationID)
	}
	refs = append(refs, mv.ManualIDs...)
	if err := s.requireLocations(ctx, refs); err != nil {
		return domain.Group{}, fmt.Errorf("service.GroupService.SetMustVisit: %w", err)
	}

	g.Synced = mv.Synced
	g.ManualIDs = mv.ManualIDs
	g.Template = nil
	if mv.TemplateID != nil {
		t, err := s.templates.GetByID(ctx, *mv.TemplateID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Group{}, fmt.Errorf("service.GroupService.SetMustVisit: %w: unknown plan template %s", domain.ErrValidation, *mv.TemplateID)
		}
		if err != nil {
			return domain.Group{}, fmt.Errorf("service.GroupService.SetMustVisit: %w", err)
		}
		g.Template = &t
	}

	updated, err := s.groups.UpdateMustVisit(ctx, g)
	if err != nil {
		return domain.Group{}, fmt.Errorf("service.GroupService.SetMustVisit: %w", err)
	}
	return updated, nil
}

// CreatePlanTemplate validates and persists a reusable must-visit list.
func (s *GroupService) CreatePlanTemplate(ctx context.Context, t domain.PlanTemplate) (domain.PlanTemplate, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return domain.PlanTemplate{}, fmt.Errorf("service.GroupService.CreatePlanTemplate: %w: name is required", domain.ErrValidation)
	}
	refs := make([]uuid.UUID, len(t.Items))
	for i, item := range t.Items {
		if item.DurationMinutes < 0 {
			return domain.PlanTemplate{}, fmt.Errorf("service.GroupService.CreatePlanTemplate: %w: item %d has a negative duration", domain.ErrValidation, i)
		}
		refs[i] = item.LocationID
	}
	if err := s.requireLocations(ctx, refs); err != nil {
		return domain.PlanTemplate{}, fmt.Errorf("service.GroupService.CreatePlanTemplate: %w", err)
	}
	created, err := s.templates.Create(ctx, t)
	if err != nil {
		return domain.PlanTemplate{}, fmt.Errorf("service.GroupService.CreatePlanTemplate: %w", err)
	}
	return created, nil
}

func (s *GroupService) requireLocations(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	all, err := s.locations.List(ctx)
	if err != nil {
		return err
	}
	known := make(map[uuid.UUID]bool, len(all))
	for _, l := range all {
		known[l.ID] = true
	}
	var unknown []string
	for _, id := range ids {
		if !known[id] {
			unknown = append(unknown, id.String())
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: unknown location(s) %s", domain.ErrValidation, strings.Join(unknown, ", "))
	}
	return nil
}

func validateGroup(g domain.Group) error {
	switch {
	case g.Name == "":
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	case g.StartDate.IsZero() || g.EndDate.IsZero():
		return fmt.Errorf("%w: start_date and end_date are required", domain.ErrValidation)
	case g.EndDate.Before(g.StartDate):
		return fmt.Errorf("%w: end_date must not be before start_date", domain.ErrValidation)
	case g.Headcount < 0:
		return fmt.Errorf("%w: headcount must not be negative", domain.ErrValidation)
	case !g.Type.Valid():
		return fmt.Errorf("%w: type must be primary or secondary", domain.ErrValidation)
	}
	return nil
}
