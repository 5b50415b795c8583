package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/pool"
	"github.com/pkordes/tripplanner/internal/repo"
	"github.com/pkordes/tripplanner/internal/timeslot"
)

// LogisticsService manages the inputs of recurring and custom candidates:
// per-day meals and transfers, and a group's saved custom activities.
type LogisticsService struct {
	groups    repo.GroupRepo
	logistics repo.LogisticsRepo
	templates repo.CustomTemplateRepo
}

// NewLogisticsService constructs a LogisticsService.
func NewLogisticsService(groups repo.GroupRepo, logistics repo.LogisticsRepo, templates repo.CustomTemplateRepo) *LogisticsService {
	return &LogisticsService{groups: groups, logistics: logistics, templates: templates}
}

// SetDay stores one day of logistics. Unlike rows written by other tools,
// days written here must carry a canonical date inside the trip and
// well-formed times; times are normalized to "HH:mm".
func (s *LogisticsService) SetDay(ctx context.Context, day domain.LogisticsDay) (domain.LogisticsDay, error) {
	g, err := s.groups.GetByID(ctx, day.GroupID)
	if err != nil {
		return domain.LogisticsDay{}, fmt.Errorf("service.LogisticsService.SetDay: %w", err)
	}
	date, ok := timeslot.ParseDate(day.Date)
	if !ok {
		return domain.LogisticsDay{}, fmt.Errorf("service.LogisticsService.SetDay: %w: malformed date %q", domain.ErrValidation, day.Date)
	}
	if !g.Contains(date) {
		return domain.LogisticsDay{}, fmt.Errorf("service.LogisticsService.SetDay: %w: %s is outside the trip", domain.ErrValidation, day.Date)
	}

	meals := make(map[domain.MealKey]domain.Meal, len(day.Meals))
	for key, m := range day.Meals {
		if !slices.Contains(domain.MealKeys, key) {
			return domain.LogisticsDay{}, fmt.Errorf("service.LogisticsService.SetDay: %w: unknown meal %q", domain.ErrValidation, key)
		}
		start, end, err := normalizeSpan(m.StartTime, m.EndTime)
		if err != nil {
			return domain.LogisticsDay{}, fmt.Errorf("service.LogisticsService.SetDay: %s: %w", key, err)
		}
		m.StartTime, m.EndTime, m.Place = start, end, strings.TrimSpace(m.Place)
		meals[key] = m
	}
	day.Meals = meals

	if day.Pickup, err = normalizeTransfer(day.Pickup); err != nil {
		return domain.LogisticsDay{}, fmt.Errorf("service.LogisticsService.SetDay: pickup: %w", err)
	}
	if day.Dropoff, err = normalizeTransfer(day.Dropoff); err != nil {
		return domain.LogisticsDay{}, fmt.Errorf("service.LogisticsService.SetDay: dropoff: %w", err)
	}

	saved, err := s.logistics.Upsert(ctx, day)
	if err != nil {
		return domain.LogisticsDay{}, fmt.Errorf("service.LogisticsService.SetDay: %w", err)
	}
	return saved, nil
}

// ListDays returns every stored logistics day of a group.
func (s *LogisticsService) ListDays(ctx context.Context, groupID uuid.UUID) ([]domain.LogisticsDay, error) {
	days, err := s.logistics.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("service.LogisticsService.ListDays: %w", err)
	}
	return days, nil
}

// AddTemplate saves a custom activity a group can place repeatedly.
func (s *LogisticsService) AddTemplate(ctx context.Context, t domain.CustomTemplate) (domain.CustomTemplate, error) {
	if _, err := s.groups.GetByID(ctx, t.GroupID); err != nil {
		return domain.CustomTemplate{}, fmt.Errorf("service.LogisticsService.AddTemplate: %w", err)
	}
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return domain.CustomTemplate{}, fmt.Errorf("service.LogisticsService.AddTemplate: %w: title is required", domain.ErrValidation)
	}
	if t.DurationMinutes < 0 {
		return domain.CustomTemplate{}, fmt.Errorf("service.LogisticsService.AddTemplate: %w: duration must not be negative", domain.ErrValidation)
	}
	if t.DurationMinutes == 0 {
		t.DurationMinutes = pool.DefaultCardMinutes
	}
	if t.Type == "" {
		t.Type = domain.ActivityCustom
	}
	if t.Color == "" {
		t.Color = pool.ColorCustom
	}

	created, err := s.templates.Create(ctx, t)
	if err != nil {
		return domain.CustomTemplate{}, fmt.Errorf("service.LogisticsService.AddTemplate: %w", err)
	}
	return created, nil
}

// ListTemplates returns a group's saved custom activities.
func (s *LogisticsService) ListTemplates(ctx context.Context, groupID uuid.UUID) ([]domain.CustomTemplate, error) {
	ts, err := s.templates.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("service.LogisticsService.ListTemplates: %w", err)
	}
	return ts, nil
}

// DeleteTemplate removes a saved custom activity. Activities already placed
// from it stay on the calendar.
func (s *LogisticsService) DeleteTemplate(ctx context.Context, groupID, id uuid.UUID) error {
	if err := s.templates.Delete(ctx, groupID, id); err != nil {
		return fmt.Errorf("service.LogisticsService.DeleteTemplate: %w", err)
	}
	return nil
}

func normalizeTransfer(t *domain.Transfer) (*domain.Transfer, error) {
	if t == nil {
		return nil, nil
	}
	start, end, err := normalizeSpan(t.StartTime, t.EndTime)
	if err != nil {
		return nil, err
	}
	out := *t
	out.StartTime, out.EndTime, out.Place = start, end, strings.TrimSpace(t.Place)
	return &out, nil
}

// normalizeSpan canonicalizes optional start/end times. Either may be empty;
// when both are set the end must come after the start.
func normalizeSpan(start, end string) (string, string, error) {
	var err error
	if start, err = optionalClock(start); err != nil {
		return "", "", err
	}
	if end, err = optionalClock(end); err != nil {
		return "", "", err
	}
	if start != "" && end != "" && end <= start {
		return "", "", fmt.Errorf("%w: end time must be after start time", domain.ErrValidation)
	}
	return start, end, nil
}

func optionalClock(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	n, ok := timeslot.Normalize(s)
	if !ok {
		return "", fmt.Errorf("%w: malformed time %q", domain.ErrValidation, s)
	}
	return n, nil
}
