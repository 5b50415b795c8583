// Package service contains the business logic of the trip planner.
// Services validate inputs, load state through repo interfaces, run the pure
// scheduling packages over it, and persist the result. No SQL lives here.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/pool"
	"github.com/pkordes/tripplanner/internal/repo"
	"github.com/pkordes/tripplanner/internal/timeslot"
)

// derivePool loads everything a group's pool depends on and derives it.
// Logistics rows the pool will ignore are logged so editors can fix them.
func derivePool(ctx context.Context, rs repo.Set, log *slog.Logger, g domain.Group, acts []domain.Activity) (pool.Pool, error) {
	locations, err := rs.Locations.List(ctx)
	if err != nil {
		return pool.Pool{}, fmt.Errorf("load locations: %w", err)
	}
	days, err := rs.Logistics.ListByGroup(ctx, g.ID)
	if err != nil {
		return pool.Pool{}, fmt.Errorf("load logistics: %w", err)
	}
	templates, err := rs.CustomTemplates.ListByGroup(ctx, g.ID)
	if err != nil {
		return pool.Pool{}, fmt.Errorf("load custom templates: %w", err)
	}

	for _, d := range days {
		date, ok := timeslot.ParseDate(d.Date)
		switch {
		case !ok:
			log.WarnContext(ctx, "skipping logistics row with malformed date", "group_id", g.ID, "date", d.Date)
		case !g.Contains(date):
			log.WarnContext(ctx, "skipping logistics row outside trip", "group_id", g.ID, "date", d.Date)
		}
	}

	return pool.Derive(pool.Input{
		Group:      g,
		Locations:  lo.KeyBy(locations, func(l domain.Location) uuid.UUID { return l.ID }),
		Logistics:  days,
		Templates:  templates,
		Activities: acts,
	}), nil
}
