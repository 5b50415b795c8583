// Package transfer exchanges schedules with the external batch planner.
//
// Export turns live activities into a versioned payload. Import runs in
// three phases: a dry-run Plan that validates the payload and reports
// conflicts without touching state, an apply that the service layer runs in
// one transaction, and a rollback from the snapshot taken during apply.
// Everything in this package is pure; persistence lives in the service.
package transfer

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/zeebo/xxh3"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/pool"
	"github.com/pkordes/tripplanner/internal/timeslot"
)

const (
	// Schema identifies the payload format version.
	Schema = "tripplan.assignments/v1"
	// ModeAssignments is the only supported payload mode.
	ModeAssignments = "assignments"
)

// Range is an inclusive date range in "YYYY-MM-DD" form.
type Range struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Assignment is one activity as exchanged with the batch planner.
type Assignment struct {
	GroupID     uuid.UUID           `json:"groupId"`
	Date        string              `json:"date"`
	StartTime   string              `json:"startTime"`
	EndTime     string              `json:"endTime"`
	TimeSlot    string              `json:"timeSlot,omitempty"`
	LocationID  *uuid.UUID          `json:"locationId,omitempty"`
	Type        domain.ActivityType `json:"type,omitempty"`
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       string              `json:"color,omitempty"`
	ResourceID  string              `json:"resourceId,omitempty"`
	PlanItemID  *string             `json:"planItemId,omitempty"`
}

// Payload is the versioned document exchanged with the batch planner.
type Payload struct {
	Schema      string       `json:"schema"`
	Mode        string       `json:"mode"`
	Range       Range        `json:"range"`
	Assignments []Assignment `json:"assignments"`
}

// Options controls an import.
type Options struct {
	GroupIDs        []uuid.UUID `json:"groupIds,omitempty"`
	ReplaceExisting bool        `json:"replaceExisting"`
	SkipConflicts   bool        `json:"skipConflicts"`
	StartDate       string      `json:"startDate,omitempty"`
	EndDate         string      `json:"endDate,omitempty"`
	DryRun          bool        `json:"dryRun"`
}

// Export builds the payload for groups covering every activity dated inside
// [start, end]. Groups without a must-visit set cannot be exported; all of
// them are named in the returned PreconditionError.
func Export(groups []domain.Group, activities []domain.Activity, start, end time.Time) (Payload, error) {
	start, end = domain.DateOnly(start), domain.DateOnly(end)
	if end.Before(start) {
		return Payload{}, fmt.Errorf("transfer.Export: %w: end date before start date", domain.ErrValidation)
	}

	missing := lo.FilterMap(groups, func(g domain.Group, _ int) (uuid.UUID, bool) {
		return g.ID, !pool.HasMustVisit(g)
	})
	if len(missing) > 0 {
		return Payload{}, &domain.PreconditionError{Reason: "no must-visit locations configured", GroupIDs: missing}
	}

	order := make(map[uuid.UUID]int, len(groups))
	for i, g := range groups {
		order[g.ID] = i
	}
	selected := lo.Filter(activities, func(a domain.Activity, _ int) bool {
		_, ok := order[a.GroupID]
		d := domain.DateOnly(a.Date)
		return ok && !d.Before(start) && !d.After(end)
	})
	slices.SortStableFunc(selected, func(x, y domain.Activity) int {
		if c := cmp.Compare(order[x.GroupID], order[y.GroupID]); c != 0 {
			return c
		}
		if c := x.Date.Compare(y.Date); c != 0 {
			return c
		}
		return cmp.Compare(x.StartTime, y.StartTime)
	})

	return Payload{
		Schema:      Schema,
		Mode:        ModeAssignments,
		Range:       Range{StartDate: timeslot.FormatDate(start), EndDate: timeslot.FormatDate(end)},
		Assignments: lo.Map(selected, func(a domain.Activity, _ int) Assignment { return FromActivity(a) }),
	}, nil
}

// FromActivity converts a calendar activity to its exchange form.
func FromActivity(a domain.Activity) Assignment {
	return Assignment{
		GroupID:     a.GroupID,
		Date:        timeslot.FormatDate(a.Date),
		StartTime:   a.StartTime,
		EndTime:     a.EndTime,
		TimeSlot:    string(timeslot.ClassifyByOverlap(a.StartTime, a.EndTime)),
		LocationID:  a.LocationID,
		Type:        a.Type,
		Title:       a.Title,
		Description: a.Description,
		Color:       a.Color,
		ResourceID:  a.ResourceID,
		PlanItemID:  a.PlanItemID,
	}
}

// ToActivity converts an assignment to an unsaved activity. The location
// catalogue fills in a display name and title when the planner sent none.
func (as Assignment) ToActivity(locations map[uuid.UUID]domain.Location) domain.Activity {
	date, _ := timeslot.ParseDate(as.Date)
	start, _ := timeslot.Normalize(as.StartTime)
	end, _ := timeslot.Normalize(as.EndTime)
	a := domain.Activity{
		GroupID:        as.GroupID,
		Date:           date,
		StartTime:      start,
		EndTime:        end,
		Type:           as.Type,
		ResourceID:     as.ResourceID,
		Title:          as.Title,
		Description:    as.Description,
		Color:          as.Color,
		PlanItemID:     as.PlanItemID,
		IsFromResource: as.ResourceID != "",
	}
	if as.LocationID != nil {
		id := *as.LocationID
		a.LocationID = &id
		if loc, ok := locations[id]; ok {
			a.Location = loc.Name
			if a.Title == "" {
				a.Title = loc.Name
			}
		}
		if a.Type == "" {
			a.Type = domain.ActivityVisit
		}
	}
	if a.Type == "" {
		a.Type = domain.ActivityCustom
	}
	if a.Title == "" {
		a.Title = "Planned activity"
	}
	if a.Color == "" {
		a.Color = pool.ColorPlan
	}
	return a
}

// Key binds a validation result to the exact payload and options it was
// computed for. DryRun does not take part and group order is irrelevant.
func Key(p Payload, o Options) string {
	o.DryRun = false
	o.GroupIDs = slices.Clone(o.GroupIDs)
	slices.SortFunc(o.GroupIDs, func(a, b uuid.UUID) int { return cmp.Compare(a.String(), b.String()) })
	b, err := json.Marshal(struct {
		Payload Payload `json:"payload"`
		Options Options `json:"options"`
	}{p, o})
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxh3.Hash(b))
}
