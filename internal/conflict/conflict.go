// Package conflict evaluates scheduling rules against a candidate placement.
//
// Evaluate is pure: it reads the placement, the other activities, and the
// group and location catalogues, and returns every rule the placement
// breaks. Rules never short-circuit each other, so one placement can carry
// several conflicts at once.
package conflict

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/timeslot"
)

// Placement is a proposed position of an activity.
// ActivityID identifies the activity being moved so it is not compared
// against itself; it is uuid.Nil for new placements.
type Placement struct {
	ActivityID uuid.UUID
	GroupID    uuid.UUID
	Date       time.Time
	StartTime  string
	EndTime    string
	LocationID *uuid.UUID
}

// FromActivity describes an existing or proposed activity as a placement.
func FromActivity(a domain.Activity) Placement {
	return Placement{
		ActivityID: a.ID,
		GroupID:    a.GroupID,
		Date:       a.Date,
		StartTime:  a.StartTime,
		EndTime:    a.EndTime,
		LocationID: a.LocationID,
	}
}

// Slot is the coarse bucket the placement falls into.
func (p Placement) Slot() timeslot.Slot {
	return timeslot.ClassifyByOverlap(p.StartTime, p.EndTime)
}

// Catalog holds the groups and locations rules are evaluated against.
type Catalog struct {
	Groups    map[uuid.UUID]domain.Group
	Locations map[uuid.UUID]domain.Location
}

// NewCatalog indexes groups and locations by id.
func NewCatalog(groups []domain.Group, locations []domain.Location) Catalog {
	return Catalog{
		Groups:    lo.KeyBy(groups, func(g domain.Group) uuid.UUID { return g.ID }),
		Locations: lo.KeyBy(locations, func(l domain.Location) uuid.UUID { return l.ID }),
	}
}

// Evaluate runs every rule for p against the other activities. Rules run in
// a fixed order so results are stable.
func Evaluate(p Placement, activities []domain.Activity, cat Catalog) []domain.Conflict {
	date := domain.DateOnly(p.Date)
	slot := p.Slot()
	sameBucket := lo.Filter(activities, func(a domain.Activity, _ int) bool {
		if p.ActivityID != uuid.Nil && a.ID == p.ActivityID {
			return false
		}
		return domain.DateOnly(a.Date).Equal(date) && timeslot.ClassifyByOverlap(a.StartTime, a.EndTime) == slot
	})

	var out []domain.Conflict
	if c, ok := groupTime(p, slot, sameBucket); ok {
		out = append(out, c)
	}
	if p.LocationID == nil {
		return out
	}
	loc, known := cat.Locations[*p.LocationID]
	if !known {
		return out
	}
	if c, ok := capacity(p, slot, loc, sameBucket, cat.Groups); ok {
		out = append(out, c)
	}
	if loc.BlockedOn(date) {
		out = append(out, domain.Conflict{
			Code:    domain.ConflictBlockedWeekday,
			Message: fmt.Sprintf("%s is closed on %ss", loc.Name, date.Weekday()),
		})
	}
	if g, ok := cat.Groups[p.GroupID]; ok && !loc.TargetGroups.Accepts(g.Type) {
		out = append(out, domain.Conflict{
			Code:    domain.ConflictGroupType,
			Message: fmt.Sprintf("%s only accepts %s groups, %s is %s", loc.Name, loc.TargetGroups, g.Name, g.Type),
		})
	}
	if !loc.Active {
		out = append(out, domain.Conflict{
			Code:    domain.ConflictLocationInactive,
			Message: fmt.Sprintf("%s is not active", loc.Name),
		})
	}
	return out
}

// Report groups the conflicts of the activity at position index of a batch.
func Report(index int, a domain.Activity, cs []domain.Conflict) domain.ConflictReport {
	return domain.ConflictReport{
		Index:      index,
		GroupID:    a.GroupID,
		Date:       timeslot.FormatDate(a.Date),
		TimeSlot:   string(timeslot.ClassifyByOverlap(a.StartTime, a.EndTime)),
		LocationID: a.LocationID,
		Reasons:    Codes(cs),
		Message:    strings.Join(lo.Map(cs, func(c domain.Conflict, _ int) string { return c.Message }), "; "),
	}
}

// Codes extracts the reason codes of cs.
func Codes(cs []domain.Conflict) []domain.ConflictCode {
	return lo.Map(cs, func(c domain.Conflict, _ int) domain.ConflictCode { return c.Code })
}

func groupTime(p Placement, slot timeslot.Slot, bucket []domain.Activity) (domain.Conflict, bool) {
	clash, ok := lo.Find(bucket, func(a domain.Activity) bool { return a.GroupID == p.GroupID })
	if !ok {
		return domain.Conflict{}, false
	}
	return domain.Conflict{
		Code: domain.ConflictGroupTime,
		Message: fmt.Sprintf("group already has %q in the %s slot on %s",
			clash.Title, slot, timeslot.FormatDate(p.Date)),
	}, true
}

// capacity sums the headcount of every distinct group at the location in
// the same date and slot, the placing group included. Zero capacity means
// unlimited.
func capacity(p Placement, slot timeslot.Slot, loc domain.Location, bucket []domain.Activity, groups map[uuid.UUID]domain.Group) (domain.Conflict, bool) {
	if loc.Capacity <= 0 {
		return domain.Conflict{}, false
	}
	present := lo.Uniq(append(
		lo.FilterMap(bucket, func(a domain.Activity, _ int) (uuid.UUID, bool) {
			return a.GroupID, a.AtLocation(loc.ID)
		}),
		p.GroupID,
	))
	total := lo.SumBy(present, func(id uuid.UUID) int { return groups[id].Headcount })
	if total <= loc.Capacity {
		return domain.Conflict{}, false
	}
	return domain.Conflict{
		Code: domain.ConflictCapacity,
		Message: fmt.Sprintf("%s holds %d but %d participants are booked in the %s slot on %s",
			loc.Name, loc.Capacity, total, slot, timeslot.FormatDate(p.Date)),
	}, true
}
