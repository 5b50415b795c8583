// Package pool derives a group's schedulable resources and splits them into
// available and already-placed candidates.
//
// Derivation is a pure function of its input: nothing is cached, so a
// candidate disappears from Available the moment a matching activity exists
// and reappears as soon as that activity is gone.
package pool

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/zeebo/xxh3"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/resource"
	"github.com/pkordes/tripplanner/internal/timeslot"
)

const (
	// DefaultPlanMinutes applies when a must-visit source carries no duration.
	DefaultPlanMinutes = 120
	// DefaultCardMinutes applies to logistics cards and templates without times.
	DefaultCardMinutes = 60

	ColorPlan      = "#4f83cc"
	ColorMeal      = "#f59e0b"
	ColorTransport = "#10b981"
	ColorCustom    = "#8b5cf6"
)

var mealTitles = map[domain.MealKey]string{
	domain.Breakfast: "Breakfast",
	domain.Lunch:     "Lunch",
	domain.Dinner:    "Dinner",
}

// Input is everything pool derivation reads for one group.
type Input struct {
	Group      domain.Group
	Locations  map[uuid.UUID]domain.Location
	Logistics  []domain.LogisticsDay
	Templates  []domain.CustomTemplate
	Activities []domain.Activity
}

// Placed is a candidate with the activity currently occupying it.
type Placed struct {
	Candidate  domain.Candidate `json:"candidate"`
	ActivityID uuid.UUID        `json:"activityId"`
}

// Pool is the derived availability view for one group.
type Pool struct {
	Available []domain.Candidate `json:"available"`
	Placed    []Placed           `json:"placed"`
}

// Derive builds the pool for in.Group.
func Derive(in Input) Pool {
	activities := lo.Filter(in.Activities, func(a domain.Activity, _ int) bool {
		return a.GroupID == in.Group.ID
	})

	p := Pool{Available: []domain.Candidate{}, Placed: []Placed{}}
	for _, c := range Candidates(in) {
		if a, ok := Match(c, activities); ok {
			p.Placed = append(p.Placed, Placed{Candidate: c, ActivityID: a.ID})
			continue
		}
		p.Available = append(p.Available, c)
	}
	return p
}

// Candidates lists every candidate of the group, placed or not, in a
// deterministic order: plan, recurring, custom.
func Candidates(in Input) []domain.Candidate {
	var all []domain.Candidate
	all = append(all, planCandidates(in)...)
	all = append(all, recurringCandidates(in.Group, in.Logistics)...)
	all = append(all, customCandidates(in.Templates)...)
	return lo.UniqBy(all, func(c domain.Candidate) string { return c.ID })
}

// Match finds the activity occupying c. Plan candidates also match any
// activity at the same location, which covers activities created before
// resource ids were recorded.
func Match(c domain.Candidate, activities []domain.Activity) (domain.Activity, bool) {
	if a, ok := lo.Find(activities, func(a domain.Activity) bool { return a.ResourceID == c.ID }); ok {
		return a, true
	}
	if c.Kind == domain.KindPlan && c.LocationID != nil {
		return lo.Find(activities, func(a domain.Activity) bool { return a.AtLocation(*c.LocationID) })
	}
	return domain.Activity{}, false
}

// Find returns the available candidate with the given id.
func (p Pool) Find(id string) (domain.Candidate, bool) {
	return lo.Find(p.Available, func(c domain.Candidate) bool { return c.ID == id })
}

// FindPlaced returns the placed entry for the given candidate id.
func (p Pool) FindPlaced(id string) (Placed, bool) {
	return lo.Find(p.Placed, func(pl Placed) bool { return pl.Candidate.ID == id })
}

// Fingerprint is a digest of the pool's canonical encoding. Equal pools
// always produce equal fingerprints, so callers can skip redundant updates.
func (p Pool) Fingerprint() string {
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxh3.Hash(b))
}

func planCandidates(in Input) []domain.Candidate {
	entries, _ := ResolveMustVisit(in.Group)
	out := make([]domain.Candidate, 0, len(entries))
	for _, e := range entries {
		c := domain.Candidate{
			ID:              e.ResourceID,
			Kind:            domain.KindPlan,
			Type:            domain.ActivityVisit,
			Title:           e.Title,
			DurationMinutes: e.DurationMinutes,
			Color:           ColorPlan,
			PlanItemID:      e.PlanItemID,
		}
		if c.DurationMinutes <= 0 {
			c.DurationMinutes = DefaultPlanMinutes
		}
		if e.LocationID != uuid.Nil {
			locID := e.LocationID
			c.LocationID = &locID
			if loc, ok := in.Locations[locID]; ok {
				c.Location = loc.Name
				if c.Title == "" {
					c.Title = loc.Name
				}
			}
		}
		if c.Title == "" {
			c.Title = "Must-visit location"
		}
		out = append(out, c)
	}
	return out
}

func recurringCandidates(g domain.Group, days []domain.LogisticsDay) []domain.Candidate {
	type dated struct {
		day  time.Time
		data domain.LogisticsDay
	}
	var valid []dated
	for _, d := range days {
		day, ok := timeslot.ParseDate(d.Date)
		if !ok || !g.Contains(day) {
			continue
		}
		valid = append(valid, dated{day: day, data: d})
	}
	slices.SortStableFunc(valid, func(a, b dated) int { return a.day.Compare(b.day) })
	valid = lo.UniqBy(valid, func(d dated) string { return timeslot.FormatDate(d.day) })

	first, last := domain.DateOnly(g.StartDate), domain.DateOnly(g.EndDate)
	var out []domain.Candidate
	for _, d := range valid {
		date := timeslot.FormatDate(d.day)
		if d.day.Equal(first) && d.data.Pickup != nil && !d.data.Pickup.Disabled {
			out = append(out, transferCandidate(d.day, resource.CategoryPickup, "Pickup", *d.data.Pickup))
		}
		for _, key := range domain.MealKeys {
			meal, ok := d.data.Meals[key]
			if !ok || meal.Disabled || strings.TrimSpace(meal.Place) == "" {
				continue
			}
			day := d.day
			out = append(out, domain.Candidate{
				ID: resource.BuildRecurringID(resource.RecurringKey{
					Date: date, Category: resource.CategoryMeal, Subkey: string(key),
				}),
				Kind:            domain.KindRecurring,
				Type:            domain.ActivityMeal,
				Title:           mealTitles[key],
				DurationMinutes: timeslot.DurationMinutes(meal.StartTime, meal.EndTime, DefaultCardMinutes),
				FixedDate:       &day,
				Location:        strings.TrimSpace(meal.Place),
				Color:           ColorMeal,
				Time:            canonicalTime(meal.StartTime),
				EndTime:         canonicalTime(meal.EndTime),
			})
		}
		if d.day.Equal(last) && d.data.Dropoff != nil && !d.data.Dropoff.Disabled {
			out = append(out, transferCandidate(d.day, resource.CategoryDropoff, "Dropoff", *d.data.Dropoff))
		}
	}
	return out
}

func transferCandidate(day time.Time, cat resource.Category, title string, t domain.Transfer) domain.Candidate {
	return domain.Candidate{
		ID:              resource.BuildRecurringID(resource.RecurringKey{Date: timeslot.FormatDate(day), Category: cat}),
		Kind:            domain.KindRecurring,
		Type:            domain.ActivityTransport,
		Title:           title,
		DurationMinutes: timeslot.DurationMinutes(t.StartTime, t.EndTime, DefaultCardMinutes),
		FixedDate:       &day,
		Location:        strings.TrimSpace(t.Place),
		Color:           ColorTransport,
		Time:            canonicalTime(t.StartTime),
		EndTime:         canonicalTime(t.EndTime),
	}
}

func customCandidates(templates []domain.CustomTemplate) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(templates))
	for _, t := range templates {
		title := strings.TrimSpace(t.Title)
		if title == "" {
			continue
		}
		typ := t.Type
		if typ == "" {
			typ = domain.ActivityCustom
		}
		duration := t.DurationMinutes
		if duration <= 0 {
			duration = DefaultCardMinutes
		}
		color := t.Color
		if color == "" {
			color = ColorCustom
		}
		out = append(out, domain.Candidate{
			ID:              resource.SynthesizeCustomID(typ, title, duration),
			Kind:            domain.KindCustom,
			Type:            typ,
			Title:           title,
			Description:     t.Description,
			DurationMinutes: duration,
			Color:           color,
		})
	}
	return out
}

func canonicalTime(s string) string {
	if s == "" {
		return ""
	}
	n, ok := timeslot.Normalize(s)
	if !ok {
		return ""
	}
	return n
}
