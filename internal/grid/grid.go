// Package grid places activities on a group's day × time-of-day grid.
//
// Every operation is a pure function: it takes the current state and
// returns the new state (or a rejection) without mutating its inputs. The
// service layer is the only place that persists the result.
package grid

import (
	"fmt"
	"time"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/resource"
	"github.com/pkordes/tripplanner/internal/timeslot"
)

var (
	ErrPinnedDate     = fmt.Errorf("%w: resource is pinned to another date", domain.ErrValidation)
	ErrOutsideTrip    = fmt.Errorf("%w: date is outside the trip range", domain.ErrValidation)
	ErrInvalidTime    = fmt.Errorf("%w: malformed time", domain.ErrValidation)
	ErrEndBeforeStart = fmt.Errorf("%w: end time must be after start time", domain.ErrValidation)
	ErrAlreadyPlaced  = fmt.Errorf("%w: resource is already on the calendar", domain.ErrConflict)
	ErrNotOnBoard     = fmt.Errorf("%w: activity is not on this calendar", domain.ErrNotFound)
)

// Config bounds the schedulable part of a day. All values are minutes.
type Config struct {
	DayStart int
	DayEnd   int
	Quantum  int
}

// DefaultConfig is a 06:00 to 22:00 day on a 15-minute quantum.
func DefaultConfig() Config {
	return Config{DayStart: 6 * 60, DayEnd: 22 * 60, Quantum: 15}
}

// NewConfig parses a day window such as "06:00" to "22:00".
func NewConfig(dayStart, dayEnd string, quantum int) (Config, error) {
	s, okS := timeslot.ToMinutes(dayStart)
	e, okE := timeslot.ToMinutes(dayEnd)
	if !okS || !okE {
		return Config{}, fmt.Errorf("grid.NewConfig: %w", ErrInvalidTime)
	}
	if e <= s {
		return Config{}, fmt.Errorf("grid.NewConfig: %w", ErrEndBeforeStart)
	}
	if quantum <= 0 || quantum > e-s {
		return Config{}, fmt.Errorf("grid.NewConfig: %w: quantum must be between 1 and %d minutes", domain.ErrValidation, e-s)
	}
	return Config{DayStart: s, DayEnd: e, Quantum: quantum}, nil
}

// clamp shifts start so that [start, start+duration] stays inside the day
// window. Activities longer than the window start at the window start.
func (c Config) clamp(start, duration int) int {
	if start+duration > c.DayEnd {
		start = c.DayEnd - duration
	}
	return max(start, c.DayStart)
}

// Assign builds the activity produced by dropping candidate c onto
// targetDate at targetStart. The end is start plus the candidate duration
// rounded up to the quantum. When targetStart is empty the candidate's
// preferred time is used.
func Assign(cfg Config, g domain.Group, c domain.Candidate, targetDate time.Time, targetStart string) (domain.Activity, error) {
	if targetStart == "" {
		targetStart = c.Time
	}
	start, ok := timeslot.ToMinutes(targetStart)
	if !ok {
		return domain.Activity{}, fmt.Errorf("grid.Assign: start %q: %w", targetStart, ErrInvalidTime)
	}

	date := domain.DateOnly(targetDate)
	if c.FixedDate != nil {
		fixed := domain.DateOnly(*c.FixedDate)
		if !fixed.Equal(date) {
			return domain.Activity{}, fmt.Errorf("grid.Assign: %s belongs on %s: %w",
				c.ID, timeslot.FormatDate(fixed), ErrPinnedDate)
		}
		date = fixed
	}
	if c.Kind.Locked() && !g.Contains(date) {
		return domain.Activity{}, fmt.Errorf("grid.Assign: %s: %w", timeslot.FormatDate(date), ErrOutsideTrip)
	}

	duration := c.DurationMinutes
	if duration <= 0 {
		duration = 60
	}
	duration = timeslot.RoundUp(duration, cfg.Quantum)
	start = cfg.clamp(start, duration)

	a := domain.Activity{
		GroupID:        g.ID,
		Date:           date,
		StartTime:      timeslot.FormatMinutes(start),
		EndTime:        timeslot.FormatMinutes(start + duration),
		Type:           c.Type,
		ResourceID:     c.ID,
		Title:          c.Title,
		Location:       c.Location,
		Description:    c.Description,
		Color:          c.Color,
		IsFromResource: true,
	}
	if c.LocationID != nil {
		loc := *c.LocationID
		a.LocationID = &loc
	}
	if c.PlanItemID != nil {
		item := *c.PlanItemID
		a.PlanItemID = &item
	}
	return a, nil
}

// Move relocates a to targetDate at targetStart, preserving its duration.
// Resources pinned to a date cannot change date.
func Move(cfg Config, g domain.Group, a domain.Activity, targetDate time.Time, targetStart string) (domain.Activity, error) {
	start, ok := timeslot.ToMinutes(targetStart)
	if !ok {
		return domain.Activity{}, fmt.Errorf("grid.Move: start %q: %w", targetStart, ErrInvalidTime)
	}

	date := domain.DateOnly(targetDate)
	id := resource.Classify(a.ResourceID)
	if fixed, ok := id.FixedDate(); ok && !fixed.Equal(date) {
		return domain.Activity{}, fmt.Errorf("grid.Move: %s belongs on %s: %w",
			a.ResourceID, timeslot.FormatDate(fixed), ErrPinnedDate)
	}
	if id.Kind.Locked() && !g.Contains(date) {
		return domain.Activity{}, fmt.Errorf("grid.Move: %s: %w", timeslot.FormatDate(date), ErrOutsideTrip)
	}

	duration := timeslot.DurationMinutes(a.StartTime, a.EndTime, 60)
	start = cfg.clamp(start, duration)

	moved := a
	moved.Date = date
	moved.StartTime = timeslot.FormatMinutes(start)
	moved.EndTime = timeslot.FormatMinutes(start + duration)
	return moved, nil
}

// Resize changes the end time of a. The new end must be strictly later
// than the start.
func Resize(a domain.Activity, newEnd string) (domain.Activity, error) {
	end, ok := timeslot.ToMinutes(newEnd)
	if !ok {
		return domain.Activity{}, fmt.Errorf("grid.Resize: end %q: %w", newEnd, ErrInvalidTime)
	}
	start, ok := timeslot.ToMinutes(a.StartTime)
	if !ok {
		return domain.Activity{}, fmt.Errorf("grid.Resize: start %q: %w", a.StartTime, ErrInvalidTime)
	}
	if end <= start {
		return domain.Activity{}, fmt.Errorf("grid.Resize: %s-%s: %w", a.StartTime, newEnd, ErrEndBeforeStart)
	}
	resized := a
	resized.EndTime = timeslot.FormatMinutes(end)
	return resized, nil
}
