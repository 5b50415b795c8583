package grid

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/pool"
	"github.com/pkordes/tripplanner/internal/resource"
	"github.com/pkordes/tripplanner/internal/timeslot"
)

// Board is the explicit, serializable calendar state of one group.
// Methods return a new Board; the receiver is never modified.
type Board struct {
	Group      domain.Group      `json:"group"`
	Activities []domain.Activity `json:"activities"`
}

// NewBoard returns a board holding the group's own activities.
func NewBoard(g domain.Group, activities []domain.Activity) Board {
	own := make([]domain.Activity, 0, len(activities))
	for _, a := range activities {
		if a.GroupID == g.ID {
			own = append(own, a)
		}
	}
	return Board{Group: g, Activities: own}
}

// Find returns the activity with the given id.
func (b Board) Find(id uuid.UUID) (domain.Activity, bool) {
	i := b.index(id)
	if i < 0 {
		return domain.Activity{}, false
	}
	return b.Activities[i], true
}

func (b Board) index(id uuid.UUID) int {
	return slices.IndexFunc(b.Activities, func(a domain.Activity) bool { return a.ID == id })
}

func (b Board) with(activities []domain.Activity) Board {
	return Board{Group: b.Group, Activities: activities}
}

// Assign places candidate c. Plan and recurring candidates may only be on
// the calendar once.
func (b Board) Assign(cfg Config, c domain.Candidate, date time.Time, start string) (Board, domain.Activity, error) {
	if c.Kind.Locked() {
		if existing, ok := pool.Match(c, b.Activities); ok {
			return b, domain.Activity{}, fmt.Errorf("grid.Board.Assign: %s placed as %s: %w", c.ID, existing.ID, ErrAlreadyPlaced)
		}
	}
	a, err := Assign(cfg, b.Group, c, date, start)
	if err != nil {
		return b, domain.Activity{}, err
	}
	return b.with(append(slices.Clone(b.Activities), a)), a, nil
}

// Move relocates the activity with the given id.
func (b Board) Move(cfg Config, id uuid.UUID, date time.Time, start string) (Board, domain.Activity, error) {
	i := b.index(id)
	if i < 0 {
		return b, domain.Activity{}, fmt.Errorf("grid.Board.Move: %s: %w", id, ErrNotOnBoard)
	}
	moved, err := Move(cfg, b.Group, b.Activities[i], date, start)
	if err != nil {
		return b, domain.Activity{}, err
	}
	next := slices.Clone(b.Activities)
	next[i] = moved
	return b.with(next), moved, nil
}

// Resize changes the end time of the activity with the given id.
func (b Board) Resize(id uuid.UUID, end string) (Board, domain.Activity, error) {
	i := b.index(id)
	if i < 0 {
		return b, domain.Activity{}, fmt.Errorf("grid.Board.Resize: %s: %w", id, ErrNotOnBoard)
	}
	resized, err := Resize(b.Activities[i], end)
	if err != nil {
		return b, domain.Activity{}, err
	}
	next := slices.Clone(b.Activities)
	next[i] = resized
	return b.with(next), resized, nil
}

// Remove deletes the activity with the given id. For plan and recurring
// resources this is "return to pool": the candidate reappears on the next
// pool derivation.
func (b Board) Remove(id uuid.UUID) (Board, domain.Activity, error) {
	i := b.index(id)
	if i < 0 {
		return b, domain.Activity{}, fmt.Errorf("grid.Board.Remove: %s: %w", id, ErrNotOnBoard)
	}
	removed := b.Activities[i]
	return b.with(slices.Delete(slices.Clone(b.Activities), i, i+1)), removed, nil
}

// Validate checks the invariants every stored calendar must hold:
// well-formed times with end after start, plan and recurring resources
// inside the trip range and on their pinned date, and at most one activity
// per plan or recurring resource. All problems are reported together.
func Validate(g domain.Group, activities []domain.Activity) error {
	var problems []string
	seen := make(map[string]int)
	for i, a := range activities {
		if err := ValidateActivity(g, a); err != nil {
			problems = append(problems, fmt.Sprintf("activity %d: %s", i, strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")))
		}
		if !resource.KindOf(a.ResourceID).Locked() {
			continue
		}
		if prev, dup := seen[a.ResourceID]; dup {
			problems = append(problems, fmt.Sprintf("activity %d: resource %s already used by activity %d", i, a.ResourceID, prev))
			continue
		}
		seen[a.ResourceID] = i
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// ValidateActivity checks the invariants of a single activity.
func ValidateActivity(g domain.Group, a domain.Activity) error {
	var errs []error
	if strings.TrimSpace(a.Title) == "" {
		errs = append(errs, errors.New("title is required"))
	}
	start, okS := timeslot.ToMinutes(a.StartTime)
	end, okE := timeslot.ToMinutes(a.EndTime)
	switch {
	case !okS || !okE:
		errs = append(errs, fmt.Errorf("malformed time %q-%q", a.StartTime, a.EndTime))
	case end <= start:
		errs = append(errs, errors.New("end time must be after start time"))
	}
	if a.Date.IsZero() {
		errs = append(errs, errors.New("date is required"))
	} else {
		id := resource.Classify(a.ResourceID)
		if id.Kind.Locked() && !g.Contains(a.Date) {
			errs = append(errs, fmt.Errorf("date %s is outside the trip range", timeslot.FormatDate(a.Date)))
		}
		if fixed, ok := id.FixedDate(); ok && !fixed.Equal(domain.DateOnly(a.Date)) {
			errs = append(errs, fmt.Errorf("resource %s belongs on %s", a.ResourceID, timeslot.FormatDate(fixed)))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(msgs, ", "))
}
