package transfer

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/pkordes/tripplanner/internal/conflict"
	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/grid"
	"github.com/pkordes/tripplanner/internal/resource"
	"github.com/pkordes/tripplanner/internal/timeslot"
)

// Problem is one structurally invalid assignment.
type Problem struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// InvalidPayloadError lists every assignment that failed structural
// validation. It unwraps to domain.ErrValidation.
type InvalidPayloadError struct {
	Problems []Problem
}

func (e *InvalidPayloadError) Error() string {
	parts := lo.Map(e.Problems, func(p Problem, _ int) string {
		if p.Index < 0 {
			return p.Message
		}
		return fmt.Sprintf("assignment %d: %s", p.Index, p.Message)
	})
	return fmt.Sprintf("%s: %s", domain.ErrValidation, strings.Join(parts, "; "))
}

func (e *InvalidPayloadError) Unwrap() error { return domain.ErrValidation }

// Window is the inclusive date range an import applies to.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether day falls inside the window.
func (w Window) Contains(day time.Time) bool {
	d := domain.DateOnly(day)
	return !d.Before(w.Start) && !d.After(w.End)
}

// Range renders the window in payload form.
func (w Window) Range() Range {
	return Range{StartDate: timeslot.FormatDate(w.Start), EndDate: timeslot.FormatDate(w.End)}
}

// Summary counts the outcome of an import.
type Summary struct {
	Groups      int `json:"groups"`
	Assignments int `json:"assignments"`
	Inserted    int `json:"inserted"`
	Skipped     int `json:"skipped"`
	Conflicts   int `json:"conflicts"`
}

// State is the live data an import is planned against. Activities must hold
// every stored activity on the window's dates, for all groups, so shared
// location capacity is judged correctly.
type State struct {
	Groups     []domain.Group
	Locations  []domain.Location
	Activities []domain.Activity
}

// Plan is the outcome of validating an import. It is computed identically
// for a dry run and for an apply; only the apply persists it.
type Plan struct {
	Key      string
	Window   Window
	GroupIDs []uuid.UUID
	// Replaced holds the stored activities an apply deletes.
	Replaced []domain.Activity
	// Accepted holds the activities an apply inserts.
	Accepted []domain.Activity
	Reports  []domain.ConflictReport
	Summary  Summary
	// Blocked is set when conflicts exist and the caller did not opt to
	// skip them; applying a blocked plan must write nothing.
	Blocked bool
}

// ResolveWindow picks the import window: explicit options first, then the
// payload range.
func ResolveWindow(p Payload, o Options) (Window, error) {
	startRaw := lo.Ternary(o.StartDate != "", o.StartDate, p.Range.StartDate)
	endRaw := lo.Ternary(o.EndDate != "", o.EndDate, p.Range.EndDate)
	start, okS := timeslot.ParseDate(startRaw)
	end, okE := timeslot.ParseDate(endRaw)
	switch {
	case !okS || !okE:
		return Window{}, fmt.Errorf("%w: malformed import window %q..%q", domain.ErrValidation, startRaw, endRaw)
	case end.Before(start):
		return Window{}, fmt.Errorf("%w: import window ends before it starts", domain.ErrValidation)
	}
	return Window{Start: start, End: end}, nil
}

// AffectedGroups returns the explicit group selection, or every group named
// in the payload in first-seen order.
func AffectedGroups(p Payload, o Options) []uuid.UUID {
	if len(o.GroupIDs) > 0 {
		return lo.Uniq(o.GroupIDs)
	}
	return lo.Uniq(lo.Map(p.Assignments, func(a Assignment, _ int) uuid.UUID { return a.GroupID }))
}

// CheckStructure validates the payload envelope and each assignment's own
// fields. It needs no state.
func CheckStructure(p Payload) error {
	var problems []Problem
	if p.Schema != Schema {
		problems = append(problems, Problem{Index: -1, Message: fmt.Sprintf("unsupported schema %q", p.Schema)})
	}
	if p.Mode != ModeAssignments {
		problems = append(problems, Problem{Index: -1, Message: fmt.Sprintf("unsupported mode %q", p.Mode)})
	}
	for i, as := range p.Assignments {
		if msg := checkAssignment(as); msg != "" {
			problems = append(problems, Problem{Index: i, Message: msg})
		}
	}
	if len(problems) > 0 {
		return &InvalidPayloadError{Problems: problems}
	}
	return nil
}

func checkAssignment(as Assignment) string {
	var msgs []string
	if as.GroupID == uuid.Nil {
		msgs = append(msgs, "group_id is required")
	}
	if _, ok := timeslot.ParseDate(as.Date); !ok {
		msgs = append(msgs, fmt.Sprintf("malformed date %q", as.Date))
	}
	start, okS := timeslot.ToMinutes(as.StartTime)
	end, okE := timeslot.ToMinutes(as.EndTime)
	switch {
	case !okS || !okE:
		msgs = append(msgs, fmt.Sprintf("malformed time %q-%q", as.StartTime, as.EndTime))
	case end <= start:
		msgs = append(msgs, "end time must be after start time")
	}
	if as.ResourceID != "" && resource.KindOf(as.ResourceID) == domain.KindUnknown {
		msgs = append(msgs, fmt.Sprintf("unrecognised resource_id %q", as.ResourceID))
	}
	return strings.Join(msgs, ", ")
}

// Build validates an import against state and computes what an apply would
// do. Structural problems and rule violations against the group's own
// invariants fail with an InvalidPayloadError before any conflict is
// evaluated; scheduling conflicts are reported on the plan.
func Build(p Payload, o Options, st State) (Plan, error) {
	if err := CheckStructure(p); err != nil {
		return Plan{}, err
	}
	window, err := ResolveWindow(p, o)
	if err != nil {
		return Plan{}, err
	}

	cat := conflict.NewCatalog(st.Groups, st.Locations)
	groupIDs := AffectedGroups(p, o)
	var problems []Problem
	for _, id := range groupIDs {
		if _, ok := cat.Groups[id]; !ok {
			problems = append(problems, Problem{Index: -1, Message: fmt.Sprintf("unknown group %s", id)})
		}
	}
	if len(problems) > 0 {
		return Plan{}, &InvalidPayloadError{Problems: problems}
	}

	affected := lo.SliceToMap(groupIDs, func(id uuid.UUID) (uuid.UUID, struct{}) { return id, struct{}{} })
	inScope := func(groupID uuid.UUID, day time.Time) bool {
		_, ok := affected[groupID]
		return ok && window.Contains(day)
	}

	plan := Plan{Key: Key(p, o), Window: window, GroupIDs: groupIDs}
	base := st.Activities
	if o.ReplaceExisting {
		plan.Replaced = lo.Filter(base, func(a domain.Activity, _ int) bool { return inScope(a.GroupID, a.Date) })
		base = lo.Reject(base, func(a domain.Activity, _ int) bool { return inScope(a.GroupID, a.Date) })
	}

	// indices maps each proposed activity back to its payload position.
	var proposed []domain.Activity
	var indices []int
	for i, as := range p.Assignments {
		a := as.ToActivity(cat.Locations)
		if !inScope(a.GroupID, a.Date) {
			continue
		}
		if err := grid.ValidateActivity(cat.Groups[a.GroupID], a); err != nil {
			problems = append(problems, Problem{Index: i, Message: strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")})
			continue
		}
		proposed = append(proposed, a)
		indices = append(indices, i)
	}
	problems = append(problems, duplicateResources(base, proposed, indices)...)
	if len(problems) > 0 {
		slices.SortStableFunc(problems, func(a, b Problem) int { return a.Index - b.Index })
		return Plan{}, &InvalidPayloadError{Problems: problems}
	}

	conflicting := make(map[int]bool)
	for k, a := range proposed {
		others := slices.Concat(base, proposed[:k], proposed[k+1:])
		cs := conflict.Evaluate(conflict.FromActivity(a), others, cat)
		if len(cs) == 0 {
			continue
		}
		conflicting[k] = true
		plan.Reports = append(plan.Reports, conflict.Report(indices[k], a, cs))
	}

	plan.Blocked = len(plan.Reports) > 0 && !o.SkipConflicts
	if !plan.Blocked {
		for k, a := range proposed {
			if !conflicting[k] {
				plan.Accepted = append(plan.Accepted, a)
			}
		}
	}
	plan.Summary = Summary{
		Groups:      len(groupIDs),
		Assignments: len(p.Assignments),
		Inserted:    len(plan.Accepted),
		Skipped:     len(p.Assignments) - len(plan.Accepted),
		Conflicts:   len(plan.Reports),
	}
	return plan, nil
}

// duplicateResources enforces one activity per plan or recurring resource
// per group across the surviving stored calendar and the payload.
func duplicateResources(base, proposed []domain.Activity, indices []int) []Problem {
	type key struct {
		group uuid.UUID
		id    string
	}
	taken := make(map[key]bool)
	for _, a := range base {
		if resource.KindOf(a.ResourceID).Locked() {
			taken[key{a.GroupID, a.ResourceID}] = true
		}
	}
	var out []Problem
	for k, a := range proposed {
		if !resource.KindOf(a.ResourceID).Locked() {
			continue
		}
		kk := key{a.GroupID, a.ResourceID}
		if taken[kk] {
			out = append(out, Problem{Index: indices[k], Message: fmt.Sprintf("resource %s is already scheduled for this group", a.ResourceID)})
			continue
		}
		taken[kk] = true
	}
	return out
}

// AttemptState is the lifecycle position of one import attempt.
type AttemptState string

const (
	Unvalidated AttemptState = "UNVALIDATED"
	Validated   AttemptState = "VALIDATED"
	Applied     AttemptState = "APPLIED"
	RolledBack  AttemptState = "ROLLED_BACK"
)

var (
	// ErrNotValidated means an apply was attempted without a live validation
	// for the same payload and options.
	ErrNotValidated = fmt.Errorf("%w: import must be validated with the same payload and options before it is applied", domain.ErrPrecondition)
	// ErrAttemptClosed means the attempt already moved past the requested step.
	ErrAttemptClosed = fmt.Errorf("%w: import attempt is no longer open", domain.ErrConcurrency)
)

// Attempt tracks one import through validate, apply and rollback.
// Transitions return a new value and never mutate the receiver.
type Attempt struct {
	State         AttemptState `json:"state"`
	Key           string       `json:"key,omitempty"`
	SnapshotToken string       `json:"snapshotToken,omitempty"`
}

// Validate records a successful dry run for key. Revalidating an open
// attempt replaces its key.
func (a Attempt) Validate(key string) (Attempt, error) {
	if a.State == Applied || a.State == RolledBack {
		return a, ErrAttemptClosed
	}
	return Attempt{State: Validated, Key: key}, nil
}

// Edit drops a validation after the payload or options changed.
func (a Attempt) Edit() Attempt {
	if a.State != Validated {
		return a
	}
	return Attempt{State: Unvalidated}
}

// Apply requires a validation bound to exactly key.
func (a Attempt) Apply(key, token string) (Attempt, error) {
	switch {
	case a.State == Applied || a.State == RolledBack:
		return a, ErrAttemptClosed
	case a.State != Validated || a.Key != key:
		return a, ErrNotValidated
	}
	return Attempt{State: Applied, Key: key, SnapshotToken: token}, nil
}

// RollBack closes an applied attempt.
func (a Attempt) RollBack() (Attempt, error) {
	if a.State != Applied {
		return a, ErrAttemptClosed
	}
	return Attempt{State: RolledBack, Key: a.Key, SnapshotToken: a.SnapshotToken}, nil
}
