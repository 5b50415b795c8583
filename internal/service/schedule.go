package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/pkordes/tripplanner/internal/conflict"
	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/grid"
	"github.com/pkordes/tripplanner/internal/metrics"
	"github.com/pkordes/tripplanner/internal/pool"
	"github.com/pkordes/tripplanner/internal/repo"
	"github.com/pkordes/tripplanner/internal/resource"
	"github.com/pkordes/tripplanner/internal/timeslot"
)

// ScheduleService runs interactive calendar edits. Each mutation loads the
// group's board inside a transaction, applies the pure grid operation,
// evaluates conflicts, persists, and bumps the group's revision so the next
// pool read sees it. Conflicts are advisory here: they are returned
// alongside the committed change.
type ScheduleService struct {
	tx      repo.TxRunner
	set     repo.Set
	cfg     grid.Config
	metrics *metrics.Recorder
	log     *slog.Logger
}

// NewScheduleService constructs a ScheduleService. set is used for reads
// outside a transaction; tx for every mutation.
func NewScheduleService(tx repo.TxRunner, set repo.Set, cfg grid.Config, m *metrics.Recorder, log *slog.Logger) *ScheduleService {
	return &ScheduleService{tx: tx, set: set, cfg: cfg, metrics: m, log: log}
}

// Mutation is the outcome of an interactive edit.
type Mutation struct {
	Activity  domain.Activity   `json:"activity"`
	Conflicts []domain.Conflict `json:"conflicts"`
	Revision  int64             `json:"revision"`
}

// CustomActivity describes a free-form activity created directly on the
// calendar.
type CustomActivity struct {
	Type            domain.ActivityType
	Title           string
	Description     string
	DurationMinutes int
	Color           string
	Date            time.Time
	StartTime       string
}

// CheckRequest is a hypothetical placement to evaluate without saving.
// ActivityID names the activity being moved, if any, so it is not compared
// against itself.
type CheckRequest struct {
	ActivityID *uuid.UUID
	GroupID    uuid.UUID
	Date       time.Time
	StartTime  string
	EndTime    string
	LocationID *uuid.UUID
}

// SaveResult is the outcome of a batch save.
type SaveResult struct {
	Revision  int64                   `json:"revision"`
	Saved     int                     `json:"saved"`
	Conflicts []domain.ConflictReport `json:"conflicts"`
}

// List returns a group's calendar.
func (s *ScheduleService) List(ctx context.Context, groupID uuid.UUID) ([]domain.Activity, error) {
	if _, err := s.set.Groups.GetByID(ctx, groupID); err != nil {
		return nil, fmt.Errorf("service.ScheduleService.List: %w", err)
	}
	acts, err := s.set.Activities.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("service.ScheduleService.List: %w", err)
	}
	return acts, nil
}

// Assign places the candidate with the given resource id. A start of ""
// uses the candidate's preferred time.
func (s *ScheduleService) Assign(ctx context.Context, groupID uuid.UUID, candidateID string, date time.Time, start string) (Mutation, error) {
	var out Mutation
	err := s.tx.InTx(ctx, func(rs repo.Set) error {
		board, err := s.lockBoard(ctx, rs, groupID)
		if err != nil {
			return err
		}
		p, err := derivePool(ctx, rs, s.log, board.Group, board.Activities)
		if err != nil {
			return err
		}
		c, ok := p.Find(candidateID)
		if !ok {
			placed, found := p.FindPlaced(candidateID)
			if !found {
				return fmt.Errorf("%w: candidate %s", domain.ErrNotFound, candidateID)
			}
			c = placed.Candidate
		}

		_, a, err := board.Assign(s.cfg, c, date, start)
		if err != nil {
			return err
		}
		out, err = s.commit(ctx, rs, board.Group, a, rs.Activities.Create)
		return err
	})
	if err != nil {
		return Mutation{}, fmt.Errorf("service.ScheduleService.Assign: %w", err)
	}
	s.log.InfoContext(ctx, "activity assigned", "group_id", groupID, "resource_id", candidateID, "conflicts", len(out.Conflicts))
	return out, nil
}

// CreateCustom places a free-form activity. Its resource id is synthesized
// from type, title and duration, so identical activities share one id.
func (s *ScheduleService) CreateCustom(ctx context.Context, groupID uuid.UUID, in CustomActivity) (Mutation, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return Mutation{}, fmt.Errorf("service.ScheduleService.CreateCustom: %w: title is required", domain.ErrValidation)
	}
	if in.DurationMinutes < 0 {
		return Mutation{}, fmt.Errorf("service.ScheduleService.CreateCustom: %w: duration must not be negative", domain.ErrValidation)
	}
	if in.DurationMinutes == 0 {
		in.DurationMinutes = pool.DefaultCardMinutes
	}
	if in.Type == "" {
		in.Type = domain.ActivityCustom
	}
	if in.Color == "" {
		in.Color = pool.ColorCustom
	}
	c := domain.Candidate{
		ID:              resource.SynthesizeCustomID(in.Type, in.Title, in.DurationMinutes),
		Kind:            domain.KindCustom,
		Type:            in.Type,
		Title:           in.Title,
		Description:     in.Description,
		DurationMinutes: in.DurationMinutes,
		Color:           in.Color,
	}

	var out Mutation
	err := s.tx.InTx(ctx, func(rs repo.Set) error {
		board, err := s.lockBoard(ctx, rs, groupID)
		if err != nil {
			return err
		}
		_, a, err := board.Assign(s.cfg, c, in.Date, in.StartTime)
		if err != nil {
			return err
		}
		out, err = s.commit(ctx, rs, board.Group, a, rs.Activities.Create)
		return err
	})
	if err != nil {
		return Mutation{}, fmt.Errorf("service.ScheduleService.CreateCustom: %w", err)
	}
	return out, nil
}

// Move relocates an activity, keeping its duration.
func (s *ScheduleService) Move(ctx context.Context, groupID, activityID uuid.UUID, date time.Time, start string) (Mutation, error) {
	var out Mutation
	err := s.tx.InTx(ctx, func(rs repo.Set) error {
		board, err := s.lockBoard(ctx, rs, groupID)
		if err != nil {
			return err
		}
		_, a, err := board.Move(s.cfg, activityID, date, start)
		if err != nil {
			return err
		}
		out, err = s.commit(ctx, rs, board.Group, a, rs.Activities.Update)
		return err
	})
	if err != nil {
		return Mutation{}, fmt.Errorf("service.ScheduleService.Move: %w", err)
	}
	return out, nil
}

// Resize changes the end time of an activity.
func (s *ScheduleService) Resize(ctx context.Context, groupID, activityID uuid.UUID, end string) (Mutation, error) {
	var out Mutation
	err := s.tx.InTx(ctx, func(rs repo.Set) error {
		board, err := s.lockBoard(ctx, rs, groupID)
		if err != nil {
			return err
		}
		_, a, err := board.Resize(activityID, end)
		if err != nil {
			return err
		}
		out, err = s.commit(ctx, rs, board.Group, a, rs.Activities.Update)
		return err
	})
	if err != nil {
		return Mutation{}, fmt.Errorf("service.ScheduleService.Resize: %w", err)
	}
	return out, nil
}

// Delete removes an activity, returning its resource to the pool.
func (s *ScheduleService) Delete(ctx context.Context, groupID, activityID uuid.UUID) (int64, error) {
	var rev int64
	err := s.tx.InTx(ctx, func(rs repo.Set) error {
		if err := rs.Groups.LockForUpdate(ctx, []uuid.UUID{groupID}); err != nil {
			return err
		}
		if err := rs.Activities.Delete(ctx, groupID, activityID); err != nil {
			return err
		}
		var err error
		rev, err = rs.Groups.BumpRevision(ctx, groupID, nil)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("service.ScheduleService.Delete: %w", err)
	}
	return rev, nil
}

// SaveBatch replaces a group's whole calendar. revision must be the
// revision the caller last read; a stale revision fails with
// domain.ErrConcurrency and nothing is written. Conflicts are reported but
// do not block the save.
func (s *ScheduleService) SaveBatch(ctx context.Context, groupID uuid.UUID, revision int64, acts []domain.Activity) (SaveResult, error) {
	batch := make([]domain.Activity, len(acts))
	for i, a := range acts {
		a.GroupID = groupID
		a.Date = domain.DateOnly(a.Date)
		if n, ok := timeslot.Normalize(a.StartTime); ok {
			a.StartTime = n
		}
		if n, ok := timeslot.Normalize(a.EndTime); ok {
			a.EndTime = n
		}
		batch[i] = a
	}

	var out SaveResult
	err := s.tx.InTx(ctx, func(rs repo.Set) error {
		g, err := rs.Groups.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		if err := grid.Validate(g, batch); err != nil {
			return err
		}
		// The guarded bump doubles as the row lock for the rest of the save.
		rev, err := rs.Groups.BumpRevision(ctx, groupID, &revision)
		if err != nil {
			return err
		}
		reports, err := batchConflicts(ctx, rs, g, batch)
		if err != nil {
			return err
		}
		if _, err := rs.Activities.DeleteByGroup(ctx, groupID); err != nil {
			return err
		}
		if _, err := rs.Activities.InsertMany(ctx, batch); err != nil {
			return err
		}
		out = SaveResult{Revision: rev, Saved: len(batch), Conflicts: reports}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrConcurrency) {
			s.log.WarnContext(ctx, "stale batch save rejected", "group_id", groupID, "revision", revision)
		}
		return SaveResult{}, fmt.Errorf("service.ScheduleService.SaveBatch: %w", err)
	}
	s.metrics.ConflictReports(metrics.PathInteractive, out.Conflicts)
	return out, nil
}

// Overlaps returns the clusters of mutually overlapping activities of a group.
func (s *ScheduleService) Overlaps(ctx context.Context, groupID uuid.UUID) ([]grid.Cluster, error) {
	acts, err := s.List(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("service.ScheduleService.Overlaps: %w", err)
	}
	return grid.Overlaps(acts), nil
}

// Check evaluates a hypothetical placement without saving anything.
func (s *ScheduleService) Check(ctx context.Context, req CheckRequest) ([]domain.Conflict, error) {
	start, okS := timeslot.ToMinutes(req.StartTime)
	end, okE := timeslot.ToMinutes(req.EndTime)
	if !okS || !okE || end <= start {
		return nil, fmt.Errorf("service.ScheduleService.Check: %w: need start_time before end_time in HH:mm", domain.ErrValidation)
	}
	g, err := s.set.Groups.GetByID(ctx, req.GroupID)
	if err != nil {
		return nil, fmt.Errorf("service.ScheduleService.Check: %w", err)
	}
	a := domain.Activity{
		GroupID:    req.GroupID,
		Date:       domain.DateOnly(req.Date),
		StartTime:  timeslot.FormatMinutes(start),
		EndTime:    timeslot.FormatMinutes(end),
		LocationID: req.LocationID,
	}
	if req.ActivityID != nil {
		a.ID = *req.ActivityID
	}
	cs, err := placementConflicts(ctx, s.set, g, a)
	if err != nil {
		return nil, fmt.Errorf("service.ScheduleService.Check: %w", err)
	}
	return cs, nil
}

func (s *ScheduleService) lockBoard(ctx context.Context, rs repo.Set, groupID uuid.UUID) (grid.Board, error) {
	if err := rs.Groups.LockForUpdate(ctx, []uuid.UUID{groupID}); err != nil {
		return grid.Board{}, err
	}
	g, err := rs.Groups.GetByID(ctx, groupID)
	if err != nil {
		return grid.Board{}, err
	}
	acts, err := rs.Activities.ListByGroup(ctx, groupID)
	if err != nil {
		return grid.Board{}, err
	}
	return grid.NewBoard(g, acts), nil
}

func (s *ScheduleService) commit(ctx context.Context, rs repo.Set, g domain.Group, a domain.Activity,
	save func(context.Context, domain.Activity) (domain.Activity, error)) (Mutation, error) {
	cs, err := placementConflicts(ctx, rs, g, a)
	if err != nil {
		return Mutation{}, err
	}
	saved, err := save(ctx, a)
	if err != nil {
		return Mutation{}, err
	}
	rev, err := rs.Groups.BumpRevision(ctx, g.ID, nil)
	if err != nil {
		return Mutation{}, err
	}
	s.metrics.Conflicts(metrics.PathInteractive, cs)
	if cs == nil {
		cs = []domain.Conflict{}
	}
	return Mutation{Activity: saved, Conflicts: cs, Revision: rev}, nil
}

// placementConflicts evaluates a against every activity stored on its date.
func placementConflicts(ctx context.Context, rs repo.Set, g domain.Group, a domain.Activity) ([]domain.Conflict, error) {
	sameDay, err := rs.Activities.ListByDateRange(ctx, a.Date, a.Date)
	if err != nil {
		return nil, err
	}
	cat, err := loadCatalog(ctx, rs, g, sameDay, a.LocationID)
	if err != nil {
		return nil, err
	}
	return conflict.Evaluate(conflict.FromActivity(a), sameDay, cat), nil
}

// batchConflicts evaluates every activity of a replacement calendar against
// its siblings and the other groups' stored activities on the same dates.
func batchConflicts(ctx context.Context, rs repo.Set, g domain.Group, batch []domain.Activity) ([]domain.ConflictReport, error) {
	reports := []domain.ConflictReport{}
	if len(batch) == 0 {
		return reports, nil
	}
	first := slices.MinFunc(batch, func(a, b domain.Activity) int { return a.Date.Compare(b.Date) }).Date
	last := slices.MaxFunc(batch, func(a, b domain.Activity) int { return a.Date.Compare(b.Date) }).Date
	stored, err := rs.Activities.ListByDateRange(ctx, first, last)
	if err != nil {
		return nil, err
	}
	others := lo.Reject(stored, func(a domain.Activity, _ int) bool { return a.GroupID == g.ID })

	locations, err := rs.Locations.List(ctx)
	if err != nil {
		return nil, err
	}
	cat, err := loadCatalog(ctx, rs, g, others, nil)
	if err != nil {
		return nil, err
	}
	cat.Locations = lo.KeyBy(locations, func(l domain.Location) uuid.UUID { return l.ID })

	for i, a := range batch {
		if cs := conflict.Evaluate(conflict.FromActivity(a), slices.Concat(others, batch[:i], batch[i+1:]), cat); len(cs) > 0 {
			reports = append(reports, conflict.Report(i, a, cs))
		}
	}
	return reports, nil
}

// loadCatalog collects the groups owning acts plus g, and the location at
// locationID when one is given.
func loadCatalog(ctx context.Context, rs repo.Set, g domain.Group, acts []domain.Activity, locationID *uuid.UUID) (conflict.Catalog, error) {
	ids := lo.Uniq(lo.Map(acts, func(a domain.Activity, _ int) uuid.UUID { return a.GroupID }))
	groups, err := rs.Groups.ListByIDs(ctx, ids)
	if err != nil {
		return conflict.Catalog{}, err
	}
	var locations []domain.Location
	if locationID != nil {
		l, err := rs.Locations.GetByID(ctx, *locationID)
		switch {
		case err == nil:
			locations = append(locations, l)
		case !errors.Is(err, domain.ErrNotFound):
			return conflict.Catalog{}, err
		}
	}
	cat := conflict.NewCatalog(groups, locations)
	cat.Groups[g.ID] = g
	return cat, nil
}
