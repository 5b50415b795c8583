package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/patrickmn/go-cache"
	"github.com/samber/lo"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/metrics"
	"github.com/pkordes/tripplanner/internal/repo"
	"github.com/pkordes/tripplanner/internal/transfer"
)

// Import outcomes recorded in metrics.
const (
	outcomeValidated = "validated"
	outcomeApplied   = "applied"
	outcomeBlocked   = "blocked"
	outcomeRejected  = "rejected"
	outcomeRestored  = "restored"
	outcomeRefused   = "refused"
)

// snapshotKeyPrefix namespaces the token → validation key entries that live
// next to the attempts in the cache.
const snapshotKeyPrefix = "snapshot:"

// TransferService exchanges schedules with the batch planner.
//
// Import attempts are held in a TTL cache keyed by validation key: a dry run
// stores a VALIDATED attempt, an apply consumes it, a rollback closes it.
// The cache is process-local; a restart means imports must be revalidated.
type TransferService struct {
	tx       repo.TxRunner
	set      repo.Set
	attempts *cache.Cache
	metrics  *metrics.Recorder
	log      *slog.Logger

	// mu guards attempt transitions and applying. It is never held across a
	// transaction; imports on disjoint groups are isolated by row locks.
	mu sync.Mutex
	// applying holds validation keys whose apply transaction is running.
	applying map[string]struct{}
}

// NewTransferService constructs a TransferService.
func NewTransferService(tx repo.TxRunner, set repo.Set, attempts *cache.Cache, m *metrics.Recorder, log *slog.Logger) *TransferService {
	return &TransferService{tx: tx, set: set, attempts: attempts, metrics: m, log: log, applying: map[string]struct{}{}}
}

// ImportRequest is one call to Import. ValidationKey is the key returned by
// the preceding dry run; when set on an apply it must match the recomputed key.
type ImportRequest struct {
	Payload       transfer.Payload
	Options       transfer.Options
	ValidationKey string
}

// ImportResult reports a dry run or an apply.
type ImportResult struct {
	DryRun        bool                    `json:"dryRun"`
	ValidationKey string                  `json:"validationKey"`
	Summary       transfer.Summary        `json:"summary"`
	Conflicts     []domain.ConflictReport `json:"conflicts"`
	SnapshotToken string                  `json:"snapshotToken,omitempty"`
	AppliedRange  *transfer.Range         `json:"appliedRange,omitempty"`
	Attempt       transfer.AttemptState   `json:"attempt"`
}

// RollbackResult reports a restored snapshot.
type RollbackResult struct {
	SnapshotToken string         `json:"snapshotToken"`
	GroupIDs      []uuid.UUID    `json:"groupIds"`
	Range         transfer.Range `json:"range"`
	Removed       int64          `json:"removed"`
	Restored      int64          `json:"restored"`
}

// Export renders the activities of groupIDs dated inside [start, end].
// Groups come back in request order.
func (s *TransferService) Export(ctx context.Context, groupIDs []uuid.UUID, start, end time.Time) (transfer.Payload, error) {
	groupIDs = lo.Uniq(groupIDs)
	if len(groupIDs) == 0 {
		return transfer.Payload{}, fmt.Errorf("service.TransferService.Export: %w: at least one group id is required", domain.ErrValidation)
	}
	found, err := s.set.Groups.ListByIDs(ctx, groupIDs)
	if err != nil {
		return transfer.Payload{}, fmt.Errorf("service.TransferService.Export: %w", err)
	}
	byID := lo.KeyBy(found, func(g domain.Group) uuid.UUID { return g.ID })
	groups := make([]domain.Group, 0, len(groupIDs))
	for _, id := range groupIDs {
		g, ok := byID[id]
		if !ok {
			return transfer.Payload{}, fmt.Errorf("service.TransferService.Export: %w: group %s", domain.ErrNotFound, id)
		}
		groups = append(groups, g)
	}

	acts, err := s.set.Activities.ListWindow(ctx, groupIDs, domain.DateOnly(start), domain.DateOnly(end))
	if err != nil {
		return transfer.Payload{}, fmt.Errorf("service.TransferService.Export: %w", err)
	}
	p, err := transfer.Export(groups, acts, domain.DateOnly(start), domain.DateOnly(end))
	if err != nil {
		return transfer.Payload{}, fmt.Errorf("service.TransferService.Export: %w", err)
	}
	s.log.DebugContext(ctx, "planning export", "groups", len(groups), "assignments", len(p.Assignments))
	return p, nil
}

// Import validates a payload and, unless Options.DryRun is set, applies it.
// An apply needs a live validation for the same payload and options. When
// the plan has conflicts and SkipConflicts is off the apply fails with a
// *domain.ConflictError and writes nothing.
func (s *TransferService) Import(ctx context.Context, req ImportRequest) (ImportResult, error) {
	var (
		res ImportResult
		err error
	)
	if req.Options.DryRun {
		res, err = s.validate(ctx, req)
	} else {
		res, err = s.apply(ctx, req)
	}
	if err != nil {
		var ce *domain.ConflictError
		if errors.As(err, &ce) {
			s.metrics.Import(outcomeBlocked, 0)
			s.metrics.ConflictReports(metrics.PathImport, ce.Reports)
		} else {
			s.metrics.Import(outcomeRejected, 0)
		}
		return ImportResult{}, fmt.Errorf("service.TransferService.Import: %w", err)
	}
	return res, nil
}

func (s *TransferService) validate(ctx context.Context, req ImportRequest) (ImportResult, error) {
	st, err := loadState(ctx, s.set, req.Payload, req.Options)
	if err != nil {
		return ImportResult{}, err
	}
	plan, err := transfer.Build(req.Payload, req.Options, st)
	if err != nil {
		return ImportResult{}, err
	}

	// A dry run always opens a fresh attempt, even for a payload that was
	// applied before.
	attempt, err := transfer.Attempt{}.Validate(plan.Key)
	if err != nil {
		return ImportResult{}, err
	}
	s.mu.Lock()
	s.attempts.SetDefault(plan.Key, attempt)
	s.mu.Unlock()

	s.metrics.Import(outcomeValidated, 0)
	s.metrics.ConflictReports(metrics.PathImport, plan.Reports)
	s.log.InfoContext(ctx, "planning import validated",
		"key", plan.Key, "groups", plan.Summary.Groups, "assignments", plan.Summary.Assignments, "conflicts", plan.Summary.Conflicts)

	return ImportResult{
		DryRun:        true,
		ValidationKey: plan.Key,
		Summary:       plan.Summary,
		Conflicts:     reportsOrEmpty(plan.Reports),
		Attempt:       attempt.State,
	}, nil
}

func (s *TransferService) apply(ctx context.Context, req ImportRequest) (ImportResult, error) {
	key := transfer.Key(req.Payload, req.Options)

	token := ulid.Make().String()
	next, err := s.beginApply(key, req.ValidationKey, token)
	if err != nil {
		return ImportResult{}, err
	}

	var plan transfer.Plan
	err = s.tx.InTx(ctx, func(rs repo.Set) error {
		if err := rs.Groups.LockForUpdate(ctx, transfer.AffectedGroups(req.Payload, req.Options)); err != nil {
			return err
		}
		st, err := loadState(ctx, rs, req.Payload, req.Options)
		if err != nil {
			return err
		}
		plan, err = transfer.Build(req.Payload, req.Options, st)
		if err != nil {
			return err
		}
		if plan.Blocked {
			return &domain.ConflictError{Reports: plan.Reports}
		}

		captured, err := rs.Activities.ListWindow(ctx, plan.GroupIDs, plan.Window.Start, plan.Window.End)
		if err != nil {
			return err
		}
		if err := rs.Snapshots.Create(ctx, domain.Snapshot{
			Token:      token,
			GroupIDs:   plan.GroupIDs,
			StartDate:  plan.Window.Start,
			EndDate:    plan.Window.End,
			Activities: captured,
			Status:     domain.SnapshotApplied,
		}); err != nil {
			return err
		}
		if req.Options.ReplaceExisting {
			if _, err := rs.Activities.DeleteWindow(ctx, plan.GroupIDs, plan.Window.Start, plan.Window.End); err != nil {
				return err
			}
		}
		if _, err := rs.Activities.InsertMany(ctx, plan.Accepted); err != nil {
			return err
		}
		return bumpRevisions(ctx, rs, plan.GroupIDs)
	})
	s.finishApply(key, token, next, err == nil)
	if err != nil {
		return ImportResult{}, err
	}

	s.metrics.Import(outcomeApplied, plan.Summary.Inserted)
	s.metrics.ConflictReports(metrics.PathImport, plan.Reports)
	s.log.InfoContext(ctx, "planning import applied",
		"snapshot", token, "inserted", plan.Summary.Inserted, "skipped", plan.Summary.Skipped, "replaced", len(plan.Replaced))

	r := plan.Window.Range()
	return ImportResult{
		ValidationKey: key,
		Summary:       plan.Summary,
		Conflicts:     reportsOrEmpty(plan.Reports),
		SnapshotToken: token,
		AppliedRange:  &r,
		Attempt:       next.State,
	}, nil
}

// Rollback restores the window captured by the snapshot token. Only the
// latest applied snapshot over its groups and dates can be rolled back.
func (s *TransferService) Rollback(ctx context.Context, token string) (RollbackResult, error) {
	if _, err := ulid.ParseStrict(token); err != nil {
		return RollbackResult{}, fmt.Errorf("service.TransferService.Rollback: %w: malformed snapshot token", domain.ErrValidation)
	}

	var out RollbackResult
	err := s.tx.InTx(ctx, func(rs repo.Set) error {
		snap, err := rs.Snapshots.GetForUpdate(ctx, token)
		if err != nil {
			return err
		}
		if snap.Status != domain.SnapshotApplied {
			return fmt.Errorf("%w: snapshot %s was already rolled back", domain.ErrConcurrency, token)
		}
		later, err := rs.Snapshots.SupersededBy(ctx, snap)
		if err != nil {
			return err
		}
		if later != "" {
			return fmt.Errorf("%w: snapshot %s is superseded by %s", domain.ErrConcurrency, token, later)
		}

		if err := rs.Groups.LockForUpdate(ctx, snap.GroupIDs); err != nil {
			return err
		}
		removed, err := rs.Activities.DeleteWindow(ctx, snap.GroupIDs, snap.StartDate, snap.EndDate)
		if err != nil {
			return err
		}
		restored, err := rs.Activities.InsertMany(ctx, snap.Activities)
		if err != nil {
			return err
		}
		if err := rs.Snapshots.MarkRolledBack(ctx, token); err != nil {
			return err
		}
		if err := bumpRevisions(ctx, rs, snap.GroupIDs); err != nil {
			return err
		}
		out = RollbackResult{
			SnapshotToken: token,
			GroupIDs:      snap.GroupIDs,
			Range:         transfer.Window{Start: snap.StartDate, End: snap.EndDate}.Range(),
			Removed:       removed,
			Restored:      restored,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrConcurrency) {
			s.metrics.Rollback(outcomeRefused)
		}
		return RollbackResult{}, fmt.Errorf("service.TransferService.Rollback: %w", err)
	}

	s.mu.Lock()
	if key, ok := s.attempts.Get(snapshotKeyPrefix + token); ok {
		if a, found := s.attempt(key.(string)); found {
			if closed, err := a.RollBack(); err == nil {
				s.attempts.SetDefault(key.(string), closed)
			}
		}
	}
	s.mu.Unlock()

	s.metrics.Rollback(outcomeRestored)
	s.log.InfoContext(ctx, "planning import rolled back", "snapshot", token, "removed", out.Removed, "restored", out.Restored)
	return out, nil
}

// beginApply checks that key holds a validated attempt that no other apply
// is consuming and claims it. The returned attempt is stored by finishApply
// once the transaction commits.
func (s *TransferService) beginApply(key, validationKey, token string) (transfer.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if validationKey != "" && validationKey != key {
		// The payload or options changed since the dry run.
		if prev, ok := s.attempt(validationKey); ok {
			s.attempts.SetDefault(validationKey, prev.Edit())
		}
		return transfer.Attempt{}, transfer.ErrNotValidated
	}
	if _, busy := s.applying[key]; busy {
		return transfer.Attempt{}, transfer.ErrAttemptClosed
	}
	current, _ := s.attempt(key)
	next, err := current.Apply(key, token)
	if err != nil {
		return transfer.Attempt{}, err
	}
	s.applying[key] = struct{}{}
	return next, nil
}

// finishApply releases the claim on key and, when the apply committed,
// records the applied attempt. A failed apply leaves the attempt as it was.
func (s *TransferService) finishApply(key, token string, next transfer.Attempt, committed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.applying, key)
	if committed {
		s.attempts.SetDefault(key, next)
		s.attempts.SetDefault(snapshotKeyPrefix+token, key)
	}
}

// Attempt returns the lifecycle state of the import with the given
// validation key. Unknown or expired keys are UNVALIDATED.
func (s *TransferService) Attempt(key string) transfer.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, _ := s.attempt(key)
	return a
}

func (s *TransferService) attempt(key string) (transfer.Attempt, bool) {
	v, ok := s.attempts.Get(key)
	if !ok {
		return transfer.Attempt{State: transfer.Unvalidated}, false
	}
	a, ok := v.(transfer.Attempt)
	if !ok {
		return transfer.Attempt{State: transfer.Unvalidated}, false
	}
	return a, true
}

// loadState reads everything an import is planned against: every activity
// on the window's dates across all groups, the groups involved, and all
// locations.
func loadState(ctx context.Context, rs repo.Set, p transfer.Payload, o transfer.Options) (transfer.State, error) {
	if err := transfer.CheckStructure(p); err != nil {
		return transfer.State{}, err
	}
	window, err := transfer.ResolveWindow(p, o)
	if err != nil {
		return transfer.State{}, err
	}
	acts, err := rs.Activities.ListByDateRange(ctx, window.Start, window.End)
	if err != nil {
		return transfer.State{}, err
	}
	ids := lo.Uniq(slices.Concat(
		transfer.AffectedGroups(p, o),
		lo.Map(acts, func(a domain.Activity, _ int) uuid.UUID { return a.GroupID }),
	))
	groups, err := rs.Groups.ListByIDs(ctx, ids)
	if err != nil {
		return transfer.State{}, err
	}
	locations, err := rs.Locations.List(ctx)
	if err != nil {
		return transfer.State{}, err
	}
	return transfer.State{Groups: groups, Locations: locations, Activities: acts}, nil
}

func bumpRevisions(ctx context.Context, rs repo.Set, ids []uuid.UUID) error {
	for _, id := range ids {
		if _, err := rs.Groups.BumpRevision(ctx, id, nil); err != nil {
			return err
		}
	}
	return nil
}

func reportsOrEmpty(rs []domain.ConflictReport) []domain.ConflictReport {
	if rs == nil {
		return []domain.ConflictReport{}
	}
	return rs
}
