package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/tripplanner/internal/domain"
)

// GroupRepo defines the persistence operations for Groups.
// The service layer depends on this interface, not the concrete Postgres implementation,
// which allows the service to be unit-tested with a mock.
type GroupRepo interface {
	// Create inserts a new group and returns the persisted record.
	Create(ctx context.Context, g domain.Group) (domain.Group, error)

	// GetByID retrieves a single group with its linked plan template.
	// Returns domain.ErrNotFound if no group with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Group, error)

	// List returns all groups ordered by start_date, then name.
	List(ctx context.Context) ([]domain.Group, error)

	// ListPaged returns one page of groups in List order and the total count.
	ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Group, int64, error)

	// ListByIDs returns the groups with the given ids. Unknown ids are
	// silently absent from the result.
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Group, error)

	// UpdateMustVisit overwrites the three must-visit sources of a group.
	// Returns domain.ErrNotFound if no group with that ID exists.
	UpdateMustVisit(ctx context.Context, g domain.Group) (domain.Group, error)

	// BumpRevision increments the schedule revision and returns the new value.
	// When expected is non-nil the bump only succeeds if the stored revision
	// equals *expected; otherwise domain.ErrConcurrency is returned.
	BumpRevision(ctx context.Context, id uuid.UUID, expected *int64) (int64, error)

	// LockForUpdate takes row locks on the given groups until the surrounding
	// transaction ends. Locks are taken in id order.
	LockForUpdate(ctx context.Context, ids []uuid.UUID) error
}

// pgGroupRepo is the Postgres implementation of GroupRepo.
type pgGroupRepo struct {
	db db
}

// NewGroupRepo constructs a GroupRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewGroupRepo(db db) GroupRepo {
	return &pgGroupRepo{db: db}
}

const groupColumns = `id, name, start_date, end_date, headcount, group_type, revision,
		synced_locations, plan_template_id, manual_location_ids, created_at, updated_at`

// Create inserts a new group row and returns the full persisted record.
func (r *pgGroupRepo) Create(ctx context.Context, g domain.Group) (domain.Group, error) {
	q := `
		INSERT INTO groups (name, start_date, end_date, headcount, group_type,
		                    synced_locations, plan_template_id, manual_location_ids)
		VALUES (@name, @start_date, @end_date, @headcount, @group_type,
		        @synced, @template_id, @manual)
		RETURNING ` + groupColumns

	row := r.db.QueryRow(ctx, q, mustVisitArgs(g, pgx.NamedArgs{
		"name":       g.Name,
		"start_date": g.StartDate,
		"end_date":   g.EndDate,
		"headcount":  g.Headcount,
		"group_type": string(g.Type),
	}))
	result, err := r.scanWithTemplate(ctx, row)
	if err != nil {
		return domain.Group{}, fmt.Errorf("repo.GroupRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves a group by primary key.
func (r *pgGroupRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Group, error) {
	q := `SELECT ` + groupColumns + ` FROM groups WHERE id = @id`

	result, err := r.scanWithTemplate(ctx, r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Group{}, fmt.Errorf("repo.GroupRepo.GetByID: %w", err)
	}
	return result, nil
}

// List returns all groups ordered by trip start.
func (r *pgGroupRepo) List(ctx context.Context) ([]domain.Group, error) {
	q := `SELECT ` + groupColumns + ` FROM groups ORDER BY start_date, name`

	groups, err := r.query(ctx, q, nil)
	if err != nil {
		return nil, fmt.Errorf("repo.GroupRepo.List: %w", err)
	}
	return groups, nil
}

// ListPaged returns one page of groups ordered by trip start.
func (r *pgGroupRepo) ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Group, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM groups`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.GroupRepo.ListPaged: %w", err)
	}
	q := `SELECT ` + groupColumns + ` FROM groups ORDER BY start_date, name LIMIT @limit OFFSET @offset`

	groups, err := r.query(ctx, q, pgx.NamedArgs{"limit": p.Limit, "offset": p.Offset()})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.GroupRepo.ListPaged: %w", err)
	}
	return groups, total, nil
}

// ListByIDs returns the requested groups ordered by trip start.
func (r *pgGroupRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Group, error) {
	q := `SELECT ` + groupColumns + ` FROM groups WHERE id = ANY(@ids) ORDER BY start_date, name`

	groups, err := r.query(ctx, q, pgx.NamedArgs{"ids": uuidArray(ids)})
	if err != nil {
		return nil, fmt.Errorf("repo.GroupRepo.ListByIDs: %w", err)
	}
	return groups, nil
}

// UpdateMustVisit overwrites the must-visit sources of a group.
func (r *pgGroupRepo) UpdateMustVisit(ctx context.Context, g domain.Group) (domain.Group, error) {
	q := `
		UPDATE groups
		SET synced_locations    = @synced,
		    plan_template_id    = @template_id,
		    manual_location_ids = @manual,
		    updated_at          = now()
		WHERE id = @id
		RETURNING ` + groupColumns

	row := r.db.QueryRow(ctx, q, mustVisitArgs(g, pgx.NamedArgs{"id": g.ID}))
	result, err := r.scanWithTemplate(ctx, row)
	if err != nil {
		return domain.Group{}, fmt.Errorf("repo.GroupRepo.UpdateMustVisit: %w", err)
	}
	return result, nil
}

// BumpRevision increments the revision, optionally guarded by expected.
func (r *pgGroupRepo) BumpRevision(ctx context.Context, id uuid.UUID, expected *int64) (int64, error) {
	const q = `
		UPDATE groups
		SET revision   = revision + 1,
		    updated_at = now()
		WHERE id = @id
		  AND (@expected::bigint IS NULL OR revision = @expected::bigint)
		RETURNING revision`

	var rev int64
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "expected": expected}).Scan(&rev)
	if err == nil {
		return rev, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("repo.GroupRepo.BumpRevision: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM groups WHERE id = @id)`, pgx.NamedArgs{"id": id}).Scan(&exists); err != nil {
		return 0, fmt.Errorf("repo.GroupRepo.BumpRevision: %w", err)
	}
	if !exists {
		return 0, fmt.Errorf("repo.GroupRepo.BumpRevision: %w", domain.ErrNotFound)
	}
	return 0, fmt.Errorf("repo.GroupRepo.BumpRevision: %w: revision %d is no longer current", domain.ErrConcurrency, *expected)
}

// LockForUpdate locks the given group rows.
func (r *pgGroupRepo) LockForUpdate(ctx context.Context, ids []uuid.UUID) error {
	const q = `SELECT id FROM groups WHERE id = ANY(@ids) ORDER BY id FOR UPDATE`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"ids": uuidArray(ids)})
	if err != nil {
		return fmt.Errorf("repo.GroupRepo.LockForUpdate: %w", err)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("repo.GroupRepo.LockForUpdate: %w", err)
	}
	return nil
}

func (r *pgGroupRepo) query(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Group, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if args == nil {
		rows, err = r.db.Query(ctx, q)
	} else {
		rows, err = r.db.Query(ctx, q, args)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []domain.Group{}
	var templateIDs []*uuid.UUID
	for rows.Next() {
		g, tid, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		groups = append(groups, g)
		templateIDs = append(templateIDs, tid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	// Templates are loaded after the cursor is closed; a pgx connection
	// cannot run a second query while rows are still being read.
	rows.Close()
	loaded := make(map[uuid.UUID]*domain.PlanTemplate)
	for i, tid := range templateIDs {
		if tid == nil {
			continue
		}
		t, ok := loaded[*tid]
		if !ok {
			got, err := loadPlanTemplate(ctx, r.db, *tid)
			if err != nil {
				return nil, err
			}
			t = &got
			loaded[*tid] = t
		}
		groups[i].Template = t
	}
	return groups, nil
}

func (r *pgGroupRepo) scanWithTemplate(ctx context.Context, row pgx.Row) (domain.Group, error) {
	g, tid, err := scanGroup(row)
	if err != nil {
		return domain.Group{}, err
	}
	if tid != nil {
		t, err := loadPlanTemplate(ctx, r.db, *tid)
		if err != nil {
			return domain.Group{}, err
		}
		g.Template = &t
	}
	return g, nil
}

func mustVisitArgs(g domain.Group, args pgx.NamedArgs) pgx.NamedArgs {
	synced := g.Synced
	if synced == nil {
		synced = []domain.SyncedLocation{}
	}
	var templateID *uuid.UUID
	if g.Template != nil {
		id := g.Template.ID
		templateID = &id
	}
	args["synced"] = synced
	args["template_id"] = templateID
	args["manual"] = uuidArray(g.ManualIDs)
	return args
}

// scanGroup maps a single database row into a domain.Group and returns the
// linked template id, if any, for the caller to resolve.
func scanGroup(s scanner) (domain.Group, *uuid.UUID, error) {
	var (
		g          domain.Group
		id         pgtype.UUID
		start, end pgtype.Date
		groupType  string
		templateID pgtype.UUID
		manual     []pgtype.UUID
	)

	err := s.Scan(&id, &g.Name, &start, &end, &g.Headcount, &groupType, &g.Revision,
		&g.Synced, &templateID, &manual, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Group{}, nil, domain.ErrNotFound
		}
		return domain.Group{}, nil, err
	}

	g.ID = uuid.UUID(id.Bytes)
	g.StartDate = start.Time
	g.EndDate = end.Time
	g.Type = domain.GroupType(groupType)
	g.ManualIDs = uuidSlice(manual)
	if templateID.Valid {
		tid := uuid.UUID(templateID.Bytes)
		return g, &tid, nil
	}
	return g, nil, nil
}

func uuidArray(ids []uuid.UUID) []pgtype.UUID {
	out := make([]pgtype.UUID, len(ids))
	for i, id := range ids {
		out[i] = pgtype.UUID{Bytes: id, Valid: true}
	}
	return out
}

func uuidSlice(ids []pgtype.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id.Valid {
			out = append(out, uuid.UUID(id.Bytes))
		}
	}
	return out
}
