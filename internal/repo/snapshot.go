package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/tripplanner/internal/domain"
)

// SnapshotRepo defines the persistence operations for import snapshots.
type SnapshotRepo interface {
	// Create stores a snapshot. The token must already be set.
	Create(ctx context.Context, s domain.Snapshot) error

	// GetForUpdate loads a snapshot and locks its row until the surrounding
	// transaction ends. Returns domain.ErrNotFound for an unknown token.
	GetForUpdate(ctx context.Context, token string) (domain.Snapshot, error)

	// SupersededBy returns the token of the earliest applied snapshot taken
	// after s that overlaps its groups and date window, or "" if none exists.
	SupersededBy(ctx context.Context, s domain.Snapshot) (string, error)

	// MarkRolledBack flips an applied snapshot to rolled_back.
	// Returns domain.ErrConcurrency if it was not in the applied state.
	MarkRolledBack(ctx context.Context, token string) error
}

type pgSnapshotRepo struct {
	db db
}

// NewSnapshotRepo constructs a SnapshotRepo backed by the provided db connection.
func NewSnapshotRepo(db db) SnapshotRepo {
	return &pgSnapshotRepo{db: db}
}

func (r *pgSnapshotRepo) Create(ctx context.Context, s domain.Snapshot) error {
	const q = `
		INSERT INTO planning_snapshots (token, group_ids, start_date, end_date, activities, status)
		VALUES (@token, @group_ids, @start_date, @end_date, @activities, @status)`

	activities := s.Activities
	if activities == nil {
		activities = []domain.Activity{}
	}
	status := s.Status
	if status == "" {
		status = domain.SnapshotApplied
	}
	_, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"token":      s.Token,
		"group_ids":  uuidArray(s.GroupIDs),
		"start_date": dateArg(s.StartDate),
		"end_date":   dateArg(s.EndDate),
		"activities": activities,
		"status":     string(status),
	})
	if err != nil {
		return fmt.Errorf("repo.SnapshotRepo.Create: %w", mapWriteErr(err))
	}
	return nil
}

func (r *pgSnapshotRepo) GetForUpdate(ctx context.Context, token string) (domain.Snapshot, error) {
	const q = `
		SELECT token, group_ids, start_date, end_date, activities, status, created_at
		FROM planning_snapshots
		WHERE token = @token
		FOR UPDATE`

	var (
		s          domain.Snapshot
		groupIDs   []pgtype.UUID
		start, end pgtype.Date
		status     string
	)
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"token": token}).
		Scan(&s.Token, &groupIDs, &start, &end, &s.Activities, &status, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Snapshot{}, fmt.Errorf("repo.SnapshotRepo.GetForUpdate: %w", domain.ErrNotFound)
		}
		return domain.Snapshot{}, fmt.Errorf("repo.SnapshotRepo.GetForUpdate: %w", err)
	}
	s.GroupIDs = uuidSlice(groupIDs)
	s.StartDate = start.Time
	s.EndDate = end.Time
	s.Status = domain.SnapshotStatus(status)
	return s, nil
}

// SupersededBy relies on tokens being ULIDs: a later token sorts after an
// earlier one.
func (r *pgSnapshotRepo) SupersededBy(ctx context.Context, s domain.Snapshot) (string, error) {
	const q = `
		SELECT token
		FROM planning_snapshots
		WHERE token > @token
		  AND status = 'applied'
		  AND group_ids && @group_ids
		  AND start_date <= @end_date
		  AND end_date >= @start_date
		ORDER BY token
		LIMIT 1`

	var token string
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"token":      s.Token,
		"group_ids":  uuidArray(s.GroupIDs),
		"start_date": dateArg(s.StartDate),
		"end_date":   dateArg(s.EndDate),
	}).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("repo.SnapshotRepo.SupersededBy: %w", err)
	}
	return token, nil
}

func (r *pgSnapshotRepo) MarkRolledBack(ctx context.Context, token string) error {
	const q = `
		UPDATE planning_snapshots
		SET status = 'rolled_back'
		WHERE token = @token AND status = 'applied'`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"token": token})
	if err != nil {
		return fmt.Errorf("repo.SnapshotRepo.MarkRolledBack: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.SnapshotRepo.MarkRolledBack: %w: snapshot %s is not applied", domain.ErrConcurrency, token)
	}
	return nil
}
