package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/tripplanner/internal/domain"
)

// ActivityRepo defines the persistence operations for calendar Activities.
// All single-row operations are scoped by groupID to enforce ownership.
type ActivityRepo interface {
	// Create inserts a new activity and returns the persisted record.
	// A second placement of the same plan or recurring resource for a group
	// returns domain.ErrConflict.
	Create(ctx context.Context, a domain.Activity) (domain.Activity, error)

	// GetByID retrieves one activity of a group.
	// Returns domain.ErrNotFound if no such activity exists under that group.
	GetByID(ctx context.Context, groupID, id uuid.UUID) (domain.Activity, error)

	// Update overwrites the mutable fields of an activity.
	// Returns domain.ErrNotFound if no such activity exists under that group.
	Update(ctx context.Context, a domain.Activity) (domain.Activity, error)

	// Delete removes one activity of a group.
	// Returns domain.ErrNotFound if no such activity exists under that group.
	Delete(ctx context.Context, groupID, id uuid.UUID) error

	// ListByGroup returns a group's activities ordered by date and start time.
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Activity, error)

	// ListByDateRange returns the activities of every group dated inside
	// [start, end], ordered by date and start time.
	ListByDateRange(ctx context.Context, start, end time.Time) ([]domain.Activity, error)

	// ListWindow returns the activities of the given groups dated inside [start, end].
	ListWindow(ctx context.Context, groupIDs []uuid.UUID, start, end time.Time) ([]domain.Activity, error)

	// DeleteWindow removes the activities of the given groups dated inside
	// [start, end] and returns how many rows were deleted.
	DeleteWindow(ctx context.Context, groupIDs []uuid.UUID, start, end time.Time) (int64, error)

	// DeleteByGroup removes every activity of a group.
	DeleteByGroup(ctx context.Context, groupID uuid.UUID) (int64, error)

	// InsertMany bulk-inserts activities. Non-nil ids are kept, so a
	// snapshot can be restored with its original identities.
	InsertMany(ctx context.Context, activities []domain.Activity) (int64, error)
}

type pgActivityRepo struct {
	db db
}

// NewActivityRepo constructs an ActivityRepo backed by the provided db connection.
func NewActivityRepo(db db) ActivityRepo {
	return &pgActivityRepo{db: db}
}

const activityColumns = `id, group_id, activity_date, start_time, end_time, activity_type, resource_id,
		location_id, title, location_name, description, color, plan_item_id, is_from_resource,
		created_at, updated_at`

func (r *pgActivityRepo) Create(ctx context.Context, a domain.Activity) (domain.Activity, error) {
	const q = `
		INSERT INTO activities (group_id, activity_date, start_time, end_time, activity_type,
		                        resource_id, location_id, title, location_name, description,
		                        color, plan_item_id, is_from_resource)
		VALUES (@group_id, @date, @start_time, @end_time, @type,
		        @resource_id, @location_id, @title, @location_name, @description,
		        @color, @plan_item_id, @is_from_resource)
		RETURNING ` + activityColumns

	args, err := activityArgs(a)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("repo.ActivityRepo.Create: %w", err)
	}
	result, err := scanActivity(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Activity{}, fmt.Errorf("repo.ActivityRepo.Create: %w", mapWriteErr(err))
	}
	return result, nil
}

func (r *pgActivityRepo) GetByID(ctx context.Context, groupID, id uuid.UUID) (domain.Activity, error) {
	const q = `SELECT ` + activityColumns + ` FROM activities WHERE id = @id AND group_id = @group_id`

	result, err := scanActivity(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "group_id": groupID}))
	if err != nil {
		return domain.Activity{}, fmt.Errorf("repo.ActivityRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgActivityRepo) Update(ctx context.Context, a domain.Activity) (domain.Activity, error) {
	const q = `
		UPDATE activities
		SET activity_date    = @date,
		    start_time       = @start_time,
		    end_time         = @end_time,
		    activity_type    = @type,
		    resource_id      = @resource_id,
		    location_id      = @location_id,
		    title            = @title,
		    location_name    = @location_name,
		    description      = @description,
		    color            = @color,
		    plan_item_id     = @plan_item_id,
		    is_from_resource = @is_from_resource,
		    updated_at       = now()
		WHERE id = @id AND group_id = @group_id
		RETURNING ` + activityColumns

	args, err := activityArgs(a)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("repo.ActivityRepo.Update: %w", err)
	}
	args["id"] = a.ID
	result, err := scanActivity(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Activity{}, fmt.Errorf("repo.ActivityRepo.Update: %w", mapWriteErr(err))
	}
	return result, nil
}

func (r *pgActivityRepo) Delete(ctx context.Context, groupID, id uuid.UUID) error {
	const q = `DELETE FROM activities WHERE id = @id AND group_id = @group_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id, "group_id": groupID})
	if err != nil {
		return fmt.Errorf("repo.ActivityRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.ActivityRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgActivityRepo) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Activity, error) {
	const q = `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE group_id = @group_id
		ORDER BY activity_date, start_time, created_at`

	acts, err := r.list(ctx, q, pgx.NamedArgs{"group_id": groupID})
	if err != nil {
		return nil, fmt.Errorf("repo.ActivityRepo.ListByGroup: %w", err)
	}
	return acts, nil
}

func (r *pgActivityRepo) ListByDateRange(ctx context.Context, start, end time.Time) ([]domain.Activity, error) {
	const q = `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE activity_date BETWEEN @start AND @end
		ORDER BY activity_date, start_time, created_at`

	acts, err := r.list(ctx, q, pgx.NamedArgs{"start": dateArg(start), "end": dateArg(end)})
	if err != nil {
		return nil, fmt.Errorf("repo.ActivityRepo.ListByDateRange: %w", err)
	}
	return acts, nil
}

func (r *pgActivityRepo) ListWindow(ctx context.Context, groupIDs []uuid.UUID, start, end time.Time) ([]domain.Activity, error) {
	const q = `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE group_id = ANY(@group_ids)
		  AND activity_date BETWEEN @start AND @end
		ORDER BY group_id, activity_date, start_time, created_at`

	acts, err := r.list(ctx, q, windowArgs(groupIDs, start, end))
	if err != nil {
		return nil, fmt.Errorf("repo.ActivityRepo.ListWindow: %w", err)
	}
	return acts, nil
}

func (r *pgActivityRepo) DeleteWindow(ctx context.Context, groupIDs []uuid.UUID, start, end time.Time) (int64, error) {
	const q = `
		DELETE FROM activities
		WHERE group_id = ANY(@group_ids)
		  AND activity_date BETWEEN @start AND @end`

	tag, err := r.db.Exec(ctx, q, windowArgs(groupIDs, start, end))
	if err != nil {
		return 0, fmt.Errorf("repo.ActivityRepo.DeleteWindow: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgActivityRepo) DeleteByGroup(ctx context.Context, groupID uuid.UUID) (int64, error) {
	const q = `DELETE FROM activities WHERE group_id = @group_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"group_id": groupID})
	if err != nil {
		return 0, fmt.Errorf("repo.ActivityRepo.DeleteByGroup: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgActivityRepo) InsertMany(ctx context.Context, activities []domain.Activity) (int64, error) {
	if len(activities) == 0 {
		return 0, nil
	}
	columns := []string{
		"id", "group_id", "activity_date", "start_time", "end_time", "activity_type", "resource_id",
		"location_id", "title", "location_name", "description", "color", "plan_item_id", "is_from_resource",
		"created_at", "updated_at",
	}
	now := time.Now().UTC()
	rows := make([][]any, len(activities))
	for i, a := range activities {
		start, err := clockArg(a.StartTime)
		if err != nil {
			return 0, fmt.Errorf("repo.ActivityRepo.InsertMany: row %d: %w", i, err)
		}
		end, err := clockArg(a.EndTime)
		if err != nil {
			return 0, fmt.Errorf("repo.ActivityRepo.InsertMany: row %d: %w", i, err)
		}
		id := a.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		created := a.CreatedAt
		if created.IsZero() {
			created = now
		}
		rows[i] = []any{
			pgtype.UUID{Bytes: id, Valid: true}, pgtype.UUID{Bytes: a.GroupID, Valid: true}, dateArg(a.Date),
			start, end, string(a.Type), a.ResourceID, optionalUUID(a.LocationID), a.Title, a.Location,
			a.Description, a.Color, a.PlanItemID, a.IsFromResource, created, now,
		}
	}

	n, err := r.db.CopyFrom(ctx, pgx.Identifier{"activities"}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("repo.ActivityRepo.InsertMany: %w", mapWriteErr(err))
	}
	return n, nil
}

func (r *pgActivityRepo) list(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Activity, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	acts := []domain.Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		acts = append(acts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return acts, nil
}

func activityArgs(a domain.Activity) (pgx.NamedArgs, error) {
	start, err := clockArg(a.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := clockArg(a.EndTime)
	if err != nil {
		return nil, err
	}
	return pgx.NamedArgs{
		"group_id":         a.GroupID,
		"date":             dateArg(a.Date),
		"start_time":       start,
		"end_time":         end,
		"type":             string(a.Type),
		"resource_id":      a.ResourceID,
		"location_id":      optionalUUID(a.LocationID),
		"title":            a.Title,
		"location_name":    a.Location,
		"description":      a.Description,
		"color":            a.Color,
		"plan_item_id":     a.PlanItemID,
		"is_from_resource": a.IsFromResource,
	}, nil
}

func windowArgs(groupIDs []uuid.UUID, start, end time.Time) pgx.NamedArgs {
	return pgx.NamedArgs{"group_ids": uuidArray(groupIDs), "start": dateArg(start), "end": dateArg(end)}
}

func dateArg(t time.Time) pgtype.Date {
	return pgtype.Date{Time: domain.DateOnly(t), Valid: true}
}

func optionalUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

// mapWriteErr translates constraint violations into domain errors.
func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505": // unique_violation
		return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.Detail)
	case "23503", "23514": // foreign_key_violation, check_violation
		return fmt.Errorf("%w: %s", domain.ErrValidation, pgErr.Message)
	}
	return err
}

func scanActivity(s scanner) (domain.Activity, error) {
	var (
		a           domain.Activity
		id, groupID pgtype.UUID
		date        pgtype.Date
		start, end  pgtype.Time
		typ         string
		locationID  pgtype.UUID
	)

	err := s.Scan(&id, &groupID, &date, &start, &end, &typ, &a.ResourceID,
		&locationID, &a.Title, &a.Location, &a.Description, &a.Color, &a.PlanItemID, &a.IsFromResource,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Activity{}, domain.ErrNotFound
		}
		return domain.Activity{}, err
	}

	a.ID = uuid.UUID(id.Bytes)
	a.GroupID = uuid.UUID(groupID.Bytes)
	a.Date = date.Time
	a.StartTime = clockString(start)
	a.EndTime = clockString(end)
	a.Type = domain.ActivityType(typ)
	if locationID.Valid {
		loc := uuid.UUID(locationID.Bytes)
		a.LocationID = &loc
	}
	return a, nil
}
