package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/tripplanner/internal/domain"
)

// LogisticsRepo defines the persistence operations for per-day logistics.
type LogisticsRepo interface {
	// Upsert stores one day of a group's logistics, replacing any previous
	// row for the same (group, date).
	Upsert(ctx context.Context, day domain.LogisticsDay) (domain.LogisticsDay, error)

	// ListByGroup returns every stored day of a group ordered by date text.
	// Rows are returned as stored, including ones whose date does not parse.
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.LogisticsDay, error)
}

type pgLogisticsRepo struct {
	db db
}

// NewLogisticsRepo constructs a LogisticsRepo backed by the provided db connection.
func NewLogisticsRepo(db db) LogisticsRepo {
	return &pgLogisticsRepo{db: db}
}

func (r *pgLogisticsRepo) Upsert(ctx context.Context, day domain.LogisticsDay) (domain.LogisticsDay, error) {
	const q = `
		INSERT INTO logistics_days (group_id, day_date, meals, pickup, dropoff)
		VALUES (@group_id, @date, @meals, @pickup, @dropoff)
		ON CONFLICT (group_id, day_date) DO UPDATE
		SET meals      = EXCLUDED.meals,
		    pickup     = EXCLUDED.pickup,
		    dropoff    = EXCLUDED.dropoff,
		    updated_at = now()
		RETURNING group_id, day_date, meals, pickup, dropoff`

	meals := day.Meals
	if meals == nil {
		meals = map[domain.MealKey]domain.Meal{}
	}
	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"group_id": day.GroupID,
		"date":     day.Date,
		"meals":    meals,
		"pickup":   day.Pickup,
		"dropoff":  day.Dropoff,
	})
	result, err := scanLogisticsDay(row)
	if err != nil {
		return domain.LogisticsDay{}, fmt.Errorf("repo.LogisticsRepo.Upsert: %w", mapWriteErr(err))
	}
	return result, nil
}

func (r *pgLogisticsRepo) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.LogisticsDay, error) {
	const q = `
		SELECT group_id, day_date, meals, pickup, dropoff
		FROM logistics_days
		WHERE group_id = @group_id
		ORDER BY day_date`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"group_id": groupID})
	if err != nil {
		return nil, fmt.Errorf("repo.LogisticsRepo.ListByGroup: %w", err)
	}
	defer rows.Close()

	days := []domain.LogisticsDay{}
	for rows.Next() {
		d, err := scanLogisticsDay(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.LogisticsRepo.ListByGroup: scan: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.LogisticsRepo.ListByGroup: rows: %w", err)
	}
	return days, nil
}

func scanLogisticsDay(s scanner) (domain.LogisticsDay, error) {
	var (
		d  domain.LogisticsDay
		id pgtype.UUID
	)
	if err := s.Scan(&id, &d.Date, &d.Meals, &d.Pickup, &d.Dropoff); err != nil {
		return domain.LogisticsDay{}, err
	}
	d.GroupID = uuid.UUID(id.Bytes)
	return d, nil
}
