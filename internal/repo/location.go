package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/tripplanner/internal/domain"
)

// LocationRepo defines the persistence operations for Locations.
type LocationRepo interface {
	// Create inserts a new location and returns the persisted record.
	Create(ctx context.Context, l domain.Location) (domain.Location, error)

	// GetByID retrieves a single location by its UUID primary key.
	// Returns domain.ErrNotFound if no location with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Location, error)

	// List returns all locations ordered by name.
	List(ctx context.Context) ([]domain.Location, error)
}

type pgLocationRepo struct {
	db db
}

// NewLocationRepo constructs a LocationRepo backed by the provided db connection.
func NewLocationRepo(db db) LocationRepo {
	return &pgLocationRepo{db: db}
}

const locationColumns = `id, name, address, capacity, blocked_weekdays, target_groups, active, created_at, updated_at`

func (r *pgLocationRepo) Create(ctx context.Context, l domain.Location) (domain.Location, error) {
	const q = `
		INSERT INTO locations (name, address, capacity, blocked_weekdays, target_groups, active)
		VALUES (@name, @address, @capacity, @blocked, @target, @active)
		RETURNING ` + locationColumns

	weekdays := make([]int16, len(l.BlockedWeekdays))
	for i, d := range l.BlockedWeekdays {
		weekdays[i] = int16(d)
	}
	target := l.TargetGroups
	if target == "" {
		target = domain.TargetAll
	}

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"name":     l.Name,
		"address":  l.Address,
		"capacity": l.Capacity,
		"blocked":  weekdays,
		"target":   string(target),
		"active":   l.Active,
	})
	result, err := scanLocation(row)
	if err != nil {
		return domain.Location{}, fmt.Errorf("repo.LocationRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgLocationRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Location, error) {
	const q = `SELECT ` + locationColumns + ` FROM locations WHERE id = @id`

	result, err := scanLocation(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Location{}, fmt.Errorf("repo.LocationRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgLocationRepo) List(ctx context.Context) ([]domain.Location, error) {
	const q = `SELECT ` + locationColumns + ` FROM locations ORDER BY name`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.LocationRepo.List: %w", err)
	}
	defer rows.Close()

	locations := []domain.Location{}
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.LocationRepo.List: scan: %w", err)
		}
		locations = append(locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.LocationRepo.List: rows: %w", err)
	}
	return locations, nil
}

func scanLocation(s scanner) (domain.Location, error) {
	var (
		l        domain.Location
		id       pgtype.UUID
		weekdays []int16
		target   string
	)

	err := s.Scan(&id, &l.Name, &l.Address, &l.Capacity, &weekdays, &target, &l.Active, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Location{}, domain.ErrNotFound
		}
		return domain.Location{}, err
	}

	l.ID = uuid.UUID(id.Bytes)
	l.TargetGroups = domain.TargetGroups(target)
	for _, d := range weekdays {
		l.BlockedWeekdays = append(l.BlockedWeekdays, time.Weekday(d))
	}
	return l, nil
}
