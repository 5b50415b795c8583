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

// CustomTemplateRepo defines the persistence operations for a group's saved
// ad-hoc activities.
type CustomTemplateRepo interface {
	// Create inserts a new template and returns the persisted record.
	Create(ctx context.Context, t domain.CustomTemplate) (domain.CustomTemplate, error)

	// ListByGroup returns a group's templates in creation order.
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.CustomTemplate, error)

	// Delete removes a template, scoped to the given groupID.
	// Returns domain.ErrNotFound if no such template exists under that group.
	Delete(ctx context.Context, groupID, id uuid.UUID) error
}

type pgCustomTemplateRepo struct {
	db db
}

// NewCustomTemplateRepo constructs a CustomTemplateRepo backed by the provided db connection.
func NewCustomTemplateRepo(db db) CustomTemplateRepo {
	return &pgCustomTemplateRepo{db: db}
}

const customTemplateColumns = `id, group_id, activity_type, title, description, duration_minutes, color, created_at`

func (r *pgCustomTemplateRepo) Create(ctx context.Context, t domain.CustomTemplate) (domain.CustomTemplate, error) {
	const q = `
		INSERT INTO custom_templates (group_id, activity_type, title, description, duration_minutes, color)
		VALUES (@group_id, @type, @title, @description, @duration_minutes, @color)
		RETURNING ` + customTemplateColumns

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"group_id":         t.GroupID,
		"type":             string(t.Type),
		"title":            t.Title,
		"description":      t.Description,
		"duration_minutes": t.DurationMinutes,
		"color":            t.Color,
	})
	result, err := scanCustomTemplate(row)
	if err != nil {
		return domain.CustomTemplate{}, fmt.Errorf("repo.CustomTemplateRepo.Create: %w", mapWriteErr(err))
	}
	return result, nil
}

func (r *pgCustomTemplateRepo) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.CustomTemplate, error) {
	const q = `
		SELECT ` + customTemplateColumns + `
		FROM custom_templates
		WHERE group_id = @group_id
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"group_id": groupID})
	if err != nil {
		return nil, fmt.Errorf("repo.CustomTemplateRepo.ListByGroup: %w", err)
	}
	defer rows.Close()

	templates := []domain.CustomTemplate{}
	for rows.Next() {
		t, err := scanCustomTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.CustomTemplateRepo.ListByGroup: scan: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.CustomTemplateRepo.ListByGroup: rows: %w", err)
	}
	return templates, nil
}

func (r *pgCustomTemplateRepo) Delete(ctx context.Context, groupID, id uuid.UUID) error {
	const q = `DELETE FROM custom_templates WHERE id = @id AND group_id = @group_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id, "group_id": groupID})
	if err != nil {
		return fmt.Errorf("repo.CustomTemplateRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.CustomTemplateRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func scanCustomTemplate(s scanner) (domain.CustomTemplate, error) {
	var (
		t           domain.CustomTemplate
		id, groupID pgtype.UUID
		typ         string
	)
	err := s.Scan(&id, &groupID, &typ, &t.Title, &t.Description, &t.DurationMinutes, &t.Color, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CustomTemplate{}, domain.ErrNotFound
		}
		return domain.CustomTemplate{}, err
	}
	t.ID = uuid.UUID(id.Bytes)
	t.GroupID = uuid.UUID(groupID.Bytes)
	t.Type = domain.ActivityType(typ)
	return t, nil
}
