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

// PlanTemplateRepo defines the persistence operations for reusable
// must-visit templates.
type PlanTemplateRepo interface {
	// Create inserts a template together with its items, preserving item order.
	Create(ctx context.Context, t domain.PlanTemplate) (domain.PlanTemplate, error)

	// GetByID retrieves a template and its items.
	// Returns domain.ErrNotFound if no template with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.PlanTemplate, error)
}

type pgPlanTemplateRepo struct {
	db db
}

// NewPlanTemplateRepo constructs a PlanTemplateRepo backed by the provided db connection.
func NewPlanTemplateRepo(db db) PlanTemplateRepo {
	return &pgPlanTemplateRepo{db: db}
}

// Create inserts the template row, then one row per item. Callers that need
// atomicity run it through TxRunner.
func (r *pgPlanTemplateRepo) Create(ctx context.Context, t domain.PlanTemplate) (domain.PlanTemplate, error) {
	const qTemplate = `INSERT INTO plan_templates (name) VALUES (@name) RETURNING id`
	const qItem = `
		INSERT INTO plan_template_items (template_id, location_id, duration_minutes, position)
		VALUES (@template_id, @location_id, @duration_minutes, @position)`

	var id pgtype.UUID
	if err := r.db.QueryRow(ctx, qTemplate, pgx.NamedArgs{"name": t.Name}).Scan(&id); err != nil {
		return domain.PlanTemplate{}, fmt.Errorf("repo.PlanTemplateRepo.Create: %w", err)
	}
	for i, item := range t.Items {
		_, err := r.db.Exec(ctx, qItem, pgx.NamedArgs{
			"template_id":      id,
			"location_id":      item.LocationID,
			"duration_minutes": item.DurationMinutes,
			"position":         i,
		})
		if err != nil {
			return domain.PlanTemplate{}, fmt.Errorf("repo.PlanTemplateRepo.Create: item %d: %w", i, err)
		}
	}

	result, err := loadPlanTemplate(ctx, r.db, uuid.UUID(id.Bytes))
	if err != nil {
		return domain.PlanTemplate{}, fmt.Errorf("repo.PlanTemplateRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgPlanTemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.PlanTemplate, error) {
	result, err := loadPlanTemplate(ctx, r.db, id)
	if err != nil {
		return domain.PlanTemplate{}, fmt.Errorf("repo.PlanTemplateRepo.GetByID: %w", err)
	}
	return result, nil
}

func loadPlanTemplate(ctx context.Context, db db, id uuid.UUID) (domain.PlanTemplate, error) {
	const qTemplate = `SELECT name FROM plan_templates WHERE id = @id`
	const qItems = `
		SELECT id, location_id, duration_minutes
		FROM plan_template_items
		WHERE template_id = @id
		ORDER BY position`

	t := domain.PlanTemplate{ID: id, Items: []domain.PlanTemplateItem{}}
	if err := db.QueryRow(ctx, qTemplate, pgx.NamedArgs{"id": id}).Scan(&t.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PlanTemplate{}, domain.ErrNotFound
		}
		return domain.PlanTemplate{}, err
	}

	rows, err := db.Query(ctx, qItems, pgx.NamedArgs{"id": id})
	if err != nil {
		return domain.PlanTemplate{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var itemID, locID pgtype.UUID
		var item domain.PlanTemplateItem
		if err := rows.Scan(&itemID, &locID, &item.DurationMinutes); err != nil {
			return domain.PlanTemplate{}, fmt.Errorf("scan item: %w", err)
		}
		item.ID = uuid.UUID(itemID.Bytes)
		item.LocationID = uuid.UUID(locID.Bytes)
		t.Items = append(t.Items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.PlanTemplate{}, fmt.Errorf("rows: %w", err)
	}
	return t, nil
}
