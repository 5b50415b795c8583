package service_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/repo"
)

// ---- mock repos ------------------------------------------------------------

// mockGroupRepo is a hand-written test double for repo.GroupRepo.
type mockGroupRepo struct {
	create          func(ctx context.Context, g domain.Group) (domain.Group, error)
	getByID         func(ctx context.Context, id uuid.UUID) (domain.Group, error)
	list            func(ctx context.Context) ([]domain.Group, error)
	listPaged       func(ctx context.Context, p domain.PaginationParams) ([]domain.Group, int64, error)
	updateMustVisit func(ctx context.Context, g domain.Group) (domain.Group, error)
}

func (m *mockGroupRepo) Create(ctx context.Context, g domain.Group) (domain.Group, error) {
	return m.create(ctx, g)
}
func (m *mockGroupRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Group, error) {
	return m.getByID(ctx, id)
}
func (m *mockGroupRepo) List(ctx context.Context) ([]domain.Group, error) {
	return m.list(ctx)
}
func (m *mockGroupRepo) ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Group, int64, error) {
	return m.listPaged(ctx, p)
}
func (m *mockGroupRepo) ListByIDs(context.Context, []uuid.UUID) ([]domain.Group, error) {
	return nil, nil
}
func (m *mockGroupRepo) UpdateMustVisit(ctx context.Context, g domain.Group) (domain.Group, error) {
	return m.updateMustVisit(ctx, g)
}
func (m *mockGroupRepo) BumpRevision(context.Context, uuid.UUID, *int64) (int64, error) {
	return 0, nil
}
func (m *mockGroupRepo) LockForUpdate(context.Context, []uuid.UUID) error { return nil }

// compile-time check: mockGroupRepo must satisfy repo.GroupRepo.
var _ repo.GroupRepo = (*mockGroupRepo)(nil)

// mockLocationRepo is a hand-written test double for repo.LocationRepo.
type mockLocationRepo struct {
	create  func(ctx context.Context, l domain.Location) (domain.Location, error)
	getByID func(ctx context.Context, id uuid.UUID) (domain.Location, error)
	list    func(ctx context.Context) ([]domain.Location, error)
}

func (m *mockLocationRepo) Create(ctx context.Context, l domain.Location) (domain.Location, error) {
	return m.create(ctx, l)
}
func (m *mockLocationRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Location, error) {
	return m.getByID(ctx, id)
}
func (m *mockLocationRepo) List(ctx context.Context) ([]domain.Location, error) {
	return m.list(ctx)
}

var _ repo.LocationRepo = (*mockLocationRepo)(nil)

// mockPlanTemplateRepo is a hand-written test double for repo.PlanTemplateRepo.
type mockPlanTemplateRepo struct {
	create  func(ctx context.Context, t domain.PlanTemplate) (domain.PlanTemplate, error)
	getByID func(ctx context.Context, id uuid.UUID) (domain.PlanTemplate, error)
}

func (m *mockPlanTemplateRepo) Create(ctx context.Context, t domain.PlanTemplate) (domain.PlanTemplate, error) {
	return m.create(ctx, t)
}
func (m *mockPlanTemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.PlanTemplate, error) {
	return m.getByID(ctx, id)
}

var _ repo.PlanTemplateRepo = (*mockPlanTemplateRepo)(nil)

// mockLogisticsRepo is a hand-written test double for repo.LogisticsRepo.
type mockLogisticsRepo struct {
	upsert      func(ctx context.Context, day domain.LogisticsDay) (domain.LogisticsDay, error)
	listByGroup func(ctx context.Context, groupID uuid.UUID) ([]domain.LogisticsDay, error)
}

func (m *mockLogisticsRepo) Upsert(ctx context.Context, day domain.LogisticsDay) (domain.LogisticsDay, error) {
	return m.upsert(ctx, day)
}
func (m *mockLogisticsRepo) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.LogisticsDay, error) {
	return m.listByGroup(ctx, groupID)
}

var _ repo.LogisticsRepo = (*mockLogisticsRepo)(nil)

// mockCustomTemplateRepo is a hand-written test double for repo.CustomTemplateRepo.
type mockCustomTemplateRepo struct {
	create      func(ctx context.Context, t domain.CustomTemplate) (domain.CustomTemplate, error)
	listByGroup func(ctx context.Context, groupID uuid.UUID) ([]domain.CustomTemplate, error)
	delete      func(ctx context.Context, groupID, id uuid.UUID) error
}

func (m *mockCustomTemplateRepo) Create(ctx context.Context, t domain.CustomTemplate) (domain.CustomTemplate, error) {
	return m.create(ctx, t)
}
func (m *mockCustomTemplateRepo) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.CustomTemplate, error) {
	return m.listByGroup(ctx, groupID)
}
func (m *mockCustomTemplateRepo) Delete(ctx context.Context, groupID, id uuid.UUID) error {
	return m.delete(ctx, groupID, id)
}

var _ repo.CustomTemplateRepo = (*mockCustomTemplateRepo)(nil)

// groupFound returns a getByID func that echoes a group with the given trip.
func groupFound(start, end string) func(context.Context, uuid.UUID) (domain.Group, error) {
	return func(_ context.Context, id uuid.UUID) (domain.Group, error) {
		return domain.Group{ID: id, Name: "Year 9", Type: domain.GroupPrimary, StartDate: day(start), EndDate: day(end)}, nil
	}
}
