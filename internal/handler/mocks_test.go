package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/grid"
	"github.com/pkordes/tripplanner/internal/handler"
	"github.com/pkordes/tripplanner/internal/pool"
	"github.com/pkordes/tripplanner/internal/service"
	"github.com/pkordes/tripplanner/internal/transfer"
)

// Each mock is a test double for one servicer interface.
// Set only the method fields your test needs.

type mockGroupServicer struct {
	create             func(ctx context.Context, g domain.Group) (domain.Group, error)
	getByID            func(ctx context.Context, id uuid.UUID) (domain.Group, error)
	listPaged          func(ctx context.Context, p domain.PaginationParams) ([]domain.Group, int64, error)
	setMustVisit       func(ctx context.Context, id uuid.UUID, mv service.MustVisit) (domain.Group, error)
	createPlanTemplate func(ctx context.Context, t domain.PlanTemplate) (domain.PlanTemplate, error)
}

func (m *mockGroupServicer) Create(ctx context.Context, g domain.Group) (domain.Group, error) {
	return m.create(ctx, g)
}
func (m *mockGroupServicer) GetByID(ctx context.Context, id uuid.UUID) (domain.Group, error) {
	return m.getByID(ctx, id)
}
func (m *mockGroupServicer) ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Group, int64, error) {
	return m.listPaged(ctx, p)
}
func (m *mockGroupServicer) SetMustVisit(ctx context.Context, id uuid.UUID, mv service.MustVisit) (domain.Group, error) {
	return m.setMustVisit(ctx, id, mv)
}
func (m *mockGroupServicer) CreatePlanTemplate(ctx context.Context, t domain.PlanTemplate) (domain.PlanTemplate, error) {
	return m.createPlanTemplate(ctx, t)
}

type mockLocationServicer struct {
	create  func(ctx context.Context, l domain.Location) (domain.Location, error)
	getByID func(ctx context.Context, id uuid.UUID) (domain.Location, error)
	list    func(ctx context.Context) ([]domain.Location, error)
}

func (m *mockLocationServicer) Create(ctx context.Context, l domain.Location) (domain.Location, error) {
	return m.create(ctx, l)
}
func (m *mockLocationServicer) GetByID(ctx context.Context, id uuid.UUID) (domain.Location, error) {
	return m.getByID(ctx, id)
}
func (m *mockLocationServicer) List(ctx context.Context) ([]domain.Location, error) {
	return m.list(ctx)
}

type mockLogisticsServicer struct {
	setDay         func(ctx context.Context, day domain.LogisticsDay) (domain.LogisticsDay, error)
	listDays       func(ctx context.Context, groupID uuid.UUID) ([]domain.LogisticsDay, error)
	addTemplate    func(ctx context.Context, t domain.CustomTemplate) (domain.CustomTemplate, error)
	listTemplates  func(ctx context.Context, groupID uuid.UUID) ([]domain.CustomTemplate, error)
	deleteTemplate func(ctx context.Context, groupID, id uuid.UUID) error
}

func (m *mockLogisticsServicer) SetDay(ctx context.Context, day domain.LogisticsDay) (domain.LogisticsDay, error) {
	return m.setDay(ctx, day)
}
func (m *mockLogisticsServicer) ListDays(ctx context.Context, groupID uuid.UUID) ([]domain.LogisticsDay, error) {
	return m.listDays(ctx, groupID)
}
func (m *mockLogisticsServicer) AddTemplate(ctx context.Context, t domain.CustomTemplate) (domain.CustomTemplate, error) {
	return m.addTemplate(ctx, t)
}
func (m *mockLogisticsServicer) ListTemplates(ctx context.Context, groupID uuid.UUID) ([]domain.CustomTemplate, error) {
	return m.listTemplates(ctx, groupID)
}
func (m *mockLogisticsServicer) DeleteTemplate(ctx context.Context, groupID, id uuid.UUID) error {
	return m.deleteTemplate(ctx, groupID, id)
}

type mockPoolServicer struct {
	get func(ctx context.Context, groupID uuid.UUID) (pool.Pool, error)
}

func (m *mockPoolServicer) Get(ctx context.Context, groupID uuid.UUID) (pool.Pool, error) {
	return m.get(ctx, groupID)
}

type mockScheduleServicer struct {
	list         func(ctx context.Context, groupID uuid.UUID) ([]domain.Activity, error)
	assign       func(ctx context.Context, groupID uuid.UUID, candidateID string, date time.Time, start string) (service.Mutation, error)
	createCustom func(ctx context.Context, groupID uuid.UUID, in service.CustomActivity) (service.Mutation, error)
	move         func(ctx context.Context, groupID, activityID uuid.UUID, date time.Time, start string) (service.Mutation, error)
	resize       func(ctx context.Context, groupID, activityID uuid.UUID, end string) (service.Mutation, error)
	delete       func(ctx context.Context, groupID, activityID uuid.UUID) (int64, error)
	saveBatch    func(ctx context.Context, groupID uuid.UUID, revision int64, acts []domain.Activity) (service.SaveResult, error)
	overlaps     func(ctx context.Context, groupID uuid.UUID) ([]grid.Cluster, error)
	check        func(ctx context.Context, req service.CheckRequest) ([]domain.Conflict, error)
}

func (m *mockScheduleServicer) List(ctx context.Context, groupID uuid.UUID) ([]domain.Activity, error) {
	return m.list(ctx, groupID)
}
func (m *mockScheduleServicer) Assign(ctx context.Context, groupID uuid.UUID, candidateID string, date time.Time, start string) (service.Mutation, error) {
	return m.assign(ctx, groupID, candidateID, date, start)
}
func (m *mockScheduleServicer) CreateCustom(ctx context.Context, groupID uuid.UUID, in service.CustomActivity) (service.Mutation, error) {
	return m.createCustom(ctx, groupID, in)
}
func (m *mockScheduleServicer) Move(ctx context.Context, groupID, activityID uuid.UUID, date time.Time, start string) (service.Mutation, error) {
	return m.move(ctx, groupID, activityID, date, start)
}
func (m *mockScheduleServicer) Resize(ctx context.Context, groupID, activityID uuid.UUID, end string) (service.Mutation, error) {
	return m.resize(ctx, groupID, activityID, end)
}
func (m *mockScheduleServicer) Delete(ctx context.Context, groupID, activityID uuid.UUID) (int64, error) {
	return m.delete(ctx, groupID, activityID)
}
func (m *mockScheduleServicer) SaveBatch(ctx context.Context, groupID uuid.UUID, revision int64, acts []domain.Activity) (service.SaveResult, error) {
	return m.saveBatch(ctx, groupID, revision, acts)
}
func (m *mockScheduleServicer) Overlaps(ctx context.Context, groupID uuid.UUID) ([]grid.Cluster, error) {
	return m.overlaps(ctx, groupID)
}
func (m *mockScheduleServicer) Check(ctx context.Context, req service.CheckRequest) ([]domain.Conflict, error) {
	return m.check(ctx, req)
}

type mockTransferServicer struct {
	export   func(ctx context.Context, groupIDs []uuid.UUID, start, end time.Time) (transfer.Payload, error)
	doImport func(ctx context.Context, req service.ImportRequest) (service.ImportResult, error)
	rollback func(ctx context.Context, token string) (service.RollbackResult, error)
}

func (m *mockTransferServicer) Export(ctx context.Context, groupIDs []uuid.UUID, start, end time.Time) (transfer.Payload, error) {
	return m.export(ctx, groupIDs, start, end)
}
func (m *mockTransferServicer) Import(ctx context.Context, req service.ImportRequest) (service.ImportResult, error) {
	return m.doImport(ctx, req)
}
func (m *mockTransferServicer) Rollback(ctx context.Context, token string) (service.RollbackResult, error) {
	return m.rollback(ctx, token)
}

// compile-time checks: every mock must satisfy its servicer interface.
var (
	_ handler.GroupServicer     = (*mockGroupServicer)(nil)
	_ handler.LocationServicer  = (*mockLocationServicer)(nil)
	_ handler.LogisticsServicer = (*mockLogisticsServicer)(nil)
	_ handler.PoolServicer      = (*mockPoolServicer)(nil)
	_ handler.ScheduleServicer  = (*mockScheduleServicer)(nil)
	_ handler.TransferServicer  = (*mockTransferServicer)(nil)
)

// ---- helpers ---------------------------------------------------------------

// newHTTPHandler wires a Server with the given mocks into a chi router.
// This mirrors exactly how main.go wires it in production.
func newHTTPHandler(svcs handler.Services) http.Handler {
	r := chi.NewRouter()
	handler.NewServer(svcs, nil).Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		rdr = jsonBody(t, b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

// errorBody mirrors handler.ErrorResponse loosely so tests can read any field.
type errorBody struct {
	Error struct {
		Code      string   `json:"code"`
		Message   string   `json:"message"`
		GroupIDs  []string `json:"groupIds"`
		Conflicts []struct {
			Index   int      `json:"index"`
			Reasons []string `json:"reasons"`
		} `json:"conflicts"`
		Problems []struct {
			Index   int    `json:"index"`
			Message string `json:"message"`
		} `json:"problems"`
	} `json:"error"`
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func groupFixture() domain.Group {
	return domain.Group{
		ID:        uuid.New(),
		Name:      "Blue Team",
		StartDate: day("2025-09-01"),
		EndDate:   day("2025-09-05"),
		Headcount: 20,
		Type:      domain.GroupPrimary,
		Revision:  4,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func newRequestWithHeader(method, path, key, value string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(key, value)
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
