package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/handler"
	"github.com/pkordes/tripplanner/internal/service"
)

func TestCreateGroup_returns201(t *testing.T) {
	var got domain.Group
	svc := &mockGroupServicer{
		create: func(_ context.Context, g domain.Group) (domain.Group, error) {
			got = g
			g.ID = uuid.New()
			return g, nil
		},
	}
	h := newHTTPHandler(handler.Services{Groups: svc})

	rec := do(t, h, http.MethodPost, "/groups", map[string]any{
		"name":      "Blue Team",
		"startDate": "2025-09-01",
		"endDate":   "2025-09-05",
		"headcount": 20,
		"type":      "primary",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, day("2025-09-01"), got.StartDate)
	assert.Equal(t, domain.GroupPrimary, got.Type)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "2025-09-05", body["endDate"])
	assert.Equal(t, false, body["hasMustVisit"])
}

func TestCreateGroup_rejectsBadBodies(t *testing.T) {
	tests := []struct {
		name    string
		body    any
		message string
	}{
		{
			name:    "missing name",
			body:    map[string]any{"startDate": "2025-09-01", "endDate": "2025-09-02", "type": "primary"},
			message: "name is required",
		},
		{
			name:    "unknown type",
			body:    map[string]any{"name": "x", "startDate": "2025-09-01", "endDate": "2025-09-02", "type": "tertiary"},
			message: "type must be one of: primary secondary",
		},
		{
			name:    "unknown field",
			body:    map[string]any{"name": "x", "startDate": "2025-09-01", "endDate": "2025-09-02", "type": "primary", "color": "red"},
			message: "malformed JSON body",
		},
		{
			name:    "empty body",
			body:    "",
			message: "malformed JSON body",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHTTPHandler(handler.Services{Groups: &mockGroupServicer{}})

			rec := do(t, h, http.MethodPost, "/groups", tc.body)

			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			body := decode[errorBody](t, rec)
			assert.Equal(t, "validation_error", body.Error.Code)
			assert.Contains(t, body.Error.Message, tc.message)
		})
	}
}

func TestCreateGroup_serviceValidationStripsPrefixes(t *testing.T) {
	svc := &mockGroupServicer{
		create: func(context.Context, domain.Group) (domain.Group, error) {
			return domain.Group{}, fmt.Errorf("service.GroupService.Create: %w: end date precedes start date", domain.ErrValidation)
		},
	}
	h := newHTTPHandler(handler.Services{Groups: svc})

	rec := do(t, h, http.MethodPost, "/groups", map[string]any{
		"name": "x", "startDate": "2025-09-05", "endDate": "2025-09-01", "type": "primary",
	})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "end date precedes start date", body.Error.Message)
}

func TestListGroups_paginates(t *testing.T) {
	var got domain.PaginationParams
	svc := &mockGroupServicer{
		listPaged: func(_ context.Context, p domain.PaginationParams) ([]domain.Group, int64, error) {
			got = p
			return []domain.Group{groupFixture()}, 11, nil
		},
	}
	h := newHTTPHandler(handler.Services{Groups: svc})

	rec := do(t, h, http.MethodGet, "/groups?page=2&limit=500", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PaginationParams{Page: 2, Limit: 100}, got)

	body := decode[struct {
		Data       []map[string]any `json:"data"`
		Pagination struct {
			Page       int   `json:"page"`
			Limit      int   `json:"limit"`
			Total      int64 `json:"total"`
			TotalPages int   `json:"totalPages"`
		} `json:"pagination"`
	}](t, rec)
	assert.Len(t, body.Data, 1)
	assert.Equal(t, int64(11), body.Pagination.Total)
	assert.Equal(t, 100, body.Pagination.Limit)
	assert.Equal(t, 1, body.Pagination.TotalPages)
}

func TestGetGroup_notFound(t *testing.T) {
	svc := &mockGroupServicer{
		getByID: func(context.Context, uuid.UUID) (domain.Group, error) {
			return domain.Group{}, fmt.Errorf("repo.GroupRepo.GetByID: %w", domain.ErrNotFound)
		},
	}
	h := newHTTPHandler(handler.Services{Groups: svc})

	rec := do(t, h, http.MethodGet, "/groups/"+uuid.NewString(), nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "not_found", body.Error.Code)
	assert.Equal(t, "group not found", body.Error.Message)
}

func TestGetGroup_malformedID(t *testing.T) {
	h := newHTTPHandler(handler.Services{Groups: &mockGroupServicer{}})

	rec := do(t, h, http.MethodGet, "/groups/not-a-uuid", nil)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetGroup_unexpectedErrorIs500(t *testing.T) {
	svc := &mockGroupServicer{
		getByID: func(context.Context, uuid.UUID) (domain.Group, error) {
			return domain.Group{}, fmt.Errorf("connection reset")
		},
	}
	h := newHTTPHandler(handler.Services{Groups: svc})

	rec := do(t, h, http.MethodGet, "/groups/"+uuid.NewString(), nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "internal_error", body.Error.Code)
	assert.NotContains(t, body.Error.Message, "connection reset")
}

func TestSetMustVisit_passesSources(t *testing.T) {
	museum := uuid.New()
	var got service.MustVisit
	svc := &mockGroupServicer{
		setMustVisit: func(_ context.Context, id uuid.UUID, mv service.MustVisit) (domain.Group, error) {
			got = mv
			g := groupFixture()
			g.ID = id
			g.ManualIDs = mv.ManualIDs
			return g, nil
		},
	}
	h := newHTTPHandler(handler.Services{Groups: svc})

	rec := do(t, h, http.MethodPut, "/groups/"+uuid.NewString()+"/must-visit", map[string]any{
		"manualLocationIds": []string{museum.String()},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uuid.UUID{museum}, got.ManualIDs)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["hasMustVisit"])
}

func TestCreatePlanTemplate_requiresItemLocation(t *testing.T) {
	h := newHTTPHandler(handler.Services{Groups: &mockGroupServicer{}})

	rec := do(t, h, http.MethodPost, "/plan-templates", map[string]any{
		"name":  "Classic",
		"items": []map[string]any{{"durationMinutes": 90}},
	})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Contains(t, body.Error.Message, "locationId is required")
}

func TestCreateLocation_defaultsActive(t *testing.T) {
	var got domain.Location
	svc := &mockLocationServicer{
		create: func(_ context.Context, l domain.Location) (domain.Location, error) {
			got = l
			l.ID = uuid.New()
			return l, nil
		},
	}
	h := newHTTPHandler(handler.Services{Locations: svc})

	rec := do(t, h, http.MethodPost, "/locations", map[string]any{
		"name":            "Museum",
		"capacity":        40,
		"blockedWeekdays": []int{1},
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, got.Active)
	assert.Equal(t, 40, got.Capacity)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, []any{float64(1)}, body["blockedWeekdays"])
}

func TestCreateLocation_rejectsBadWeekday(t *testing.T) {
	h := newHTTPHandler(handler.Services{Locations: &mockLocationServicer{}})

	rec := do(t, h, http.MethodPost, "/locations", map[string]any{"name": "Museum", "blockedWeekdays": []int{7}})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
