package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/pool"
	"github.com/pkordes/tripplanner/internal/service"
)

type createGroupRequest struct {
	Name      string             `json:"name" validate:"required"`
	StartDate openapi_types.Date `json:"startDate" validate:"required"`
	EndDate   openapi_types.Date `json:"endDate" validate:"required"`
	Headcount int                `json:"headcount" validate:"gte=0"`
	Type      string             `json:"type" validate:"required,oneof=primary secondary"`
}

type syncedLocationRequest struct {
	SyncID          string             `json:"syncId"`
	LocationID      openapi_types.UUID `json:"locationId" validate:"required"`
	Title           string             `json:"title"`
	DurationMinutes int                `json:"durationMinutes" validate:"gte=0"`
}

type mustVisitRequest struct {
	Synced     []syncedLocationRequest `json:"synced" validate:"dive"`
	TemplateID *openapi_types.UUID     `json:"templateId"`
	ManualIDs  []openapi_types.UUID    `json:"manualLocationIds"`
}

type planTemplateItemRequest struct {
	LocationID      openapi_types.UUID `json:"locationId" validate:"required"`
	DurationMinutes int                `json:"durationMinutes" validate:"gte=0"`
}

type createPlanTemplateRequest struct {
	Name  string                    `json:"name" validate:"required"`
	Items []planTemplateItemRequest `json:"items" validate:"dive"`
}

type mustVisitResponse struct {
	Synced     []domain.SyncedLocation `json:"synced"`
	TemplateID *openapi_types.UUID     `json:"templateId,omitempty"`
	ManualIDs  []openapi_types.UUID    `json:"manualLocationIds"`
}

type groupResponse struct {
	ID           openapi_types.UUID `json:"id"`
	Name         string             `json:"name"`
	StartDate    openapi_types.Date `json:"startDate"`
	EndDate      openapi_types.Date `json:"endDate"`
	Headcount    int                `json:"headcount"`
	Type         domain.GroupType   `json:"type"`
	Revision     int64              `json:"revision"`
	MustVisit    mustVisitResponse  `json:"mustVisit"`
	HasMustVisit bool               `json:"hasMustVisit"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

type pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type groupListResponse struct {
	Data       []groupResponse `json:"data"`
	Pagination pagination      `json:"pagination"`
}

type planTemplateResponse struct {
	ID    openapi_types.UUID        `json:"id"`
	Name  string                    `json:"name"`
	Items []planTemplateItemRequest `json:"items"`
}

// createGroup handles POST /groups.
func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var body createGroupRequest
	if err := s.decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	created, err := s.groups.Create(r.Context(), domain.Group{
		Name:      body.Name,
		StartDate: body.StartDate.Time,
		EndDate:   body.EndDate.Time,
		Headcount: body.Headcount,
		Type:      domain.GroupType(body.Type),
	})
	if err != nil {
		s.writeError(w, r, err, "group not found")
		return
	}
	writeJSON(w, http.StatusCreated, groupToResponse(created))
}

// listGroups handles GET /groups.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20, max=100).
func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	params := domain.NewPaginationParams(queryInt(r, "page"), queryInt(r, "limit"))
	groups, total, err := s.groups.ListPaged(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err, "group not found")
		return
	}

	data := make([]groupResponse, len(groups))
	for i, g := range groups {
		data[i] = groupToResponse(g)
	}
	writeJSON(w, http.StatusOK, groupListResponse{
		Data:       data,
		Pagination: pagination{Page: params.Page, Limit: params.Limit, Total: total, TotalPages: params.Pages(total)},
	})
}

// getGroup handles GET /groups/{groupId}.
func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "groupId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	g, err := s.groups.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "group not found")
		return
	}
	writeJSON(w, http.StatusOK, groupToResponse(g))
}

// setMustVisit handles PUT /groups/{groupId}/must-visit.
func (s *Server) setMustVisit(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "groupId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	var body mustVisitRequest
	if err := s.decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	mv := service.MustVisit{TemplateID: body.TemplateID, ManualIDs: body.ManualIDs}
	for _, sl := range body.Synced {
		mv.Synced = append(mv.Synced, domain.SyncedLocation{
			SyncID:          sl.SyncID,
			LocationID:      sl.LocationID,
			Title:           sl.Title,
			DurationMinutes: sl.DurationMinutes,
		})
	}
	updated, err := s.groups.SetMustVisit(r.Context(), id, mv)
	if err != nil {
		s.writeError(w, r, err, "group not found")
		return
	}
	writeJSON(w, http.StatusOK, groupToResponse(updated))
}

// createPlanTemplate handles POST /plan-templates.
func (s *Server) createPlanTemplate(w http.ResponseWriter, r *http.Request) {
	var body createPlanTemplateRequest
	if err := s.decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	t := domain.PlanTemplate{Name: body.Name}
	for _, item := range body.Items {
		t.Items = append(t.Items, domain.PlanTemplateItem{LocationID: item.LocationID, DurationMinutes: item.DurationMinutes})
	}
	created, err := s.groups.CreatePlanTemplate(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err, "plan template not found")
		return
	}

	resp := planTemplateResponse{ID: created.ID, Name: created.Name, Items: []planTemplateItemRequest{}}
	for _, item := range created.Items {
		resp.Items = append(resp.Items, planTemplateItemRequest{LocationID: item.LocationID, DurationMinutes: item.DurationMinutes})
	}
	writeJSON(w, http.StatusCreated, resp)
}

// --- mapping helpers --------------------------------------------------------

func groupToResponse(g domain.Group) groupResponse {
	mv := mustVisitResponse{Synced: g.Synced, ManualIDs: g.ManualIDs}
	if mv.Synced == nil {
		mv.Synced = []domain.SyncedLocation{}
	}
	if mv.ManualIDs == nil {
		mv.ManualIDs = []uuid.UUID{}
	}
	if g.Template != nil {
		id := g.Template.ID
		mv.TemplateID = &id
	}
	return groupResponse{
		ID:           g.ID,
		Name:         g.Name,
		StartDate:    openapi_types.Date{Time: g.StartDate},
		EndDate:      openapi_types.Date{Time: g.EndDate},
		Headcount:    g.Headcount,
		Type:         g.Type,
		Revision:     g.Revision,
		MustVisit:    mv,
		HasMustVisit: pool.HasMustVisit(g),
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}

// queryInt returns the integer query parameter name, or nil when it is
// absent or malformed.
func queryInt(r *http.Request, name string) *int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return nil
	}
	return &v
}
