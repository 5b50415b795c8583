package handler

import (
	"net/http"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/grid"
	"github.com/pkordes/tripplanner/internal/service"
)

type activityRequest struct {
	ID             *openapi_types.UUID `json:"id"`
	Date           openapi_types.Date  `json:"date" validate:"required"`
	StartTime      string              `json:"startTime" validate:"required,clock"`
	EndTime        string              `json:"endTime" validate:"required,clock"`
	Type           string              `json:"type" validate:"omitempty,oneof=visit meal transport activity rest free"`
	ResourceID     string              `json:"resourceId"`
	LocationID     *openapi_types.UUID `json:"locationId"`
	Title          string              `json:"title"`
	Location       string              `json:"location"`
	Description    string              `json:"description"`
	Color          string              `json:"color"`
	PlanItemID     *string             `json:"planItemId"`
	IsFromResource bool                `json:"isFromResource"`
}

type activityResponse struct {
	ID             openapi_types.UUID  `json:"id"`
	GroupID        openapi_types.UUID  `json:"groupId"`
	Date           openapi_types.Date  `json:"date"`
	StartTime      string              `json:"startTime"`
	EndTime        string              `json:"endTime"`
	Type           domain.ActivityType `json:"type"`
	ResourceID     string              `json:"resourceId,omitempty"`
	LocationID     *openapi_types.UUID `json:"locationId,omitempty"`
	Title          string              `json:"title"`
	Location       string              `json:"location,omitempty"`
	Description    string              `json:"description,omitempty"`
	Color          string              `json:"color,omitempty"`
	PlanItemID     *string             `json:"planItemId,omitempty"`
	IsFromResource bool                `json:"isFromResource"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

type calendarResponse struct {
	Revision   int64              `json:"revision"`
	Activities []activityResponse `json:"activities"`
}

type mutationResponse struct {
	Activity  activityResponse  `json:"activity"`
	Conflicts []domain.Conflict `json:"conflicts"`
	Revision  int64             `json:"revision"`
}

type assignRequest struct {
	CandidateID string             `json:"candidateId" validate:"required"`
	Date        openapi_types.Date `json:"date" validate:"required"`
	StartTime   string             `json:"startTime" validate:"omitempty,clock"`
}

type customActivityRequest struct {
	Type            string             `json:"type" validate:"omitempty,oneof=visit meal transport activity rest free"`
	Title           string             `json:"title" validate:"required"`
	Description     string             `json:"description"`
	DurationMinutes int                `json:"durationMinutes" validate:"gte=0"`
	Color           string             `json:"color"`
	Date            openapi_types.Date `json:"date" validate:"required"`
	StartTime       string             `json:"startTime" validate:"required,clock"`
}

type moveRequest struct {
	Date      openapi_types.Date `json:"date" validate:"required"`
	StartTime string             `json:"startTime" validate:"required,clock"`
}

type resizeRequest struct {
	EndTime string `json:"endTime" validate:"required,clock"`
}

type saveScheduleRequest struct {
	Revision   *int64            `json:"revision" validate:"required"`
	Activities []activityRequest `json:"activities" validate:"dive"`
}

type clusterResponse struct {
	GroupID    openapi_types.UUID `json:"groupId"`
	Date       string             `json:"date"`
	StartTime  string             `json:"startTime"`
	EndTime    string             `json:"endTime"`
	Activities []activityResponse `json:"activities"`
}

type checkRequest struct {
	ActivityID *openapi_types.UUID `json:"activityId"`
	GroupID    openapi_types.UUID  `json:"groupId" validate:"required"`
	Date       openapi_types.Date  `json:"date" validate:"required"`
	StartTime  string              `json:"startTime" validate:"required,clock"`
	EndTime    string              `json:"endTime" validate:"required,clock"`
	LocationID *openapi_types.UUID `json:"locationId"`
}

type checkResponse struct {
	Conflicts []domain.Conflict `json:"conflicts"`
}

// listActivities handles GET /groups/{groupId}/activities.
// The revision is read before the activities, so a concurrent edit can only
// make it older than the calendar and a later save fails as stale.
func (s *Server) listActivities(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	g, err := s.groups.GetByID(r.Context(), groupID)
	if err != nil {
		s.writeError(w, r, err, "group not found")
		return
	}
	acts, err := s.schedule.List(r.Context(), groupID)
	if err != nil {
		s.writeError(w, r, err, "group not found")
		return
	}
	writeJSON(w, http.StatusOK, calendarResponse{Revision: g.Revision, Activities: activitiesToResponse(acts)})
}

// createCustomActivity handles POST /groups/{groupId}/activities.
func (s *Server) createCustomActivity(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	var body customActivityRequest
	if err := s.decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	m, err := s.schedule.CreateCustom(r.Context(), groupID, service.CustomActivity{
		Type:            domain.ActivityType(body.Type),
		Title:           body.Title,
		Description:     body.Description,
		DurationMinutes: body.DurationMinutes,
		Color:           body.Color,
		Date:            body.Date.Time,
		StartTime:       body.StartTime,
	})
	if err != nil {
		s.writeError(w, r, err, "group not found")
		return
	}
	writeJSON(w, http.StatusCreated, mutationToResponse(m))
}

// assignActivity handles POST /groups/{groupId}/activities/assign.
func (s *Server) assignActivity(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	var body assignRequest
	if err := s.decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	m, err := s.schedule.Assign(r.Context(), groupID, body.CandidateID, body.Date.Time, body.StartTime)
	if err != nil {
		s.writeError(w, r, err, "candidate not found")
		return
	}
	writeJSON(w, http.StatusCreated, mutationToResponse(m))
}

// moveActivity handles PATCH /groups/{groupId}/activities/{activityId}/move.
func (s *Server) moveActivity(w http.ResponseWriter, r *http.Request) {
	groupID, activityID, ok := s.activityPath(w, r)
	if !ok {
		return
	}
	var body moveRequest
	if err := s.decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	m, err := s.schedule.Move(r.Context(), groupID, activityID, body.Date.Time, body.StartTime)
	if err != nil {
		s.writeError(w, r, err, "activity not found")
		return
	}
	writeJSON(w, http.StatusOK, mutationToResponse(m))
}

// resizeActivity handles PATCH /groups/{groupId}/activities/{activityId}/resize.
func (s *Server) resizeActivity(w http.ResponseWriter, r *http.Request) {
	groupID, activityID, ok := s.activityPath(w, r)
	if !ok {
		return
	}
	var body resizeRequest
	if err := s.decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	m, err := s.schedule.Resize(r.Context(), groupID, activityID, body.EndTime)
	if err != nil {
		s.writeError(w, r, err, "activity not found")
		return
	}
	writeJSON(w, http.StatusOK, mutationToResponse(m))
}

// deleteActivity handles DELETE /groups/{groupId}/activities/{activityId}.
// The activity's candidate, if any, returns to the pool.
func (s *Server) deleteActivity(w http.ResponseWriter, r *http.Request) {
	groupID, activityID, ok := s.activityPath(w, r)
	if !ok {
		return
	}
	rev, err := s.schedule.Delete(r.Context(), groupID, activityID)
	if err != nil {
		s.writeError(w, r, err, "activity not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"revision": rev})
}

// saveSchedule handles PUT /groups/{groupId}/schedule.
// The body replaces the group's whole calendar when revision is current.
func (s *Server) saveSchedule(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	var body saveScheduleRequest
	if err := s.decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	acts := make([]domain.Activity, len(body.Activities))
	for i, a := range body.Activities {
		acts[i] = a.toDomain(groupID)
	}
	res, err := s.schedule.SaveBatch(r.Context(), groupID, *body.Revision, acts)
	if err != nil {
		s.writeError(w, r, err, "group not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// listOverlaps handles GET /groups/{groupId}/overlaps.
func (s *Server) listOverlaps(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	cs, err := s.schedule.Overlaps(r.Context(), groupID)
	if err != nil {
		s.writeError(w, r, err, "group not found")
		return
	}
	out := make([]clusterResponse, len(cs))
	for i, c := range cs {
		out[i] = clusterToResponse(c)
	}
	writeJSON(w, http.StatusOK, out)
}

// checkConflicts handles POST /conflicts/check.
// Nothing is saved; the response lists what the placement would violate.
func (s *Server) checkConflicts(w http.ResponseWriter, r *http.Request) {
	var body checkRequest
	if err := s.decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	cs, err := s.schedule.Check(r.Context(), service.CheckRequest{
		ActivityID: body.ActivityID,
		GroupID:    body.GroupID,
		Date:       body.Date.Time,
		StartTime:  body.StartTime,
		EndTime:    body.EndTime,
		LocationID: body.LocationID,
	})
	if err != nil {
		s.writeError(w, r, err, "group not found")
		return
	}
	if cs == nil {
		cs = []domain.Conflict{}
	}
	writeJSON(w, http.StatusOK, checkResponse{Conflicts: cs})
}

// activityPath parses the group and activity ids, writing the 422 itself
// when either is malformed.
func (s *Server) activityPath(w http.ResponseWriter, r *http.Request) (groupID, activityID openapi_types.UUID, ok bool) {
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return groupID, activityID, false
	}
	activityID, err = pathUUID(r, "activityId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return groupID, activityID, false
	}
	return groupID, activityID, true
}

// --- mapping helpers --------------------------------------------------------

func (a activityRequest) toDomain(groupID openapi_types.UUID) domain.Activity {
	out := domain.Activity{
		GroupID:        groupID,
		Date:           a.Date.Time,
		StartTime:      a.StartTime,
		EndTime:        a.EndTime,
		Type:           domain.ActivityType(a.Type),
		ResourceID:     a.ResourceID,
		LocationID:     a.LocationID,
		Title:          a.Title,
		Location:       a.Location,
		Description:    a.Description,
		Color:          a.Color,
		PlanItemID:     a.PlanItemID,
		IsFromResource: a.IsFromResource,
	}
	if a.ID != nil {
		out.ID = *a.ID
	}
	return out
}

func activityToResponse(a domain.Activity) activityResponse {
	return activityResponse{
		ID:             a.ID,
		GroupID:        a.GroupID,
		Date:           openapi_types.Date{Time: a.Date},
		StartTime:      a.StartTime,
		EndTime:        a.EndTime,
		Type:           a.Type,
		ResourceID:     a.ResourceID,
		LocationID:     a.LocationID,
		Title:          a.Title,
		Location:       a.Location,
		Description:    a.Description,
		Color:          a.Color,
		PlanItemID:     a.PlanItemID,
		IsFromResource: a.IsFromResource,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func activitiesToResponse(acts []domain.Activity) []activityResponse {
	out := make([]activityResponse, len(acts))
	for i, a := range acts {
		out[i] = activityToResponse(a)
	}
	return out
}

func mutationToResponse(m service.Mutation) mutationResponse {
	cs := m.Conflicts
	if cs == nil {
		cs = []domain.Conflict{}
	}
	return mutationResponse{Activity: activityToResponse(m.Activity), Conflicts: cs, Revision: m.Revision}
}

func clusterToResponse(c grid.Cluster) clusterResponse {
	return clusterResponse{
		GroupID:    c.GroupID,
		Date:       c.Date,
		StartTime:  c.Start,
		EndTime:    c.End,
		Activities: activitiesToResponse(c.Activities),
	}
}
