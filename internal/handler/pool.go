package handler

import (
	"net/http"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/pool"
)

type candidateResponse struct {
	ID              string              `json:"id"`
	Kind            domain.ResourceKind `json:"kind"`
	Type            domain.ActivityType `json:"type"`
	Title           string              `json:"title"`
	Description     string              `json:"description,omitempty"`
	DurationMinutes int                 `json:"durationMinutes"`
	FixedDate       *openapi_types.Date `json:"fixedDate,omitempty"`
	LocationID      *openapi_types.UUID `json:"locationId,omitempty"`
	Location        string              `json:"location,omitempty"`
	Color           string              `json:"color"`
	PlanItemID      *string             `json:"planItemId,omitempty"`
	Time            string              `json:"time,omitempty"`
	EndTime         string              `json:"endTime,omitempty"`
}

type placedResponse struct {
	Candidate  candidateResponse  `json:"candidate"`
	ActivityID openapi_types.UUID `json:"activityId"`
}

type poolResponse struct {
	Available   []candidateResponse `json:"available"`
	Placed      []placedResponse    `json:"placed"`
	Fingerprint string              `json:"fingerprint"`
}

// getPool handles GET /groups/{groupId}/pool.
// The fingerprint doubles as a strong ETag so clients polling an unchanged
// pool get 304 without a body.
func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	p, err := s.pools.Get(r.Context(), groupID)
	if err != nil {
		s.writeError(w, r, err, "group not found")
		return
	}

	fp := p.Fingerprint()
	etag := `"` + fp + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, poolToResponse(p, fp))
}

func poolToResponse(p pool.Pool, fp string) poolResponse {
	resp := poolResponse{
		Available:   make([]candidateResponse, len(p.Available)),
		Placed:      make([]placedResponse, len(p.Placed)),
		Fingerprint: fp,
	}
	for i, c := range p.Available {
		resp.Available[i] = candidateToResponse(c)
	}
	for i, pl := range p.Placed {
		resp.Placed[i] = placedResponse{Candidate: candidateToResponse(pl.Candidate), ActivityID: pl.ActivityID}
	}
	return resp
}

func candidateToResponse(c domain.Candidate) candidateResponse {
	resp := candidateResponse{
		ID:              c.ID,
		Kind:            c.Kind,
		Type:            c.Type,
		Title:           c.Title,
		Description:     c.Description,
		DurationMinutes: c.DurationMinutes,
		LocationID:      c.LocationID,
		Location:        c.Location,
		Color:           c.Color,
		PlanItemID:      c.PlanItemID,
		Time:            c.Time,
		EndTime:         c.EndTime,
	}
	if c.FixedDate != nil {
		resp.FixedDate = &openapi_types.Date{Time: *c.FixedDate}
	}
	return resp
}
