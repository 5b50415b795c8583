package handler

import (
	"net/http"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/tripplanner/internal/domain"
)

type createLocationRequest struct {
	Name            string `json:"name" validate:"required"`
	Address         string `json:"address"`
	Capacity        int    `json:"capacity" validate:"gte=0"`
	BlockedWeekdays []int  `json:"blockedWeekdays" validate:"dive,min=0,max=6"`
	TargetGroups    string `json:"targetGroups" validate:"omitempty,oneof=all primary secondary"`
	Active          *bool  `json:"active"`
}

type locationResponse struct {
	ID              openapi_types.UUID  `json:"id"`
	Name            string              `json:"name"`
	Address         string              `json:"address,omitempty"`
	Capacity        int                 `json:"capacity"`
	BlockedWeekdays []int               `json:"blockedWeekdays"`
	TargetGroups    domain.TargetGroups `json:"targetGroups"`
	Active          bool                `json:"active"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// createLocation handles POST /locations.
func (s *Server) createLocation(w http.ResponseWriter, r *http.Request) {
	var body createLocationRequest
	if err := s.decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	l := domain.Location{
		Name:         body.Name,
		Address:      body.Address,
		Capacity:     body.Capacity,
		TargetGroups: domain.TargetGroups(body.TargetGroups),
		Active:       body.Active == nil || *body.Active,
	}
	for _, d := range body.BlockedWeekdays {
		l.BlockedWeekdays = append(l.BlockedWeekdays, time.Weekday(d))
	}
	created, err := s.locations.Create(r.Context(), l)
	if err != nil {
		s.writeError(w, r, err, "location not found")
		return
	}
	writeJSON(w, http.StatusCreated, locationToResponse(created))
}

// listLocations handles GET /locations.
func (s *Server) listLocations(w http.ResponseWriter, r *http.Request) {
	ls, err := s.locations.List(r.Context())
	if err != nil {
		s.writeError(w, r, err, "location not found")
		return
	}
	out := make([]locationResponse, len(ls))
	for i, l := range ls {
		out[i] = locationToResponse(l)
	}
	writeJSON(w, http.StatusOK, out)
}

// getLocation handles GET /locations/{locationId}.
func (s *Server) getLocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "locationId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	l, err := s.locations.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "location not found")
		return
	}
	writeJSON(w, http.StatusOK, locationToResponse(l))
}

func locationToResponse(l domain.Location) locationResponse {
	days := make([]int, len(l.BlockedWeekdays))
	for i, d := range l.BlockedWeekdays {
		days[i] = int(d)
	}
	return locationResponse{
		ID:              l.ID,
		Name:            l.Name,
		Address:         l.Address,
		Capacity:        l.Capacity,
		BlockedWeekdays: days,
		TargetGroups:    l.TargetGroups,
		Active:          l.Active,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}
