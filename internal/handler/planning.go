package handler

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/tripplanner/internal/service"
	"github.com/pkordes/tripplanner/internal/transfer"
)

// csvHeaders defines the column names written as the first row of a CSV export.
var csvHeaders = []string{
	"group_id", "date", "start_time", "end_time", "time_slot",
	"type", "title", "location_id", "resource_id", "plan_item_id",
	"description", "color",
}

type exportRequest struct {
	GroupIDs  []openapi_types.UUID `json:"groupIds" validate:"required,min=1"`
	StartDate openapi_types.Date   `json:"startDate" validate:"required"`
	EndDate   openapi_types.Date   `json:"endDate" validate:"required"`
}

type importRequest struct {
	Payload       transfer.Payload `json:"payload"`
	Options       transfer.Options `json:"options"`
	ValidationKey string           `json:"validationKey"`
}

type rollbackRequest struct {
	SnapshotToken string `json:"snapshotToken" validate:"required"`
}

// exportPlanning handles POST /planning/export.
// Use ?format=csv to receive the assignments as CSV; default is the JSON payload.
func (s *Server) exportPlanning(w http.ResponseWriter, r *http.Request) {
	var body exportRequest
	if err := s.decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	p, err := s.transfer.Export(r.Context(), body.GroupIDs, body.StartDate.Time, body.EndDate.Time)
	if err != nil {
		s.writeError(w, r, err, "group not found")
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		buf := buildCSV(p)
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// importPlanning handles POST /planning/import.
// options.dryRun selects validation; an apply must follow a dry run of the
// same payload and options.
func (s *Server) importPlanning(w http.ResponseWriter, r *http.Request) {
	var body importRequest
	if err := s.decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	res, err := s.transfer.Import(r.Context(), service.ImportRequest{
		Payload:       body.Payload,
		Options:       body.Options,
		ValidationKey: body.ValidationKey,
	})
	if err != nil {
		s.writeError(w, r, err, "group not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// rollbackPlanning handles POST /planning/rollback.
func (s *Server) rollbackPlanning(w http.ResponseWriter, r *http.Request) {
	var body rollbackRequest
	if err := s.decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	res, err := s.transfer.Rollback(r.Context(), body.SnapshotToken)
	if err != nil {
		s.writeError(w, r, err, "snapshot not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// buildCSV encodes the payload's assignments one per row.
func buildCSV(p transfer.Payload) *bytes.Buffer {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	//nolint:errcheck // bytes.Buffer.Write never returns an error.
	w.Write(csvHeaders)
	for _, as := range p.Assignments {
		//nolint:errcheck
		w.Write(assignmentToCSVRecord(as))
	}
	w.Flush()
	return &buf
}

// assignmentToCSVRecord flattens an assignment. Nil pointers become "".
func assignmentToCSVRecord(as transfer.Assignment) []string {
	var locationID, planItemID string
	if as.LocationID != nil {
		locationID = as.LocationID.String()
	}
	if as.PlanItemID != nil {
		planItemID = *as.PlanItemID
	}
	return []string{
		as.GroupID.String(),
		as.Date,
		as.StartTime,
		as.EndTime,
		as.TimeSlot,
		string(as.Type),
		as.Title,
		locationID,
		as.ResourceID,
		planItemID,
		as.Description,
		as.Color,
	}
}
