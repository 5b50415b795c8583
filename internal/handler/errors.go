package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/transfer"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a stable machine-readable code, a human message, and
// the structured payload of the error kinds that have one.
type ErrorDetail struct {
	Code      string                  `json:"code"`
	Message   string                  `json:"message"`
	GroupIDs  []uuid.UUID             `json:"groupIds,omitempty"`
	Conflicts []domain.ConflictReport `json:"conflicts,omitempty"`
	Problems  []transfer.Problem      `json:"problems,omitempty"`
}

// notFoundBody returns an ErrorResponse for a missing resource.
// The caller supplies the human-readable message (e.g. "group not found")
// because the handler is the layer that knows what was being looked up.
func notFoundBody(message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: "not_found", Message: message}}
}

// requestBody returns an ErrorResponse for a bad request rejected before
// reaching the service layer (e.g. missing or malformed body).
func requestBody(message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: "validation_error", Message: message}}
}

// errorBody maps a service error to its status and body. ok is false for
// errors outside the domain taxonomy, which are reported as 500.
func errorBody(err error, notFound string) (status int, body ErrorResponse, ok bool) {
	var (
		invalid      *transfer.InvalidPayloadError
		precondition *domain.PreconditionError
		conflict     *domain.ConflictError
	)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, notFoundBody(notFound), true
	case errors.As(err, &invalid):
		body := ErrorResponse{Error: ErrorDetail{Code: "validation_error", Message: "payload failed validation", Problems: invalid.Problems}}
		return http.StatusUnprocessableEntity, body, true
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: ErrorDetail{Code: "validation_error", Message: unwrapMessage(err)}}, true
	case errors.As(err, &precondition):
		body := ErrorResponse{Error: ErrorDetail{Code: "precondition_failed", Message: precondition.Reason, GroupIDs: precondition.GroupIDs}}
		return http.StatusPreconditionFailed, body, true
	case errors.Is(err, domain.ErrPrecondition):
		return http.StatusPreconditionFailed, ErrorResponse{Error: ErrorDetail{Code: "precondition_failed", Message: unwrapMessage(err)}}, true
	case errors.As(err, &conflict):
		body := ErrorResponse{Error: ErrorDetail{Code: "conflict", Message: unwrapMessage(err), Conflicts: conflict.Reports}}
		return http.StatusConflict, body, true
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, ErrorResponse{Error: ErrorDetail{Code: "conflict", Message: unwrapMessage(err)}}, true
	case errors.Is(err, domain.ErrConcurrency):
		return http.StatusConflict, ErrorResponse{Error: ErrorDetail{Code: "stale_state", Message: unwrapMessage(err)}}, true
	}
	return http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{Code: "internal_error", Message: "internal server error"}}, false
}

// writeError writes the mapped error response. Unmapped errors are logged
// with the request context before the generic 500 body goes out.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	status, body, ok := errorBody(err, notFound)
	if !ok {
		s.log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}

// sentinels lists the texts of the domain sentinels, stripped from messages
// so clients see only the detail.
var sentinels = []string{
	domain.ErrValidation.Error(),
	domain.ErrPrecondition.Error(),
	domain.ErrConflict.Error(),
	domain.ErrConcurrency.Error(),
	domain.ErrNotFound.Error(),
}

// unwrapMessage extracts the human-readable part from a wrapped sentinel error.
// e.g. "service.GroupService.Create: validation error: name is required" → "name is required"
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for {
		head, rest, found := strings.Cut(msg, ": ")
		if !found || !isCallSite(head) {
			break
		}
		msg = rest
	}
	for _, s := range sentinels {
		if rest, ok := strings.CutPrefix(msg, s+": "); ok {
			return rest
		}
	}
	return msg
}

// isCallSite reports whether s looks like a "pkg.Type.Method" error prefix.
func isCallSite(s string) bool {
	return strings.Count(s, ".") >= 1 && !strings.ContainsAny(s, " \t\"")
}
