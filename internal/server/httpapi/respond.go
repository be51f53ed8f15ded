package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/server/services"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Points  *int64 `json:"points,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorUnauthenticated), errors.Is(err, common.ErrorInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorBadRequest), errors.Is(err, common.ErrorInsufficient):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage never leaks internals for 5xx.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, common.ErrorInvalidCredentials):
		return "invalid account or password"
	case errors.Is(err, common.ErrorUnauthenticated):
		return "not logged in"
	case errors.Is(err, common.ErrorInsufficient):
		return common.ErrorInsufficient.Error()
	case errors.Is(err, common.ErrorConflict):
		return "username already taken"
	case errors.Is(err, common.ErrorNotFound):
		return "user not found"
	case errors.Is(err, common.ErrorBadRequest):
		return err.Error()
	default:
		return "internal error"
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "request_id", requestID(r.Context()), "path", r.URL.Path, "error", err)
	}

	body := errorResponse{Error: publicMessage(err)}
	var ie *services.InsufficientError
	if errors.As(err, &ie) {
		body.Points = &ie.Balance
	}
	writeJSON(w, status, body)
}

// unauthenticated keeps store failures visible and folds the rest into 401.
func unauthenticated(err error) error {
	if err == nil || errors.Is(err, common.ErrorUnauthenticated) {
		return common.ErrorUnauthenticated
	}
	if errors.Is(err, common.ErrorStoreUnavailable) {
		return err
	}
	return common.ErrorUnauthenticated
}
