package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/felixgeelhaar/pmteam/internal/errors"
)

type errorBody struct {
	Error     errorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

type errorDetail struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error code to its HTTP status.
func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeRunNotFound, errors.ErrCodeProjectNotFound:
		return http.StatusNotFound
	case errors.ErrCodeEmptyRequest, errors.ErrCodeBadRequest, errors.ErrCodeInvalidMutation,
		errors.ErrCodeUnknownMode, errors.ErrCodeRunInvalid, errors.ErrCodeProjectInvalid,
		errors.ErrCodePlanInvalid:
		return http.StatusBadRequest
	case errors.ErrCodeProjectExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{RequestID: RequestID(r.Context())}
	status := http.StatusInternalServerError

	var coded *errors.Error
	if stderrors.As(err, &coded) {
		status = statusFor(coded.Code)
		body.Error = errorDetail{Code: string(coded.Code), Message: coded.Message, Suggestions: coded.Suggestions}
	} else {
		body.Error = errorDetail{Code: "INTERNAL", Message: "internal error"}
	}

	logger := s.deps.Logger.WithContext(r.Context()).WithError(err).With("request_id", body.RequestID)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "path", r.URL.Path)
	} else {
		logger.Debug("request rejected", "path", r.URL.Path, "status", status)
	}
	writeJSON(w, status, body)
}
