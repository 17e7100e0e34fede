package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vineetp6/serving/internal/serving"
	"github.com/vineetp6/serving/pkg/types"
)

var (
	errBadBody        = errors.New("invalid JSON body")
	errInvalidVersion = errors.New("version must be a positive integer")
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusForError maps core error kinds to HTTP status codes.
func statusForError(err error) int {
	switch {
	case serving.IsModelNotFound(err), serving.IsNoAvailableVersion(err), serving.IsVersionNotAvailable(err):
		return http.StatusNotFound
	case serving.IsDuplicateVersion(err), serving.IsStillInUse(err):
		return http.StatusConflict
	case serving.IsUnsupportedOperation(err), serving.IsInvalidArgument(err):
		return http.StatusBadRequest
	case serving.IsDeadlineExceeded(err):
		return http.StatusGatewayTimeout
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeServiceError maps a core error to a status code, writes the JSON
// payload, and logs the failure.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	writeJSONError(w, status, err.Error())
	logError(r, status, err)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
