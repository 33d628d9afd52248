package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"spendsense/pipeline/internal/pipelineerror"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writePipelineError maps domain errors onto HTTP statuses. Malformed input
// is the client's fault; anything else is ours.
func writePipelineError(w http.ResponseWriter, err error) {
	var (
		unsupported *pipelineerror.UnsupportedFormatError
		locked      *pipelineerror.UnlockError
		empty       *pipelineerror.EmptyStatementError
		corrupt     *pipelineerror.CorruptFileError
		forbidden   *pipelineerror.ForbiddenError
		notFound    *pipelineerror.NotFoundError
	)
	switch {
	case errors.As(err, &unsupported):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &locked):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &empty):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &corrupt):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &forbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
