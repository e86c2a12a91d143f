package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/allthingslinux/provisiond/internal/integration"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// lifecycleError maps the integration error taxonomy to an HTTP status and a
// user-facing message. Validation and conflict errors carry their full text;
// remote-service errors are reduced to the sentinel's message so raw remote
// fault strings never reach the caller.
func (s *Server) lifecycleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, integration.ErrInvalidIdentifier),
		errors.Is(err, integration.ErrIdentifierNotDerivable),
		errors.Is(err, integration.ErrInvalidStatus),
		errors.Is(err, integration.ErrIdentifierImmutable),
		errors.Is(err, integration.ErrNoChanges):
		writeError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, integration.ErrAlreadyHasAccount),
		errors.Is(err, integration.ErrIdentifierTaken):
		writeError(w, http.StatusConflict, err.Error())

	case errors.Is(err, integration.ErrNotFound):
		writeError(w, http.StatusNotFound, integration.ErrNotFound.Error())

	case errors.Is(err, integration.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, integration.ErrDisabled.Error())

	case errors.Is(err, integration.ErrAccountOrphaned):
		writeError(w, http.StatusInternalServerError, integration.ErrAccountOrphaned.Error())

	case errors.Is(err, integration.ErrLocalPersist):
		writeError(w, http.StatusInternalServerError, integration.ErrLocalPersist.Error())

	case errors.Is(err, integration.ErrRemoteRegistration):
		writeError(w, http.StatusInternalServerError, integration.ErrRemoteRegistration.Error())

	case errors.Is(err, integration.ErrRemoteCleanup):
		writeError(w, http.StatusInternalServerError, integration.ErrRemoteCleanup.Error())

	default:
		s.logger.Error("unhandled lifecycle error",
			"path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
