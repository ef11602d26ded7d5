package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/facegate/internal/apperrors"
	"github.com/BrandonDHaskell/facegate/internal/facegate/gallery"
	"github.com/BrandonDHaskell/facegate/internal/facegate/service"
	"github.com/BrandonDHaskell/facegate/internal/facegate/session"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeServiceError maps domain errors onto HTTP statuses. Anything it does
// not recognise is logged and reported as a 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperrors.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
	case errors.Is(err, service.ErrInvalidIdentityKey),
		errors.Is(err, service.ErrInvalidName),
		errors.Is(err, service.ErrInvalidImage),
		errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, service.ErrNoFaceDetected):
		writeError(w, http.StatusUnprocessableEntity, "no_face", err.Error())
	case errors.Is(err, gallery.ErrNotFound), errors.Is(err, gallery.ErrCorruptData):
		writeError(w, http.StatusUnprocessableEntity, "gallery_unavailable", err.Error())
	case errors.Is(err, session.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "session_running", err.Error())
	case errors.Is(err, session.ErrNotRunning):
		writeError(w, http.StatusConflict, "session_not_running", err.Error())
	case errors.Is(err, session.ErrNoFrame):
		writeError(w, http.StatusConflict, "no_frame", err.Error())
	case errors.Is(err, session.ErrCameraRead):
		writeError(w, http.StatusServiceUnavailable, "camera_unavailable", err.Error())
	default:
		s.logger.Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}
