package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/BrandonDHaskell/facegate/internal/facegate/service"
	"github.com/BrandonDHaskell/facegate/internal/facegate/store"
	"github.com/BrandonDHaskell/facegate/internal/facegate/types"
)

type enrollForm struct {
	Key    string `validate:"omitempty,max=64"`
	Name   string `validate:"required,max=128"`
	Status string `validate:"omitempty,oneof=active inactive"`
	// Capture enrolls from the session's last camera frame instead of an
	// uploaded image.
	Capture bool
}

type updateUserRequest struct {
	Name   *string `json:"name,omitempty" validate:"omitempty,min=1,max=128"`
	Status *string `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

type userListResponse struct {
	Users []types.Identity `json:"users"`
	Count int              `json:"count"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.identities.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userListResponse{Users: users, Count: len(users)})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	ident, err := s.identities.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

// handleEnrollUser takes a multipart form with name, optional key and
// status, and the reference photo in the "image" part. With capture=true and
// no image part, the photo is the session's last camera frame.
func (s *Server) handleEnrollUser(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_form", "expected multipart/form-data body")
		return
	}

	form := enrollForm{
		Key:    r.FormValue("key"),
		Name:   r.FormValue("name"),
		Status: r.FormValue("status"),
	}
	if v := r.FormValue("capture"); v != "" {
		capture, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "capture must be a boolean")
			return
		}
		form.Capture = capture
	}
	if !s.check(w, &form) {
		return
	}

	data, ok := s.enrollImage(w, r, form.Capture)
	if !ok {
		return
	}

	ident, err := s.identities.Enroll(r.Context(), service.EnrollRequest{
		Key:    form.Key,
		Name:   form.Name,
		Status: types.Status(form.Status),
		Image:  data,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ident)
}

func (s *Server) enrollImage(w http.ResponseWriter, r *http.Request, capture bool) ([]byte, bool) {
	file, _, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_image", "could not read image")
			return nil, false
		}
		return data, true
	case !capture:
		writeError(w, http.StatusBadRequest, "missing_image", "image file is required")
		return nil, false
	}

	data, err := s.session.CaptureFrame()
	if err != nil {
		s.writeServiceError(w, r, err)
		return nil, false
	}
	return data, true
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Name == nil && req.Status == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "nothing to update")
		return
	}

	upd := store.IdentityUpdate{Name: req.Name}
	if req.Status != nil {
		st := types.Status(*req.Status)
		upd.Status = &st
	}

	ident, err := s.identities.Update(r.Context(), chi.URLParam(r, "key"), upd)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.identities.Remove(r.Context(), chi.URLParam(r, "key")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type accessLogResponse struct {
	Events []types.AccessEvent `json:"events"`
	Count  int                 `json:"count"`
}

func (s *Server) handleListAccessLogs(w http.ResponseWriter, r *http.Request) {
	limit := service.DefaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = n
	}

	events, err := s.access.ListEvents(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accessLogResponse{Events: events, Count: len(events)})
}

func (s *Server) handleClearAccessLogs(w http.ResponseWriter, r *http.Request) {
	n, err := s.access.ClearEvents(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
