package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/facegate/internal/auth"
)

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

type createAdminRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	token, exp, err := s.admins.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, TokenType: "Bearer", ExpiresAt: exp})
}

func (s *Server) handleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if err := s.admins.CreateAdmin(r.Context(), req.Username, req.Password); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	by := ""
	if c, ok := auth.GetClaims(r.Context()); ok {
		by = c.Subject
	}
	s.logger.Info("admin created", zap.String("username", req.Username), zap.String("by", by))
	writeJSON(w, http.StatusCreated, map[string]string{"username": req.Username})
}
