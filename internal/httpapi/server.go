package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/facegate/internal/auth"
	"github.com/BrandonDHaskell/facegate/internal/facegate/gallery"
	"github.com/BrandonDHaskell/facegate/internal/facegate/service"
	"github.com/BrandonDHaskell/facegate/internal/facegate/session"
)

// maxUploadBytes caps enrollment and recognition uploads.
const maxUploadBytes = 10 << 20

type Dependencies struct {
	Logger     *zap.Logger
	Addr       string
	Tokens     *auth.TokenIssuer
	Admins     *service.AdminService
	Identities *service.IdentityService
	Access     *service.AccessService
	Gallery    *gallery.Store
	Session    *session.Controller

	// Recognizer backs POST /v1/recognize. It should not record events.
	Recognizer *session.Processor

	// Version is reported by GET /v1/system.
	Version string
}

type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	validate   *validator.Validate
	started    time.Time

	admins     *service.AdminService
	identities *service.IdentityService
	access     *service.AccessService
	gallery    *gallery.Store
	session    *session.Controller
	recognizer *session.Processor
	version    string
}

func NewServer(d Dependencies) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		logger:     logger,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		started:    time.Now().UTC(),
		admins:     d.Admins,
		identities: d.Identities,
		access:     d.Access,
		gallery:    d.Gallery,
		session:    d.Session,
		recognizer: d.Recognizer,
		version:    d.Version,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(loggingMiddleware(logger))
	r.Use(chimw.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth(d.Tokens))

			r.Get("/system", s.handleSystem)
			r.Post("/admins", s.handleCreateAdmin)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleEnrollUser)
				r.Get("/{key}", s.handleGetUser)
				r.Patch("/{key}", s.handleUpdateUser)
				r.Delete("/{key}", s.handleDeleteUser)
			})

			r.Get("/access_logs", s.handleListAccessLogs)
			r.Delete("/access_logs", s.handleClearAccessLogs)

			r.Get("/gallery", s.handleExportGallery)
			r.Post("/gallery/rebuild", s.handleRebuildGallery)
			r.Post("/gallery/reload", s.handleReloadGallery)

			r.Get("/session", s.handleSessionStatus)
			r.Post("/session/start", s.handleSessionStart)
			r.Post("/session/stop", s.handleSessionStop)
			r.Post("/session/reload", s.handleReloadGallery)
			r.Get("/session/frame.jpg", s.handleSessionFrame)

			r.Post("/recognize", s.handleRecognize)
		})
	})

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// decodeJSON reads a JSON body into dst and validates it. On failure it has
// already written the response.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return s.check(w, dst)
}

func (s *Server) check(w http.ResponseWriter, v any) bool {
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+": failed "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}
