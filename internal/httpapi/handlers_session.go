package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/facegate/internal/facegate/gallery"
	"github.com/BrandonDHaskell/facegate/internal/facegate/session"
	"github.com/BrandonDHaskell/facegate/internal/imaging"
)

type skippedImage struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

type rebuildResponse struct {
	Scanned int            `json:"scanned"`
	Encoded int            `json:"encoded"`
	Skipped []skippedImage `json:"skipped"`
}

type galleryInfo struct {
	Path      string `json:"path"`
	Entries   int    `json:"entries"`
	Dimension int    `json:"dimension"`
}

type systemResponse struct {
	Version    string         `json:"version,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	Identities int            `json:"identities"`
	Events     int            `json:"events"`
	Gallery    galleryInfo    `json:"gallery"`
	Session    session.Status `json:"session"`
}

// handleExportGallery returns the persisted gallery blob as protobuf.
func (s *Server) handleExportGallery(w http.ResponseWriter, _ *http.Request) {
	writeProtoBytes(w, http.StatusOK, gallery.Marshal(s.gallery.Current()))
}

func (s *Server) handleRebuildGallery(w http.ResponseWriter, r *http.Request) {
	report, err := s.identities.RebuildGallery(r.Context(), nil)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := rebuildResponse{Scanned: report.Scanned, Encoded: report.Encoded, Skipped: []skippedImage{}}
	for _, sk := range report.Skipped {
		resp.Skipped = append(resp.Skipped, skippedImage{File: sk.File, Reason: sk.Reason})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleReloadGallery routes the reload through the running session so it
// lands between frames; without a session the store is reloaded directly.
func (s *Server) handleReloadGallery(w http.ResponseWriter, r *http.Request) {
	err := s.session.Reload(r.Context())
	if errors.Is(err, session.ErrNotRunning) {
		err = s.gallery.Reload()
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.galleryInfo())
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	negotiate(w, r, http.StatusOK, s.session.Status())
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	st, err := s.session.Start(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Stop(r.Context()); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Status())
}

func (s *Server) handleSessionFrame(w http.ResponseWriter, _ *http.Request) {
	frame, ok := s.session.LatestFrame()
	if !ok {
		writeError(w, http.StatusNotFound, "no_frame", "no frame has been processed yet")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(frame)
}

// handleRecognize runs one uploaded image through the recognition pipeline
// without touching the running session. With ?annotated=1 the response is
// the annotated JPEG instead of JSON.
func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", "image exceeds upload limit")
		return
	}
	img, err := imaging.Decode(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_image", "image could not be decoded")
		return
	}

	res, err := s.recognizer.ProcessFrame(r.Context(), "", img)
	if err != nil {
		s.logger.Warn("recognize failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "oracle_unavailable", err.Error())
		return
	}

	if annotated, _ := strconv.ParseBool(r.URL.Query().Get("annotated")); annotated {
		jpg, err := imaging.EncodeJPEG(res.Annotated, 85)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(jpg)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		session.FrameResult
		Banner string `json:"banner"`
	}{res, res.Banner().Text})
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	ids, err := s.identities.Count(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	events, err := s.access.CountEvents(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	negotiate(w, r, http.StatusOK, systemResponse{
		Version:    s.version,
		StartedAt:  s.started,
		Identities: ids,
		Events:     events,
		Gallery:    s.galleryInfo(),
		Session:    s.session.Status(),
	})
}

func (s *Server) galleryInfo() galleryInfo {
	g := s.gallery.Current()
	return galleryInfo{Path: s.gallery.Path(), Entries: g.Len(), Dimension: g.Dim()}
}
