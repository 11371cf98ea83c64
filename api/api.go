// Package api exposes the coursewatch HTTP surface: the cached catalog and
// the subscribe endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/coursewatch/cache"
	"github.com/hazyhaar/coursewatch/catalog"
	"github.com/hazyhaar/coursewatch/subs"
)

// Catalog is the cache surface the API reads courses from.
type Catalog interface {
	Get(ctx context.Context, key string) ([]catalog.Offering, error)
}

// Registry is the subscription surface the API writes to.
type Registry interface {
	Upsert(ctx context.Context, sub *subs.Subscription) error
}

// Server holds the HTTP handlers.
type Server struct {
	catalog  Catalog
	registry Registry
	logger   *slog.Logger
}

// NewServer creates a Server.
func NewServer(cat Catalog, reg Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{catalog: cat, registry: reg, logger: logger}
}

// Routes mounts the API on a chi router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/api/courses", s.handleCourses)
	r.Post("/api/subscribe", s.handleSubscribe)
	r.Get("/healthz", s.handleHealthz)
}

// handleCourses serves the catalog from cache. A fresh or stale payload
// returns immediately; only a cold start with a failing scrape surfaces an
// error, as 502 because the upstream site is what failed.
func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	offerings, err := s.catalog.Get(r.Context(), cache.CatalogKey)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error("api: courses fetch", "error", err)
		jsonErr(w, "course catalog unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(offerings)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 16*1024)

	var req struct {
		UserID     string `json:"userId"`
		CourseID   string `json:"courseId"`
		Email      string `json:"email"`
		CourseName string `json:"courseName"`
		CourseNum  string `json:"courseNum"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	req.CourseID = strings.TrimSpace(req.CourseID)
	req.Email = strings.TrimSpace(req.Email)
	if req.UserID == "" || req.CourseID == "" {
		jsonErr(w, "userId and courseId are required", http.StatusBadRequest)
		return
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		jsonErr(w, "a valid email is required", http.StatusBadRequest)
		return
	}

	sub := &subs.Subscription{
		UserID:     req.UserID,
		CourseID:   req.CourseID,
		Email:      req.Email,
		CourseName: strings.TrimSpace(req.CourseName),
		CourseNum:  strings.TrimSpace(req.CourseNum),
	}
	if err := s.registry.Upsert(r.Context(), sub); err != nil {
		s.logger.Error("api: subscribe", "user", req.UserID, "course", req.CourseID, "error", err)
		jsonErr(w, "could not save subscription", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "subscribed — you will be emailed when a seat opens",
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
