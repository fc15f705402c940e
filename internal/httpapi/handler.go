// Package httpapi exposes the review service over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/ingest"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/services"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/storage"
)

// maxBodyBytes bounds a review request body.
const maxBodyBytes = 1 << 20

// Service is the subset of services.ReviewService served over HTTP.
type Service interface {
	Review(ctx context.Context, req models.ReviewRequest) (*models.ReviewResponse, error)
	ProviderHealth(ctx context.Context, provider string) models.ProviderHealthResponse
	Session(ctx context.Context, id string) (*models.ReviewSession, []models.Finding, error)
	RecentSessions(ctx context.Context, limit int) ([]*models.ReviewSession, error)
}

// SessionResponse is the body of GET /v1/reviews/{sessionID}.
type SessionResponse struct {
	Session  *models.ReviewSession `json:"session"`
	Findings []models.Finding      `json:"findings"`
}

// Handler wires review endpoints to the review service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the review endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/reviews", h.HandleCreateReview)
		v1.Get("/reviews", h.HandleListReviews)
		v1.Get("/reviews/{sessionID}", h.HandleGetReview)
		v1.Get("/providers/health", h.HandleProviderHealth)
	})
}

// NewRouter builds the full server router: review endpoints, /healthz and
// /metrics served from gatherer.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	h.Register(r)
	return r
}

// HandleCreateReview handles POST /v1/reviews.
func (h *Handler) HandleCreateReview(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req models.ReviewRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("Could not decode request body", "error", err)
		writeError(w, http.StatusBadRequest, "bad_request", "could not parse JSON")
		return
	}
	logCtx := h.logger.With("sourceUri", req.SourceURI, "requestId", middleware.GetReqID(r.Context()))

	resp, err := h.service.Review(r.Context(), req)
	if err != nil {
		status, code := statusFor(err)
		logCtx.Error("Review request failed", "error", err, "status", status)
		writeError(w, status, code, err.Error())
		return
	}
	logCtx.Info("Review request served.",
		"sessionId", resp.SessionID,
		"status", resp.Status,
		"duration", time.Since(start).String(),
	)
	writeJSON(w, http.StatusOK, resp)
}

// HandleGetReview handles GET /v1/reviews/{sessionID}.
func (h *Handler) HandleGetReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	session, findings, err := h.service.Session(r.Context(), id)
	if err != nil {
		status, code := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to load session", "sessionId", id, "error", err)
		}
		writeError(w, status, code, err.Error())
		return
	}
	if findings == nil {
		findings = []models.Finding{}
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: session, Findings: findings})
}

// HandleListReviews handles GET /v1/reviews?limit=N.
func (h *Handler) HandleListReviews(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	sessions, err := h.service.RecentSessions(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*models.ReviewSession{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// HandleProviderHealth handles GET /v1/providers/health?provider=name.
func (h *Handler) HandleProviderHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ProviderHealth(r.Context(), r.URL.Query().Get("provider")))
}

// statusFor maps service errors onto HTTP statuses and error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ingest.ErrSourceNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, "unsupported_format"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

// writeError writes the JSON error envelope. Internal errors omit the
// description.
func writeError(w http.ResponseWriter, status int, code, description string) {
	body := map[string]string{"error": code}
	if status != http.StatusInternalServerError {
		body["error_description"] = description
	}
	writeJSON(w, status, body)
}
