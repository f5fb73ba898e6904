// Package api exposes the service boundary over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goshield/goshield/internal/app"
	"github.com/goshield/goshield/internal/domain/model"
	"github.com/goshield/goshield/internal/pipeline"
	"github.com/goshield/goshield/internal/registry"
	"github.com/goshield/goshield/pkg/logger"
	"github.com/goshield/goshield/pkg/metrics"
)

// Handler serves the ride-safety HTTP API.
type Handler struct {
	svc    *app.Service
	logger logger.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets a custom logger for the handler.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates a Handler over the service boundary.
func NewHandler(svc *app.Service, opts ...Option) *Handler {
	h := &Handler{svc: svc}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("api")
	}
	return h
}

// Routes builds the ServeMux with the metrics middleware applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", h.activateSession)
	mux.HandleFunc("POST /sessions/{id}/slices", h.submitSlice)
	mux.HandleFunc("DELETE /sessions/{id}", h.closeSession)
	mux.HandleFunc("GET /sessions/{id}/summary", h.sessionSummary)
	mux.HandleFunc("GET /sessions/{id}/assessments", h.sessionAssessments)
	mux.HandleFunc("GET /incidents", h.openIncidents)
	mux.HandleFunc("GET /stats", h.stats)
	mux.Handle("GET /healthz", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	return MetricsMiddleware(mux)
}

type activateRequest struct {
	DriverID     string `json:"driver_id"`
	RideID       string `json:"ride_id"`
	PassengerID  string `json:"passenger_id"`
	RouteRef     string `json:"route_ref"`
	LanguageHint string `json:"language_hint"`
}

type activateResponse struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) activateSession(w http.ResponseWriter, req *http.Request) {
	var body activateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.RideID == "" || body.PassengerID == "" || body.DriverID == "" {
		writeError(w, http.StatusBadRequest, "driver_id, ride_id and passenger_id are required")
		return
	}

	id, err := h.svc.Activate(req.Context(), model.SessionMeta{
		DriverID:     body.DriverID,
		RideID:       body.RideID,
		PassengerID:  body.PassengerID,
		RouteRef:     body.RouteRef,
		LanguageHint: body.LanguageHint,
	})
	if err != nil {
		h.writeDomainError(req.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, activateResponse{SessionID: id})
}

type sliceRequest struct {
	Seq        uint64    `json:"seq"`
	Payload    []byte    `json:"payload"`
	CapturedAt time.Time `json:"captured_at"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
}

type staleResponse struct {
	Status string `json:"status"`
	Seq    uint64 `json:"seq"`
}

type persistenceFailedResponse struct {
	Error      string                `json:"error"`
	Assessment *model.RiskAssessment `json:"assessment"`
}

func (h *Handler) submitSlice(w http.ResponseWriter, req *http.Request) {
	sessionID := req.PathValue("id")

	var body sliceRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.Payload) == 0 {
		writeError(w, http.StatusBadRequest, "payload is required")
		return
	}
	capturedAt := body.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	a, err := h.svc.SubmitSlice(req.Context(), model.AudioSlice{
		SessionID:  sessionID,
		Seq:        body.Seq,
		Payload:    body.Payload,
		CapturedAt: capturedAt,
		Lat:        body.Lat,
		Lon:        body.Lon,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, a)
	case errors.Is(err, registry.ErrStaleSlice):
		// Duplicates are an expected artifact of at-least-once delivery.
		writeJSON(w, http.StatusOK, staleResponse{Status: "stale", Seq: body.Seq})
	case errors.Is(err, pipeline.ErrPersistenceFailed):
		writeJSON(w, http.StatusBadGateway, persistenceFailedResponse{
			Error:      "assessment persistence failed, retrying in background",
			Assessment: a,
		})
	default:
		h.writeDomainError(req.Context(), w, err)
	}
}

func (h *Handler) closeSession(w http.ResponseWriter, req *http.Request) {
	if err := h.svc.CloseSession(req.Context(), req.PathValue("id")); err != nil {
		h.writeDomainError(req.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sessionSummary(w http.ResponseWriter, req *http.Request) {
	sum, err := h.svc.SessionSummary(req.Context(), req.PathValue("id"))
	if err != nil {
		h.writeDomainError(req.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) sessionAssessments(w http.ResponseWriter, req *http.Request) {
	list, err := h.svc.AssessmentsBySession(req.Context(), req.PathValue("id"))
	if err != nil {
		h.writeDomainError(req.Context(), w, err)
		return
	}
	if list == nil {
		list = []*model.RiskAssessment{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) openIncidents(w http.ResponseWriter, req *http.Request) {
	list, err := h.svc.OpenIncidents(req.Context())
	if err != nil {
		h.writeDomainError(req.Context(), w, err)
		return
	}
	if list == nil {
		list = []*model.Incident{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) stats(w http.ResponseWriter, req *http.Request) {
	st, err := h.svc.GetStats(req.Context())
	if err != nil {
		h.writeDomainError(req.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// writeDomainError maps domain sentinels onto HTTP statuses.
func (h *Handler) writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, registry.ErrDuplicateSession):
		writeError(w, http.StatusConflict, "an active session already exists for this ride and passenger")
	case errors.Is(err, registry.ErrSessionClosed):
		writeError(w, http.StatusGone, "session is closed")
	case errors.Is(err, registry.ErrOutOfCapacity):
		writeError(w, http.StatusTooManyRequests, "session in-flight limit reached")
	case errors.Is(err, registry.ErrRegistryFull):
		writeError(w, http.StatusServiceUnavailable, "session capacity reached")
	case errors.Is(err, pipeline.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "audio storage unavailable")
	default:
		h.logger.Error(ctx, "unhandled request error", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
