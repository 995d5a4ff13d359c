// Package api exposes the scheduling core over a plain JSON HTTP API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"slotbook/internal/cache"
	"slotbook/internal/engine"
	"slotbook/internal/model"
	"slotbook/internal/slots"
	"slotbook/internal/store"
)

// Limits bounds request sizes accepted by the API.
type Limits struct {
	MaxBatchDays       int
	ListDefaultLimit   int
	ExportMaxRangeDays int
	DefaultStepMinutes int
}

// HTTPServer wires the store, engine and batch creator behind HTTP handlers.
type HTTPServer struct {
	db      *store.DB
	engine  *engine.Engine
	admin   *engine.ServiceAdmin
	batches *slots.BatchCreator
	cache   *cache.SlotCache
	limits  Limits
	now     model.Clock
	logger  *zerolog.Logger
}

// NewHTTPServer creates the API server. cache may be nil; now may be nil,
// defaulting to time.Now.
func NewHTTPServer(db *store.DB, eng *engine.Engine, admin *engine.ServiceAdmin, batches *slots.BatchCreator, slotCache *cache.SlotCache, limits Limits, now model.Clock, logger *zerolog.Logger) *HTTPServer {
	if limits.ListDefaultLimit <= 0 {
		limits.ListDefaultLimit = 50
	}
	if limits.MaxBatchDays <= 0 {
		limits.MaxBatchDays = 90
	}
	if limits.ExportMaxRangeDays <= 0 {
		limits.ExportMaxRangeDays = 366
	}
	if limits.DefaultStepMinutes <= 0 {
		limits.DefaultStepMinutes = 30
	}
	if now == nil {
		now = time.Now
	}
	return &HTTPServer{
		db:      db,
		engine:  eng,
		admin:   admin,
		batches: batches,
		cache:   slotCache,
		limits:  limits,
		now:     now,
		logger:  logger,
	}
}

// Routes returns the API mux.
func (s *HTTPServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/slots", s.handleCreateSlots)
	mux.HandleFunc("GET /api/slots", s.handleGetSlots)
	mux.HandleFunc("POST /api/slots/{id}/activate", s.handleActivateSlot)
	mux.HandleFunc("POST /api/slots/{id}/deactivate", s.handleDeactivateSlot)
	mux.HandleFunc("DELETE /api/slots/past", s.handleDeletePastSlots)
	mux.HandleFunc("DELETE /api/slots", s.handleDeleteServiceSlots)

	mux.HandleFunc("POST /api/reservations", s.handleCreateReservation)
	mux.HandleFunc("GET /api/reservations", s.handleListReservations)
	mux.HandleFunc("GET /api/reservations/export", s.handleExportReservations)
	mux.HandleFunc("PATCH /api/reservations/{id}", s.handleUpdateReservation)
	mux.HandleFunc("POST /api/reservations/{id}/cancel", s.handleCancelReservation)
	mux.HandleFunc("POST /api/reservations/{id}/approve", s.handleApproveReservation)
	mux.HandleFunc("POST /api/reservations/{id}/reject", s.handleRejectReservation)
	mux.HandleFunc("POST /api/reservations/{id}/complete", s.handleCompleteReservation)
	mux.HandleFunc("POST /api/reservations/{id}/no-show", s.handleMarkNoShow)

	mux.HandleFunc("POST /api/services/{id}/duration", s.handleChangeServiceDuration)
	mux.HandleFunc("POST /api/services/{id}/deactivate", s.handleDeactivateService)

	mux.HandleFunc("GET /healthz", s.handleHealth)

	return mux
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the error taxonomy to HTTP status codes.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrConflict),
		errors.Is(err, model.ErrIllegalStateTransition),
		errors.Is(err, model.ErrServiceInactive),
		errors.Is(err, model.ErrProtectedByActiveReservations):
		status = http.StatusConflict
	case errors.Is(err, model.ErrInvalidTimeRange),
		errors.Is(err, model.ErrInvalidStep),
		errors.Is(err, model.ErrPastDate),
		errors.Is(err, model.ErrOutOfOperatingHours):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrRateLimited):
		status = http.StatusTooManyRequests
	}

	if status == http.StatusInternalServerError && s.logger != nil {
		s.logger.Error().Err(err).Msg("internal error")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
