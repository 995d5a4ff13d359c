package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"slotbook/internal/metrics"
	"slotbook/internal/slots"
)

// ChangeDurationRequest is the request body for POST /api/services/{id}/duration.
// Days describe the regenerated schedule; the guard inside the store rejects
// the change while active future reservations exist.
type ChangeDurationRequest struct {
	DurationMinutes int    `json:"duration_minutes"`
	StepMinutes     int    `json:"step_minutes,omitempty"`
	Days            []struct {
		Date   string           `json:"date"`
		Ranges []slots.Interval `json:"ranges,omitempty"`
	} `json:"days"`
}

// handleChangeServiceDuration changes a service's duration and regenerates
// its slots atomically.
// POST /api/services/{id}/duration
func (s *HTTPServer) handleChangeServiceDuration(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("change_service_duration")

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid service id")
		return
	}

	var body ChangeDurationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.DurationMinutes <= 0 {
		writeError(w, http.StatusBadRequest, "duration_minutes must be positive")
		return
	}
	if len(body.Days) > s.limits.MaxBatchDays {
		writeError(w, http.StatusBadRequest, "too many days in one batch")
		return
	}

	step := body.StepMinutes
	if step == 0 {
		step = s.limits.DefaultStepMinutes
	}

	days := make([]slots.DaySchedule, 0, len(body.Days))
	for _, d := range body.Days {
		date, err := time.Parse("2006-01-02", d.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		days = append(days, slots.DaySchedule{Date: date, Ranges: d.Ranges})
	}

	result, err := s.admin.ChangeDuration(r.Context(), id, body.DurationMinutes, days, step)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if service, err := s.db.GetService(r.Context(), id); err == nil {
		s.cache.InvalidateBusiness(r.Context(), service.BusinessID)
	}
	writeJSON(w, http.StatusOK, result)
}

// handleDeactivateService retires a service that has no active future
// reservations.
// POST /api/services/{id}/deactivate
func (s *HTTPServer) handleDeactivateService(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("deactivate_service")

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid service id")
		return
	}

	service, err := s.db.GetService(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.admin.Deactivate(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.cache.InvalidateBusiness(r.Context(), service.BusinessID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
