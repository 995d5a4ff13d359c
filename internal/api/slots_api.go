package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"slotbook/internal/metrics"
	"slotbook/internal/slots"
)

// CreateSlotsRequest is the request body for POST /api/slots.
type CreateSlotsRequest struct {
	ServiceID   int64  `json:"service_id"`
	StepMinutes int    `json:"step_minutes,omitempty"`
	Days        []struct {
		Date   string           `json:"date"` // YYYY-MM-DD
		Ranges []slots.Interval `json:"ranges,omitempty"`
	} `json:"days"`
}

// handleCreateSlots commits an all-or-nothing slot batch.
// POST /api/slots
func (s *HTTPServer) handleCreateSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_slots")

	var req CreateSlotsRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ServiceID == 0 {
		writeError(w, http.StatusBadRequest, "service_id is required")
		return
	}
	if len(req.Days) == 0 {
		writeError(w, http.StatusBadRequest, "days is required")
		return
	}
	if len(req.Days) > s.limits.MaxBatchDays {
		writeError(w, http.StatusBadRequest, "too many days in one batch")
		return
	}

	step := req.StepMinutes
	if step == 0 {
		step = s.limits.DefaultStepMinutes
	}

	days := make([]slots.DaySchedule, 0, len(req.Days))
	for _, d := range req.Days {
		date, err := time.Parse("2006-01-02", d.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		days = append(days, slots.DaySchedule{Date: date, Ranges: d.Ranges})
	}

	service, err := s.db.GetService(r.Context(), req.ServiceID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	result, err := s.batches.CreateSlots(r.Context(), service, days, step)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	metrics.IncSlotBatchCreated()
	s.cache.InvalidateBusiness(r.Context(), service.BusinessID)
	writeJSON(w, http.StatusCreated, result)
}

// handleGetSlots lists slots for a business by day or by range.
// GET /api/slots?business=1&date=YYYY-MM-DD
// GET /api/slots?business=1&from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *HTTPServer) handleGetSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_slots")

	businessID, err := strconv.ParseInt(r.URL.Query().Get("business"), 10, 64)
	if err != nil || businessID <= 0 {
		writeError(w, http.StatusBadRequest, "business is required")
		return
	}

	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}

		if cached, ok := s.cache.GetDay(r.Context(), businessID, date); ok {
			writeJSON(w, http.StatusOK, map[string]any{"slots": cached})
			return
		}

		list, err := s.db.GetSlotsByDate(r.Context(), businessID, date)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		s.cache.SetDay(r.Context(), businessID, date, list)
		writeJSON(w, http.StatusOK, map[string]any{"slots": list})
		return
	}

	fromStr, toStr := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if fromStr == "" || toStr == "" {
		writeError(w, http.StatusBadRequest, "date or from/to is required")
		return
	}
	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from format; expected YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to format; expected YYYY-MM-DD")
		return
	}
	if from.After(to) {
		writeError(w, http.StatusBadRequest, "from must be before or equal to to")
		return
	}

	list, err := s.db.GetSlotsByRange(r.Context(), businessID, from, to)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": list})
}

// handleActivateSlot re-enables a slot.
// POST /api/slots/{id}/activate
func (s *HTTPServer) handleActivateSlot(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("activate_slot")
	s.toggleSlot(w, r, true)
}

// handleDeactivateSlot soft-disables a slot without touching reservations.
// POST /api/slots/{id}/deactivate
func (s *HTTPServer) handleDeactivateSlot(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("deactivate_slot")
	s.toggleSlot(w, r, false)
}

func (s *HTTPServer) toggleSlot(w http.ResponseWriter, r *http.Request, available bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid slot id")
		return
	}

	slot, err := s.db.GetSlot(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.db.SetSlotAvailable(r.Context(), id, available); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.cache.InvalidateDay(r.Context(), slot.BusinessID, slot.Date)
	slot.Available = available
	writeJSON(w, http.StatusOK, slot)
}

// handleDeletePastSlots removes a business's slots dated before today.
// DELETE /api/slots/past?business=1
func (s *HTTPServer) handleDeletePastSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_past_slots")

	businessID, err := strconv.ParseInt(r.URL.Query().Get("business"), 10, 64)
	if err != nil || businessID <= 0 {
		writeError(w, http.StatusBadRequest, "business is required")
		return
	}

	deleted, err := s.db.DeletePastSlots(r.Context(), businessID, s.now())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.cache.InvalidateBusiness(r.Context(), businessID)
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// handleDeleteServiceSlots removes every slot owned by business+service.
// DELETE /api/slots?business=1&service=2
func (s *HTTPServer) handleDeleteServiceSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_service_slots")

	businessID, err := strconv.ParseInt(r.URL.Query().Get("business"), 10, 64)
	if err != nil || businessID <= 0 {
		writeError(w, http.StatusBadRequest, "business is required")
		return
	}
	serviceID, err := strconv.ParseInt(r.URL.Query().Get("service"), 10, 64)
	if err != nil || serviceID <= 0 {
		writeError(w, http.StatusBadRequest, "service is required")
		return
	}

	deleted, err := s.db.DeleteServiceSlots(r.Context(), businessID, serviceID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.cache.InvalidateBusiness(r.Context(), businessID)
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
