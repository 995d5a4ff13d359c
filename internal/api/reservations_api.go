package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"slotbook/internal/engine"
	"slotbook/internal/export"
	"slotbook/internal/metrics"
	"slotbook/internal/model"
	"slotbook/internal/store"
)

// CreateReservationRequest is the request body for POST /api/reservations.
// Dates travel as YYYY-MM-DD strings on the wire.
type CreateReservationRequest struct {
	CustomerID  int64  `json:"customer_id"`
	ServiceID   int64  `json:"service_id"`
	SlotID      *int64 `json:"slot_id,omitempty"`
	Date        string `json:"date,omitempty"`
	StartTime   string `json:"start_time,omitempty"`
	ClientName  string `json:"client_name,omitempty"`
	ClientPhone string `json:"client_phone,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// handleCreateReservation claims a slot or an on-demand time.
// POST /api/reservations
func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_reservation")

	var body CreateReservationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.CustomerID == 0 || body.ServiceID == 0 {
		writeError(w, http.StatusBadRequest, "customer_id and service_id are required")
		return
	}

	req := engine.CreateRequest{
		CustomerID:  body.CustomerID,
		ServiceID:   body.ServiceID,
		SlotID:      body.SlotID,
		StartTime:   body.StartTime,
		ClientName:  body.ClientName,
		ClientPhone: body.ClientPhone,
		Notes:       body.Notes,
	}
	if body.Date != "" {
		date, err := time.Parse("2006-01-02", body.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		req.Date = date
	}

	reservation, err := s.engine.CreateReservation(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.cache.InvalidateDay(r.Context(), reservation.BusinessID, reservation.Date)
	writeJSON(w, http.StatusCreated, reservation)
}

// handleListReservations lists reservations for a customer or a business.
// GET /api/reservations?customer=1
// GET /api/reservations?business=1&status=pending&from=...&to=...&limit=...&offset=...
func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_reservations")

	q := r.URL.Query()
	if customerStr := q.Get("customer"); customerStr != "" {
		customerID, err := strconv.ParseInt(customerStr, 10, 64)
		if err != nil || customerID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid customer id")
			return
		}
		list, err := s.db.ListReservationsForCustomer(r.Context(), customerID)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reservations": list})
		return
	}

	businessID, err := strconv.ParseInt(q.Get("business"), 10, 64)
	if err != nil || businessID <= 0 {
		writeError(w, http.StatusBadRequest, "customer or business is required")
		return
	}

	filter, err := s.parseFilter(q.Get("status"), q.Get("from"), q.Get("to"), q.Get("limit"), q.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := s.db.ListReservationsForBusiness(r.Context(), businessID, filter)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": list})
}

func (s *HTTPServer) parseFilter(status, from, to, limit, offset string) (store.ReservationFilter, error) {
	filter := store.ReservationFilter{Limit: s.limits.ListDefaultLimit}

	if status != "" {
		st := model.ReservationStatus(status)
		if !st.Valid() {
			return filter, fmt.Errorf("unknown status %q", status)
		}
		filter.Status = st
	}
	if from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return filter, fmt.Errorf("invalid from format; expected YYYY-MM-DD")
		}
		filter.DateFrom = t
	}
	if to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return filter, fmt.Errorf("invalid to format; expected YYYY-MM-DD")
		}
		filter.DateTo = t
	}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			return filter, fmt.Errorf("invalid limit")
		}
		filter.Limit = n
	}
	if offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("invalid offset")
		}
		filter.Offset = n
	}
	return filter, nil
}

// handleExportReservations streams a business's reservations as an xlsx
// report.
// GET /api/reservations/export?business=1&from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *HTTPServer) handleExportReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_reservations")

	q := r.URL.Query()
	businessID, err := strconv.ParseInt(q.Get("business"), 10, 64)
	if err != nil || businessID <= 0 {
		writeError(w, http.StatusBadRequest, "business is required")
		return
	}
	from, err := time.Parse("2006-01-02", q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from format; expected YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to format; expected YYYY-MM-DD")
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "from must be before or equal to to")
		return
	}
	if int(to.Sub(from).Hours()/24) > s.limits.ExportMaxRangeDays {
		writeError(w, http.StatusBadRequest, "export range too large")
		return
	}

	list, err := s.db.ListReservationsForBusiness(r.Context(), businessID, store.ReservationFilter{
		DateFrom: from,
		DateTo:   to,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	filename := fmt.Sprintf("reservations_%d_%s_%s.xlsx", businessID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := export.WriteReservationReport(w, businessID, list); err != nil {
		s.logger.Error().Err(err).Int64("business_id", businessID).Msg("export failed")
	}
}

// UpdateReservationRequest is the request body for PATCH /api/reservations/{id}.
type UpdateReservationRequest struct {
	Date        *string `json:"date,omitempty"`
	StartTime   *string `json:"start_time,omitempty"`
	ClientName  *string `json:"client_name,omitempty"`
	ClientPhone *string `json:"client_phone,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// handleUpdateReservation edits a pending or confirmed reservation.
// PATCH /api/reservations/{id}
func (s *HTTPServer) handleUpdateReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("update_reservation")

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	var body UpdateReservationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	upd := engine.UpdateRequest{
		StartTime:   body.StartTime,
		ClientName:  body.ClientName,
		ClientPhone: body.ClientPhone,
		Notes:       body.Notes,
	}
	if body.Date != nil {
		date, err := time.Parse("2006-01-02", *body.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		upd.Date = &date
	}

	reservation, err := s.engine.Update(r.Context(), id, upd)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

// handleCancelReservation cancels on behalf of the customer.
// POST /api/reservations/{id}/cancel
func (s *HTTPServer) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_reservation")

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	reservation, err := s.engine.Cancel(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.cache.InvalidateDay(r.Context(), reservation.BusinessID, reservation.Date)
	writeJSON(w, http.StatusOK, reservation)
}

// handleApproveReservation confirms a pending reservation.
// POST /api/reservations/{id}/approve?business=1
func (s *HTTPServer) handleApproveReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("approve_reservation")
	s.decide(w, r, s.engine.Approve)
}

// handleRejectReservation rejects a pending reservation.
// POST /api/reservations/{id}/reject?business=1
func (s *HTTPServer) handleRejectReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reject_reservation")
	s.decide(w, r, s.engine.Reject)
}

// handleCompleteReservation marks a confirmed reservation as served.
// POST /api/reservations/{id}/complete?business=1
func (s *HTTPServer) handleCompleteReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("complete_reservation")
	s.decide(w, r, s.engine.Complete)
}

// handleMarkNoShow marks a confirmed reservation as a no-show.
// POST /api/reservations/{id}/no-show?business=1
func (s *HTTPServer) handleMarkNoShow(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("mark_no_show")
	s.decide(w, r, s.engine.MarkNoShow)
}

// decide runs a business-side lifecycle decision. The business query param
// scopes the action to reservations the business owns.
func (s *HTTPServer) decide(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, reservationID, businessID int64) (*model.Reservation, error)) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}
	businessID, err := strconv.ParseInt(r.URL.Query().Get("business"), 10, 64)
	if err != nil || businessID <= 0 {
		writeError(w, http.StatusBadRequest, "business is required")
		return
	}

	reservation, err := fn(r.Context(), id, businessID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.cache.InvalidateDay(r.Context(), reservation.BusinessID, reservation.Date)
	writeJSON(w, http.StatusOK, reservation)
}
