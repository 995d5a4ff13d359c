package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotbook/internal/engine"
	"slotbook/internal/model"
	"slotbook/internal/slots"
	"slotbook/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

type testEnv struct {
	*httptest.Server
	db       *store.DB
	customer *model.Customer
	service  *model.Service
}

// 2026-09-07 is a Monday; the clock is frozen a week earlier.
var (
	apiMonday = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	apiClock  = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
)

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := store.Open(filepath.Join(t.TempDir(), "api.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.SetWindows(ctx, 1, 1, []model.OperatingWindow{
		{OpenTime: "09:00", CloseTime: "12:00"},
	}))

	service := &model.Service{
		BusinessID: 1, Name: "haircut",
		OrderMode: model.OrderModeScheduled, DurationMin: 30, Capacity: 1, Active: true,
	}
	require.NoError(t, db.CreateService(ctx, service))

	customer := &model.Customer{Name: "Alice", Phone: "+100"}
	require.NoError(t, db.CreateCustomer(ctx, customer))

	batches := slots.NewBatchCreator(db, db, apiClock, nil)
	eng := engine.New(db, apiClock, engine.OnDemandLimit{}, nil)
	admin := engine.NewServiceAdmin(db, batches, apiClock, nil)
	server := NewHTTPServer(db, eng, admin, batches, nil, Limits{}, apiClock, nil)

	return &testEnv{
		Server:   httptest.NewServer(server.Routes()),
		db:       db,
		customer: customer,
		service:  service,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, data
}

func (e *testEnv) createSlots(t *testing.T) []model.Slot {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/slots", map[string]any{
		"service_id": e.service.ID,
		"days":       []map[string]any{{"date": apiMonday.Format("2006-01-02")}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var result slots.BatchResult
	require.NoError(t, json.Unmarshal(body, &result))
	require.NotEmpty(t, result.Slots)
	return result.Slots
}

func errOf(t *testing.T, body []byte) string {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	return e.Error
}

func TestCreateSlotsEndpoint(t *testing.T) {
	env := setupTestServer(t)
	defer env.Close()

	t.Run("happy path", func(t *testing.T) {
		created := env.createSlots(t)
		// 09:00-12:00 at 30-minute duration and step.
		assert.Len(t, created, 6)
		assert.Equal(t, "09:00", created[0].StartTime)
	})

	t.Run("duplicate batch conflicts", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/api/slots", map[string]any{
			"service_id": env.service.ID,
			"days":       []map[string]any{{"date": apiMonday.Format("2006-01-02")}},
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode, string(body))
	})

	t.Run("missing service", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/api/slots", map[string]any{
			"days": []map[string]any{{"date": apiMonday.Format("2006-01-02")}},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "service_id is required", errOf(t, body))
	})

	t.Run("unknown service", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodPost, "/api/slots", map[string]any{
			"service_id": 999,
			"days":       []map[string]any{{"date": apiMonday.Format("2006-01-02")}},
		})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("bad date format", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/api/slots", map[string]any{
			"service_id": env.service.ID,
			"days":       []map[string]any{{"date": "07.09.2026"}},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid date format; expected YYYY-MM-DD", errOf(t, body))
	})

	t.Run("range outside operating hours", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodPost, "/api/slots", map[string]any{
			"service_id": env.service.ID,
			"days": []map[string]any{{
				"date":   apiMonday.AddDate(0, 0, 7).Format("2006-01-02"),
				"ranges": []map[string]string{{"start": "11:00", "end": "14:00"}},
			}},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetSlotsEndpoint(t *testing.T) {
	env := setupTestServer(t)
	defer env.Close()
	env.createSlots(t)

	day := apiMonday.Format("2006-01-02")

	resp, body := env.do(t, http.MethodGet, "/api/slots?business=1&date="+day, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var byDay struct {
		Slots []model.Slot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(body, &byDay))
	assert.Len(t, byDay.Slots, 6)

	resp, body = env.do(t, http.MethodGet,
		fmt.Sprintf("/api/slots?business=1&from=%s&to=%s", day, day), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &byDay))
	assert.Len(t, byDay.Slots, 6)

	resp, _ = env.do(t, http.MethodGet, "/api/slots?date="+day, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "business is required")

	resp, _ = env.do(t, http.MethodGet, "/api/slots?business=1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "date or from/to is required")
}

func TestReservationLifecycleEndpoints(t *testing.T) {
	env := setupTestServer(t)
	defer env.Close()
	created := env.createSlots(t)
	slotID := created[0].ID

	claim := map[string]any{
		"customer_id": env.customer.ID,
		"service_id":  env.service.ID,
		"slot_id":     slotID,
	}

	resp, body := env.do(t, http.MethodPost, "/api/reservations", claim)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var r model.Reservation
	require.NoError(t, json.Unmarshal(body, &r))
	assert.Equal(t, model.StatusPending, r.Status)
	assert.Equal(t, "10:00", created[2].StartTime) // sanity on ordering
	assert.NotEmpty(t, r.Code)

	// Second claim for the same capacity-1 slot is rejected.
	resp, _ = env.do(t, http.MethodPost, "/api/reservations", claim)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Approve with the wrong business is hidden as not-found.
	resp, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/reservations/%d/approve?business=99", r.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, fmt.Sprintf("/api/reservations/%d/approve?business=1", r.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &r))
	assert.Equal(t, model.StatusConfirmed, r.Status)

	// Completed is terminal: a later cancel conflicts.
	resp, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/reservations/%d/complete?business=1", r.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/reservations/%d/cancel", r.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestReservationUpdateEndpoint(t *testing.T) {
	env := setupTestServer(t)
	defer env.Close()
	created := env.createSlots(t)

	resp, body := env.do(t, http.MethodPost, "/api/reservations", map[string]any{
		"customer_id": env.customer.ID,
		"service_id":  env.service.ID,
		"slot_id":     created[0].ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var r model.Reservation
	require.NoError(t, json.Unmarshal(body, &r))

	resp, body = env.do(t, http.MethodPatch, fmt.Sprintf("/api/reservations/%d", r.ID), map[string]any{
		"notes": "please hurry",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &r))
	assert.Equal(t, "please hurry", r.Notes)

	// Scheduled reservations are pinned to their slot's time.
	resp, _ = env.do(t, http.MethodPatch, fmt.Sprintf("/api/reservations/%d", r.ID), map[string]any{
		"start_time": "11:00",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown fields are rejected.
	resp, _ = env.do(t, http.MethodPatch, fmt.Sprintf("/api/reservations/%d", r.ID), map[string]any{
		"status": "confirmed",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListReservationsEndpoint(t *testing.T) {
	env := setupTestServer(t)
	defer env.Close()
	created := env.createSlots(t)

	for i := 0; i < 2; i++ {
		resp, _ := env.do(t, http.MethodPost, "/api/reservations", map[string]any{
			"customer_id": env.customer.ID,
			"service_id":  env.service.ID,
			"slot_id":     created[i].ID,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	var list struct {
		Reservations []model.Reservation `json:"reservations"`
	}

	resp, body := env.do(t, http.MethodGet, fmt.Sprintf("/api/reservations?customer=%d", env.customer.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list.Reservations, 2)

	resp, body = env.do(t, http.MethodGet, "/api/reservations?business=1&status=pending", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list.Reservations, 2)

	resp, _ = env.do(t, http.MethodGet, "/api/reservations?business=1&status=sleeping", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/reservations", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSlotToggleEndpoints(t *testing.T) {
	env := setupTestServer(t)
	defer env.Close()
	created := env.createSlots(t)
	slotID := created[0].ID

	resp, body := env.do(t, http.MethodPost, fmt.Sprintf("/api/slots/%d/deactivate", slotID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var s model.Slot
	require.NoError(t, json.Unmarshal(body, &s))
	assert.False(t, s.Available)

	// A deactivated slot rejects claims.
	resp, _ = env.do(t, http.MethodPost, "/api/reservations", map[string]any{
		"customer_id": env.customer.ID,
		"service_id":  env.service.ID,
		"slot_id":     slotID,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, fmt.Sprintf("/api/slots/%d/activate", slotID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &s))
	assert.True(t, s.Available)

	resp, _ = env.do(t, http.MethodPost, "/api/slots/999/deactivate", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteSlotsEndpoints(t *testing.T) {
	env := setupTestServer(t)
	defer env.Close()
	env.createSlots(t)

	// One stale slot dated a week before the frozen clock.
	staleMonday := apiMonday.AddDate(0, 0, -14)
	_, err := env.db.CreateSlotBatch(context.Background(), []model.Slot{{
		BusinessID: 1, ServiceID: env.service.ID, Date: staleMonday,
		StartTime: "09:00", EndTime: "09:30", Capacity: 1, Available: true,
	}})
	require.NoError(t, err)

	// Past delete consults the injected clock: only the stale slot goes.
	resp, body := env.do(t, http.MethodDelete, "/api/slots/past?business=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]int64
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, int64(1), out["deleted"])

	resp, body = env.do(t, http.MethodDelete,
		fmt.Sprintf("/api/slots?business=1&service=%d", env.service.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, int64(6), out["deleted"])

	resp, body = env.do(t, http.MethodDelete, "/api/slots/past?business=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, int64(0), out["deleted"])
}

func TestServiceAdminEndpoints(t *testing.T) {
	env := setupTestServer(t)
	defer env.Close()
	created := env.createSlots(t)

	day := apiMonday.Format("2006-01-02")
	change := map[string]any{
		"duration_minutes": 60,
		"step_minutes":     60,
		"days":             []map[string]any{{"date": day}},
	}

	// Live reservation blocks the duration change.
	resp, _ := env.do(t, http.MethodPost, "/api/reservations", map[string]any{
		"customer_id": env.customer.ID,
		"service_id":  env.service.ID,
		"slot_id":     created[0].ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/services/%d/duration", env.service.ID), change)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/services/%d/deactivate", env.service.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Cancel the reservation; both admin actions now succeed.
	var r model.Reservation
	listResp, listBody := env.do(t, http.MethodGet, "/api/reservations?business=1&status=pending", nil)
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	var list struct {
		Reservations []model.Reservation `json:"reservations"`
	}
	require.NoError(t, json.Unmarshal(listBody, &list))
	require.Len(t, list.Reservations, 1)
	r = list.Reservations[0]

	resp, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/reservations/%d/cancel", r.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, fmt.Sprintf("/api/services/%d/duration", env.service.ID), change)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var result slots.BatchResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 3, result.Created, "09:00, 10:00, 11:00 at the new duration")

	resp, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/services/%d/deactivate", env.service.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExportEndpoint(t *testing.T) {
	env := setupTestServer(t)
	defer env.Close()
	created := env.createSlots(t)

	resp, _ := env.do(t, http.MethodPost, "/api/reservations", map[string]any{
		"customer_id": env.customer.ID,
		"service_id":  env.service.ID,
		"slot_id":     created[0].ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	day := apiMonday.Format("2006-01-02")
	resp, body := env.do(t, http.MethodGet,
		fmt.Sprintf("/api/reservations/export?business=1&from=%s&to=%s", day, day), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, body)

	resp, _ = env.do(t, http.MethodGet, "/api/reservations/export?business=1&from=2026-09-07", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestServer(t)
	defer env.Close()

	resp, body := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}
