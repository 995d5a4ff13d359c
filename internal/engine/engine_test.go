package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"slotbook/internal/model"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
}

func (m *mockStore) GetService(ctx context.Context, id int64) (*model.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Service), args.Error(1)
}

func (m *mockStore) GetSlot(ctx context.Context, id int64) (*model.Slot, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Slot), args.Error(1)
}

func (m *mockStore) GetReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reservation), args.Error(1)
}

func (m *mockStore) CreateScheduledReservation(ctx context.Context, r *model.Reservation) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockStore) CreateOnDemandReservation(ctx context.Context, r *model.Reservation) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockStore) TransitionReservation(ctx context.Context, id int64, from, to model.ReservationStatus) error {
	return m.Called(ctx, id, from, to).Error(0)
}

func (m *mockStore) UpdateReservationDetails(ctx context.Context, r *model.Reservation) error {
	return m.Called(ctx, r).Error(0)
}

var (
	frozenNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	futureDay = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	pastDay   = time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
)

func frozenClock() time.Time { return frozenNow }

func newEngine(store Store) *Engine {
	return New(store, frozenClock, OnDemandLimit{}, nil)
}

func testCustomer() *model.Customer {
	return &model.Customer{ID: 10, Name: "Alice", Phone: "+100"}
}

func testScheduledService() *model.Service {
	return &model.Service{
		ID: 2, BusinessID: 1, Name: "haircut",
		OrderMode: model.OrderModeScheduled, DurationMin: 30, Capacity: 1, Active: true,
	}
}

func testOnDemandService() *model.Service {
	return &model.Service{
		ID: 3, BusinessID: 1, Name: "delivery",
		OrderMode: model.OrderModeOnDemand, Active: true,
	}
}

func testSlot() *model.Slot {
	return &model.Slot{
		ID: 5, BusinessID: 1, ServiceID: 2, Date: futureDay,
		StartTime: "10:00", EndTime: "10:30", Capacity: 1, Available: true,
	}
}

func TestCreateScheduledReservation(t *testing.T) {
	store := new(mockStore)
	store.On("GetCustomer", mock.Anything, int64(10)).Return(testCustomer(), nil)
	store.On("GetService", mock.Anything, int64(2)).Return(testScheduledService(), nil)
	store.On("GetSlot", mock.Anything, int64(5)).Return(testSlot(), nil)
	store.On("CreateScheduledReservation", mock.Anything, mock.AnythingOfType("*model.Reservation")).Return(nil)

	slotID := int64(5)
	r, err := newEngine(store).CreateReservation(context.Background(), CreateRequest{
		CustomerID: 10, ServiceID: 2, SlotID: &slotID,
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, r.Status)
	assert.NotEmpty(t, r.Code)
	assert.Equal(t, futureDay, r.Date)
	assert.Equal(t, "10:00", r.StartTime)
	assert.Equal(t, 30, r.DurationMin)
	assert.Equal(t, "Alice", r.ClientName, "contact fields fall back to the customer record")
	store.AssertExpectations(t)
}

func TestCreateScheduledRequiresSlot(t *testing.T) {
	store := new(mockStore)
	store.On("GetCustomer", mock.Anything, int64(10)).Return(testCustomer(), nil)
	store.On("GetService", mock.Anything, int64(2)).Return(testScheduledService(), nil)

	_, err := newEngine(store).CreateReservation(context.Background(), CreateRequest{
		CustomerID: 10, ServiceID: 2,
	})
	assert.Error(t, err)
	store.AssertNotCalled(t, "CreateScheduledReservation", mock.Anything, mock.Anything)
}

func TestCreateScheduledRejectsPastSlot(t *testing.T) {
	slot := testSlot()
	slot.Date = pastDay

	store := new(mockStore)
	store.On("GetCustomer", mock.Anything, int64(10)).Return(testCustomer(), nil)
	store.On("GetService", mock.Anything, int64(2)).Return(testScheduledService(), nil)
	store.On("GetSlot", mock.Anything, int64(5)).Return(slot, nil)

	slotID := int64(5)
	_, err := newEngine(store).CreateReservation(context.Background(), CreateRequest{
		CustomerID: 10, ServiceID: 2, SlotID: &slotID,
	})
	assert.ErrorIs(t, err, model.ErrPastDate)
}

func TestCreateScheduledPropagatesCapacityConflict(t *testing.T) {
	store := new(mockStore)
	store.On("GetCustomer", mock.Anything, int64(10)).Return(testCustomer(), nil)
	store.On("GetService", mock.Anything, int64(2)).Return(testScheduledService(), nil)
	store.On("GetSlot", mock.Anything, int64(5)).Return(testSlot(), nil)
	store.On("CreateScheduledReservation", mock.Anything, mock.Anything).Return(model.ErrConflict)

	slotID := int64(5)
	_, err := newEngine(store).CreateReservation(context.Background(), CreateRequest{
		CustomerID: 10, ServiceID: 2, SlotID: &slotID,
	})
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestCreateScheduledRejectsForeignServiceSlot(t *testing.T) {
	slot := testSlot()
	slot.ServiceID = 99

	store := new(mockStore)
	store.On("GetCustomer", mock.Anything, int64(10)).Return(testCustomer(), nil)
	store.On("GetService", mock.Anything, int64(2)).Return(testScheduledService(), nil)
	store.On("GetSlot", mock.Anything, int64(5)).Return(slot, nil)

	slotID := int64(5)
	_, err := newEngine(store).CreateReservation(context.Background(), CreateRequest{
		CustomerID: 10, ServiceID: 2, SlotID: &slotID,
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
	store.AssertNotCalled(t, "CreateScheduledReservation", mock.Anything, mock.Anything)
}

func TestCreateRejectsInactiveService(t *testing.T) {
	service := testScheduledService()
	service.Active = false

	store := new(mockStore)
	store.On("GetCustomer", mock.Anything, int64(10)).Return(testCustomer(), nil)
	store.On("GetService", mock.Anything, int64(2)).Return(service, nil)

	slotID := int64(5)
	_, err := newEngine(store).CreateReservation(context.Background(), CreateRequest{
		CustomerID: 10, ServiceID: 2, SlotID: &slotID,
	})
	assert.ErrorIs(t, err, model.ErrServiceInactive)
	store.AssertNotCalled(t, "CreateScheduledReservation", mock.Anything, mock.Anything)
}

func TestCreateOnDemandRejectsInactiveService(t *testing.T) {
	service := testOnDemandService()
	service.Active = false

	store := new(mockStore)
	store.On("GetCustomer", mock.Anything, int64(10)).Return(testCustomer(), nil)
	store.On("GetService", mock.Anything, int64(3)).Return(service, nil)

	_, err := newEngine(store).CreateReservation(context.Background(), CreateRequest{
		CustomerID: 10, ServiceID: 3, Date: futureDay, StartTime: "15:00",
	})
	assert.ErrorIs(t, err, model.ErrServiceInactive)
	store.AssertNotCalled(t, "CreateOnDemandReservation", mock.Anything, mock.Anything)
}

func TestCreateOnDemandReservation(t *testing.T) {
	store := new(mockStore)
	store.On("GetCustomer", mock.Anything, int64(10)).Return(testCustomer(), nil)
	store.On("GetService", mock.Anything, int64(3)).Return(testOnDemandService(), nil)
	store.On("CreateOnDemandReservation", mock.Anything, mock.AnythingOfType("*model.Reservation")).Return(nil)

	r, err := newEngine(store).CreateReservation(context.Background(), CreateRequest{
		CustomerID: 10, ServiceID: 3, Date: futureDay, StartTime: "15:00",
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusConfirmed, r.Status, "on-demand claims need no approval")
	assert.Nil(t, r.SlotID)
	store.AssertExpectations(t)
}

func TestCreateOnDemandRejectsSlotReference(t *testing.T) {
	store := new(mockStore)
	store.On("GetCustomer", mock.Anything, int64(10)).Return(testCustomer(), nil)
	store.On("GetService", mock.Anything, int64(3)).Return(testOnDemandService(), nil)

	slotID := int64(5)
	_, err := newEngine(store).CreateReservation(context.Background(), CreateRequest{
		CustomerID: 10, ServiceID: 3, SlotID: &slotID, Date: futureDay, StartTime: "15:00",
	})
	assert.Error(t, err)
}

func TestCreateOnDemandRejectsPast(t *testing.T) {
	store := new(mockStore)
	store.On("GetCustomer", mock.Anything, int64(10)).Return(testCustomer(), nil)
	store.On("GetService", mock.Anything, int64(3)).Return(testOnDemandService(), nil)

	_, err := newEngine(store).CreateReservation(context.Background(), CreateRequest{
		CustomerID: 10, ServiceID: 3, Date: pastDay, StartTime: "15:00",
	})
	assert.ErrorIs(t, err, model.ErrPastDate)
}

func TestOnDemandRateLimit(t *testing.T) {
	store := new(mockStore)
	store.On("GetCustomer", mock.Anything, int64(10)).Return(testCustomer(), nil)
	store.On("GetService", mock.Anything, int64(3)).Return(testOnDemandService(), nil)
	store.On("CreateOnDemandReservation", mock.Anything, mock.Anything).Return(nil)

	e := New(store, frozenClock, OnDemandLimit{PerMinute: 1, Burst: 1}, nil)
	req := CreateRequest{CustomerID: 10, ServiceID: 3, Date: futureDay, StartTime: "15:00"}

	_, err := e.CreateReservation(context.Background(), req)
	require.NoError(t, err)

	_, err = e.CreateReservation(context.Background(), req)
	assert.ErrorIs(t, err, model.ErrRateLimited)
}

func TestApproveAndComplete(t *testing.T) {
	pending := &model.Reservation{ID: 7, BusinessID: 1, Status: model.StatusPending}

	store := new(mockStore)
	store.On("GetReservation", mock.Anything, int64(7)).Return(pending, nil)
	store.On("TransitionReservation", mock.Anything, int64(7), model.StatusPending, model.StatusConfirmed).Return(nil)

	r, err := newEngine(store).Approve(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, r.Status)
	store.AssertExpectations(t)
}

func TestApproveWrongBusiness(t *testing.T) {
	pending := &model.Reservation{ID: 7, BusinessID: 1, Status: model.StatusPending}

	store := new(mockStore)
	store.On("GetReservation", mock.Anything, int64(7)).Return(pending, nil)

	_, err := newEngine(store).Approve(context.Background(), 7, 99)
	assert.ErrorIs(t, err, model.ErrNotFound)
	store.AssertNotCalled(t, "TransitionReservation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelTerminalFails(t *testing.T) {
	done := &model.Reservation{ID: 7, BusinessID: 1, Status: model.StatusCompleted}

	store := new(mockStore)
	store.On("GetReservation", mock.Anything, int64(7)).Return(done, nil)

	_, err := newEngine(store).Cancel(context.Background(), 7)
	assert.ErrorIs(t, err, model.ErrIllegalStateTransition)
	store.AssertNotCalled(t, "TransitionReservation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRejectConfirmedFails(t *testing.T) {
	confirmed := &model.Reservation{ID: 7, BusinessID: 1, Status: model.StatusConfirmed}

	store := new(mockStore)
	store.On("GetReservation", mock.Anything, int64(7)).Return(confirmed, nil)

	_, err := newEngine(store).Reject(context.Background(), 7, 1)
	assert.ErrorIs(t, err, model.ErrIllegalStateTransition)
}

func TestMarkNoShow(t *testing.T) {
	confirmed := &model.Reservation{ID: 7, BusinessID: 1, Status: model.StatusConfirmed}

	store := new(mockStore)
	store.On("GetReservation", mock.Anything, int64(7)).Return(confirmed, nil)
	store.On("TransitionReservation", mock.Anything, int64(7), model.StatusConfirmed, model.StatusNoShow).Return(nil)

	r, err := newEngine(store).MarkNoShow(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoShow, r.Status)
}

func TestUpdateContactFields(t *testing.T) {
	slotID := int64(5)
	current := &model.Reservation{
		ID: 7, BusinessID: 1, SlotID: &slotID, Date: futureDay,
		StartTime: "10:00", Status: model.StatusPending, ClientName: "Alice",
	}

	store := new(mockStore)
	store.On("GetReservation", mock.Anything, int64(7)).Return(current, nil)
	store.On("UpdateReservationDetails", mock.Anything, mock.AnythingOfType("*model.Reservation")).Return(nil)

	name := "Alice Smith"
	notes := "window seat"
	r, err := newEngine(store).Update(context.Background(), 7, UpdateRequest{
		ClientName: &name, Notes: &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", r.ClientName)
	assert.Equal(t, "window seat", r.Notes)
}

func TestUpdateScheduledTimeIsPinned(t *testing.T) {
	slotID := int64(5)
	current := &model.Reservation{
		ID: 7, BusinessID: 1, SlotID: &slotID, Date: futureDay,
		StartTime: "10:00", Status: model.StatusPending,
	}

	store := new(mockStore)
	store.On("GetReservation", mock.Anything, int64(7)).Return(current, nil)

	start := "11:00"
	_, err := newEngine(store).Update(context.Background(), 7, UpdateRequest{StartTime: &start})
	assert.ErrorIs(t, err, model.ErrInvalidTimeRange)
	store.AssertNotCalled(t, "UpdateReservationDetails", mock.Anything, mock.Anything)
}

func TestUpdateOnDemandMove(t *testing.T) {
	current := &model.Reservation{
		ID: 8, BusinessID: 1, Date: futureDay,
		StartTime: "15:00", Status: model.StatusConfirmed,
	}

	store := new(mockStore)
	store.On("GetReservation", mock.Anything, int64(8)).Return(current, nil)
	store.On("UpdateReservationDetails", mock.Anything, mock.Anything).Return(nil)

	later := futureDay.AddDate(0, 0, 1)
	start := "09:00"
	r, err := newEngine(store).Update(context.Background(), 8, UpdateRequest{Date: &later, StartTime: &start})
	require.NoError(t, err)
	assert.Equal(t, later, r.Date)
	assert.Equal(t, "09:00", r.StartTime)
}

func TestUpdateOnDemandMoveToPast(t *testing.T) {
	current := &model.Reservation{
		ID: 8, BusinessID: 1, Date: futureDay,
		StartTime: "15:00", Status: model.StatusConfirmed,
	}

	store := new(mockStore)
	store.On("GetReservation", mock.Anything, int64(8)).Return(current, nil)

	_, err := newEngine(store).Update(context.Background(), 8, UpdateRequest{Date: &pastDay})
	assert.ErrorIs(t, err, model.ErrPastDate)
}

func TestUpdateTerminalFails(t *testing.T) {
	cancelled := &model.Reservation{ID: 7, BusinessID: 1, Status: model.StatusCancelled}

	store := new(mockStore)
	store.On("GetReservation", mock.Anything, int64(7)).Return(cancelled, nil)

	notes := "anything"
	_, err := newEngine(store).Update(context.Background(), 7, UpdateRequest{Notes: &notes})
	assert.ErrorIs(t, err, model.ErrIllegalStateTransition)
}
