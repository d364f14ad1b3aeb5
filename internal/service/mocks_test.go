package service_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/schooltransit/backend/internal/domain"
	"github.com/schooltransit/backend/internal/push"
	"github.com/schooltransit/backend/internal/repo"
)

// The repo mocks below are hand-written test doubles with one function
// field per method. Set only the fields your test needs; calling an unset
// field panics, which points straight at the missing expectation.

type mockTripRepo struct {
	create             func(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	getByID            func(ctx context.Context, id uuid.UUID) (domain.Trip, error)
	updateLocation     func(ctx context.Context, id uuid.UUID, lat, lng float64) (domain.Trip, error)
	appendCheckedIn    func(ctx context.Context, tripID, childID uuid.UUID) (domain.Trip, error)
	complete           func(ctx context.Context, id uuid.UUID) (domain.Trip, error)
	listActiveByDriver func(ctx context.Context, driverID uuid.UUID) ([]domain.Trip, error)
	listHistory        func(ctx context.Context, p domain.HistoryParams) ([]domain.Trip, error)
}

func (m *mockTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	return m.create(ctx, trip)
}
func (m *mockTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	return m.getByID(ctx, id)
}
func (m *mockTripRepo) UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64) (domain.Trip, error) {
	return m.updateLocation(ctx, id, lat, lng)
}
func (m *mockTripRepo) AppendCheckedIn(ctx context.Context, tripID, childID uuid.UUID) (domain.Trip, error) {
	return m.appendCheckedIn(ctx, tripID, childID)
}
func (m *mockTripRepo) Complete(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	return m.complete(ctx, id)
}
func (m *mockTripRepo) ListActiveByDriver(ctx context.Context, driverID uuid.UUID) ([]domain.Trip, error) {
	return m.listActiveByDriver(ctx, driverID)
}
func (m *mockTripRepo) ListHistory(ctx context.Context, p domain.HistoryParams) ([]domain.Trip, error) {
	return m.listHistory(ctx, p)
}

var _ repo.TripRepo = (*mockTripRepo)(nil)

type mockBusRepo struct {
	getByID        func(ctx context.Context, id uuid.UUID) (domain.Bus, error)
	beginTrip      func(ctx context.Context, busID, tripID uuid.UUID) error
	endTrip        func(ctx context.Context, busID uuid.UUID) error
	updateLocation func(ctx context.Context, busID uuid.UUID, lat, lng float64) error
}

func (m *mockBusRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Bus, error) {
	return m.getByID(ctx, id)
}
func (m *mockBusRepo) BeginTrip(ctx context.Context, busID, tripID uuid.UUID) error {
	return m.beginTrip(ctx, busID, tripID)
}
func (m *mockBusRepo) EndTrip(ctx context.Context, busID uuid.UUID) error {
	return m.endTrip(ctx, busID)
}
func (m *mockBusRepo) UpdateLocation(ctx context.Context, busID uuid.UUID, lat, lng float64) error {
	return m.updateLocation(ctx, busID, lat, lng)
}

var _ repo.BusRepo = (*mockBusRepo)(nil)

type mockRouteRepo struct {
	getByID func(ctx context.Context, id uuid.UUID) (domain.Route, error)
}

func (m *mockRouteRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Route, error) {
	return m.getByID(ctx, id)
}

var _ repo.RouteRepo = (*mockRouteRepo)(nil)

type mockChildRepo struct {
	getByID           func(ctx context.Context, id uuid.UUID) (domain.Child, error)
	listActiveByRoute func(ctx context.Context, routeID uuid.UUID) ([]domain.Child, error)
	listByIDs         func(ctx context.Context, ids []uuid.UUID) ([]domain.Child, error)
}

func (m *mockChildRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Child, error) {
	return m.getByID(ctx, id)
}
func (m *mockChildRepo) ListActiveByRoute(ctx context.Context, routeID uuid.UUID) ([]domain.Child, error) {
	return m.listActiveByRoute(ctx, routeID)
}
func (m *mockChildRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Child, error) {
	return m.listByIDs(ctx, ids)
}

var _ repo.ChildRepo = (*mockChildRepo)(nil)

type mockCheckInRepo struct {
	create     func(ctx context.Context, ci domain.CheckIn) (domain.CheckIn, error)
	listByTrip func(ctx context.Context, tripID uuid.UUID) ([]domain.CheckIn, error)
}

func (m *mockCheckInRepo) Create(ctx context.Context, ci domain.CheckIn) (domain.CheckIn, error) {
	return m.create(ctx, ci)
}
func (m *mockCheckInRepo) ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.CheckIn, error) {
	return m.listByTrip(ctx, tripID)
}

var _ repo.CheckInRepo = (*mockCheckInRepo)(nil)

type mockNotificationRepo struct {
	createBatch     func(ctx context.Context, notifications []domain.Notification) ([]domain.Notification, error)
	listByUser      func(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error)
	markRead        func(ctx context.Context, id, userID uuid.UUID) error
	deleteOlderThan func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockNotificationRepo) CreateBatch(ctx context.Context, notifications []domain.Notification) ([]domain.Notification, error) {
	return m.createBatch(ctx, notifications)
}
func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error) {
	return m.listByUser(ctx, userID, limit)
}
func (m *mockNotificationRepo) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return m.markRead(ctx, id, userID)
}
func (m *mockNotificationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return m.deleteOlderThan(ctx, cutoff)
}

var _ repo.NotificationRepo = (*mockNotificationRepo)(nil)

type mockUserRepo struct {
	getByID         func(ctx context.Context, id uuid.UUID) (domain.User, error)
	tokensByUserIDs func(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return m.getByID(ctx, id)
}
func (m *mockUserRepo) TokensByUserIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	return m.tokensByUserIDs(ctx, ids)
}

var _ repo.UserRepo = (*mockUserRepo)(nil)

// fakeStore satisfies service.TxRunner without a database. WithTx simply runs
// the closure over the same repos; commit/rollback semantics are the repo
// integration tests' concern, not the service tests'.
type fakeStore struct {
	repos repo.Repos
}

func (f *fakeStore) Repos() repo.Repos { return f.repos }

func (f *fakeStore) WithTx(_ context.Context, fn func(r repo.Repos) error) error {
	return fn(f.repos)
}

// recordingDispatcher captures everything enqueued for push delivery.
type recordingDispatcher struct {
	messages []push.Message
}

func (d *recordingDispatcher) Enqueue(msg push.Message) {
	d.messages = append(d.messages, msg)
}

// persistingNotifications returns a notification repo whose CreateBatch
// stamps ids and appends to *sink, mimicking the DB insert.
func persistingNotifications(sink *[]domain.Notification) *mockNotificationRepo {
	return &mockNotificationRepo{
		createBatch: func(_ context.Context, records []domain.Notification) ([]domain.Notification, error) {
			out := make([]domain.Notification, 0, len(records))
			for _, rec := range records {
				rec.ID = uuid.New()
				out = append(out, rec)
			}
			*sink = append(*sink, out...)
			return out, nil
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
