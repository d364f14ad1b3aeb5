// Package repo contains all database access logic for the school transit API.
// Each entity has its own file with an interface and a Postgres implementation.
// No business logic lives here — only SQL and type mapping. The uniqueness
// guarantees the trip engine relies on (one active trip per bus, one check-in
// per child per trip, append-if-absent on the checked-in set) are enforced
// here, at the store boundary, not by read-then-write in the service layer.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/schooltransit/backend/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly lets the service
// layer run multi-repo transactions, and lets integration tests pass a
// transaction that is rolled back after each test for free per-test isolation.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const tripColumns = `id, bus_id, route_id, driver_id, bus_number, route_name,
		type, status, children_ids, checked_in_children,
		current_latitude, current_longitude, location_updated_at,
		start_time, end_time, created_at, updated_at`

// TripRepo defines the persistence operations for trips.
// The service layer depends on this interface, not the concrete Postgres
// implementation, which allows the service to be unit-tested with a mock.
type TripRepo interface {
	// Create inserts a new active trip and returns the persisted record.
	// Returns domain.ErrConflict if the bus already has an active trip
	// (partial unique index on (bus_id) WHERE status = 'active') — concurrent
	// starts race to the insert and exactly one wins.
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// GetByID retrieves a single trip by its UUID primary key.
	// Returns domain.ErrNotFound if no trip with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// UpdateLocation overwrites the trip's current position. Last write wins;
	// no ordering is enforced between concurrent updates. Only active trips
	// are writable — returns domain.ErrNotFound if the trip does not exist or
	// is already completed.
	UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64) (domain.Trip, error)

	// AppendCheckedIn appends the child to checked_in_children if and only if
	// the trip is active, the child is expected on the trip, and the child is
	// not already in the set — one conditional UPDATE, so concurrent check-ins
	// for the same child cannot both succeed. Returns domain.ErrNotFound when
	// the condition does not hold; the caller disambiguates by re-reading.
	AppendCheckedIn(ctx context.Context, tripID, childID uuid.UUID) (domain.Trip, error)

	// Complete flips the trip from active to completed and stamps end_time.
	// Returns domain.ErrNotFound if the trip does not exist or is no longer
	// active (completed is terminal).
	Complete(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// ListActiveByDriver returns the driver's active trips.
	ListActiveByDriver(ctx context.Context, driverID uuid.UUID) ([]domain.Trip, error)

	// ListHistory returns the driver's trips ordered by created_at descending,
	// keyset-paginated: when p.Cursor is set, only trips created before the
	// cursor trip are returned.
	ListHistory(ctx context.Context, p domain.HistoryParams) ([]domain.Trip, error)
}

// pgTripRepo is the Postgres implementation of TripRepo.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool or a pgx.Tx from Store.WithTx; in tests
// pass a pgx.Tx for rollback isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

func (r *pgTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	const q = `
		INSERT INTO trips (bus_id, route_id, driver_id, bus_number, route_name,
		                   type, status, children_ids, checked_in_children,
		                   current_latitude, current_longitude)
		VALUES (@bus_id, @route_id, @driver_id, @bus_number, @route_name,
		        @type, 'active', @children_ids, '{}',
		        @current_latitude, @current_longitude)
		RETURNING ` + tripColumns

	args := pgx.NamedArgs{
		"bus_id":            trip.BusID,
		"route_id":          trip.RouteID,
		"driver_id":         trip.DriverID,
		"bus_number":        trip.BusNumber,
		"route_name":        trip.RouteName,
		"type":              trip.Type,
		"children_ids":      trip.ChildrenIDs,
		"current_latitude":  trip.CurrentLocation.Latitude,
		"current_longitude": trip.CurrentLocation.Longitude,
	}

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanTrip(row)
	if err != nil {
		if isUniqueViolation(err, "trips_one_active_per_bus") {
			return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: active trip exists: %w", domain.ErrConflict)
		}
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	const q = `SELECT ` + tripColumns + ` FROM trips WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgTripRepo) UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64) (domain.Trip, error) {
	const q = `
		UPDATE trips
		SET current_latitude    = @lat,
		    current_longitude   = @lng,
		    location_updated_at = now(),
		    updated_at          = now()
		WHERE id = @id AND status = 'active'
		RETURNING ` + tripColumns

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "lat": lat, "lng": lng})
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.UpdateLocation: %w", err)
	}
	return result, nil
}

func (r *pgTripRepo) AppendCheckedIn(ctx context.Context, tripID, childID uuid.UUID) (domain.Trip, error) {
	// All three preconditions live in the WHERE clause so the append is atomic:
	// a concurrent duplicate check-in loses the row lock race and matches zero rows.
	const q = `
		UPDATE trips
		SET checked_in_children = array_append(checked_in_children, @child_id),
		    updated_at          = now()
		WHERE id = @trip_id
		  AND status = 'active'
		  AND @child_id = ANY(children_ids)
		  AND NOT (@child_id = ANY(checked_in_children))
		RETURNING ` + tripColumns

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"trip_id": tripID, "child_id": childID})
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.AppendCheckedIn: %w", err)
	}
	return result, nil
}

func (r *pgTripRepo) Complete(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	const q = `
		UPDATE trips
		SET status     = 'completed',
		    end_time   = now(),
		    updated_at = now()
		WHERE id = @id AND status = 'active'
		RETURNING ` + tripColumns

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Complete: %w", err)
	}
	return result, nil
}

func (r *pgTripRepo) ListActiveByDriver(ctx context.Context, driverID uuid.UUID) ([]domain.Trip, error) {
	const q = `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE driver_id = @driver_id AND status = 'active'
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"driver_id": driverID})
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.ListActiveByDriver: %w", err)
	}
	defer rows.Close()

	return collectTrips(rows, "repo.TripRepo.ListActiveByDriver")
}

func (r *pgTripRepo) ListHistory(ctx context.Context, p domain.HistoryParams) ([]domain.Trip, error) {
	// Keyset pagination: the cursor trip's (created_at, id) pair anchors the
	// next page. A subquery resolves the cursor so one round trip suffices.
	const q = `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE driver_id = @driver_id
		  AND (@cursor::uuid IS NULL OR (created_at, id) < (
		      SELECT created_at, id FROM trips WHERE id = @cursor))
		ORDER BY created_at DESC, id DESC
		LIMIT @limit`

	var cursor any
	if p.Cursor != uuid.Nil {
		cursor = p.Cursor
	}

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{
		"driver_id": p.DriverID,
		"cursor":    cursor,
		"limit":     p.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.ListHistory: %w", err)
	}
	defer rows.Close()

	return collectTrips(rows, "repo.TripRepo.ListHistory")
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scan helpers to
// be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanTrip maps a single database row into a domain.Trip.
// It handles the UUID, uuid-array, and nullable end_time conversions.
func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t       domain.Trip
		id      pgtype.UUID
		busID   pgtype.UUID
		routeID pgtype.UUID
		drvID   pgtype.UUID
		endTime pgtype.Timestamptz
	)

	err := s.Scan(&id, &busID, &routeID, &drvID, &t.BusNumber, &t.RouteName,
		&t.Type, &t.Status, &t.ChildrenIDs, &t.CheckedInChildren,
		&t.CurrentLocation.Latitude, &t.CurrentLocation.Longitude, &t.CurrentLocation.Timestamp,
		&t.StartTime, &endTime, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trip{}, domain.ErrNotFound
		}
		return domain.Trip{}, err
	}

	t.ID = uuid.UUID(id.Bytes)
	t.BusID = uuid.UUID(busID.Bytes)
	t.RouteID = uuid.UUID(routeID.Bytes)
	t.DriverID = uuid.UUID(drvID.Bytes)
	if endTime.Valid {
		et := endTime.Time
		t.EndTime = &et
	}
	if t.ChildrenIDs == nil {
		t.ChildrenIDs = []uuid.UUID{}
	}
	if t.CheckedInChildren == nil {
		t.CheckedInChildren = []uuid.UUID{}
	}

	return t, nil
}

// collectTrips drains rows into a slice, always returning a non-nil slice so
// callers can range and marshal without nil checks.
func collectTrips(rows pgx.Rows, op string) ([]domain.Trip, error) {
	trips := []domain.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return trips, nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation on the named constraint (SQLSTATE 23505).
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
