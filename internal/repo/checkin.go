package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/schooltransit/backend/internal/domain"
)

// CheckInRepo defines the persistence operations for check-in records.
// Check-ins are immutable: create and read, never update or delete.
type CheckInRepo interface {
	// Create inserts a check-in record and returns the persisted row.
	// Returns domain.ErrConflict if a check-in already exists for the same
	// (trip_id, child_id) pair — the unique index backs up the trip-level
	// append-if-absent guard.
	Create(ctx context.Context, ci domain.CheckIn) (domain.CheckIn, error)

	// ListByTrip returns a trip's check-ins in arrival order.
	ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.CheckIn, error)
}

type pgCheckInRepo struct {
	db db
}

// NewCheckInRepo constructs a CheckInRepo backed by the provided db connection.
func NewCheckInRepo(db db) CheckInRepo {
	return &pgCheckInRepo{db: db}
}

const checkInColumns = `id, trip_id, child_id, child_name, stop_id, driver_id,
		bus_id, route_id, method, photo_url, latitude, longitude, created_at`

func (r *pgCheckInRepo) Create(ctx context.Context, ci domain.CheckIn) (domain.CheckIn, error) {
	const q = `
		INSERT INTO checkins (trip_id, child_id, child_name, stop_id, driver_id,
		                      bus_id, route_id, method, photo_url, latitude, longitude)
		VALUES (@trip_id, @child_id, @child_name, @stop_id, @driver_id,
		        @bus_id, @route_id, @method, @photo_url, @latitude, @longitude)
		RETURNING ` + checkInColumns

	args := pgx.NamedArgs{
		"trip_id":    ci.TripID,
		"child_id":   ci.ChildID,
		"child_name": ci.ChildName,
		"stop_id":    ci.StopID,
		"driver_id":  ci.DriverID,
		"bus_id":     ci.BusID,
		"route_id":   ci.RouteID,
		"method":     ci.Method,
		"photo_url":  nullableText(ci.PhotoURL),
		"latitude":   ci.Location.Latitude,
		"longitude":  ci.Location.Longitude,
	}

	result, err := scanCheckIn(r.db.QueryRow(ctx, q, args))
	if err != nil {
		if isUniqueViolation(err, "checkins_trip_child_key") {
			return domain.CheckIn{}, fmt.Errorf("repo.CheckInRepo.Create: already checked in: %w", domain.ErrConflict)
		}
		return domain.CheckIn{}, fmt.Errorf("repo.CheckInRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgCheckInRepo) ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.CheckIn, error) {
	const q = `
		SELECT ` + checkInColumns + `
		FROM checkins
		WHERE trip_id = @trip_id
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.CheckInRepo.ListByTrip: %w", err)
	}
	defer rows.Close()

	checkIns := []domain.CheckIn{}
	for rows.Next() {
		ci, err := scanCheckIn(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.CheckInRepo.ListByTrip: scan: %w", err)
		}
		checkIns = append(checkIns, ci)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.CheckInRepo.ListByTrip: rows: %w", err)
	}
	return checkIns, nil
}

// scanCheckIn maps a single database row into a domain.CheckIn.
// The created_at column doubles as the check-in timestamp and the location
// snapshot timestamp.
func scanCheckIn(s scanner) (domain.CheckIn, error) {
	var (
		ci      domain.CheckIn
		id      pgtype.UUID
		tripID  pgtype.UUID
		childID pgtype.UUID
		stopID  pgtype.UUID
		drvID   pgtype.UUID
		busID   pgtype.UUID
		routeID pgtype.UUID
		photo   pgtype.Text
	)

	err := s.Scan(&id, &tripID, &childID, &ci.ChildName, &stopID, &drvID,
		&busID, &routeID, &ci.Method, &photo,
		&ci.Location.Latitude, &ci.Location.Longitude, &ci.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CheckIn{}, domain.ErrNotFound
		}
		return domain.CheckIn{}, err
	}

	ci.ID = uuid.UUID(id.Bytes)
	ci.TripID = uuid.UUID(tripID.Bytes)
	ci.ChildID = uuid.UUID(childID.Bytes)
	ci.StopID = uuid.UUID(stopID.Bytes)
	ci.DriverID = uuid.UUID(drvID.Bytes)
	ci.BusID = uuid.UUID(busID.Bytes)
	ci.RouteID = uuid.UUID(routeID.Bytes)
	if photo.Valid {
		ci.PhotoURL = photo.String
	}
	ci.Location.Timestamp = ci.CreatedAt
	return ci, nil
}

// nullableText maps the empty string to NULL.
func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
