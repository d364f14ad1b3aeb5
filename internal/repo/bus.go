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

// BusRepo defines the persistence operations for the bus live-state projection.
// The trip state machine is the sole caller of the mutating methods while a
// trip is active.
type BusRepo interface {
	// GetByID retrieves a bus by primary key.
	// Returns domain.ErrNotFound if no bus with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Bus, error)

	// BeginTrip marks the bus in transit and records the owning trip.
	BeginTrip(ctx context.Context, busID, tripID uuid.UUID) error

	// EndTrip returns the bus to the available state and clears the trip.
	EndTrip(ctx context.Context, busID uuid.UUID) error

	// UpdateLocation mirrors the trip's latest position onto the bus.
	UpdateLocation(ctx context.Context, busID uuid.UUID, lat, lng float64) error
}

// pgBusRepo is the Postgres implementation of BusRepo.
type pgBusRepo struct {
	db db
}

// NewBusRepo constructs a BusRepo backed by the provided db connection.
func NewBusRepo(db db) BusRepo {
	return &pgBusRepo{db: db}
}

func (r *pgBusRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Bus, error) {
	const q = `
		SELECT id, bus_number, driver_id, status, current_trip_id,
		       current_latitude, current_longitude, last_location_update,
		       created_at, updated_at
		FROM buses
		WHERE id = @id`

	var (
		b       domain.Bus
		busID   pgtype.UUID
		drvID   pgtype.UUID
		tripID  pgtype.UUID
		lastUpd pgtype.Timestamptz
	)

	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}).Scan(
		&busID, &b.BusNumber, &drvID, &b.Status, &tripID,
		&b.CurrentLatitude, &b.CurrentLongitude, &lastUpd,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bus{}, fmt.Errorf("repo.BusRepo.GetByID: %w", domain.ErrNotFound)
		}
		return domain.Bus{}, fmt.Errorf("repo.BusRepo.GetByID: %w", err)
	}

	b.ID = uuid.UUID(busID.Bytes)
	b.DriverID = uuid.UUID(drvID.Bytes)
	if tripID.Valid {
		ct := uuid.UUID(tripID.Bytes)
		b.CurrentTripID = &ct
	}
	if lastUpd.Valid {
		lu := lastUpd.Time
		b.LastLocationUpdate = &lu
	}

	return b, nil
}

func (r *pgBusRepo) BeginTrip(ctx context.Context, busID, tripID uuid.UUID) error {
	const q = `
		UPDATE buses
		SET status          = 'in_transit',
		    current_trip_id = @trip_id,
		    updated_at      = now()
		WHERE id = @bus_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"bus_id": busID, "trip_id": tripID})
	if err != nil {
		return fmt.Errorf("repo.BusRepo.BeginTrip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.BusRepo.BeginTrip: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgBusRepo) EndTrip(ctx context.Context, busID uuid.UUID) error {
	const q = `
		UPDATE buses
		SET status          = 'active',
		    current_trip_id = NULL,
		    updated_at      = now()
		WHERE id = @bus_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"bus_id": busID})
	if err != nil {
		return fmt.Errorf("repo.BusRepo.EndTrip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.BusRepo.EndTrip: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgBusRepo) UpdateLocation(ctx context.Context, busID uuid.UUID, lat, lng float64) error {
	const q = `
		UPDATE buses
		SET current_latitude     = @lat,
		    current_longitude    = @lng,
		    last_location_update = now(),
		    updated_at           = now()
		WHERE id = @bus_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"bus_id": busID, "lat": lat, "lng": lng})
	if err != nil {
		return fmt.Errorf("repo.BusRepo.UpdateLocation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.BusRepo.UpdateLocation: %w", domain.ErrNotFound)
	}
	return nil
}
