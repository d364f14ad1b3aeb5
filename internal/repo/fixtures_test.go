package repo_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/schooltransit/backend/internal/domain"
	"github.com/schooltransit/backend/internal/repo"
	"github.com/schooltransit/backend/testutil"
)

// newTestTx opens a transaction against the test database and rolls it back
// when the test finishes, giving free per-test isolation. Build repos over
// the returned tx exactly as Store.WithTx does in production.
//
// Requires TEST_DATABASE_URL to be set; skips otherwise.
func newTestTx(t *testing.T) pgx.Tx {
	t.Helper()
	pool := testutil.NewPool(t)

	tx, err := pool.Begin(context.Background())
	require.NoError(t, err, "begin transaction")

	t.Cleanup(func() {
		// Rollback discards all changes made during the test.
		_ = tx.Rollback(context.Background())
	})

	return tx
}

// fleetFixture is the standing cast for trip tests: a school, a driver with
// a bus, a route, and two children whose parents are distinct users.
type fleetFixture struct {
	SchoolID  uuid.UUID
	DriverID  uuid.UUID
	ParentIDs []uuid.UUID
	RouteID   uuid.UUID
	BusID     uuid.UUID
	ChildIDs  []uuid.UUID
}

// seedFleet inserts the fixture rows inside the test transaction.
func seedFleet(t *testing.T, tx pgx.Tx) fleetFixture {
	t.Helper()

	var f fleetFixture
	f.SchoolID = insertReturningID(t, tx,
		`INSERT INTO schools (name) VALUES ($1) RETURNING id`, "Test Elementary")

	f.DriverID = insertReturningID(t, tx,
		`INSERT INTO users (name, role, school_id) VALUES ($1, 'driver', $2) RETURNING id`,
		"Dana Driver", f.SchoolID)

	for _, name := range []string{"Paula Parent", "Peter Parent"} {
		f.ParentIDs = append(f.ParentIDs, insertReturningID(t, tx,
			`INSERT INTO users (name, role, school_id, fcm_token) VALUES ($1, 'parent', $2, $3) RETURNING id`,
			name, f.SchoolID, "token-"+name))
	}

	f.RouteID = insertReturningID(t, tx,
		`INSERT INTO routes (name, school_id) VALUES ($1, $2) RETURNING id`,
		"North Route", f.SchoolID)

	f.BusID = insertReturningID(t, tx,
		`INSERT INTO buses (bus_number, driver_id) VALUES ($1, $2) RETURNING id`,
		"42", f.DriverID)

	for i, name := range []string{"Alice", "Bob"} {
		f.ChildIDs = append(f.ChildIDs, insertReturningID(t, tx,
			`INSERT INTO children (name, parent_id, route_id) VALUES ($1, $2, $3) RETURNING id`,
			name, f.ParentIDs[i], f.RouteID))
	}

	return f
}

func insertReturningID(t *testing.T, tx pgx.Tx, sql string, args ...any) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := tx.QueryRow(context.Background(), sql, args...).Scan(&id)
	require.NoError(t, err, "fixture insert")
	return id
}

// tripFixture returns a domain.Trip referencing the fleet, ready for
// TripRepo.Create. Callers can override fields before inserting.
func tripFixture(f fleetFixture) domain.Trip {
	return domain.Trip{
		BusID:       f.BusID,
		RouteID:     f.RouteID,
		DriverID:    f.DriverID,
		BusNumber:   "42",
		RouteName:   "North Route",
		Type:        domain.TripTypePickup,
		ChildrenIDs: f.ChildIDs,
		CurrentLocation: domain.Location{
			Latitude:  40.7,
			Longitude: -74.0,
		},
	}
}

// mustCreateTrip inserts a trip through the repo under test.
func mustCreateTrip(t *testing.T, r repo.TripRepo, trip domain.Trip) domain.Trip {
	t.Helper()
	created, err := r.Create(context.Background(), trip)
	require.NoError(t, err, "create trip fixture")
	return created
}
