// Package service contains the business logic for the school transit API.
// Services authorize callers, enforce trip lifecycle rules, and orchestrate
// repo calls. No SQL lives here — services depend on repo interfaces, not
// implementations. Each operation is a stateless request-handler invocation;
// all state lives in the store, and the store's conditional writes are what
// make concurrent invocations safe.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/schooltransit/backend/internal/domain"
	"github.com/schooltransit/backend/internal/repo"
)

// TxRunner is the persistence entry point services depend on. Repos hands out
// pool-bound repos for reads; WithTx runs a closure whose writes commit
// atomically. *repo.Store satisfies it in production; tests inject a fake.
type TxRunner interface {
	Repos() repo.Repos
	WithTx(ctx context.Context, fn func(r repo.Repos) error) error
}

var _ TxRunner = (*repo.Store)(nil)

// StartTripInput carries the startTrip command.
type StartTripInput struct {
	BusID    uuid.UUID
	RouteID  uuid.UUID
	DriverID uuid.UUID
	Type     domain.TripType
}

// CheckInInput carries the completeCheckIn command.
type CheckInInput struct {
	TripID   uuid.UUID
	ChildID  uuid.UUID
	StopID   uuid.UUID
	Method   domain.CheckInMethod
	PhotoURL string
}

// EndTripResult is the completed trip together with its derived statistics.
type EndTripResult struct {
	Trip       domain.Trip
	Statistics domain.TripStatistics
}

// TripService implements the trip state machine: start, location update,
// check-in, end, and the driver-scoped reads.
type TripService struct {
	store    TxRunner
	notifier *Notifier
	log      *slog.Logger
}

// NewTripService constructs a TripService.
func NewTripService(store TxRunner, notifier *Notifier, log *slog.Logger) *TripService {
	return &TripService{store: store, notifier: notifier, log: log}
}

// StartTrip validates the command, snapshots the route's active children,
// creates the active trip, flips the bus to in-transit, and fans out
// trip_started notifications — all in one transaction. The partial unique
// index on active trips makes concurrent starts for the same bus race to the
// insert; the loser gets domain.ErrConflict.
func (s *TripService) StartTrip(ctx context.Context, caller domain.Identity, in StartTripInput) (domain.Trip, error) {
	if !in.Type.Valid() {
		return domain.Trip{}, fmt.Errorf("service.TripService.StartTrip: %w: unknown trip type %q", domain.ErrValidation, in.Type)
	}
	if caller.UserID != in.DriverID {
		return domain.Trip{}, fmt.Errorf("service.TripService.StartTrip: %w: drivers can only start their own trips", domain.ErrPermissionDenied)
	}

	r := s.store.Repos()

	bus, err := r.Buses.GetByID(ctx, in.BusID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Trip{}, fmt.Errorf("service.TripService.StartTrip: %w: bus not found", domain.ErrNotFound)
		}
		return domain.Trip{}, fmt.Errorf("service.TripService.StartTrip: %w", err)
	}
	route, err := r.Routes.GetByID(ctx, in.RouteID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Trip{}, fmt.Errorf("service.TripService.StartTrip: %w: route not found", domain.ErrNotFound)
		}
		return domain.Trip{}, fmt.Errorf("service.TripService.StartTrip: %w", err)
	}
	if bus.DriverID != in.DriverID {
		return domain.Trip{}, fmt.Errorf("service.TripService.StartTrip: %w: driver not assigned to this bus", domain.ErrPermissionDenied)
	}

	children, err := r.Children.ListActiveByRoute(ctx, in.RouteID)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.StartTrip: %w", err)
	}
	childrenIDs := make([]uuid.UUID, 0, len(children))
	for _, c := range children {
		childrenIDs = append(childrenIDs, c.ID)
	}

	var (
		created  domain.Trip
		recorded []domain.Notification
	)
	err = s.store.WithTx(ctx, func(r repo.Repos) error {
		var err error
		created, err = r.Trips.Create(ctx, domain.Trip{
			BusID:       in.BusID,
			RouteID:     in.RouteID,
			DriverID:    in.DriverID,
			BusNumber:   bus.BusNumber,
			RouteName:   route.Name,
			Type:        in.Type,
			ChildrenIDs: childrenIDs,
			CurrentLocation: domain.Location{
				Latitude:  bus.CurrentLatitude,
				Longitude: bus.CurrentLongitude,
			},
		})
		if err != nil {
			return err
		}
		if err := r.Buses.BeginTrip(ctx, in.BusID, created.ID); err != nil {
			return err
		}
		recorded, err = s.notifier.Record(ctx, r, domain.TripStarted{Trip: created, Children: children})
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.Trip{}, fmt.Errorf("service.TripService.StartTrip: %w: an active trip already exists for this bus", domain.ErrConflict)
		}
		return domain.Trip{}, fmt.Errorf("service.TripService.StartTrip: %w", err)
	}

	s.notifier.Dispatch(ctx, s.store.Repos(), recorded)
	s.log.InfoContext(ctx, "trip started",
		"trip_id", created.ID, "bus_id", in.BusID, "route_id", in.RouteID,
		"type", in.Type, "children", len(childrenIDs))

	return created, nil
}

// UpdateLocation overwrites the trip's position and mirrors it onto the bus
// in one transaction. Last write wins: the engine accepts the most recently
// received update without ordering against out-of-order network delivery.
// No notification is emitted — location pings are too frequent to fan out.
func (s *TripService) UpdateLocation(ctx context.Context, caller domain.Identity, tripID uuid.UUID, lat, lng float64) (domain.Trip, error) {
	trip, err := s.getActiveAsDriver(ctx, caller, tripID, "UpdateLocation")
	if err != nil {
		return domain.Trip{}, err
	}

	var updated domain.Trip
	err = s.store.WithTx(ctx, func(r repo.Repos) error {
		var err error
		updated, err = r.Trips.UpdateLocation(ctx, tripID, lat, lng)
		if err != nil {
			return err
		}
		return r.Buses.UpdateLocation(ctx, trip.BusID, lat, lng)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Trip completed between the read and the write.
			return domain.Trip{}, fmt.Errorf("service.TripService.UpdateLocation: %w: trip is not active", domain.ErrNotFound)
		}
		return domain.Trip{}, fmt.Errorf("service.TripService.UpdateLocation: %w", err)
	}
	return updated, nil
}

// CompleteCheckIn records a child's boarding/alighting: the append-if-absent
// conditional write on checked_in_children, the immutable check-in row, and
// the parent notification commit as one transaction. At most one of two
// concurrent check-ins for the same child can succeed.
func (s *TripService) CompleteCheckIn(ctx context.Context, caller domain.Identity, in CheckInInput) (domain.CheckIn, error) {
	if !in.Method.Valid() {
		return domain.CheckIn{}, fmt.Errorf("service.TripService.CompleteCheckIn: %w: unknown check-in method %q", domain.ErrValidation, in.Method)
	}

	trip, err := s.getTripAsDriver(ctx, caller, in.TripID, "CompleteCheckIn")
	if err != nil {
		return domain.CheckIn{}, err
	}
	if !trip.HasChild(in.ChildID) {
		return domain.CheckIn{}, fmt.Errorf("service.TripService.CompleteCheckIn: %w: child is not on this trip", domain.ErrInvalidArgument)
	}

	child, err := s.store.Repos().Children.GetByID(ctx, in.ChildID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.CheckIn{}, fmt.Errorf("service.TripService.CompleteCheckIn: %w: child not found", domain.ErrNotFound)
		}
		return domain.CheckIn{}, fmt.Errorf("service.TripService.CompleteCheckIn: %w", err)
	}

	var (
		checkIn  domain.CheckIn
		recorded []domain.Notification
	)
	err = s.store.WithTx(ctx, func(r repo.Repos) error {
		updated, err := r.Trips.AppendCheckedIn(ctx, in.TripID, in.ChildID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// The conditional write matched no row: the trip ended, or the
				// child is already checked in. Re-read inside the tx to tell
				// the cases apart.
				return s.classifyAppendFailure(ctx, r, in.TripID, in.ChildID)
			}
			return err
		}

		checkIn, err = r.CheckIns.Create(ctx, domain.CheckIn{
			TripID:    in.TripID,
			ChildID:   in.ChildID,
			ChildName: child.Name,
			StopID:    in.StopID,
			DriverID:  updated.DriverID,
			BusID:     updated.BusID,
			RouteID:   updated.RouteID,
			Method:    in.Method,
			PhotoURL:  in.PhotoURL,
			Location:  updated.CurrentLocation,
		})
		if err != nil {
			return err
		}

		recorded, err = s.notifier.Record(ctx, r, domain.ChildCheckedIn{
			Trip: updated, Child: child, CheckInID: checkIn.ID,
		})
		return err
	})
	if err != nil {
		return domain.CheckIn{}, fmt.Errorf("service.TripService.CompleteCheckIn: %w", err)
	}

	s.notifier.Dispatch(ctx, s.store.Repos(), recorded)
	s.log.InfoContext(ctx, "check-in recorded",
		"trip_id", in.TripID, "child_id", in.ChildID, "method", in.Method)

	return checkIn, nil
}

// classifyAppendFailure maps a failed append-if-absent to the precise error:
// missing trip, terminated trip, off-trip child, or duplicate check-in.
func (s *TripService) classifyAppendFailure(ctx context.Context, r repo.Repos, tripID, childID uuid.UUID) error {
	trip, err := r.Trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: trip not found", domain.ErrNotFound)
		}
		return err
	}
	switch {
	case trip.Status != domain.TripStatusActive:
		return fmt.Errorf("%w: trip is not active", domain.ErrNotFound)
	case !trip.HasChild(childID):
		return fmt.Errorf("%w: child is not on this trip", domain.ErrInvalidArgument)
	case trip.IsCheckedIn(childID):
		return fmt.Errorf("%w: child is already checked in", domain.ErrConflict)
	default:
		return fmt.Errorf("append check-in matched no row for trip %s child %s", tripID, childID)
	}
}

// EndTrip flips the trip to completed, releases the bus, derives the
// statistics, and fans out child_missed notifications for every expected
// child who was never checked in. Completed is terminal: a concurrent or
// repeated end loses the conditional write and gets not-found.
func (s *TripService) EndTrip(ctx context.Context, caller domain.Identity, tripID uuid.UUID) (EndTripResult, error) {
	trip, err := s.getTripAsDriver(ctx, caller, tripID, "EndTrip")
	if err != nil {
		return EndTripResult{}, err
	}

	var (
		completed domain.Trip
		stats     domain.TripStatistics
		recorded  []domain.Notification
	)
	err = s.store.WithTx(ctx, func(r repo.Repos) error {
		var err error
		completed, err = r.Trips.Complete(ctx, tripID)
		if err != nil {
			return err
		}
		if err := r.Buses.EndTrip(ctx, trip.BusID); err != nil {
			return err
		}

		stats = domain.CalculateStatistics(completed.ChildrenIDs, completed.CheckedInChildren)

		missed, err := r.Children.ListByIDs(ctx, stats.MissedChildren)
		if err != nil {
			return err
		}
		for _, child := range missed {
			batch, err := s.notifier.Record(ctx, r, domain.ChildMissed{Trip: completed, Child: child})
			if err != nil {
				return err
			}
			recorded = append(recorded, batch...)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return EndTripResult{}, fmt.Errorf("service.TripService.EndTrip: %w: trip is not active", domain.ErrNotFound)
		}
		return EndTripResult{}, fmt.Errorf("service.TripService.EndTrip: %w", err)
	}

	s.notifier.Dispatch(ctx, s.store.Repos(), recorded)
	s.log.InfoContext(ctx, "trip ended",
		"trip_id", tripID, "total", stats.TotalChildren,
		"checked_in", stats.CheckedIn, "missed", len(stats.MissedChildren))

	return EndTripResult{Trip: completed, Statistics: stats}, nil
}

// ActiveTrips returns the driver's active trips. The caller must be that
// driver or an admin with access to them.
func (s *TripService) ActiveTrips(ctx context.Context, caller domain.Identity, driverID uuid.UUID) ([]domain.Trip, error) {
	if err := s.authorizeDriverRead(ctx, caller, driverID); err != nil {
		return nil, fmt.Errorf("service.TripService.ActiveTrips: %w", err)
	}
	trips, err := s.store.Repos().Trips.ListActiveByDriver(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("service.TripService.ActiveTrips: %w", err)
	}
	return trips, nil
}

// History returns the driver's trips newest first, keyset-paginated.
// Authorization matches ActiveTrips.
func (s *TripService) History(ctx context.Context, caller domain.Identity, p domain.HistoryParams) ([]domain.Trip, error) {
	if err := s.authorizeDriverRead(ctx, caller, p.DriverID); err != nil {
		return nil, fmt.Errorf("service.TripService.History: %w", err)
	}
	trips, err := s.store.Repos().Trips.ListHistory(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("service.TripService.History: %w", err)
	}
	return trips, nil
}

// getTripAsDriver loads the trip and verifies the caller is its assigned
// driver. Exact identity match — admins cannot act as drivers.
func (s *TripService) getTripAsDriver(ctx context.Context, caller domain.Identity, tripID uuid.UUID, op string) (domain.Trip, error) {
	trip, err := s.store.Repos().Trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Trip{}, fmt.Errorf("service.TripService.%s: %w: trip not found", op, domain.ErrNotFound)
		}
		return domain.Trip{}, fmt.Errorf("service.TripService.%s: %w", op, err)
	}
	if trip.DriverID != caller.UserID {
		return domain.Trip{}, fmt.Errorf("service.TripService.%s: %w: only the assigned driver may modify this trip", op, domain.ErrPermissionDenied)
	}
	return trip, nil
}

// getActiveAsDriver is getTripAsDriver plus an active-status precondition.
func (s *TripService) getActiveAsDriver(ctx context.Context, caller domain.Identity, tripID uuid.UUID, op string) (domain.Trip, error) {
	trip, err := s.getTripAsDriver(ctx, caller, tripID, op)
	if err != nil {
		return domain.Trip{}, err
	}
	if trip.Status != domain.TripStatusActive {
		return domain.Trip{}, fmt.Errorf("service.TripService.%s: %w: trip is not active", op, domain.ErrNotFound)
	}
	return trip, nil
}

// authorizeDriverRead allows the driver themselves, any super admin, and
// school admins of the driver's school. Roles come from the users table, not
// from the token.
func (s *TripService) authorizeDriverRead(ctx context.Context, caller domain.Identity, driverID uuid.UUID) error {
	if caller.UserID == driverID {
		return nil
	}

	r := s.store.Repos()
	user, err := r.Users.GetByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: access denied", domain.ErrPermissionDenied)
		}
		return err
	}
	switch user.Role {
	case domain.RoleSuperAdmin:
		return nil
	case domain.RoleSchoolAdmin:
		driver, err := r.Users.GetByID(ctx, driverID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: access denied", domain.ErrPermissionDenied)
			}
			return err
		}
		if driver.SchoolID != user.SchoolID {
			return fmt.Errorf("%w: access denied", domain.ErrPermissionDenied)
		}
		return nil
	default:
		return fmt.Errorf("%w: access denied", domain.ErrPermissionDenied)
	}
}
