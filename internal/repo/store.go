package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repos bundles one repo per entity, all bound to the same db handle.
// Built over the pool for standalone reads, or over a transaction inside
// Store.WithTx so multi-entity mutations commit atomically.
type Repos struct {
	Trips         TripRepo
	Buses         BusRepo
	Routes        RouteRepo
	Children      ChildRepo
	CheckIns      CheckInRepo
	Notifications NotificationRepo
	Users         UserRepo
}

// NewRepos constructs the full repo set over the given db handle.
func NewRepos(db db) Repos {
	return Repos{
		Trips:         NewTripRepo(db),
		Buses:         NewBusRepo(db),
		Routes:        NewRouteRepo(db),
		Children:      NewChildRepo(db),
		CheckIns:      NewCheckInRepo(db),
		Notifications: NewNotificationRepo(db),
		Users:         NewUserRepo(db),
	}
}

// Store is the service layer's entry point to persistence. It hands out
// pool-bound repos for reads and runs transactional closures for mutations
// that must commit together (a trip write, its bus projection, its check-in
// row, and its notification batch are one atomic unit).
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Repos returns repos bound directly to the pool. Each call runs on its own
// connection; use WithTx when multiple writes must be atomic.
func (s *Store) Repos() Repos {
	return NewRepos(s.pool)
}

// WithTx begins a transaction, passes tx-bound repos to fn, and commits if fn
// returns nil. Any error from fn rolls the whole transaction back, so partial
// mutations never become visible.
func (s *Store) WithTx(ctx context.Context, fn func(r Repos) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repo.Store.WithTx: begin: %w", err)
	}
	// Rollback after a successful commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewRepos(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repo.Store.WithTx: commit: %w", err)
	}
	return nil
}
