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

// RouteRepo defines read access to routes. Route management is owned by
// fleet administration; the trip engine only verifies existence and copies
// the name onto trips.
type RouteRepo interface {
	// GetByID retrieves a route by primary key.
	// Returns domain.ErrNotFound if no route with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Route, error)
}

type pgRouteRepo struct {
	db db
}

// NewRouteRepo constructs a RouteRepo backed by the provided db connection.
func NewRouteRepo(db db) RouteRepo {
	return &pgRouteRepo{db: db}
}

func (r *pgRouteRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Route, error) {
	const q = `
		SELECT id, name, school_id, created_at, updated_at
		FROM routes
		WHERE id = @id`

	var (
		rt       domain.Route
		routeID  pgtype.UUID
		schoolID pgtype.UUID
	)

	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}).Scan(
		&routeID, &rt.Name, &schoolID, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Route{}, fmt.Errorf("repo.RouteRepo.GetByID: %w", domain.ErrNotFound)
		}
		return domain.Route{}, fmt.Errorf("repo.RouteRepo.GetByID: %w", err)
	}

	rt.ID = uuid.UUID(routeID.Bytes)
	rt.SchoolID = uuid.UUID(schoolID.Bytes)
	return rt, nil
}
