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

// ChildRepo defines read access to children. The trip engine never mutates
// children — enrollment is owned by school administration.
type ChildRepo interface {
	// GetByID retrieves a child by primary key.
	// Returns domain.ErrNotFound if no child with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Child, error)

	// ListActiveByRoute returns the active children assigned to a route.
	// This is the snapshot taken when a trip starts.
	ListActiveByRoute(ctx context.Context, routeID uuid.UUID) ([]domain.Child, error)

	// ListByIDs returns the children with the given ids, in one query.
	// Missing ids are silently omitted from the result.
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Child, error)
}

// pgChildRepo is the Postgres implementation of ChildRepo.
type pgChildRepo struct {
	db db
}

// NewChildRepo constructs a ChildRepo backed by the provided db connection.
func NewChildRepo(db db) ChildRepo {
	return &pgChildRepo{db: db}
}

const childColumns = `id, name, parent_id, route_id, is_active, created_at, updated_at`

func (r *pgChildRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Child, error) {
	const q = `SELECT ` + childColumns + ` FROM children WHERE id = @id`

	c, err := scanChild(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Child{}, fmt.Errorf("repo.ChildRepo.GetByID: %w", err)
	}
	return c, nil
}

func (r *pgChildRepo) ListActiveByRoute(ctx context.Context, routeID uuid.UUID) ([]domain.Child, error) {
	const q = `
		SELECT ` + childColumns + `
		FROM children
		WHERE route_id = @route_id AND is_active
		ORDER BY name`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"route_id": routeID})
	if err != nil {
		return nil, fmt.Errorf("repo.ChildRepo.ListActiveByRoute: %w", err)
	}
	defer rows.Close()

	return collectChildren(rows, "repo.ChildRepo.ListActiveByRoute")
}

func (r *pgChildRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Child, error) {
	if len(ids) == 0 {
		return []domain.Child{}, nil
	}

	const q = `SELECT ` + childColumns + ` FROM children WHERE id = ANY(@ids)`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("repo.ChildRepo.ListByIDs: %w", err)
	}
	defer rows.Close()

	return collectChildren(rows, "repo.ChildRepo.ListByIDs")
}

// scanChild maps a single database row into a domain.Child.
func scanChild(s scanner) (domain.Child, error) {
	var (
		c        domain.Child
		id       pgtype.UUID
		parentID pgtype.UUID
		routeID  pgtype.UUID
	)

	err := s.Scan(&id, &c.Name, &parentID, &routeID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Child{}, domain.ErrNotFound
		}
		return domain.Child{}, err
	}

	c.ID = uuid.UUID(id.Bytes)
	c.ParentID = uuid.UUID(parentID.Bytes)
	c.RouteID = uuid.UUID(routeID.Bytes)
	return c, nil
}

func collectChildren(rows pgx.Rows, op string) ([]domain.Child, error) {
	children := []domain.Child{}
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		children = append(children, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return children, nil
}
