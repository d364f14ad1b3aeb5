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

// UserRepo defines read access to user accounts. Account management lives
// elsewhere; the trip engine reads users to check roles and resolve push
// tokens.
type UserRepo interface {
	// GetByID retrieves a user by primary key.
	// Returns domain.ErrNotFound if no user with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)

	// TokensByUserIDs resolves the push registration tokens for the given
	// users. Users without a token are omitted from the result map.
	TokensByUserIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

type pgUserRepo struct {
	db db
}

// NewUserRepo constructs a UserRepo backed by the provided db connection.
func NewUserRepo(db db) UserRepo {
	return &pgUserRepo{db: db}
}

func (r *pgUserRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	const q = `
		SELECT id, name, role, school_id, coalesce(fcm_token, ''),
		       created_at, updated_at
		FROM users
		WHERE id = @id`

	var (
		u        domain.User
		userID   pgtype.UUID
		schoolID pgtype.UUID
	)

	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}).Scan(
		&userID, &u.Name, &u.Role, &schoolID, &u.FCMToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("repo.UserRepo.GetByID: %w", domain.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("repo.UserRepo.GetByID: %w", err)
	}

	u.ID = uuid.UUID(userID.Bytes)
	u.SchoolID = uuid.UUID(schoolID.Bytes)
	return u, nil
}

func (r *pgUserRepo) TokensByUserIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]string{}, nil
	}

	const q = `
		SELECT id, fcm_token
		FROM users
		WHERE id = ANY(@ids) AND fcm_token IS NOT NULL AND fcm_token <> ''`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("repo.UserRepo.TokensByUserIDs: %w", err)
	}
	defer rows.Close()

	tokens := map[uuid.UUID]string{}
	for rows.Next() {
		var (
			id    pgtype.UUID
			token string
		)
		if err := rows.Scan(&id, &token); err != nil {
			return nil, fmt.Errorf("repo.UserRepo.TokensByUserIDs: scan: %w", err)
		}
		tokens[uuid.UUID(id.Bytes)] = token
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.UserRepo.TokensByUserIDs: rows: %w", err)
	}
	return tokens, nil
}
