package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/schooltransit/backend/internal/domain"
)

// NotificationRepo defines the persistence operations for notification records.
// Fan-out calls CreateBatch inside the transaction of the triggering state
// mutation, so notifications commit atomically with the event that caused them.
type NotificationRepo interface {
	// CreateBatch inserts all records as one unit and returns them with
	// DB-generated ids. All-or-nothing: a failure inserts none of them.
	CreateBatch(ctx context.Context, notifications []domain.Notification) ([]domain.Notification, error)

	// ListByUser returns the user's notifications, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error)

	// MarkRead flags a notification as read. Scoped to the owning user:
	// returns domain.ErrNotFound if the record does not exist or belongs to
	// someone else.
	MarkRead(ctx context.Context, id, userID uuid.UUID) error

	// DeleteOlderThan removes notifications created before the cutoff and
	// returns how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type pgNotificationRepo struct {
	db db
}

// NewNotificationRepo constructs a NotificationRepo backed by the provided
// db connection.
func NewNotificationRepo(db db) NotificationRepo {
	return &pgNotificationRepo{db: db}
}

const notificationColumns = `id, user_id, type, title, body, data, is_read, created_at`

func (r *pgNotificationRepo) CreateBatch(ctx context.Context, notifications []domain.Notification) ([]domain.Notification, error) {
	if len(notifications) == 0 {
		return []domain.Notification{}, nil
	}

	// One INSERT with unnest keeps the batch a single statement, so it is
	// atomic even when the caller runs outside an explicit transaction.
	const q = `
		INSERT INTO notifications (user_id, type, title, body, data)
		SELECT * FROM unnest(@user_ids::uuid[], @types::text[], @titles::text[],
		                     @bodies::text[], @datas::jsonb[])
		RETURNING ` + notificationColumns

	n := len(notifications)
	userIDs := make([]uuid.UUID, 0, n)
	types := make([]string, 0, n)
	titles := make([]string, 0, n)
	bodies := make([]string, 0, n)
	datas := make([]string, 0, n)
	for _, nf := range notifications {
		userIDs = append(userIDs, nf.UserID)
		types = append(types, string(nf.Type))
		titles = append(titles, nf.Title)
		bodies = append(bodies, nf.Body)
		data := nf.Data
		if data == nil {
			data = map[string]string{}
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("repo.NotificationRepo.CreateBatch: marshal data: %w", err)
		}
		datas = append(datas, string(raw))
	}

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{
		"user_ids": userIDs,
		"types":    types,
		"titles":   titles,
		"bodies":   bodies,
		"datas":    datas,
	})
	if err != nil {
		return nil, fmt.Errorf("repo.NotificationRepo.CreateBatch: %w", err)
	}
	defer rows.Close()

	return collectNotifications(rows, "repo.NotificationRepo.CreateBatch")
}

func (r *pgNotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error) {
	const q = `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = @user_id
		ORDER BY created_at DESC
		LIMIT @limit`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"user_id": userID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("repo.NotificationRepo.ListByUser: %w", err)
	}
	defer rows.Close()

	return collectNotifications(rows, "repo.NotificationRepo.ListByUser")
}

func (r *pgNotificationRepo) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	const q = `
		UPDATE notifications
		SET is_read = true
		WHERE id = @id AND user_id = @user_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("repo.NotificationRepo.MarkRead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.NotificationRepo.MarkRead: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgNotificationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM notifications WHERE created_at < @cutoff`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"cutoff": cutoff})
	if err != nil {
		return 0, fmt.Errorf("repo.NotificationRepo.DeleteOlderThan: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanNotification maps a single database row into a domain.Notification.
func scanNotification(s scanner) (domain.Notification, error) {
	var (
		nf     domain.Notification
		id     pgtype.UUID
		userID pgtype.UUID
	)

	err := s.Scan(&id, &userID, &nf.Type, &nf.Title, &nf.Body, &nf.Data,
		&nf.IsRead, &nf.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Notification{}, domain.ErrNotFound
		}
		return domain.Notification{}, err
	}

	nf.ID = uuid.UUID(id.Bytes)
	nf.UserID = uuid.UUID(userID.Bytes)
	if nf.Data == nil {
		nf.Data = map[string]string{}
	}
	return nf, nil
}

func collectNotifications(rows pgx.Rows, op string) ([]domain.Notification, error) {
	notifications := []domain.Notification{}
	for rows.Next() {
		nf, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		notifications = append(notifications, nf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return notifications, nil
}
