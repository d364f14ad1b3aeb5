package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schooltransit/backend/internal/domain"
	"github.com/schooltransit/backend/internal/repo"
)

func notificationFixture(userID uuid.UUID) domain.Notification {
	return domain.Notification{
		UserID: userID,
		Type:   domain.NotificationTripStarted,
		Title:  "Pickup Trip Started",
		Body:   "Bus 42 has started the pickup route for Alice.",
		Data:   map[string]string{"trip_id": uuid.NewString(), "child_name": "Alice"},
	}
}

func TestNotificationRepo_CreateBatch(t *testing.T) {
	tx := newTestTx(t)
	f := seedFleet(t, tx)
	r := repo.NewNotificationRepo(tx)
	ctx := context.Background()

	batch := []domain.Notification{
		notificationFixture(f.ParentIDs[0]),
		notificationFixture(f.ParentIDs[1]),
	}

	got, err := r.CreateBatch(ctx, batch)

	require.NoError(t, err)
	require.Len(t, got, 2)
	for i, n := range got {
		assert.NotEqual(t, uuid.Nil, n.ID)
		assert.Equal(t, batch[i].UserID, n.UserID)
		assert.Equal(t, batch[i].Data, n.Data, "data map survives the jsonb round trip")
		assert.False(t, n.IsRead)
		assert.False(t, n.CreatedAt.IsZero())
	}
}

func TestNotificationRepo_CreateBatch_Empty(t *testing.T) {
	tx := newTestTx(t)
	r := repo.NewNotificationRepo(tx)

	got, err := r.CreateBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNotificationRepo_ListByUser(t *testing.T) {
	tx := newTestTx(t)
	f := seedFleet(t, tx)
	r := repo.NewNotificationRepo(tx)
	ctx := context.Background()

	_, err := r.CreateBatch(ctx, []domain.Notification{
		notificationFixture(f.ParentIDs[0]),
		notificationFixture(f.ParentIDs[0]),
		notificationFixture(f.ParentIDs[1]),
	})
	require.NoError(t, err)

	got, err := r.ListByUser(ctx, f.ParentIDs[0], 50)

	require.NoError(t, err)
	require.Len(t, got, 2, "only the user's own notifications")
	for _, n := range got {
		assert.Equal(t, f.ParentIDs[0], n.UserID)
	}
}

func TestNotificationRepo_ListByUser_Limit(t *testing.T) {
	tx := newTestTx(t)
	f := seedFleet(t, tx)
	r := repo.NewNotificationRepo(tx)
	ctx := context.Background()

	batch := make([]domain.Notification, 5)
	for i := range batch {
		batch[i] = notificationFixture(f.ParentIDs[0])
	}
	_, err := r.CreateBatch(ctx, batch)
	require.NoError(t, err)

	got, err := r.ListByUser(ctx, f.ParentIDs[0], 3)

	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestNotificationRepo_MarkRead(t *testing.T) {
	tx := newTestTx(t)
	f := seedFleet(t, tx)
	r := repo.NewNotificationRepo(tx)
	ctx := context.Background()

	created, err := r.CreateBatch(ctx, []domain.Notification{notificationFixture(f.ParentIDs[0])})
	require.NoError(t, err)

	err = r.MarkRead(ctx, created[0].ID, f.ParentIDs[0])
	require.NoError(t, err)

	got, err := r.ListByUser(ctx, f.ParentIDs[0], 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsRead)
}

func TestNotificationRepo_MarkRead_OtherUsersNotification(t *testing.T) {
	tx := newTestTx(t)
	f := seedFleet(t, tx)
	r := repo.NewNotificationRepo(tx)
	ctx := context.Background()

	created, err := r.CreateBatch(ctx, []domain.Notification{notificationFixture(f.ParentIDs[0])})
	require.NoError(t, err)

	// The wrong owner cannot read-flag it; indistinguishable from missing.
	err = r.MarkRead(ctx, created[0].ID, f.ParentIDs[1])

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNotificationRepo_DeleteOlderThan(t *testing.T) {
	tx := newTestTx(t)
	f := seedFleet(t, tx)
	r := repo.NewNotificationRepo(tx)
	ctx := context.Background()

	created, err := r.CreateBatch(ctx, []domain.Notification{
		notificationFixture(f.ParentIDs[0]),
		notificationFixture(f.ParentIDs[0]),
	})
	require.NoError(t, err)

	// Age one record past the cutoff.
	_, err = tx.Exec(ctx,
		`UPDATE notifications SET created_at = now() - interval '60 days' WHERE id = $1`,
		created[0].ID)
	require.NoError(t, err)

	deleted, err := r.DeleteOlderThan(ctx, time.Now().UTC().Add(-30*24*time.Hour))

	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := r.ListByUser(ctx, f.ParentIDs[0], 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, created[1].ID, remaining[0].ID)
}
