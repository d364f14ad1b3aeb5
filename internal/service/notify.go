package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/schooltransit/backend/internal/domain"
	"github.com/schooltransit/backend/internal/push"
	"github.com/schooltransit/backend/internal/repo"
)

// PushDispatcher is the asynchronous delivery side of fan-out. Enqueue must
// not block: delivery is best-effort by contract and must never hold up the
// operation that triggered it. *push.Dispatcher satisfies it in production.
type PushDispatcher interface {
	Enqueue(msg push.Message)
}

// Notifier implements notification fan-out in two phases. Record expands a
// domain event into per-recipient rows and persists them through the repos
// it is handed — inside the triggering operation's transaction, so the rows
// commit atomically with the state change and a retried operation that loses
// its conditional write notifies no one. Dispatch then resolves push tokens
// and enqueues deliveries, after the transaction has committed.
type Notifier struct {
	dispatcher PushDispatcher
	log        *slog.Logger
	now        func() time.Time
}

// NewNotifier constructs a Notifier.
func NewNotifier(dispatcher PushDispatcher, log *slog.Logger) *Notifier {
	return &Notifier{dispatcher: dispatcher, log: log, now: time.Now}
}

// Record expands the event and persists its notification rows as one batch.
// Call inside the transaction of the state mutation that produced the event.
func (n *Notifier) Record(ctx context.Context, r repo.Repos, event domain.Event) ([]domain.Notification, error) {
	records := event.Notifications(n.now().UTC())
	persisted, err := r.Notifications.CreateBatch(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("service.Notifier.Record: %w", err)
	}
	return persisted, nil
}

// Dispatch resolves push tokens for the persisted records and enqueues one
// delivery per reachable recipient. Failures here are logged and counted,
// never raised: the durable record is the source of truth and push delivery
// is best-effort on top of it.
func (n *Notifier) Dispatch(ctx context.Context, r repo.Repos, notifications []domain.Notification) {
	if len(notifications) == 0 {
		return
	}

	userIDs := make([]uuid.UUID, 0, len(notifications))
	for _, nf := range notifications {
		userIDs = append(userIDs, nf.UserID)
	}
	tokens, err := r.Users.TokensByUserIDs(ctx, userIDs)
	if err != nil {
		n.log.ErrorContext(ctx, "push token lookup failed", "error", err, "recipients", len(userIDs))
		return
	}

	for _, nf := range notifications {
		token, ok := tokens[nf.UserID]
		if !ok {
			// No registered device; the stored record still reaches the user
			// when they next open the app.
			continue
		}
		n.dispatcher.Enqueue(push.Message{
			Token: token,
			Type:  string(nf.Type),
			Title: nf.Title,
			Body:  nf.Body,
			Data:  nf.Data,
		})
	}
}

// SendInput carries the generic admin-initiated notification command:
// targeted users get a durable record plus a push; topics get a broadcast
// push only.
type SendInput struct {
	UserIDs []uuid.UUID
	Topics  []string
	Type    string
	Title   string
	Body    string
	Data    map[string]string
}

// NotificationService exposes the stored-notification surface: the generic
// send used by school staff, the caller's inbox, read flags, and retention
// cleanup.
type NotificationService struct {
	store      TxRunner
	notifier   *Notifier
	dispatcher PushDispatcher
	log        *slog.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(store TxRunner, notifier *Notifier, dispatcher PushDispatcher, log *slog.Logger) *NotificationService {
	return &NotificationService{store: store, notifier: notifier, dispatcher: dispatcher, log: log}
}

// Send persists one record per targeted user as a single batch and enqueues
// push deliveries for users and topics. Admin only.
func (s *NotificationService) Send(ctx context.Context, caller domain.Identity, in SendInput) ([]domain.Notification, error) {
	if in.Title == "" || in.Body == "" {
		return nil, fmt.Errorf("service.NotificationService.Send: %w: title and body are required", domain.ErrValidation)
	}
	if len(in.UserIDs) == 0 && len(in.Topics) == 0 {
		return nil, fmt.Errorf("service.NotificationService.Send: %w: at least one user or topic is required", domain.ErrValidation)
	}
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, fmt.Errorf("service.NotificationService.Send: %w", err)
	}

	now := s.notifier.now().UTC()
	records := make([]domain.Notification, 0, len(in.UserIDs))
	for _, userID := range in.UserIDs {
		records = append(records, domain.Notification{
			UserID:    userID,
			Type:      domain.NotificationType(in.Type),
			Title:     in.Title,
			Body:      in.Body,
			Data:      in.Data,
			CreatedAt: now,
		})
	}

	var persisted []domain.Notification
	err := s.store.WithTx(ctx, func(r repo.Repos) error {
		var err error
		persisted, err = r.Notifications.CreateBatch(ctx, records)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service.NotificationService.Send: %w", err)
	}

	s.notifier.Dispatch(ctx, s.store.Repos(), persisted)
	for _, topic := range in.Topics {
		s.dispatcher.Enqueue(push.Message{
			Topic: topic,
			Type:  in.Type,
			Title: in.Title,
			Body:  in.Body,
			Data:  in.Data,
		})
	}

	return persisted, nil
}

// ListForCaller returns the caller's own notifications, newest first.
func (s *NotificationService) ListForCaller(ctx context.Context, caller domain.Identity, limit int) ([]domain.Notification, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	notifications, err := s.store.Repos().Notifications.ListByUser(ctx, caller.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("service.NotificationService.ListForCaller: %w", err)
	}
	return notifications, nil
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, caller domain.Identity, id uuid.UUID) error {
	if err := s.store.Repos().Notifications.MarkRead(ctx, id, caller.UserID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("service.NotificationService.MarkRead: %w: notification not found", domain.ErrNotFound)
		}
		return fmt.Errorf("service.NotificationService.MarkRead: %w", err)
	}
	return nil
}

// CleanupOlderThan deletes notifications past the retention window and
// returns how many were removed. Called on a timer from main.
func (s *NotificationService) CleanupOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.notifier.now().UTC().Add(-retention)
	deleted, err := s.store.Repos().Notifications.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("service.NotificationService.CleanupOlderThan: %w", err)
	}
	if deleted > 0 {
		s.log.InfoContext(ctx, "old notifications deleted", "count", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

// requireAdmin verifies the caller holds an admin role in the users table.
func (s *NotificationService) requireAdmin(ctx context.Context, caller domain.Identity) error {
	user, err := s.store.Repos().Users.GetByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: access denied", domain.ErrPermissionDenied)
		}
		return err
	}
	if !user.Role.IsAdmin() {
		return fmt.Errorf("%w: access denied", domain.ErrPermissionDenied)
	}
	return nil
}
