package usecase

import (
	"context"

	"PowerLedger/internal/domain/errs"
	"PowerLedger/internal/domain/models"
	drepo "PowerLedger/internal/domain/repository"
)

// NotificationService is the operator side of notifications: the scheduler
// creates them, operators read, extend and dismiss them.
type NotificationService struct {
	runner *Runner
}

func NewNotificationService(runner *Runner) *NotificationService {
	return &NotificationService{runner: runner}
}

// List returns undismissed notifications, newest first.
func (s *NotificationService) List(ctx context.Context, isRead *bool, typ *models.NotificationType, limit int) ([]*models.Notification, error) {
	var out []*models.Notification
	err := s.runner.Read(ctx, func(ctx context.Context, tx drepo.Tx) error {
		var err error
		out, err = tx.ListNotifications(ctx, drepo.NotificationFilter{IsRead: isRead, Type: typ, Limit: limit})
		return err
	})
	return out, err
}

// UnreadCount counts undismissed unread notifications.
func (s *NotificationService) UnreadCount(ctx context.Context) (int, error) {
	unread := false
	var n int
	err := s.runner.Read(ctx, func(ctx context.Context, tx drepo.Tx) error {
		var err error
		n, err = tx.CountNotifications(ctx, drepo.NotificationFilter{IsRead: &unread})
		return err
	})
	return n, err
}

func (s *NotificationService) update(ctx context.Context, actor models.Actor, id int64, fn func(n *models.Notification, w *Work) error) (*models.Notification, error) {
	var out *models.Notification
	err := s.runner.Run(ctx, actor, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		n, err := tx.GetNotification(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(n, w); err != nil {
			return err
		}
		if err := tx.UpdateNotification(ctx, n); err != nil {
			return err
		}
		out = n
		return nil
	})
	return out, err
}

func (s *NotificationService) MarkRead(ctx context.Context, actor models.Actor, id int64) (*models.Notification, error) {
	return s.update(ctx, actor, id, func(n *models.Notification, _ *Work) error {
		n.IsRead = true
		return nil
	})
}

// Extend moves the operator's deadline to until and marks the notification
// read. The scheduler re-alerts on that day if the load is still reserved.
func (s *NotificationService) Extend(ctx context.Context, actor models.Actor, id int64, until models.Date) (*models.Notification, error) {
	if until.IsZero() {
		return nil, errs.Invalid("extended_until", "is required")
	}
	return s.update(ctx, actor, id, func(n *models.Notification, w *Work) error {
		if until.Before(w.Today) {
			return errs.Invalid("extended_until", "must not be before %s", w.Today)
		}
		n.ExtendedUntil = models.DatePtr(until)
		n.IsRead = true
		return nil
	})
}

func (s *NotificationService) Dismiss(ctx context.Context, actor models.Actor, id int64) (*models.Notification, error) {
	return s.update(ctx, actor, id, func(n *models.Notification, _ *Work) error {
		n.IsDismissed = true
		return nil
	})
}
