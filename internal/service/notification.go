package service

import (
	"context"

	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/db"
)

// ListNotifications returns the caller's notifications, newest first.
func (s *Service) ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]db.Notification, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	return s.db.ListNotifications(ctx, sess.UserID, unreadOnly, limit)
}

func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return 0, err
	}
	return s.db.CountUnread(ctx, sess.UserID)
}

// MarkNotificationRead only touches the caller's own notifications; any
// other id reads as not found.
func (s *Service) MarkNotificationRead(ctx context.Context, id string) error {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return err
	}
	return notFound(s.db.MarkNotificationRead(ctx, id, sess.UserID), "Notification")
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context) (int64, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return 0, err
	}
	return s.db.MarkAllNotificationsRead(ctx, sess.UserID)
}

func (s *Service) DeleteNotification(ctx context.Context, id string) error {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return err
	}
	return notFound(s.db.DeleteNotification(ctx, id, sess.UserID), "Notification")
}
