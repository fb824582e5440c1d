package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mwhitfield/auctionhouse/internal/domain"
)

// NotificationService serves the per-user notification feed.
type NotificationService struct {
	notifications domain.NotificationStore
	logger        *slog.Logger
}

// NewNotificationService creates a NotificationService.
func NewNotificationService(notifications domain.NotificationStore, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		logger:        logger.With(slog.String("component", "notifications")),
	}
}

// ListByUser returns a user's notifications, newest first.
func (s *NotificationService) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Notification, error) {
	if userID == "" {
		return nil, fmt.Errorf("notifications: %w: empty user id", domain.ErrInvalidInput)
	}
	out, err := s.notifications.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("notifications: list for %q: %w", userID, err)
	}
	return out, nil
}

// MarkRead marks a notification read on behalf of its owner.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.notifications.MarkRead(ctx, id, userID); err != nil {
		return fmt.Errorf("notifications: mark read %q: %w", id, err)
	}
	return nil
}
