package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mwhitfield/auctionhouse/internal/domain"
)

// NotificationService defines the methods that the notification handler
// requires from the service layer.
type NotificationService interface {
	ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// NotificationHandler serves the per-user notification feed.
type NotificationHandler struct {
	notifications NotificationService
	logger        *slog.Logger
}

// NewNotificationHandler creates a NotificationHandler with the given service
// and logger.
func NewNotificationHandler(notifications NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		logger:        logger,
	}
}

// listNotificationsResponse wraps the notification list response.
type listNotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}

// ListNotifications returns a user's notifications, newest first.
// GET /api/notifications?user_id=...
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter required")
		return
	}

	notifs, err := h.notifications.ListByUser(r.Context(), userID, parseListOpts(r))
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "list notifications")
		return
	}
	if notifs == nil {
		notifs = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, listNotificationsResponse{Notifications: notifs})
}

// MarkRead marks one notification read on behalf of its owner.
// PUT /api/notifications/{id}/read?user_id=...
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing notification id")
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter required")
		return
	}

	if err := h.notifications.MarkRead(r.Context(), id, userID); err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "mark notification read")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":          "read",
		"notification_id": id,
	})
}
