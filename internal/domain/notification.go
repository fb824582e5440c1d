package domain

import "time"

// Notification is a persisted message for a single user. Notifications are
// created only by the emitter; the read/unread flag is flipped later through
// the notification service.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
