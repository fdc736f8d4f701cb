// internal/entity/notification.go
package entity

import (
	"time"

	"github.com/gofrs/uuid"
)

// Notification kinds mirror the extension's notification ids.
const (
	NotificationWeekly      = "weekly"
	NotificationLongSession = "long_session"
)

// Notification is a pending message for the extension to display. The
// extension polls, shows, then acknowledges.
type Notification struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"userId" db:"user_id"`
	Kind      string     `json:"kind" db:"kind"`
	Title     string     `json:"title" db:"title"`
	Message   string     `json:"message" db:"message"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	ReadAt    *time.Time `json:"readAt" db:"read_at"`
}
