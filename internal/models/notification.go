package models

import "time"

// NotificationType labels the event that produced a notice.
const (
	NotificationTypeStatusChange = "STATUS_CHANGE"
	NotificationTypeDecision     = "DECISION"
	NotificationTypeIssuance     = "ISSUANCE"
)

// Notification is a persisted in-app notice. Delivery to external channels
// (email, SMS) is handled by downstream systems.
type Notification struct {
	ID          string     `db:"id" json:"id"`
	RecipientID string     `db:"recipient_id" json:"recipientId"`
	Type        string     `db:"type" json:"type"`
	Subject     string     `db:"subject" json:"subject"`
	Body        string     `db:"body" json:"body"`
	Read        bool       `db:"read" json:"read"`
	ReadAt      *time.Time `db:"read_at" json:"readAt,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}
