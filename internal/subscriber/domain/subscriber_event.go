package domain

import "time"

// Tier classifies a subscriber signal.
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// SyncStatus is the outcome of pushing a subscriber event to Kit.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

// SubscriberEvent is one detected Substack subscription signal and its sync
// outcome. The pair (UserID, GmailMessageID) is the idempotency key:
// reprocessing the same message upserts, never duplicates.
type SubscriberEvent struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	UserID          string     `json:"user_id" gorm:"uniqueIndex:idx_user_message;not null"`
	GmailMessageID  string     `json:"gmail_message_id" gorm:"uniqueIndex:idx_user_message;not null"`
	SubscriberEmail string     `json:"subscriber_email" gorm:"not null"`
	SubscriberName  string     `json:"subscriber_name,omitempty"`
	Tier            Tier       `json:"tier" gorm:"default:free"`
	Plan            string     `json:"plan,omitempty"`
	Source          string     `json:"source,omitempty"`
	NewsletterName  string     `json:"newsletter_name,omitempty"`
	RawPayload      []byte     `json:"-" gorm:"type:jsonb"`
	SyncStatus      SyncStatus `json:"sync_status" gorm:"index;default:pending"`
	SyncError       string     `json:"sync_error,omitempty"`
	KitSubscriberID string     `json:"kit_subscriber_id,omitempty"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ParsedSubscriber is the parser's output. It has no identity of its own; it
// is consumed immediately to build a SubscriberEvent.
type ParsedSubscriber struct {
	Email          string
	Name           string
	IsPaid         bool
	Plan           string
	Source         string
	NewsletterName string
}

// Tier maps the paid flag to a ledger tier.
func (p *ParsedSubscriber) Tier() Tier {
	if p.IsPaid {
		return TierPaid
	}
	return TierFree
}
