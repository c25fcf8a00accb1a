package repository

import (
	"time"

	"substacksync-backend/internal/subscriber/domain"
)

// SubscriberEventRepository defines data access for the subscriber event
// ledger.
type SubscriberEventRepository interface {
	// Upsert creates the event or, when an event with the same
	// (user_id, gmail_message_id) already exists, overwrites its parsed
	// fields while keeping the existing id and sync outcome.
	Upsert(event *domain.SubscriberEvent) error

	// FindByID finds an event by id scoped to a user, nil if none.
	FindByID(userID, id string) (*domain.SubscriberEvent, error)

	// FindByMessageID finds an event by its idempotency key, nil if none.
	FindByMessageID(userID, gmailMessageID string) (*domain.SubscriberEvent, error)

	// FindPending returns up to limit pending events for a user, oldest first.
	FindPending(userID string, limit int) ([]*domain.SubscriberEvent, error)

	// FindRecent returns the most recent events for a user, newest first.
	FindRecent(userID string, limit int) ([]*domain.SubscriberEvent, error)

	// Update persists changes to an existing event.
	Update(event *domain.SubscriberEvent) error

	// CountByStatus counts a user's events in the given sync status.
	CountByStatus(userID string, status domain.SyncStatus) (int64, error)

	// CountSyncedSince counts a user's synced events created at or after t.
	CountSyncedSince(userID string, t time.Time) (int64, error)

	// LastProcessedAt returns the most recent processed timestamp for a
	// user, nil when no event has reached a terminal state.
	LastProcessedAt(userID string) (*time.Time, error)

	// DeleteByUserID removes all events for a user.
	DeleteByUserID(userID string) error
}
