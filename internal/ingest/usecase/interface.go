package usecase

import (
	"context"
	"errors"

	subdomain "substacksync-backend/internal/subscriber/domain"
	gmailpkg "substacksync-backend/pkg/gmail"
	"substacksync-backend/pkg/kit"

	"google.golang.org/api/gmail/v1"
)

var (
	// ErrMalformedNotification marks a push notification missing required
	// fields. Terminal, no retry.
	ErrMalformedNotification = errors.New("malformed gmail notification")

	// ErrEventNotFound marks a retry against an unknown event id.
	ErrEventNotFound = errors.New("subscriber event not found")

	// ErrAlreadySynced marks a retry against an event that already synced.
	ErrAlreadySynced = errors.New("subscriber event already synced")

	// ErrKitNotConfigured marks a sync attempt without a Kit integration.
	ErrKitNotConfigured = errors.New("kit integration not configured")
)

// MailProvider is the subset of the Gmail client the orchestrator needs.
type MailProvider interface {
	ListHistory(ctx context.Context, refreshToken, startHistoryID string, onTokenRefresh gmailpkg.TokenUpdateFunc) (string, []string, error)
	GetMessage(ctx context.Context, refreshToken, messageID string, onTokenRefresh gmailpkg.TokenUpdateFunc) (*gmail.Message, error)
}

// TagSyncClient pushes subscribers and tags to the tag platform. AddSubscriber
// returns nil and AddTag returns false on remote failure; neither raises.
type TagSyncClient interface {
	AddSubscriber(ctx context.Context, email, name, source string) *kit.Subscriber
	AddTag(ctx context.Context, email, tagID string) bool
}

// TagClientFactory builds a TagSyncClient for one account's API key.
type TagClientFactory func(apiKey string) TagSyncClient

// IngestUsecase drives a push notification through history delta, parsing,
// the event ledger, and Kit sync.
type IngestUsecase interface {
	// ProcessNotification handles one Gmail push notification. Unknown
	// mailboxes and expired history cursors are skipped, not errors; the
	// returned error means the notification should be redelivered.
	ProcessNotification(ctx context.Context, emailAddress, historyID string) error

	// RetryEvent re-drives the Kit sync for one failed or pending event.
	// Events already synced are rejected with ErrAlreadySynced.
	RetryEvent(ctx context.Context, userID, eventID string) (*subdomain.SubscriberEvent, error)

	// SyncPendingEvents drives up to limit pending events for a user through
	// the Kit sync step. Returns how many synced and how many failed.
	SyncPendingEvents(ctx context.Context, userID string, limit int) (synced, failed int, err error)
}
