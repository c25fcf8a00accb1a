package repository

import (
	"substacksync-backend/internal/integration/domain"
)

// GmailIntegrationRepository defines data access for connected mailboxes.
type GmailIntegrationRepository interface {
	// Upsert creates or replaces the integration for its user.
	Upsert(integration *domain.GmailIntegration) error

	// FindByUserID finds the integration for a user, nil if none.
	FindByUserID(userID string) (*domain.GmailIntegration, error)

	// FindByEmail finds the integration owning a mailbox address, nil if none.
	FindByEmail(email string) (*domain.GmailIntegration, error)

	// FindWatching returns all integrations flagged as actively watching.
	FindWatching() ([]*domain.GmailIntegration, error)

	// Update persists changes to an existing integration.
	Update(integration *domain.GmailIntegration) error

	// UpdateHistoryID persists only the watermark for a user's integration.
	UpdateHistoryID(userID, historyID string) error

	// SetWatching flips the is-watching flag for a user's integration.
	SetWatching(userID string, watching bool) error

	// Delete removes the integration for a user.
	Delete(userID string) error
}

// KitIntegrationRepository defines data access for Kit credentials and tag
// configuration.
type KitIntegrationRepository interface {
	Upsert(integration *domain.KitIntegration) error
	FindByUserID(userID string) (*domain.KitIntegration, error)
	Update(integration *domain.KitIntegration) error
	Delete(userID string) error
}
