package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	integdomain "substacksync-backend/internal/integration/domain"
	integrepo "substacksync-backend/internal/integration/repository"
	gmailpkg "substacksync-backend/pkg/gmail"

	"golang.org/x/oauth2"
)

// ErrNotConfigured is returned when a user has no connected mailbox to
// start or stop watching. Callers may treat it as a no-op.
var ErrNotConfigured = errors.New("gmail integration not configured")

// WatchProvider is the subset of the Gmail client the watch manager needs.
type WatchProvider interface {
	Watch(ctx context.Context, refreshToken, topicName string, stopExisting bool, onTokenRefresh gmailpkg.TokenUpdateFunc) (string, time.Time, error)
	Stop(ctx context.Context, refreshToken string, onTokenRefresh gmailpkg.TokenUpdateFunc) error
}

// WatchUsecase manages the provider-side push subscription per mailbox.
// Invariant: IsWatching is never left true once the provider-side watch is
// known to be absent.
type WatchUsecase interface {
	// Start registers (or re-registers, with forceRestart) the push watch
	// and persists the returned watermark and expiry.
	Start(ctx context.Context, userID string, forceRestart bool) error

	// Stop deregisters the watch. ErrNotConfigured when there is nothing
	// to stop.
	Stop(ctx context.Context, userID string) error

	// RefreshAll restarts the watch for every integration flagged watching,
	// flipping the flag off for any that fail. Returns the refresh count
	// and the per-user errors.
	RefreshAll(ctx context.Context) (int, []string, error)
}

type watchUsecase struct {
	gmailIntegRepo integrepo.GmailIntegrationRepository
	provider       WatchProvider
	topicName      string
}

func NewWatchUsecase(gmailIntegRepo integrepo.GmailIntegrationRepository, provider WatchProvider, topicName string) WatchUsecase {
	return &watchUsecase{
		gmailIntegRepo: gmailIntegRepo,
		provider:       provider,
		topicName:      topicName,
	}
}

func (u *watchUsecase) Start(ctx context.Context, userID string, forceRestart bool) error {
	integration, err := u.gmailIntegRepo.FindByUserID(userID)
	if err != nil {
		return err
	}
	if integration == nil || integration.RefreshToken == "" {
		return ErrNotConfigured
	}

	historyID, expiry, err := u.provider.Watch(ctx, integration.RefreshToken, u.topicName, forceRestart, u.tokenUpdateCallback(integration))
	if err != nil {
		return fmt.Errorf("unable to start watch for user %s: %w", userID, err)
	}

	integration.HistoryID = historyID
	integration.WatchExpiry = &expiry
	integration.IsWatching = true
	return u.gmailIntegRepo.Update(integration)
}

func (u *watchUsecase) Stop(ctx context.Context, userID string) error {
	integration, err := u.gmailIntegRepo.FindByUserID(userID)
	if err != nil {
		return err
	}
	if integration == nil || integration.RefreshToken == "" {
		return ErrNotConfigured
	}

	if err := u.provider.Stop(ctx, integration.RefreshToken, u.tokenUpdateCallback(integration)); err != nil {
		return err
	}

	return u.gmailIntegRepo.SetWatching(userID, false)
}

func (u *watchUsecase) RefreshAll(ctx context.Context) (int, []string, error) {
	integrations, err := u.gmailIntegRepo.FindWatching()
	if err != nil {
		return 0, nil, err
	}

	log.Printf("[Watch] Refreshing %d active Gmail watchers", len(integrations))

	refreshed := 0
	var failures []string
	for _, integration := range integrations {
		if err := u.Start(ctx, integration.UserID, true); err != nil {
			failures = append(failures, fmt.Sprintf("user %s: %v", integration.UserID, err))
			log.Printf("[Watch] Failed to refresh watcher for %s: %v", integration.Email, err)

			// Renewal failed: the watch must not appear healthy while the
			// provider-side subscription may be gone.
			if markErr := u.gmailIntegRepo.SetWatching(integration.UserID, false); markErr != nil {
				log.Printf("[Watch] Failed to mark integration inactive for user %s: %v", integration.UserID, markErr)
			}
			continue
		}
		refreshed++
	}

	return refreshed, failures, nil
}

func (u *watchUsecase) tokenUpdateCallback(integration *integdomain.GmailIntegration) gmailpkg.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		if token.RefreshToken == "" || token.RefreshToken == integration.RefreshToken {
			return nil
		}
		integration.RefreshToken = token.RefreshToken
		return u.gmailIntegRepo.Update(integration)
	}
}
