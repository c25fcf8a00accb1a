package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	integdomain "substacksync-backend/internal/integration/domain"
	integrepo "substacksync-backend/internal/integration/repository"
	subdomain "substacksync-backend/internal/subscriber/domain"
	"substacksync-backend/internal/subscriber/parser"
	subrepo "substacksync-backend/internal/subscriber/repository"
	gmailpkg "substacksync-backend/pkg/gmail"

	"golang.org/x/oauth2"
)

// syncSource is the acquisition source reported to Kit for synced subscribers.
const syncSource = "SubstackSync"

const syncFailureDetail = "failed to add subscriber to Kit"

type ingestUsecase struct {
	gmailIntegRepo integrepo.GmailIntegrationRepository
	kitIntegRepo   integrepo.KitIntegrationRepository
	eventRepo      subrepo.SubscriberEventRepository
	mailProvider   MailProvider
	kitFactory     TagClientFactory
}

func NewIngestUsecase(
	gmailIntegRepo integrepo.GmailIntegrationRepository,
	kitIntegRepo integrepo.KitIntegrationRepository,
	eventRepo subrepo.SubscriberEventRepository,
	mailProvider MailProvider,
	kitFactory TagClientFactory,
) IngestUsecase {
	return &ingestUsecase{
		gmailIntegRepo: gmailIntegRepo,
		kitIntegRepo:   kitIntegRepo,
		eventRepo:      eventRepo,
		mailProvider:   mailProvider,
		kitFactory:     kitFactory,
	}
}

func (u *ingestUsecase) ProcessNotification(ctx context.Context, emailAddress, historyID string) error {
	if emailAddress == "" || historyID == "" {
		return ErrMalformedNotification
	}

	integration, err := u.gmailIntegRepo.FindByEmail(emailAddress)
	if err != nil {
		return err
	}
	if integration == nil {
		// Expected race: the integration may have been disconnected while
		// this notification was in flight.
		log.Printf("[Ingest] No Gmail integration for %s, skipping notification", emailAddress)
		return nil
	}

	if integration.HistoryID == "" {
		log.Printf("[Ingest] No stored watermark for %s, skipping notification", emailAddress)
		return nil
	}

	onTokenRefresh := u.tokenUpdateCallback(integration)

	newHistoryID, messageIDs, err := u.mailProvider.ListHistory(ctx, integration.RefreshToken, integration.HistoryID, onTokenRefresh)
	if err != nil {
		if errors.Is(err, gmailpkg.ErrHistoryExpired) {
			// Cursor invalid: leave the watermark alone and let the periodic
			// renewal re-establish a fresh watch.
			log.Printf("[Ingest] History expired for %s, watch renewal will recover", emailAddress)
			return nil
		}
		return err
	}

	// Commit the watermark before processing messages so a crash downstream
	// never replays already-advanced history.
	if err := u.gmailIntegRepo.UpdateHistoryID(integration.UserID, newHistoryID); err != nil {
		return err
	}

	if len(messageIDs) == 0 {
		return nil
	}

	log.Printf("[Ingest] %d new messages for %s (history %s -> %s)", len(messageIDs), emailAddress, integration.HistoryID, newHistoryID)

	for _, messageID := range messageIDs {
		if err := u.processMessage(ctx, integration, messageID); err != nil {
			// Per-message isolation: one failure never aborts its siblings.
			log.Printf("[Ingest] Error processing message %s for user %s: %v", messageID, integration.UserID, err)
		}
	}

	return nil
}

func (u *ingestUsecase) processMessage(ctx context.Context, integration *integdomain.GmailIntegration, messageID string) error {
	msg, err := u.mailProvider.GetMessage(ctx, integration.RefreshToken, messageID, u.tokenUpdateCallback(integration))
	if err != nil {
		return err
	}

	if !parser.IsCandidate(msg) {
		return nil
	}

	parsed := parser.Parse(msg)
	if parsed == nil {
		log.Printf("[Ingest] Message %s from Substack did not parse as a subscriber event", messageID)
		return nil
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		raw = nil
	}

	event := &subdomain.SubscriberEvent{
		UserID:          integration.UserID,
		GmailMessageID:  messageID,
		SubscriberEmail: parsed.Email,
		SubscriberName:  parsed.Name,
		Tier:            parsed.Tier(),
		Plan:            parsed.Plan,
		Source:          parsed.Source,
		NewsletterName:  parsed.NewsletterName,
		RawPayload:      raw,
		SyncStatus:      subdomain.SyncStatusPending,
	}
	if err := u.eventRepo.Upsert(event); err != nil {
		return err
	}

	// Re-read in case the upsert hit an existing row (provider redelivery).
	current, err := u.eventRepo.FindByMessageID(integration.UserID, messageID)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}
	if current.SyncStatus == subdomain.SyncStatusSynced {
		log.Printf("[Ingest] Event for message %s already synced, skipping", messageID)
		return nil
	}

	return u.syncEvent(ctx, current)
}

// syncEvent pushes one ledger event to Kit. Without a Kit integration the
// event stays pending, eligible for manual sync once Kit is connected.
func (u *ingestUsecase) syncEvent(ctx context.Context, event *subdomain.SubscriberEvent) error {
	kitIntegration, err := u.kitIntegRepo.FindByUserID(event.UserID)
	if err != nil {
		return err
	}
	if kitIntegration == nil {
		log.Printf("[Ingest] No Kit integration for user %s, leaving event %s pending", event.UserID, event.ID)
		return nil
	}

	client := u.kitFactory(kitIntegration.APIKey)
	now := time.Now()

	sub := client.AddSubscriber(ctx, event.SubscriberEmail, event.SubscriberName, syncSource)
	if sub == nil {
		event.SyncStatus = subdomain.SyncStatusFailed
		event.SyncError = syncFailureDetail
		event.ProcessedAt = &now
		return u.eventRepo.Update(event)
	}

	event.SyncStatus = subdomain.SyncStatusSynced
	event.SyncError = ""
	event.KitSubscriberID = strconv.FormatInt(sub.ID, 10)
	event.ProcessedAt = &now

	// Subscriber creation is the sync-success criterion; tag application is
	// attempted per tag and failures only get logged.
	tags := kitIntegration.FreeTags()
	if event.Tier == subdomain.TierPaid {
		tags = kitIntegration.PaidTags()
	}
	for _, tagID := range tags {
		if !client.AddTag(ctx, event.SubscriberEmail, tagID) {
			log.Printf("[Ingest] Failed to apply tag %s to %s (user %s)", tagID, event.SubscriberEmail, event.UserID)
		}
	}

	return u.eventRepo.Update(event)
}

func (u *ingestUsecase) RetryEvent(ctx context.Context, userID, eventID string) (*subdomain.SubscriberEvent, error) {
	event, err := u.eventRepo.FindByID(userID, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	if event.SyncStatus == subdomain.SyncStatusSynced {
		return nil, ErrAlreadySynced
	}

	kitIntegration, err := u.kitIntegRepo.FindByUserID(userID)
	if err != nil {
		return nil, err
	}
	if kitIntegration == nil {
		return nil, ErrKitNotConfigured
	}

	if err := u.syncEvent(ctx, event); err != nil {
		return nil, err
	}

	return event, nil
}

func (u *ingestUsecase) SyncPendingEvents(ctx context.Context, userID string, limit int) (int, int, error) {
	events, err := u.eventRepo.FindPending(userID, limit)
	if err != nil {
		return 0, 0, err
	}

	synced := 0
	failed := 0
	for _, event := range events {
		if err := u.syncEvent(ctx, event); err != nil {
			log.Printf("[Ingest] Error syncing pending event %s: %v", event.ID, err)
			failed++
			continue
		}
		switch event.SyncStatus {
		case subdomain.SyncStatusSynced:
			synced++
		case subdomain.SyncStatusFailed:
			failed++
		}
	}

	return synced, failed, nil
}

// tokenUpdateCallback persists a rotated refresh token back to the
// integration row.
func (u *ingestUsecase) tokenUpdateCallback(integration *integdomain.GmailIntegration) gmailpkg.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		if token.RefreshToken == "" || token.RefreshToken == integration.RefreshToken {
			return nil
		}
		integration.RefreshToken = token.RefreshToken
		return u.gmailIntegRepo.Update(integration)
	}
}
