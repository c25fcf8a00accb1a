package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	ingestusecase "substacksync-backend/internal/ingest/usecase"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes on the watch topic.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Service pulls Gmail watch notifications from a Pub/Sub subscription and
// feeds them into the ingest pipeline. It is an alternative to the push
// webhook for deployments without a public HTTPS endpoint.
type Service struct {
	pubsubClient  *pubsub.Client
	ingestUsecase ingestusecase.IngestUsecase
	topicName     string
	subName       string

	// Deduplication: track last historyId per mailbox to skip stale redeliveries
	mu            sync.Mutex
	lastHistoryID map[string]uint64
}

func NewService(projectID, topicName, credentialsFile string, ingestUsecase ingestusecase.IngestUsecase) (*Service, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %v", err)
	}

	return &Service{
		pubsubClient:  client,
		ingestUsecase: ingestUsecase,
		topicName:     topicName,
		subName:       topicName + "-sub", // Convention: topic-sub
		lastHistoryID: make(map[string]uint64),
	}, nil
}

func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting notification service with topic: %s, subscription: %s", s.topicName, s.subName)

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic %s does not exist, cannot create subscription", s.topicName)
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", s.subName)
	}

	log.Printf("[PubSub] Listening for messages on subscription: %s", s.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

func (s *Service) handleMessage(ctx context.Context, msg *pubsub.Message) {
	var notification GmailNotification
	if err := json.Unmarshal(msg.Data, &notification); err != nil {
		log.Printf("[PubSub] Failed to unmarshal notification: %v", err)
		return
	}

	if notification.EmailAddress == "" || notification.HistoryID == 0 {
		log.Printf("[PubSub] Dropping malformed notification: %s", string(msg.Data))
		return
	}

	if s.isStale(notification) {
		log.Printf("[PubSub] Skipping stale notification for %s (historyId %d)", notification.EmailAddress, notification.HistoryID)
		return
	}

	log.Printf("[PubSub] Received notification for: %s (historyId: %d)", notification.EmailAddress, notification.HistoryID)

	historyID := strconv.FormatUint(notification.HistoryID, 10)
	if err := s.ingestUsecase.ProcessNotification(ctx, notification.EmailAddress, historyID); err != nil {
		log.Printf("[PubSub] Failed to process notification for %s: %v", notification.EmailAddress, err)
	}
}

func (s *Service) isStale(notification GmailNotification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, seen := s.lastHistoryID[notification.EmailAddress]
	if seen && notification.HistoryID <= last {
		return true
	}
	s.lastHistoryID[notification.EmailAddress] = notification.HistoryID
	return false
}
