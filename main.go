package main

import (
	"context"
	"log"
	"strings"

	api "substacksync-backend/cmd/api"
	authdomain "substacksync-backend/internal/auth/domain"
	authrepo "substacksync-backend/internal/auth/repository"
	authusecase "substacksync-backend/internal/auth/usecase"
	dashdelivery "substacksync-backend/internal/dashboard/delivery"
	dashusecase "substacksync-backend/internal/dashboard/usecase"
	ingestdelivery "substacksync-backend/internal/ingest/delivery"
	ingestusecase "substacksync-backend/internal/ingest/usecase"
	integdelivery "substacksync-backend/internal/integration/delivery"
	integdomain "substacksync-backend/internal/integration/domain"
	integrepo "substacksync-backend/internal/integration/repository"
	"substacksync-backend/internal/notification"
	subdomain "substacksync-backend/internal/subscriber/domain"
	subrepo "substacksync-backend/internal/subscriber/repository"
	watchdelivery "substacksync-backend/internal/watch/delivery"
	watchusecase "substacksync-backend/internal/watch/usecase"
	"substacksync-backend/pkg/config"
	"substacksync-backend/pkg/database"
	gmailpkg "substacksync-backend/pkg/gmail"
	"substacksync-backend/pkg/kit"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&authdomain.User{},
		&integdomain.GmailIntegration{},
		&integdomain.KitIntegration{},
		&subdomain.SubscriberEvent{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	userRepo := authrepo.NewUserRepository(db)
	gmailIntegRepo := integrepo.NewGmailIntegrationRepository(db)
	kitIntegRepo := integrepo.NewKitIntegrationRepository(db)
	eventRepo := subrepo.NewSubscriberEventRepository(db)

	// Initialize Gmail service
	gmailService := gmailpkg.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI)

	// Initialize use cases
	authUsecaseInstance := authusecase.NewAuthUsecase(userRepo, cfg)
	watchUsecaseInstance := watchusecase.NewWatchUsecase(gmailIntegRepo, gmailService, cfg.PubSubTopicName())

	kitFactory := func(apiKey string) ingestusecase.TagSyncClient {
		return kit.NewClientWithBaseURL(apiKey, cfg.KitBaseURL)
	}
	ingestUsecaseInstance := ingestusecase.NewIngestUsecase(gmailIntegRepo, kitIntegRepo, eventRepo, gmailService, kitFactory)
	dashboardUsecaseInstance := dashusecase.NewDashboardUsecase(eventRepo)

	// Initialize Notification Service (Pub/Sub pull)
	// Only start if project ID is configured; push deployments rely on the
	// webhook endpoint instead.
	if cfg.GoogleProjectID != "" {
		// Extract short topic name from full resource name if necessary
		topicName := cfg.GooglePubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}
		if topicName == "" {
			topicName = "gmail-updates"
		}

		notifService, err := notification.NewService(cfg.GoogleProjectID, topicName, cfg.GoogleCredentials, ingestUsecaseInstance)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize notification service: %v", err)
		} else {
			go notifService.Start(context.Background())
		}
	} else {
		log.Printf("[WARN] GoogleProjectID not configured, pull notification service disabled")
	}

	// Initialize HTTP handlers
	webhookHandler := ingestdelivery.NewWebhookHandler(ingestUsecaseInstance)
	cronHandler := watchdelivery.NewCronHandler(watchUsecaseInstance, cfg.CronSecret)
	gmailHandler := integdelivery.NewGmailHandler(authUsecaseInstance, watchUsecaseInstance, gmailService, gmailIntegRepo, kitIntegRepo, eventRepo, userRepo, cfg.AppBaseURL)
	kitHandler := integdelivery.NewKitHandler(kitIntegRepo, cfg.KitBaseURL)
	dashboardHandler := dashdelivery.NewDashboardHandler(dashboardUsecaseInstance, ingestUsecaseInstance, gmailIntegRepo, kitIntegRepo)

	handler := api.NewHandler(authUsecaseInstance, webhookHandler, cronHandler, gmailHandler, kitHandler, dashboardHandler, cfg)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
