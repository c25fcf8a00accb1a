package api

import (
	"net/http"

	authdelivery "substacksync-backend/internal/auth/delivery"
	authusecase "substacksync-backend/internal/auth/usecase"
	dashdelivery "substacksync-backend/internal/dashboard/delivery"
	ingestdelivery "substacksync-backend/internal/ingest/delivery"
	integdelivery "substacksync-backend/internal/integration/delivery"
	watchdelivery "substacksync-backend/internal/watch/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	r *gin.Engine,
	authUsecase authusecase.AuthUsecase,
	webhookHandler *ingestdelivery.WebhookHandler,
	cronHandler *watchdelivery.CronHandler,
	gmailHandler *integdelivery.GmailHandler,
	kitHandler *integdelivery.KitHandler,
	dashboardHandler *dashdelivery.DashboardHandler,
) {
	authHandler := authdelivery.NewAuthHandler(authUsecase)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Gmail push webhook. Pub/Sub authenticates at the transport layer,
		// not with a user token.
		api.POST("/webhooks/gmail", webhookHandler.HandleGmailPush)

		// Cron endpoints, guarded by the shared cron secret
		api.GET("/cron/refresh-watchers", cronHandler.RefreshWatchers)

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/google", authHandler.GoogleSignIn)
			auth.GET("/me", authdelivery.AuthMiddleware(authUsecase), authHandler.Me)

			// Gmail OAuth connect flow. The callback carries identity in the
			// signed state parameter, so it stays outside the middleware.
			auth.GET("/gmail", authdelivery.AuthMiddleware(authUsecase), gmailHandler.Connect)
			auth.GET("/gmail/callback", gmailHandler.Callback)
			auth.GET("/gmail/status", authdelivery.AuthMiddleware(authUsecase), gmailHandler.Status)
			auth.POST("/gmail/stop-watch", authdelivery.AuthMiddleware(authUsecase), gmailHandler.StopWatch)
		}

		// Kit integration routes (protected)
		kitGroup := api.Group("/kit")
		kitGroup.Use(authdelivery.AuthMiddleware(authUsecase))
		{
			kitGroup.POST("/setup", kitHandler.Setup)
			kitGroup.GET("/setup", kitHandler.Status)
			kitGroup.GET("/tags", kitHandler.Tags)
			kitGroup.PUT("/tags", kitHandler.UpdateTags)
		}

		// Dashboard and sync routes (protected)
		dashboard := api.Group("/dashboard")
		dashboard.Use(authdelivery.AuthMiddleware(authUsecase))
		{
			dashboard.GET("", dashboardHandler.Dashboard)
			dashboard.POST("/retry-sync", dashboardHandler.RetrySync)
			dashboard.POST("/manual-sync", dashboardHandler.ManualSync)
		}

		// Account routes (protected)
		user := api.Group("/user")
		user.Use(authdelivery.AuthMiddleware(authUsecase))
		{
			user.DELETE("/account", gmailHandler.DeleteAccount)
		}
	}
}
