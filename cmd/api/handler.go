package api

import (
	authusecase "substacksync-backend/internal/auth/usecase"
	dashdelivery "substacksync-backend/internal/dashboard/delivery"
	ingestdelivery "substacksync-backend/internal/ingest/delivery"
	integdelivery "substacksync-backend/internal/integration/delivery"
	watchdelivery "substacksync-backend/internal/watch/delivery"
	"substacksync-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase      authusecase.AuthUsecase
	webhookHandler   *ingestdelivery.WebhookHandler
	cronHandler      *watchdelivery.CronHandler
	gmailHandler     *integdelivery.GmailHandler
	kitHandler       *integdelivery.KitHandler
	dashboardHandler *dashdelivery.DashboardHandler
	config           *config.Config
}

func NewHandler(
	authUsecase authusecase.AuthUsecase,
	webhookHandler *ingestdelivery.WebhookHandler,
	cronHandler *watchdelivery.CronHandler,
	gmailHandler *integdelivery.GmailHandler,
	kitHandler *integdelivery.KitHandler,
	dashboardHandler *dashdelivery.DashboardHandler,
	cfg *config.Config,
) *Handler {
	return &Handler{
		authUsecase:      authUsecase,
		webhookHandler:   webhookHandler,
		cronHandler:      cronHandler,
		gmailHandler:     gmailHandler,
		kitHandler:       kitHandler,
		dashboardHandler: dashboardHandler,
		config:           cfg,
	}
}

func (h *Handler) Start(addr string) error {
	r := gin.Default()
	gin.SetMode(gin.ReleaseMode)

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.webhookHandler, h.cronHandler, h.gmailHandler, h.kitHandler, h.dashboardHandler)

	return r.Run(addr)
}
