package delivery

import (
	"errors"
	"log"
	"net/http"

	authrepo "substacksync-backend/internal/auth/repository"
	authusecase "substacksync-backend/internal/auth/usecase"
	integdomain "substacksync-backend/internal/integration/domain"
	integrepo "substacksync-backend/internal/integration/repository"
	subrepo "substacksync-backend/internal/subscriber/repository"
	watchusecase "substacksync-backend/internal/watch/usecase"
	gmailpkg "substacksync-backend/pkg/gmail"

	"github.com/gin-gonic/gin"
)

type GmailHandler struct {
	authUsecase    authusecase.AuthUsecase
	watchUsecase   watchusecase.WatchUsecase
	gmailService   *gmailpkg.Service
	gmailIntegRepo integrepo.GmailIntegrationRepository
	kitIntegRepo   integrepo.KitIntegrationRepository
	eventRepo      subrepo.SubscriberEventRepository
	userRepo       authrepo.UserRepository
	appBaseURL     string
}

func NewGmailHandler(
	authUsecase authusecase.AuthUsecase,
	watchUsecase watchusecase.WatchUsecase,
	gmailService *gmailpkg.Service,
	gmailIntegRepo integrepo.GmailIntegrationRepository,
	kitIntegRepo integrepo.KitIntegrationRepository,
	eventRepo subrepo.SubscriberEventRepository,
	userRepo authrepo.UserRepository,
	appBaseURL string,
) *GmailHandler {
	return &GmailHandler{
		authUsecase:    authUsecase,
		watchUsecase:   watchUsecase,
		gmailService:   gmailService,
		gmailIntegRepo: gmailIntegRepo,
		kitIntegRepo:   kitIntegRepo,
		eventRepo:      eventRepo,
		userRepo:       userRepo,
		appBaseURL:     appBaseURL,
	}
}

// Connect starts the Gmail OAuth consent flow. The signed state round-trips
// the user id through Google.
func (h *GmailHandler) Connect(c *gin.Context) {
	userID := c.GetString("userID")

	state, err := h.authUsecase.SignState(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create state"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"auth_url": h.gmailService.AuthCodeURL(state)})
}

// Callback completes the OAuth flow: exchanges the code, stores the refresh
// token, and starts the mailbox watch.
func (h *GmailHandler) Callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		c.Redirect(http.StatusTemporaryRedirect, h.appBaseURL+"/settings?gmail=error")
		return
	}

	userID, err := h.authUsecase.VerifyState(state)
	if err != nil {
		c.Redirect(http.StatusTemporaryRedirect, h.appBaseURL+"/settings?gmail=error")
		return
	}

	token, err := h.gmailService.Exchange(c.Request.Context(), code)
	if err != nil || token.RefreshToken == "" {
		log.Printf("[Gmail] OAuth exchange failed for user %s: %v", userID, err)
		c.Redirect(http.StatusTemporaryRedirect, h.appBaseURL+"/settings?gmail=error")
		return
	}

	email, err := h.gmailService.GetProfile(c.Request.Context(), token.RefreshToken, nil)
	if err != nil {
		log.Printf("[Gmail] Failed to read profile for user %s: %v", userID, err)
		c.Redirect(http.StatusTemporaryRedirect, h.appBaseURL+"/settings?gmail=error")
		return
	}

	integration := &integdomain.GmailIntegration{
		UserID:       userID,
		Email:        email,
		RefreshToken: token.RefreshToken,
	}
	if err := h.gmailIntegRepo.Upsert(integration); err != nil {
		log.Printf("[Gmail] Failed to save integration for user %s: %v", userID, err)
		c.Redirect(http.StatusTemporaryRedirect, h.appBaseURL+"/settings?gmail=error")
		return
	}

	if err := h.watchUsecase.Start(c.Request.Context(), userID, true); err != nil {
		// The mailbox is connected even if the watch could not start; the
		// user can retry from settings and the cron will keep trying.
		log.Printf("[Gmail] Watch start failed for user %s: %v", userID, err)
		c.Redirect(http.StatusTemporaryRedirect, h.appBaseURL+"/settings?gmail=connected&watch=error")
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, h.appBaseURL+"/settings?gmail=connected")
}

// Status reports the connection and watch state for the current user.
func (h *GmailHandler) Status(c *gin.Context) {
	userID := c.GetString("userID")

	integration, err := h.gmailIntegRepo.FindByUserID(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if integration == nil {
		c.JSON(http.StatusOK, gin.H{"connected": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":    true,
		"email":        integration.Email,
		"is_watching":  integration.IsWatching,
		"watch_expiry": integration.WatchExpiry,
	})
}

// StopWatch stops push notifications for the current user's mailbox.
func (h *GmailHandler) StopWatch(c *gin.Context) {
	userID := c.GetString("userID")

	if err := h.watchUsecase.Stop(c.Request.Context(), userID); err != nil {
		if errors.Is(err, watchusecase.ErrNotConfigured) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "gmail not connected"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stop gmail watch"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteAccount disconnects everything for the current user: best-effort
// watch stop, then integrations, events, and the user row.
func (h *GmailHandler) DeleteAccount(c *gin.Context) {
	userID := c.GetString("userID")

	if err := h.watchUsecase.Stop(c.Request.Context(), userID); err != nil && !errors.Is(err, watchusecase.ErrNotConfigured) {
		log.Printf("[Account] Best-effort watch stop failed for user %s: %v", userID, err)
	}

	if err := h.gmailIntegRepo.Delete(userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.kitIntegRepo.Delete(userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.eventRepo.DeleteByUserID(userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.userRepo.Delete(userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
