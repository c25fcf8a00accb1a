package delivery

import (
	"errors"
	"net/http"

	dashusecase "substacksync-backend/internal/dashboard/usecase"
	ingestusecase "substacksync-backend/internal/ingest/usecase"
	integrepo "substacksync-backend/internal/integration/repository"

	"github.com/gin-gonic/gin"
)

// manualSyncLimit bounds how many pending events one manual run drives.
const manualSyncLimit = 10

type DashboardHandler struct {
	dashboardUsecase dashusecase.DashboardUsecase
	ingestUsecase    ingestusecase.IngestUsecase
	gmailIntegRepo   integrepo.GmailIntegrationRepository
	kitIntegRepo     integrepo.KitIntegrationRepository
}

func NewDashboardHandler(
	dashboardUsecase dashusecase.DashboardUsecase,
	ingestUsecase ingestusecase.IngestUsecase,
	gmailIntegRepo integrepo.GmailIntegrationRepository,
	kitIntegRepo integrepo.KitIntegrationRepository,
) *DashboardHandler {
	return &DashboardHandler{
		dashboardUsecase: dashboardUsecase,
		ingestUsecase:    ingestUsecase,
		gmailIntegRepo:   gmailIntegRepo,
		kitIntegRepo:     kitIntegRepo,
	}
}

// Dashboard returns sync metrics and the most recent events.
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	userID := c.GetString("userID")

	metrics, err := h.dashboardUsecase.GetMetrics(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load dashboard metrics"})
		return
	}

	activity, err := h.dashboardUsecase.GetRecentActivity(userID, manualSyncLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load recent activity"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"metrics":  metrics,
		"activity": activity,
	})
}

type retrySyncRequest struct {
	EventID string `json:"event_id" binding:"required"`
}

// RetrySync re-drives the Kit sync for one event.
func (h *DashboardHandler) RetrySync(c *gin.Context) {
	userID := c.GetString("userID")

	var req retrySyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_id is required"})
		return
	}

	event, err := h.ingestUsecase.RetryEvent(c.Request.Context(), userID, req.EventID)
	if err != nil {
		switch {
		case errors.Is(err, ingestusecase.ErrEventNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		case errors.Is(err, ingestusecase.ErrAlreadySynced):
			c.JSON(http.StatusBadRequest, gin.H{"error": "event already synced"})
		case errors.Is(err, ingestusecase.ErrKitNotConfigured):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Kit integration not configured"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retry sync"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "event": event})
}

// ManualSync drives a batch of pending events through the Kit sync step.
// Both integrations must be connected before a run makes sense.
func (h *DashboardHandler) ManualSync(c *gin.Context) {
	userID := c.GetString("userID")

	gmailIntegration, err := h.gmailIntegRepo.FindByUserID(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if gmailIntegration == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Gmail not connected"})
		return
	}

	kitIntegration, err := h.kitIntegRepo.FindByUserID(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if kitIntegration == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Kit not connected"})
		return
	}

	synced, failed, err := h.ingestUsecase.SyncPendingEvents(c.Request.Context(), userID, manualSyncLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "manual sync failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"synced":  synced,
		"failed":  failed,
	})
}
