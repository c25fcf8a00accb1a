package delivery

import (
	"net/http"
	"time"

	"substacksync-backend/internal/watch/usecase"

	"github.com/gin-gonic/gin"
)

type CronHandler struct {
	watchUsecase usecase.WatchUsecase
	cronSecret   string
}

func NewCronHandler(watchUsecase usecase.WatchUsecase, cronSecret string) *CronHandler {
	return &CronHandler{
		watchUsecase: watchUsecase,
		cronSecret:   cronSecret,
	}
}

// RefreshWatchers restarts the Gmail watch for every integration still
// flagged active. Gmail watches expire after about 7 days; the scheduler
// hits this endpoint well before that.
func (h *CronHandler) RefreshWatchers(c *gin.Context) {
	if h.cronSecret == "" || c.GetHeader("Authorization") != "Bearer "+h.cronSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	refreshed, failures, err := h.watchUsecase.RefreshAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	resp := gin.H{
		"success":   true,
		"refreshed": refreshed,
		"failed":    len(failures),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(failures) > 0 {
		resp["errors"] = failures
	}

	c.JSON(http.StatusOK, resp)
}
