package delivery

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"substacksync-backend/internal/ingest/usecase"

	"github.com/gin-gonic/gin"
)

// pubSubEnvelope is the push delivery wrapper Pub/Sub wraps around the Gmail
// notification.
type pubSubEnvelope struct {
	Message struct {
		Data        string `json:"data"`
		MessageID   string `json:"messageId"`
		PublishTime string `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// gmailNotification is the decoded Gmail watch notification payload.
type gmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

type WebhookHandler struct {
	ingestUsecase usecase.IngestUsecase
}

func NewWebhookHandler(ingestUsecase usecase.IngestUsecase) *WebhookHandler {
	return &WebhookHandler{
		ingestUsecase: ingestUsecase,
	}
}

// HandleGmailPush receives Gmail push notifications delivered by Pub/Sub.
// 400 tells the provider the payload is unusable; any 2xx acknowledges; 5xx
// asks for redelivery, which is safe because ingestion is idempotent.
func (h *WebhookHandler) HandleGmailPush(c *gin.Context) {
	var envelope pubSubEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid push envelope"})
		return
	}

	if envelope.Message.Data == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing message data"})
		return
	}

	decoded, err := decodePushData(envelope.Message.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message data encoding"})
		return
	}

	var notification gmailNotification
	if err := json.Unmarshal(decoded, &notification); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification payload"})
		return
	}

	if notification.EmailAddress == "" || notification.HistoryID == 0 {
		log.Printf("[Webhook] Invalid notification data: %s", string(decoded))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification"})
		return
	}

	historyID := strconv.FormatUint(notification.HistoryID, 10)
	if err := h.ingestUsecase.ProcessNotification(c.Request.Context(), notification.EmailAddress, historyID); err != nil {
		if errors.Is(err, usecase.ErrMalformedNotification) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification"})
			return
		}
		log.Printf("[Webhook] Error processing notification for %s: %v", notification.EmailAddress, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process notification"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func decodePushData(data string) ([]byte, error) {
	if decoded, err := base64.StdEncoding.DecodeString(data); err == nil {
		return decoded, nil
	}
	return base64.URLEncoding.DecodeString(data)
}
