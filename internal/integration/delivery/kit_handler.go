package delivery

import (
	"log"
	"net/http"
	"strconv"

	integdomain "substacksync-backend/internal/integration/domain"
	integrepo "substacksync-backend/internal/integration/repository"
	"substacksync-backend/pkg/kit"

	"github.com/gin-gonic/gin"
)

type KitHandler struct {
	kitIntegRepo integrepo.KitIntegrationRepository
	kitBaseURL   string
}

func NewKitHandler(kitIntegRepo integrepo.KitIntegrationRepository, kitBaseURL string) *KitHandler {
	return &KitHandler{
		kitIntegRepo: kitIntegRepo,
		kitBaseURL:   kitBaseURL,
	}
}

func (h *KitHandler) client(apiKey string) *kit.Client {
	return kit.NewClientWithBaseURL(apiKey, h.kitBaseURL)
}

type kitSetupRequest struct {
	APIKey      string `json:"api_key" binding:"required"`
	FreeTagName string `json:"free_tag_name"`
	PaidTagName string `json:"paid_tag_name"`
}

// Setup validates a Kit API key, finds or creates the requested tags, and
// saves the integration.
func (h *KitHandler) Setup(c *gin.Context) {
	userID := c.GetString("userID")

	var req kitSetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "api_key is required"})
		return
	}

	client := h.client(req.APIKey)

	// Listing tags doubles as the API key check.
	tags, err := client.ListTags(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid API key or Kit API error", "details": err.Error()})
		return
	}

	findOrCreate := func(name string) (string, error) {
		for _, t := range tags {
			if t.Name == name {
				return strconv.FormatInt(t.ID, 10), nil
			}
		}
		created, err := client.CreateTag(c.Request.Context(), name)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(created.ID, 10), nil
	}

	integration := &integdomain.KitIntegration{
		UserID: userID,
		APIKey: req.APIKey,
	}

	if req.FreeTagName != "" {
		id, err := findOrCreate(req.FreeTagName)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to create free subscriber tag", "details": err.Error()})
			return
		}
		integration.SetFreeTags([]string{id})
	}
	if req.PaidTagName != "" {
		id, err := findOrCreate(req.PaidTagName)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to create paid subscriber tag", "details": err.Error()})
			return
		}
		integration.SetPaidTags([]string{id})
	}

	if err := h.kitIntegRepo.Upsert(integration); err != nil {
		log.Printf("[Kit] Failed to save integration for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save Kit integration"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"integration": gin.H{
			"id":           integration.ID,
			"free_tag_ids": integration.FreeTags(),
			"paid_tag_ids": integration.PaidTags(),
		},
	})
}

// Status reports whether a Kit integration exists, without exposing the key.
func (h *KitHandler) Status(c *gin.Context) {
	userID := c.GetString("userID")

	integration, err := h.kitIntegRepo.FindByUserID(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if integration == nil {
		c.JSON(http.StatusOK, gin.H{"integration": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"integration": gin.H{
			"id":           integration.ID,
			"has_api_key":  integration.APIKey != "",
			"free_tag_ids": integration.FreeTags(),
			"paid_tag_ids": integration.PaidTags(),
			"created_at":   integration.CreatedAt,
		},
	})
}

// Tags lists the account's Kit tags together with the current mapping.
func (h *KitHandler) Tags(c *gin.Context) {
	userID := c.GetString("userID")

	integration, err := h.kitIntegRepo.FindByUserID(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if integration == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Kit not connected"})
		return
	}

	tags, err := h.client(integration.APIKey).ListTags(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch tags"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tags": tags,
		"current_config": gin.H{
			"free_tag_ids": integration.FreeTags(),
			"paid_tag_ids": integration.PaidTags(),
		},
	})
}

type kitTagUpdateRequest struct {
	FreeTagIDs []string `json:"free_tag_ids"`
	PaidTagIDs []string `json:"paid_tag_ids"`
}

// UpdateTags replaces the tier-to-tag mapping.
func (h *KitHandler) UpdateTags(c *gin.Context) {
	userID := c.GetString("userID")

	var req kitTagUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	integration, err := h.kitIntegRepo.FindByUserID(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if integration == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Kit not connected"})
		return
	}

	integration.SetFreeTags(req.FreeTagIDs)
	integration.SetPaidTags(req.PaidTagIDs)

	if err := h.kitIntegRepo.Update(integration); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update tag configuration"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
