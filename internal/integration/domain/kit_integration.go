package domain

import (
	"strings"
	"time"
)

// KitIntegration holds a user's Kit (ConvertKit) API credential and the tag
// sets applied to new subscribers. Tag id lists are stored comma-joined.
type KitIntegration struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	UserID        string    `json:"user_id" gorm:"uniqueIndex;not null"`
	APIKey        string    `json:"-" gorm:"not null"`
	FreeTagIDs    string    `json:"-" gorm:"column:free_tag_ids"`
	PaidTagIDs    string    `json:"-" gorm:"column:paid_tag_ids"`
	DefaultTagIDs string    `json:"-" gorm:"column:default_tag_ids"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FreeTags returns the free-subscriber tag ids as a slice.
func (k *KitIntegration) FreeTags() []string {
	return splitTagIDs(k.FreeTagIDs)
}

// PaidTags returns the paid-subscriber tag ids as a slice.
func (k *KitIntegration) PaidTags() []string {
	return splitTagIDs(k.PaidTagIDs)
}

// SetFreeTags replaces the free-subscriber tag set.
func (k *KitIntegration) SetFreeTags(ids []string) {
	k.FreeTagIDs = joinTagIDs(ids)
}

// SetPaidTags replaces the paid-subscriber tag set.
func (k *KitIntegration) SetPaidTags(ids []string) {
	k.PaidTagIDs = joinTagIDs(ids)
}

func splitTagIDs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

func joinTagIDs(ids []string) string {
	return strings.Join(ids, ",")
}
