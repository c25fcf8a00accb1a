package domain

import "time"

// GmailIntegration holds the connected mailbox state for one user. There is
// at most one per user. HistoryID is the watermark everything after has not
// been seen yet; WatchExpiry tracks the provider-side push subscription.
type GmailIntegration struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	UserID       string     `json:"user_id" gorm:"uniqueIndex;not null"`
	Email        string     `json:"email" gorm:"index;not null"`
	RefreshToken string     `json:"-" gorm:"not null"`
	HistoryID    string     `json:"history_id"`
	WatchExpiry  *time.Time `json:"watch_expiry,omitempty"`
	IsWatching   bool       `json:"is_watching" gorm:"default:false"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
