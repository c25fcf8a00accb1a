package repository

import (
	"errors"
	"time"

	"substacksync-backend/internal/subscriber/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormSubscriberEventRepository implements SubscriberEventRepository using GORM
type gormSubscriberEventRepository struct {
	db *gorm.DB
}

func NewSubscriberEventRepository(db *gorm.DB) SubscriberEventRepository {
	return &gormSubscriberEventRepository{db: db}
}

func (r *gormSubscriberEventRepository) Upsert(event *domain.SubscriberEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	now := time.Now()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	// Conflict on the idempotency key refreshes the parsed fields but leaves
	// id and sync outcome untouched.
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "gmail_message_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"subscriber_email", "subscriber_name", "tier", "plan", "source",
			"newsletter_name", "raw_payload", "updated_at",
		}),
	}).Create(event).Error
}

func (r *gormSubscriberEventRepository) FindByID(userID, id string) (*domain.SubscriberEvent, error) {
	var event domain.SubscriberEvent
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *gormSubscriberEventRepository) FindByMessageID(userID, gmailMessageID string) (*domain.SubscriberEvent, error) {
	var event domain.SubscriberEvent
	err := r.db.Where("user_id = ? AND gmail_message_id = ?", userID, gmailMessageID).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *gormSubscriberEventRepository) FindPending(userID string, limit int) ([]*domain.SubscriberEvent, error) {
	var events []*domain.SubscriberEvent
	err := r.db.Where("user_id = ? AND sync_status = ?", userID, domain.SyncStatusPending).
		Order("created_at ASC").Limit(limit).Find(&events).Error
	return events, err
}

func (r *gormSubscriberEventRepository) FindRecent(userID string, limit int) ([]*domain.SubscriberEvent, error) {
	var events []*domain.SubscriberEvent
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&events).Error
	return events, err
}

func (r *gormSubscriberEventRepository) Update(event *domain.SubscriberEvent) error {
	event.UpdatedAt = time.Now()
	return r.db.Save(event).Error
}

func (r *gormSubscriberEventRepository) CountByStatus(userID string, status domain.SyncStatus) (int64, error) {
	var count int64
	err := r.db.Model(&domain.SubscriberEvent{}).
		Where("user_id = ? AND sync_status = ?", userID, status).Count(&count).Error
	return count, err
}

func (r *gormSubscriberEventRepository) CountSyncedSince(userID string, t time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&domain.SubscriberEvent{}).
		Where("user_id = ? AND sync_status = ? AND created_at >= ?", userID, domain.SyncStatusSynced, t).
		Count(&count).Error
	return count, err
}

func (r *gormSubscriberEventRepository) LastProcessedAt(userID string) (*time.Time, error) {
	var event domain.SubscriberEvent
	err := r.db.Where("user_id = ? AND processed_at IS NOT NULL", userID).
		Order("processed_at DESC").First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return event.ProcessedAt, nil
}

func (r *gormSubscriberEventRepository) DeleteByUserID(userID string) error {
	return r.db.Delete(&domain.SubscriberEvent{}, "user_id = ?", userID).Error
}
