package repository

import (
	"errors"
	"time"

	"substacksync-backend/internal/integration/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormGmailIntegrationRepository implements GmailIntegrationRepository using GORM
type gormGmailIntegrationRepository struct {
	db *gorm.DB
}

func NewGmailIntegrationRepository(db *gorm.DB) GmailIntegrationRepository {
	return &gormGmailIntegrationRepository{db: db}
}

func (r *gormGmailIntegrationRepository) Upsert(integration *domain.GmailIntegration) error {
	if integration.ID == "" {
		integration.ID = uuid.New().String()
	}
	now := time.Now()
	if integration.CreatedAt.IsZero() {
		integration.CreatedAt = now
	}
	integration.UpdatedAt = now
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "refresh_token", "history_id", "watch_expiry", "is_watching", "updated_at",
		}),
	}).Create(integration).Error
}

func (r *gormGmailIntegrationRepository) FindByUserID(userID string) (*domain.GmailIntegration, error) {
	var integration domain.GmailIntegration
	err := r.db.Where("user_id = ?", userID).First(&integration).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &integration, nil
}

func (r *gormGmailIntegrationRepository) FindByEmail(email string) (*domain.GmailIntegration, error) {
	var integration domain.GmailIntegration
	err := r.db.Where("email = ?", email).First(&integration).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &integration, nil
}

func (r *gormGmailIntegrationRepository) FindWatching() ([]*domain.GmailIntegration, error) {
	var integrations []*domain.GmailIntegration
	err := r.db.Where("is_watching = ?", true).Find(&integrations).Error
	return integrations, err
}

func (r *gormGmailIntegrationRepository) Update(integration *domain.GmailIntegration) error {
	integration.UpdatedAt = time.Now()
	return r.db.Save(integration).Error
}

func (r *gormGmailIntegrationRepository) UpdateHistoryID(userID, historyID string) error {
	return r.db.Model(&domain.GmailIntegration{}).Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"history_id": historyID,
			"updated_at": time.Now(),
		}).Error
}

func (r *gormGmailIntegrationRepository) SetWatching(userID string, watching bool) error {
	return r.db.Model(&domain.GmailIntegration{}).Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"is_watching": watching,
			"updated_at":  time.Now(),
		}).Error
}

func (r *gormGmailIntegrationRepository) Delete(userID string) error {
	return r.db.Delete(&domain.GmailIntegration{}, "user_id = ?", userID).Error
}

// gormKitIntegrationRepository implements KitIntegrationRepository using GORM
type gormKitIntegrationRepository struct {
	db *gorm.DB
}

func NewKitIntegrationRepository(db *gorm.DB) KitIntegrationRepository {
	return &gormKitIntegrationRepository{db: db}
}

func (r *gormKitIntegrationRepository) Upsert(integration *domain.KitIntegration) error {
	if integration.ID == "" {
		integration.ID = uuid.New().String()
	}
	now := time.Now()
	if integration.CreatedAt.IsZero() {
		integration.CreatedAt = now
	}
	integration.UpdatedAt = now
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"api_key", "free_tag_ids", "paid_tag_ids", "default_tag_ids", "updated_at",
		}),
	}).Create(integration).Error
}

func (r *gormKitIntegrationRepository) FindByUserID(userID string) (*domain.KitIntegration, error) {
	var integration domain.KitIntegration
	err := r.db.Where("user_id = ?", userID).First(&integration).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &integration, nil
}

func (r *gormKitIntegrationRepository) Update(integration *domain.KitIntegration) error {
	integration.UpdatedAt = time.Now()
	return r.db.Save(integration).Error
}

func (r *gormKitIntegrationRepository) Delete(userID string) error {
	return r.db.Delete(&domain.KitIntegration{}, "user_id = ?", userID).Error
}
