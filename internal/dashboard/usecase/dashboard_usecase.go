package usecase

import (
	"time"

	subdomain "substacksync-backend/internal/subscriber/domain"
	subrepo "substacksync-backend/internal/subscriber/repository"
)

// Metrics summarizes a user's sync pipeline for the dashboard.
type Metrics struct {
	TotalSynced int64      `json:"total_synced"`
	ThisMonth   int64      `json:"this_month"`
	SyncedToday int64      `json:"synced_today"`
	Pending     int64      `json:"pending"`
	Failures    int64      `json:"failures"`
	LastSyncAt  *time.Time `json:"last_sync_at"`
}

// DashboardUsecase assembles read-side views over the event ledger.
type DashboardUsecase interface {
	GetMetrics(userID string) (*Metrics, error)
	GetRecentActivity(userID string, limit int) ([]*subdomain.SubscriberEvent, error)
}

type dashboardUsecase struct {
	eventRepo subrepo.SubscriberEventRepository
}

func NewDashboardUsecase(eventRepo subrepo.SubscriberEventRepository) DashboardUsecase {
	return &dashboardUsecase{eventRepo: eventRepo}
}

func (u *dashboardUsecase) GetMetrics(userID string) (*Metrics, error) {
	totalSynced, err := u.eventRepo.CountByStatus(userID, subdomain.SyncStatusSynced)
	if err != nil {
		return nil, err
	}
	pending, err := u.eventRepo.CountByStatus(userID, subdomain.SyncStatusPending)
	if err != nil {
		return nil, err
	}
	failures, err := u.eventRepo.CountByStatus(userID, subdomain.SyncStatusFailed)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	syncedToday, err := u.eventRepo.CountSyncedSince(userID, startOfDay)
	if err != nil {
		return nil, err
	}
	thisMonth, err := u.eventRepo.CountSyncedSince(userID, startOfMonth)
	if err != nil {
		return nil, err
	}

	lastSyncAt, err := u.eventRepo.LastProcessedAt(userID)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		TotalSynced: totalSynced,
		ThisMonth:   thisMonth,
		SyncedToday: syncedToday,
		Pending:     pending,
		Failures:    failures,
		LastSyncAt:  lastSyncAt,
	}, nil
}

func (u *dashboardUsecase) GetRecentActivity(userID string, limit int) ([]*subdomain.SubscriberEvent, error) {
	return u.eventRepo.FindRecent(userID, limit)
}
