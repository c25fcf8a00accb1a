package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	integdomain "substacksync-backend/internal/integration/domain"
	gmailpkg "substacksync-backend/pkg/gmail"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memGmailIntegRepo struct {
	byUser map[string]*integdomain.GmailIntegration
}

func newMemGmailIntegRepo() *memGmailIntegRepo {
	return &memGmailIntegRepo{byUser: make(map[string]*integdomain.GmailIntegration)}
}

func (r *memGmailIntegRepo) Upsert(integration *integdomain.GmailIntegration) error {
	r.byUser[integration.UserID] = integration
	return nil
}

func (r *memGmailIntegRepo) FindByUserID(userID string) (*integdomain.GmailIntegration, error) {
	return r.byUser[userID], nil
}

func (r *memGmailIntegRepo) FindByEmail(email string) (*integdomain.GmailIntegration, error) {
	for _, integration := range r.byUser {
		if integration.Email == email {
			return integration, nil
		}
	}
	return nil, nil
}

func (r *memGmailIntegRepo) FindWatching() ([]*integdomain.GmailIntegration, error) {
	var out []*integdomain.GmailIntegration
	for _, integration := range r.byUser {
		if integration.IsWatching {
			out = append(out, integration)
		}
	}
	return out, nil
}

func (r *memGmailIntegRepo) Update(integration *integdomain.GmailIntegration) error {
	r.byUser[integration.UserID] = integration
	return nil
}

func (r *memGmailIntegRepo) UpdateHistoryID(userID, historyID string) error {
	if integration, ok := r.byUser[userID]; ok {
		integration.HistoryID = historyID
	}
	return nil
}

func (r *memGmailIntegRepo) SetWatching(userID string, watching bool) error {
	if integration, ok := r.byUser[userID]; ok {
		integration.IsWatching = watching
	}
	return nil
}

func (r *memGmailIntegRepo) Delete(userID string) error {
	delete(r.byUser, userID)
	return nil
}

type stubWatchProvider struct {
	historyID string
	expiry    time.Time
	watchErr  map[string]error // keyed by refresh token
	stopErr   error
	watched   []string
	stopped   []string
}

func (p *stubWatchProvider) Watch(_ context.Context, refreshToken, _ string, _ bool, _ gmailpkg.TokenUpdateFunc) (string, time.Time, error) {
	if err := p.watchErr[refreshToken]; err != nil {
		return "", time.Time{}, err
	}
	p.watched = append(p.watched, refreshToken)
	return p.historyID, p.expiry, nil
}

func (p *stubWatchProvider) Stop(_ context.Context, refreshToken string, _ gmailpkg.TokenUpdateFunc) error {
	if p.stopErr != nil {
		return p.stopErr
	}
	p.stopped = append(p.stopped, refreshToken)
	return nil
}

func seedIntegration(repo *memGmailIntegRepo, userID, token string, watching bool) {
	repo.byUser[userID] = &integdomain.GmailIntegration{
		ID:           "gi-" + userID,
		UserID:       userID,
		Email:        userID + "@gmail.com",
		RefreshToken: token,
		HistoryID:    "1",
		IsWatching:   watching,
	}
}

func TestStart_PersistsWatchState(t *testing.T) {
	repo := newMemGmailIntegRepo()
	seedIntegration(repo, "u1", "tok-1", false)

	expiry := time.Now().Add(7 * 24 * time.Hour).Truncate(time.Second)
	provider := &stubWatchProvider{historyID: "500", expiry: expiry}
	uc := NewWatchUsecase(repo, provider, "projects/p/topics/gmail-updates")

	require.NoError(t, uc.Start(context.Background(), "u1", false))

	integration := repo.byUser["u1"]
	assert.Equal(t, "500", integration.HistoryID)
	assert.True(t, integration.IsWatching)
	require.NotNil(t, integration.WatchExpiry)
	assert.Equal(t, expiry, *integration.WatchExpiry)
}

func TestStart_NotConfigured(t *testing.T) {
	uc := NewWatchUsecase(newMemGmailIntegRepo(), &stubWatchProvider{}, "topic")

	err := uc.Start(context.Background(), "missing", false)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestStop_FlipsWatchingFlag(t *testing.T) {
	repo := newMemGmailIntegRepo()
	seedIntegration(repo, "u1", "tok-1", true)

	provider := &stubWatchProvider{}
	uc := NewWatchUsecase(repo, provider, "topic")

	require.NoError(t, uc.Stop(context.Background(), "u1"))
	assert.False(t, repo.byUser["u1"].IsWatching)
	assert.Equal(t, []string{"tok-1"}, provider.stopped)
}

func TestStop_ProviderFailureKeepsFlag(t *testing.T) {
	repo := newMemGmailIntegRepo()
	seedIntegration(repo, "u1", "tok-1", true)

	provider := &stubWatchProvider{stopErr: errors.New("provider down")}
	uc := NewWatchUsecase(repo, provider, "topic")

	assert.Error(t, uc.Stop(context.Background(), "u1"))
	assert.True(t, repo.byUser["u1"].IsWatching, "flag only clears once the provider confirms")
}

func TestRefreshAll_FlipsFailedWatchersInactive(t *testing.T) {
	repo := newMemGmailIntegRepo()
	seedIntegration(repo, "u1", "tok-1", true)
	seedIntegration(repo, "u2", "tok-2", true)
	seedIntegration(repo, "u3", "tok-3", false) // not watching, ignored

	provider := &stubWatchProvider{
		historyID: "900",
		expiry:    time.Now().Add(24 * time.Hour),
		watchErr:  map[string]error{"tok-2": errors.New("grant revoked")},
	}
	uc := NewWatchUsecase(repo, provider, "topic")

	refreshed, failures, err := uc.RefreshAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, refreshed)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "u2")

	assert.True(t, repo.byUser["u1"].IsWatching)
	assert.False(t, repo.byUser["u2"].IsWatching, "a failed renewal must not look healthy")
	assert.False(t, repo.byUser["u3"].IsWatching)
	assert.NotContains(t, provider.watched, "tok-3")
}
