package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWatchUsecase struct {
	refreshed int
	failures  []string
	err       error
	called    bool
}

func (s *stubWatchUsecase) Start(_ context.Context, _ string, _ bool) error { return nil }
func (s *stubWatchUsecase) Stop(_ context.Context, _ string) error          { return nil }

func (s *stubWatchUsecase) RefreshAll(_ context.Context) (int, []string, error) {
	s.called = true
	return s.refreshed, s.failures, s.err
}

func newCronRouter(stub *stubWatchUsecase, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/cron/refresh-watchers", NewCronHandler(stub, secret).RefreshWatchers)
	return r
}

func doCron(router *gin.Engine, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/cron/refresh-watchers", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRefreshWatchers_RequiresSecret(t *testing.T) {
	stub := &stubWatchUsecase{}
	router := newCronRouter(stub, "cron-secret")

	assert.Equal(t, http.StatusUnauthorized, doCron(router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doCron(router, "Bearer wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, doCron(router, "cron-secret").Code, "scheme prefix is required")
	assert.False(t, stub.called)
}

func TestRefreshWatchers_EmptySecretLocksEndpoint(t *testing.T) {
	stub := &stubWatchUsecase{}
	router := newCronRouter(stub, "")

	assert.Equal(t, http.StatusUnauthorized, doCron(router, "Bearer ").Code)
	assert.False(t, stub.called)
}

func TestRefreshWatchers_Success(t *testing.T) {
	stub := &stubWatchUsecase{refreshed: 3, failures: []string{"user u2: grant revoked"}}
	router := newCronRouter(stub, "cron-secret")

	w := doCron(router, "Bearer cron-secret")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, float64(3), resp["refreshed"])
	assert.Equal(t, float64(1), resp["failed"])
	assert.NotEmpty(t, resp["errors"])
}

func TestRefreshWatchers_RepoError(t *testing.T) {
	stub := &stubWatchUsecase{err: errors.New("database down")}
	router := newCronRouter(stub, "cron-secret")

	w := doCron(router, "Bearer cron-secret")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
