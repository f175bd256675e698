package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"supermock/internal/core/domain"
	"supermock/internal/core/services"
	"supermock/internal/infrastructure/monitoring"
	"supermock/internal/infrastructure/repositories/memory"
	"supermock/internal/infrastructure/videolink"
	"supermock/pkg/cache"
	"supermock/pkg/config"
)

const slot = "2030-03-14T09:00:00Z"

type nopHub struct{}

func (nopHub) Deliver(context.Context, domain.UserID, domain.Event) error      { return nil }
func (nopHub) Broadcast(context.Context, domain.SessionID, domain.Event) error { return nil }

type apiError struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details"`
}

func newTestAPI(t *testing.T, devMode bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.DevMode = devMode
	cfg.RateLimiting.Enabled = false
	logger := zaptest.NewLogger(t).Sugar()

	store := memory.NewStore()
	validator := videolink.NewValidator(cfg.Video.AllowedHosts)
	rooms := videolink.NewLocalProvider(cfg.Video.BaseURL, validator)
	roomState := cache.New[domain.RoomState](time.Minute)
	t.Cleanup(roomState.Stop)

	dispatcher := services.NewDispatcher(store, nopHub{}, nopHub{}, nil, services.DispatcherConfig{NotificationTTL: time.Hour}, logger)
	t.Cleanup(dispatcher.Stop)

	profiles := services.NewProfileService(store, logger)
	matching := services.NewMatchingService(store, dispatcher, profiles, nil, logger)
	sessions := services.NewSessionService(store, rooms, validator, dispatcher, nil, roomState, services.SessionServiceConfig{}, logger)

	health := monitoring.NewHealthChecker()
	health.AddStoreCheck(store, time.Second)

	return NewRouter(cfg, Services{
		Auth:          services.NewAuthService(cfg.Auth.JWTSecret, "supermock", cfg.Auth.AccessTokenTTL),
		Queue:         services.NewQueueService(store, matching, nil, logger),
		Sessions:      sessions,
		Notifications: services.NewNotificationService(store),
		Profiles:      profiles,
		Health:        health,
	}, logger)
}

func do(t *testing.T, router http.Handler, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func requireError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) apiError {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	e := decode[apiError](t, w)
	assert.Equal(t, code, e.Error)
	return e
}

func TestQueueJoinMatchesAndNotifies(t *testing.T) {
	router := newTestAPI(t, true)

	w := do(t, router, http.MethodPost, "/api/v1/queue/join", "cand", gin.H{
		"role": "candidate", "slot_utc": slot, "profession": "frontend", "language": "ru",
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	queued := decode[domain.JoinResult](t, w)
	assert.True(t, queued.Queued)
	assert.Equal(t, 1, queued.Position)

	w = do(t, router, http.MethodGet, "/api/v1/queue/waiting?role=candidate&slot_utc="+slot, "someone", nil)
	require.Equal(t, http.StatusOK, w.Code)
	waiting := decode[struct{ Entries []domain.QueueEntry }](t, w)
	assert.Len(t, waiting.Entries, 1)

	w = do(t, router, http.MethodPost, "/api/v1/queue/join", "intv", gin.H{
		"role": "interviewer", "slot_utc": slot, "profession": "frontend", "language": "ru",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	matched := decode[domain.JoinResult](t, w)
	require.NotNil(t, matched.Session)
	sessionID := string(matched.Session.ID)
	assert.Equal(t, domain.UserID("intv"), matched.Session.InterviewerUserID)
	assert.Equal(t, domain.UserID("cand"), matched.Session.CandidateUserID)

	w = do(t, router, http.MethodGet, "/api/v1/sessions/"+sessionID, "cand", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/sessions/"+sessionID, "outsider", nil)
	requireError(t, w, http.StatusForbidden, "NOT_PARTICIPANT")

	w = do(t, router, http.MethodGet, "/api/v1/sessions/missing", "cand", nil)
	requireError(t, w, http.StatusNotFound, "NOT_FOUND")

	w = do(t, router, http.MethodGet, "/api/v1/notifications", "cand", nil)
	require.Equal(t, http.StatusOK, w.Code)
	inbox := decode[struct{ Notifications []domain.Notification }](t, w)
	require.Len(t, inbox.Notifications, 1)
	assert.Equal(t, domain.EventMatchFound, inbox.Notifications[0].Type)

	w = do(t, router, http.MethodPost, "/api/v1/notifications/"+inbox.Notifications[0].ID+"/read", "intv", nil)
	requireError(t, w, http.StatusNotFound, "NOT_FOUND")
	w = do(t, router, http.MethodPost, "/api/v1/notifications/"+inbox.Notifications[0].ID+"/read", "cand", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestQueueJoinRejectsInvalidInput(t *testing.T) {
	router := newTestAPI(t, true)

	w := do(t, router, http.MethodPost, "/api/v1/queue/join", "cand", gin.H{"role": "observer", "slot_utc": slot})
	requireError(t, w, http.StatusBadRequest, "INVALID_INPUT")

	w = do(t, router, http.MethodGet, "/api/v1/queue/waiting?slot_utc=tomorrow", "cand", nil)
	requireError(t, w, http.StatusBadRequest, "INVALID_INPUT")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queue/join", bytes.NewBufferString("{"))
	req.Header.Set("X-User-ID", "cand")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	requireError(t, w, http.StatusBadRequest, "INVALID_INPUT")
}

func TestSessionLifecycle(t *testing.T) {
	router := newTestAPI(t, true)

	w := do(t, router, http.MethodPost, "/api/v1/sessions", "alice", gin.H{"slot_utc": slot, "role": "interviewer"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	session := decode[domain.Session](t, w)
	assert.Equal(t, domain.UserID("alice"), session.InterviewerUserID)
	assert.Equal(t, domain.VideoLinkActive, session.VideoLinkStatus)
	path := "/api/v1/sessions/" + string(session.ID)

	w = do(t, router, http.MethodPost, path+"/roles", "bob", gin.H{"role": "candidate"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, router, http.MethodPost, path+"/roles", "carol", gin.H{"role": "candidate"})
	requireError(t, w, http.StatusConflict, "ROLE_CONFLICT")

	w = do(t, router, http.MethodPost, path+"/roles", "carol", gin.H{"role": "observer"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodPost, path+"/roles", "dave", gin.H{"role": "captain"})
	requireError(t, w, http.StatusBadRequest, "INVALID_INPUT")

	w = do(t, router, http.MethodPost, path+"/status", "bob", gin.H{"status": "active"})
	requireError(t, w, http.StatusForbidden, "FORBIDDEN")

	w = do(t, router, http.MethodPost, path+"/status", "alice", gin.H{"status": "completed"})
	requireError(t, w, http.StatusConflict, "INVALID_TRANSITION")

	for _, status := range []string{"active", "completed"} {
		w = do(t, router, http.MethodPost, path+"/status", "alice", gin.H{"status": status})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	// Pending feedback blocks bob from taking a decided role elsewhere.
	w = do(t, router, http.MethodPost, "/api/v1/sessions", "bob", gin.H{"slot_utc": slot, "role": "candidate"})
	requireError(t, w, http.StatusConflict, "FEEDBACK_REQUIRED")

	ratings := gin.H{"ratings": gin.H{"communication": 4}, "comments": "good"}
	w = do(t, router, http.MethodPost, path+"/feedback", "bob", ratings)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	feedback := decode[domain.Feedback](t, w)
	assert.Equal(t, domain.UserID("alice"), feedback.ToUserID)

	w = do(t, router, http.MethodPost, path+"/feedback", "bob", ratings)
	requireError(t, w, http.StatusConflict, "DUPLICATE_FEEDBACK")

	w = do(t, router, http.MethodPost, path+"/feedback", "mallory", ratings)
	requireError(t, w, http.StatusForbidden, "NOT_PARTICIPANT")

	w = do(t, router, http.MethodPost, path+"/feedback", "alice", gin.H{"ratings": gin.H{"technical": 9}})
	requireError(t, w, http.StatusBadRequest, "INVALID_INPUT")

	w = do(t, router, http.MethodGet, "/api/v1/sessions", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct{ Sessions []domain.Session }](t, w)
	assert.Len(t, list.Sessions, 1)
}

func TestSetVideoLink(t *testing.T) {
	router := newTestAPI(t, true)

	w := do(t, router, http.MethodPost, "/api/v1/sessions", "alice", gin.H{"slot_utc": slot, "role": "interviewer"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	path := "/api/v1/sessions/" + string(decode[domain.Session](t, w).ID)

	w = do(t, router, http.MethodPost, path+"/video-link", "alice", gin.H{"link": "https://evil.example.com/room"})
	e := requireError(t, w, http.StatusUnprocessableEntity, "INVALID_LINK")
	assert.NotEmpty(t, e.Details["reason"])

	w = do(t, router, http.MethodPost, path+"/video-link", "alice", gin.H{"link": "https://meet.google.com/abc-defg-hij"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	session := decode[domain.Session](t, w)
	assert.Equal(t, domain.VideoLinkManual, session.VideoLinkStatus)
	assert.Equal(t, "https://meet.google.com/abc-defg-hij", session.VideoLink)

	w = do(t, router, http.MethodPost, path+"/video-link", "bob", gin.H{})
	requireError(t, w, http.StatusForbidden, "FORBIDDEN")
}

func TestProfileTools(t *testing.T) {
	router := newTestAPI(t, true)

	w := do(t, router, http.MethodPut, "/api/v1/profile/tools", "alice", gin.H{"tools": []string{" go ", "go", "redis"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, router, http.MethodGet, "/api/v1/profile/tools", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[struct{ Tools []string }](t, w)
	assert.Equal(t, []string{"go", "redis"}, got.Tools)

	w = do(t, router, http.MethodPut, "/api/v1/profile/tools", "alice", gin.H{})
	requireError(t, w, http.StatusBadRequest, "INVALID_INPUT")
}

func TestAuthentication(t *testing.T) {
	router := newTestAPI(t, true)

	w := do(t, router, http.MethodGet, "/api/v1/sessions", "", nil)
	requireError(t, w, http.StatusUnauthorized, "UNAUTHORIZED")

	w = do(t, router, http.MethodPost, "/api/v1/auth/dev-token", "", gin.H{"user_id": "alice", "name": "Alice"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	token := decode[struct {
		AccessToken string `json:"access_token"`
	}](t, w).AccessToken
	require.NotEmpty(t, token)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/auth/dev-token", "", gin.H{"user_id": "system"})
	requireError(t, w, http.StatusBadRequest, "INVALID_INPUT")

	prod := newTestAPI(t, false)
	w = do(t, prod, http.MethodPost, "/api/v1/auth/dev-token", "", gin.H{"user_id": "alice"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, prod, http.MethodGet, "/api/v1/sessions", "alice", nil)
	requireError(t, w, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestAPI(t, false)

	w := do(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	status := decode[monitoring.HealthStatus](t, w)
	assert.Equal(t, monitoring.StatusHealthy, status.Status)

	w = do(t, router, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}
