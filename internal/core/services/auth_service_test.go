package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"supermock/internal/core/domain"
	"supermock/internal/infrastructure/repositories/memory"
)

func TestAuthService_IssueAndVerify(t *testing.T) {
	auth := NewAuthService("secret", "supermock", time.Hour)

	token, err := auth.IssueToken("alice", "Alice")
	require.NoError(t, err)

	userID, err := auth.VerifyIdentity(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("alice"), userID)

	userID, err = auth.VerifyIdentity(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("alice"), userID)
}

func TestAuthService_Rejects(t *testing.T) {
	auth := NewAuthService("secret", "supermock", time.Hour)
	other := NewAuthService("other-secret", "supermock", time.Hour)
	foreign := NewAuthService("secret", "someone-else", time.Hour)

	forged, err := other.IssueToken("alice", "")
	require.NoError(t, err)
	wrongIssuer, err := foreign.IssueToken("alice", "")
	require.NoError(t, err)
	system, err := auth.IssueToken(domain.SystemUserID, "")
	require.NoError(t, err)

	for name, credential := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"wrong secret": forged,
		"wrong issuer": wrongIssuer,
		"system user":  system,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := auth.VerifyIdentity(context.Background(), credential)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestAuthService_Expired(t *testing.T) {
	svc := NewAuthService("secret", "supermock", time.Minute).(*authService)
	issued := time.Now().Add(-time.Hour)
	svc.now = func() time.Time { return issued }

	token, err := svc.IssueToken("alice", "")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.VerifyIdentity(context.Background(), token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestProfileService_SetTools(t *testing.T) {
	store := memory.NewStore()
	profiles := NewProfileService(store, zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	tools, err := profiles.Tools(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, tools)

	state, err := profiles.SetTools(ctx, "alice", []string{" go ", "", "postgres", "go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "postgres"}, state.Tools)

	tools, err = profiles.Tools(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "postgres"}, tools)

	tooMany := make([]string, 0, maxTools+1)
	for i := 0; i <= maxTools; i++ {
		tooMany = append(tooMany, string(rune('a'+i%26))+string(rune('a'+i/26)))
	}
	_, err = profiles.SetTools(ctx, "alice", tooMany)
	assert.Error(t, err)
}

func TestNotificationService(t *testing.T) {
	store := memory.NewStore()
	svc := NewNotificationService(store)
	ctx := context.Background()

	require.NoError(t, store.Repositories().Notifications.Create(ctx, &domain.Notification{
		ID: "n1", UserID: "alice", Type: domain.EventMatchFound, Status: domain.NotificationActive, CreatedAt: time.Now(),
	}))

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)

	assert.ErrorIs(t, svc.MarkRead(ctx, "bob", "n1"), domain.ErrNotificationNotFound)
	require.NoError(t, svc.MarkRead(ctx, "alice", "n1"))

	list, err = svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, list)
}
