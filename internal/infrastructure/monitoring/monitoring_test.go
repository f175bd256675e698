package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supermock/internal/core/domain"
	"supermock/internal/infrastructure/repositories/memory"
)

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker()
	h.AddStoreCheck(memory.NewStore(), time.Second)
	h.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 10*time.Millisecond)

	status := h.CheckAll(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, StatusHealthy, status.Checks["store"])
	assert.Contains(t, status.Checks["slow"], "deadline exceeded")
}

func TestHealthCheckerHealthy(t *testing.T) {
	h := NewHealthChecker()
	assert.Equal(t, StatusHealthy, h.CheckAll(context.Background()).Status, "no checks means ready")

	h.AddCheck("ok", func(context.Context) error { return nil }, time.Second)
	h.AddCheck("boom", func(context.Context) error { return errors.New("boom") }, time.Second)
	status := h.CheckAll(context.Background())
	assert.Equal(t, "boom", status.Checks["boom"])
}

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.QueueJoined(domain.RoleCandidate, "matched")
	c.QueueJoined(domain.RoleCandidate, "matched")
	c.MatchCreated(5 * time.Millisecond)
	c.MatchAborted("conflict")
	c.SessionStatusChanged(domain.SessionCompleted)
	c.VideoLinkResult(domain.VideoLinkPending)
	c.FeedbackSubmitted()
	c.EventDispatched(domain.EventMatchFound, true)
	c.SweepCompleted(3, 1, 2, time.Second)
	c.HubConnectionsChanged(2)
	c.HubConnectionsChanged(-1)
	c.HubMessage("chat_message")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.queueJoinsTotal.WithLabelValues("candidate", "matched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.matchesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.hubConnections))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.lastSweepItems.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.eventsDispatchedTotal.WithLabelValues("match_found", "true")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
