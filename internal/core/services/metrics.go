package services

import (
	"time"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
)

// NopMetrics discards every measurement.
type NopMetrics struct{}

func (NopMetrics) QueueJoined(domain.Role, string)             {}
func (NopMetrics) MatchCreated(time.Duration)                  {}
func (NopMetrics) MatchAborted(string)                         {}
func (NopMetrics) SessionStatusChanged(domain.SessionStatus)   {}
func (NopMetrics) VideoLinkResult(domain.VideoLinkStatus)      {}
func (NopMetrics) FeedbackSubmitted()                          {}
func (NopMetrics) EventDispatched(domain.EventType, bool)      {}
func (NopMetrics) SweepCompleted(int, int, int, time.Duration) {}
func (NopMetrics) HubConnectionsChanged(int)                   {}
func (NopMetrics) HubMessage(string)                           {}

func orNop(m ports.Metrics) ports.Metrics {
	if m == nil {
		return NopMetrics{}
	}
	return m
}
