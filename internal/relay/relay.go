package relay

import (
	"log/slog"

	"github.com/samber/lo"

	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/session"
)

type Relay struct {
	registry *session.Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func New(registry *session.Registry, logger *slog.Logger, m *metrics.Metrics) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		registry: registry,
		logger:   logger,
		metrics:  m,
	}
}

// Broadcast queues msg, verbatim, for every registered session other than
// exclude that has an open delivery path. It returns the number of sessions
// the message was queued for. A full outbox only affects that recipient.
func (r *Relay) Broadcast(msg string, exclude session.ID) int {
	recipients := lo.Filter(r.registry.Snapshot(), func(s *session.Session, _ int) bool {
		return s.ID() != exclude && s.Reachable()
	})

	r.metrics.Inc(metrics.Broadcast)
	queued := 0
	for _, s := range recipients {
		if !s.Deliver(msg) {
			r.metrics.Inc(metrics.BroadcastDropped)
			r.logger.Debug("broadcast dropped for recipient", "session_id", uint64(s.ID()))
			continue
		}
		queued++
	}
	r.metrics.Add(metrics.BroadcastDelivered, uint64(queued))
	return queued
}
