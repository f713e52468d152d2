package services

import (
	"errors"
	"log/slog"

	"chat_server/metrics"
	"chat_server/presence"
)

// Presence is the read side of the live-push directory.
type Presence interface {
	Lookup(userID string) (presence.Handle, bool)
}

// notifier pushes best-effort events to a single user. It never returns an
// error: a missing or failing channel is logged and counted only.
type notifier struct {
	presence Presence
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func (n notifier) notify(userID, event string, payload any) {
	if n.presence == nil {
		return
	}
	h, ok := n.presence.Lookup(userID)
	if !ok {
		n.metrics.Notification(event, "offline")
		n.logger.Debug("push skipped, user offline", "user", userID, "event", event)
		return
	}
	if err := h.Send(event, payload); err != nil {
		result := "failed"
		if errors.Is(err, presence.ErrChannelUnavailable) {
			result = "dropped"
		}
		n.metrics.Notification(event, result)
		n.logger.Warn("push not delivered", "user", userID, "event", event, "conn", h.ID(), "error", err)
		return
	}
	n.metrics.Notification(event, "delivered")
}
