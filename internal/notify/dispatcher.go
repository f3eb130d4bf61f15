package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Dispatcher delivers one rendered notification to one user. The real
// implementation (push, email, websocket fan-out) lives outside this
// engine; the scanners only need the narrow send contract.
type Dispatcher interface {
	Send(ctx context.Context, tenantID, userID string, n Notification) error
}

// LogDispatcher is the fallback Dispatcher: it writes each notification
// to the structured log and never fails. Useful in development and as a
// safe default when no delivery backend is configured.
type LogDispatcher struct{}

// Send logs the notification.
func (LogDispatcher) Send(_ context.Context, tenantID, userID string, n Notification) error {
	log.Info().
		Str("tenant_id", tenantID).
		Str("user_id", userID).
		Str("type", n.Type).
		Str("title", n.Title).
		Str("message", n.Message).
		Msg("notification dispatched")
	return nil
}
