package notification

import (
	"context"
	"strings"

	"github.com/hirewire/pipeline-go/domain/notification"
	"github.com/hirewire/pipeline-go/infrastructure/logging"
)

// LogNotifier writes notifications to the structured log instead of an
// external endpoint. Used when no webhook endpoint is configured.
type LogNotifier struct{}

var _ notification.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Dispatch logs the message at info level.
func (n *LogNotifier) Dispatch(_ context.Context, msg notification.Message) error {
	if msg.Template == "" || len(msg.Recipients) == 0 {
		return notification.ErrInvalidMessage
	}
	logging.Info().
		Add(logging.Component("notification")).
		Add(logging.Str("template", msg.Template)).
		Add(logging.Str("recipients", strings.Join(msg.Recipients, ","))).
		Add(logging.CandidateID(msg.CandidateID)).
		Msg("notification dispatched")
	return nil
}

// Close is a no-op.
func (n *LogNotifier) Close() error {
	return nil
}
