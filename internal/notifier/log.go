package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/opsdeck/automation-engine/pkg/logger"
)

// LogSender writes the notification to the service log instead of an external
// channel. It stands in for channels that have no provider configured, which
// keeps development and test environments fully functional.
type LogSender struct {
	channel string
}

// NewLogSender creates a log-only sender for the given channel name.
func NewLogSender(channel string) *LogSender {
	return &LogSender{channel: channel}
}

// Send logs the notification and reports it as sent.
func (s *LogSender) Send(ctx context.Context, n Notification) Delivery {
	logger.FromContext(ctx).Info("Notification (log channel)",
		zap.String("channel", s.channel),
		zap.String("recipient", n.Recipient),
		zap.String("subject", n.Subject),
		zap.String("body", n.Body),
	)
	return DeliverySent
}

var _ Sender = (*LogSender)(nil)
