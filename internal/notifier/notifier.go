package notifier

import "context"

// Delivery is the outcome of a single notification attempt. Notification
// delivery is best effort: senders report an outcome instead of returning an
// error, and callers never fail the triggering operation on a bad outcome.
type Delivery int

const (
	// DeliverySent means the channel accepted the notification.
	DeliverySent Delivery = iota
	// DeliverySkipped means the channel was not attempted, e.g. missing
	// credentials or an empty recipient.
	DeliverySkipped
	// DeliveryFailed means the channel was attempted and rejected the
	// notification or errored.
	DeliveryFailed
)

// String returns the metric label for a delivery outcome.
func (d Delivery) String() string {
	switch d {
	case DeliverySent:
		return "sent"
	case DeliverySkipped:
		return "skipped"
	case DeliveryFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Channel names used for metric labels and worker routing.
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// Notification is a single outbound message to a contact.
type Notification struct {
	WorkspaceID string
	Channel     string
	Recipient   string // phone number for SMS, address for email
	Subject     string // unused for SMS
	Body        string
}

// Sender delivers a notification over one channel. Implementations log their
// own failures and must never panic; the outcome is the whole contract.
type Sender interface {
	Send(ctx context.Context, n Notification) Delivery
}
