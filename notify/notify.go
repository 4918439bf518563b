/*
Package notify is the fire-and-forget notification seam.

The booking core triggers a notification on every reservation event but
never owns delivery and never awaits it: a failed or slow notifier must
not affect booking correctness. Delivery (mail, push, broker) belongs to
a collaborator service behind the Notifier interface; the default
implementation just logs the event.
*/
package notify

import (
	"time"

	"go.uber.org/zap"
)

// Event describes a reservation event worth telling collaborators about.
type Event struct {
	Type         string // "created", "confirmed", "rejected", "canceled"
	DisplayID    string
	UserID       int64
	ExpertID     int64
	StartAt      time.Time
	EndAt        time.Time
	Cost         int64
	RefundAmount int64
}

// Notifier receives reservation events. Implementations must be safe for
// concurrent use; callers invoke Notify from short-lived goroutines.
type Notifier interface {
	Notify(ev Event)
}

// LogNotifier writes events to the structured log. It stands in for the
// real notification dispatcher in single-binary deployments and tests.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ev Event) {
	n.log.Info("reservation event",
		zap.String("type", ev.Type),
		zap.String("displayId", ev.DisplayID),
		zap.Int64("userId", ev.UserID),
		zap.Int64("expertId", ev.ExpertID),
		zap.Int64("cost", ev.Cost),
		zap.Int64("refundAmount", ev.RefundAmount),
	)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Notify(Event) {}
