// Package notify delivers fire-and-forget notifications about ledger and
// automation events. Delivery failures are logged and never propagate into
// the operation that produced the event.
package notify

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Event names a notification
type Event string

const (
	EventPaymentRecorded   Event = "payment.recorded"
	EventChargeFailed      Event = "payment.charge_failed"
	EventRefundIssued      Event = "refund.issued"
	EventRefundFailed      Event = "refund.failed"
	EventStatementIssued   Event = "statement.issued"
	EventMemberConverted   Event = "member.converted"
	EventBarMitzvahReached Event = "member.bar_mitzvah"
	EventCycleApplied      Event = "family.cycle_applied"
	EventJobFailed         Event = "job.failed"
)

// Payload carries event details
type Payload map[string]any

// Notifier delivers one event
type Notifier interface {
	Notify(ctx context.Context, event Event, payload Payload) error
}

// Send delivers the event and logs, rather than returns, any failure
func Send(ctx context.Context, n Notifier, logger *logrus.Logger, event Event, payload Payload) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, event, payload); err != nil {
		logger.WithError(err).WithField("event", string(event)).Warn("Failed to deliver notification")
	}
}

// Log writes every event to the logger
type Log struct {
	logger *logrus.Logger
}

// NewLog creates a logging notifier
func NewLog(logger *logrus.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, event Event, payload Payload) error {
	l.logger.WithFields(logrus.Fields(payload)).WithField("event", string(event)).Info("Notification")
	return nil
}

// Multi fans an event out to several notifiers
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event Event, payload Payload) error {
	var result *multierror.Error
	for _, n := range m {
		if err := n.Notify(ctx, event, payload); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Filter forwards only the listed events
type Filter struct {
	Next   Notifier
	Events map[Event]bool
}

func (f Filter) Notify(ctx context.Context, event Event, payload Payload) error {
	if !f.Events[event] {
		return nil
	}
	return f.Next.Notify(ctx, event, payload)
}

// Sent is one recorded notification
type Sent struct {
	Event   Event
	Payload Payload
}

// Recorder keeps every event in memory
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	// Err, when set, is returned from every Notify call after recording.
	Err error
}

func (r *Recorder) Notify(_ context.Context, event Event, payload Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{Event: event, Payload: payload})
	return r.Err
}

// Sent returns a copy of the recorded events
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Count returns how many events of the given kind were recorded
func (r *Recorder) Count(event Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.Event == event {
			n++
		}
	}
	return n
}
