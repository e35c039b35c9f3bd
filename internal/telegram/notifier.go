package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Kerhoff/kasa/internal/notify"
)

// eventTitles are the headlines of the events worth an admin's attention
var eventTitles = map[notify.Event]string{
	notify.EventJobFailed:         "⚠️ *Automation job failed*",
	notify.EventChargeFailed:      "💳 *Recurring charge failed*",
	notify.EventRefundFailed:      "↩️ *Refund failed*",
	notify.EventRefundIssued:      "↩️ *Refund issued*",
	notify.EventMemberConverted:   "💍 *Member converted to new family*",
	notify.EventBarMitzvahReached: "🎉 *Bar/Bat Mitzvah age reached*",
	notify.EventStatementIssued:   "📄 *Statement issued*",
	notify.EventPaymentRecorded:   "💰 *Payment recorded*",
	notify.EventCycleApplied:      "🔁 *Cycle applied*",
}

// AdminEvents are the events forwarded to the admin chat by default
var AdminEvents = map[notify.Event]bool{
	notify.EventJobFailed:       true,
	notify.EventChargeFailed:    true,
	notify.EventRefundFailed:    true,
	notify.EventMemberConverted: true,
}

// Notifier posts events to the administrators' chat
type Notifier struct {
	sender  Sender
	chatID  int64
	timeout time.Duration
}

// NewNotifier creates a notifier sending to chatID. A send that takes
// longer than timeout is abandoned.
func NewNotifier(sender Sender, chatID int64, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Notifier{sender: sender, chatID: chatID, timeout: timeout}
}

// Notify sends the event and waits for the send until ctx is done or the
// timeout passes, whichever is first. An abandoned send may still be
// delivered later.
func (n *Notifier) Notify(ctx context.Context, event notify.Event, payload notify.Payload) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sendMarkdown(n.sender, n.chatID, FormatEvent(event, payload))
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("failed to send %s notification: %w", event, ctx.Err())
	}
}

// FormatEvent renders an event as a Markdown message with the payload
// fields in key order.
func FormatEvent(event notify.Event, payload notify.Payload) string {
	title, ok := eventTitles[event]
	if !ok {
		title = fmt.Sprintf("*%s*", event)
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n")
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("\n• %s: `%v`", k, payload[k]))
	}
	return sb.String()
}
