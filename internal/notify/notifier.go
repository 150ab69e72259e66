// Package notify is the best-effort notification boundary. Delivery itself
// (SMTP and the like) is an external collaborator; failures are logged and
// never propagated to the triggering request.
package notify

import (
	"context"
	"log"
	"time"
)

// Message is one outbound notification.
type Message struct {
	Recipient string
	Subject   string
	Body      string
}

// Notifier delivers a message. Implementations may block; callers go through
// BestEffort instead of calling Send directly.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// BestEffort dispatches msg on a detached goroutine. A nil notifier is a
// no-op, so callers never need to guard the call site.
func BestEffort(n Notifier, msg Message) {
	if n == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := n.Send(ctx, msg); err != nil {
			log.Printf("notification to %s dropped: %v", msg.Recipient, err)
		}
	}()
}

// LogNotifier writes notifications to the process log. Used when no mail
// collaborator is configured.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, msg Message) error {
	log.Printf("notify %s: %s", msg.Recipient, msg.Subject)
	return nil
}
