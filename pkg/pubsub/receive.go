package pubsub

import (
	"context"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"
)

var errNoSubscriber = errors.New("subscriber required")

// Message is the part of a Pub/Sub delivery that consumers read. Attempt
// stays 0 unless the subscription has a dead-letter policy.
type Message struct {
	ID         string
	Attributes map[string]string
	Data       []byte
	Attempt    int
}

// HandleFunc reports whether the message should be redelivered.
type HandleFunc func(ctx context.Context, msg Message) (redeliver bool)

// Receive pulls from sub until ctx is canceled, acking every message the
// handler does not ask to see again.
func Receive(ctx context.Context, sub *pubsub.Subscriber, handle HandleFunc) error {
	if sub == nil {
		return errNoSubscriber
	}
	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		if handle(ctx, fromPubSub(m)) {
			m.Nack()
			return
		}
		m.Ack()
	})
}

func fromPubSub(m *pubsub.Message) Message {
	msg := Message{ID: m.ID, Attributes: m.Attributes, Data: m.Data}
	if m.DeliveryAttempt != nil {
		msg.Attempt = *m.DeliveryAttempt
	}
	return msg
}
