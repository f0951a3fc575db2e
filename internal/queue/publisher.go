package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/ai-gen-platform/internal/service"
)

// Publisher is a service.Notifier that enqueues notices instead of
// sending them.  It dials per publish; mail volume is a handful of
// messages per user action.
type Publisher struct {
	url   string
	queue string
}

var _ service.Notifier = (*Publisher)(nil)

func NewPublisher(url string) *Publisher {
	return &Publisher{url: url, queue: MailQueueName}
}

// Send publishes n as a persistent MailEvent.
func (p *Publisher) Send(ctx context.Context, n service.Notice) error {
	body, err := json.Marshal(MailEvent{Notice: n, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal mail event: %w", err)
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declare(ch, p.queue); err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         n.Kind,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

// declare makes sure the durable queue exists.  Publisher and consumer
// both call it so either may start first.
func declare(ch *amqp.Channel, name string) error {
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare %s: %w", name, err)
	}
	return nil
}
