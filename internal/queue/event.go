// Package queue moves outbound mail through RabbitMQ so request handlers
// never wait on the SMTP relay.
package queue

import (
	"time"

	"github.com/iliyamo/ai-gen-platform/internal/service"
)

// MailQueueName is the durable queue carrying MailEvents.
const MailQueueName = "mail.outbound"

// MailEvent is one queued notice.  The notice carries everything the
// mailer needs; it never queries the database.
type MailEvent struct {
	Notice     service.Notice `json:"notice"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}
