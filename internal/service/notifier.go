package service

import (
	"context"
	"log/slog"
	"time"
)

// Notice kinds.  Each maps to one email template.
const (
	NoticeNewRequest      = "new_request"
	NoticeWelcome         = "welcome"
	NoticeLogin           = "login"
	NoticeCompletion      = "completion"
	NoticePasswordReset   = "password_reset"
	NoticePasswordChanged = "password_changed"
	NoticeSupport         = "support"
)

// Attachment references a stored artifact by its storage key.
type Attachment struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Notice is the plain data handed to a Notifier.  Only the fields relevant
// to Kind are set.  It is also the JSON body of queued mail events.
type Notice struct {
	Kind          string      `json:"kind"`
	To            string      `json:"to"`
	AccountEmail  string      `json:"account_email,omitempty"`
	RequestID     uint64      `json:"request_id,omitempty"`
	RequestKind   string      `json:"request_kind,omitempty"`
	Model         string      `json:"model,omitempty"`
	Prompt        string      `json:"prompt,omitempty"`
	DeliveryEmail string      `json:"delivery_email,omitempty"`
	Response      string      `json:"response,omitempty"`
	Attachment    *Attachment `json:"attachment,omitempty"`
	ResetURL      string      `json:"reset_url,omitempty"`
	Message       string      `json:"message,omitempty"`
	Page          string      `json:"page,omitempty"`
	ClientIP      string      `json:"client_ip,omitempty"`
	OccurredAt    time.Time   `json:"occurred_at"`
}

// Notifier dispatches transactional email.
type Notifier interface {
	Send(ctx context.Context, n Notice) error
}

// notifyTimeout bounds one dispatch.  The request context may already be
// close to its deadline once the transaction has committed.
const notifyTimeout = 20 * time.Second

// notify is the post-commit hook shared by all services.  It runs after
// the triggering transaction has committed; a failure is logged and
// reported as false but never undoes the state change.
func notify(ctx context.Context, log *slog.Logger, n Notifier, notice Notice) bool {
	if n == nil {
		return false
	}
	if notice.OccurredAt.IsZero() {
		notice.OccurredAt = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := n.Send(ctx, notice); err != nil {
		log.Warn("notification failed", "kind", notice.Kind, "to", notice.To, "request_id", notice.RequestID, "err", err)
		return false
	}
	return true
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
