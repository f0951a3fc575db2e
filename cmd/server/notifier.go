package main

import (
	"fmt"
	"log/slog"

	"github.com/iliyamo/ai-gen-platform/internal/config"
	"github.com/iliyamo/ai-gen-platform/internal/mail"
	"github.com/iliyamo/ai-gen-platform/internal/queue"
	"github.com/iliyamo/ai-gen-platform/internal/service"
	"github.com/iliyamo/ai-gen-platform/internal/storage"
)

// newNotifier selects the outbound mail path from NOTIFY_MODE.  "queue"
// hands notices to the broker for `aigenctl mailer`; "smtp" sends inline
// and falls back to logging when no SMTP host is configured.
func newNotifier(cfg config.Config, store *storage.LocalStore, log *slog.Logger) (service.Notifier, error) {
	renderer, err := mail.NewRenderer(cfg.FrontendURL)
	if err != nil {
		return nil, err
	}
	switch cfg.NotifyMode {
	case "queue":
		return queue.NewPublisher(cfg.RabbitURL), nil
	case "log":
		return mail.NewLogNotifier(renderer, log), nil
	case "smtp", "":
		if cfg.SMTPHost == "" {
			log.Warn("SMTP_HOST not set, notices will only be logged")
			return mail.NewLogNotifier(renderer, log), nil
		}
		sender, err := mail.NewSMTPSender(mail.SMTPConfigFrom(cfg), renderer, store)
		if err != nil {
			return nil, err
		}
		return sender, nil
	default:
		return nil, fmt.Errorf("unsupported NOTIFY_MODE %q", cfg.NotifyMode)
	}
}
