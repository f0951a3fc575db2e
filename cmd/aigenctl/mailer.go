package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/iliyamo/ai-gen-platform/internal/config"
	"github.com/iliyamo/ai-gen-platform/internal/mail"
	"github.com/iliyamo/ai-gen-platform/internal/queue"
	"github.com/iliyamo/ai-gen-platform/internal/service"
	"github.com/iliyamo/ai-gen-platform/internal/storage"
)

func mailerCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "mailer",
		Short: "Deliver queued notices from RabbitMQ over SMTP",
		Long: `Consume the mail.outbound queue that the server fills when
NOTIFY_MODE=queue and deliver each notice through SMTP_*.

With --dry-run the rendered notices are logged instead of sent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := newLogger()

			renderer, err := mail.NewRenderer(cfg.FrontendURL)
			if err != nil {
				return err
			}
			store, err := storage.NewLocalStore(cfg.UploadDir, cfg.MaxUploadBytes())
			if err != nil {
				return err
			}
			var sink service.Notifier
			if dryRun {
				sink = mail.NewLogNotifier(renderer, log)
			} else {
				sender, err := mail.NewSMTPSender(mail.SMTPConfigFrom(cfg), renderer, store)
				if err != nil {
					return err
				}
				sink = sender
			}

			log.Info("mailer started", "queue", queue.MailQueueName, "dry_run", dryRun)
			err = queue.NewConsumer(cfg.RabbitURL, sink, log).Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log rendered notices instead of sending them")
	return cmd
}
