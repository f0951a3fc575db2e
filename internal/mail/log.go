package mail

import (
	"context"
	"log/slog"

	"github.com/iliyamo/ai-gen-platform/internal/service"
)

// LogNotifier renders notices and writes them to the log instead of
// sending them.  Used in development and when no relay is configured.
type LogNotifier struct {
	renderer *Renderer
	log      *slog.Logger
}

var _ service.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(r *Renderer, log *slog.Logger) *LogNotifier {
	return &LogNotifier{renderer: r, log: log}
}

func (l *LogNotifier) Send(ctx context.Context, n service.Notice) error {
	subject, _, err := l.renderer.Render(n)
	if err != nil {
		return err
	}
	attrs := []any{"kind", n.Kind, "to", n.To, "subject", subject}
	if n.RequestID != 0 {
		attrs = append(attrs, "request_id", n.RequestID)
	}
	if n.ResetURL != "" {
		attrs = append(attrs, "reset_url", n.ResetURL)
	}
	l.log.InfoContext(ctx, "mail suppressed", attrs...)
	return nil
}
