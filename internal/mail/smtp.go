package mail

import (
	"context"
	"errors"
	"fmt"
	"io"

	gomail "github.com/wneessen/go-mail"

	"github.com/iliyamo/ai-gen-platform/internal/config"
	"github.com/iliyamo/ai-gen-platform/internal/service"
)

// Opener reads stored artifacts for attachments.
type Opener interface {
	Open(key string) (io.ReadCloser, error)
}

// SMTPConfig holds the transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPConfigFrom picks the SMTP_* settings out of cfg.
func SMTPConfigFrom(cfg config.Config) SMTPConfig {
	return SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}
}

// SMTPSender delivers notices through an SMTP relay, one connection per
// message.
type SMTPSender struct {
	cfg      SMTPConfig
	renderer *Renderer
	files    Opener
}

var _ service.Notifier = (*SMTPSender)(nil)

func NewSMTPSender(cfg SMTPConfig, r *Renderer, files Opener) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is empty")
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{cfg: cfg, renderer: r, files: files}, nil
}

// Send renders n and delivers it.
func (s *SMTPSender) Send(ctx context.Context, n service.Notice) error {
	if n.To == "" {
		return errors.New("notice has no recipient")
	}
	msg, closers, err := s.message(n)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	if err != nil {
		return err
	}
	client, err := s.client()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send %s to %s: %w", n.Kind, n.To, err)
	}
	return nil
}

func (s *SMTPSender) message(n service.Notice) (*gomail.Msg, []io.Closer, error) {
	subject, body, err := s.renderer.Render(n)
	if err != nil {
		return nil, nil, err
	}
	m := gomail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(n.To); err != nil {
		return nil, nil, fmt.Errorf("to address: %w", err)
	}
	m.Subject(subject)
	m.SetBodyString(gomail.TypeTextHTML, body)

	var closers []io.Closer
	if n.Attachment != nil && s.files != nil {
		rc, err := s.files.Open(n.Attachment.Key)
		if err != nil {
			return nil, nil, fmt.Errorf("open attachment %s: %w", n.Attachment.Key, err)
		}
		closers = append(closers, rc)
		if err := m.AttachReader(n.Attachment.Name, rc); err != nil {
			return nil, closers, fmt.Errorf("attach %s: %w", n.Attachment.Name, err)
		}
	}
	return m, closers, nil
}

func (s *SMTPSender) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	return gomail.NewClient(s.cfg.Host, opts...)
}
