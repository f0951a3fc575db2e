package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

const maxSupportMessage = 5000

// SupportMessage is a help request sent from any page of the site.
type SupportMessage struct {
	Email     string
	Message   string
	Page      string
	Timestamp string
}

// SupportService forwards support messages to the administrator.
type SupportService struct {
	notifier   Notifier
	log        *slog.Logger
	adminEmail string
}

func NewSupportService(adminEmail string, n Notifier, log *slog.Logger) *SupportService {
	return &SupportService{notifier: n, log: loggerOrDefault(log), adminEmail: adminEmail}
}

// Send validates m and hands it to the notifier.  The boolean reports
// whether the message went out; a transport failure is not an error.
func (s *SupportService) Send(ctx context.Context, m SupportMessage) (bool, error) {
	m.Email = strings.TrimSpace(m.Email)
	m.Message = strings.TrimSpace(m.Message)
	if err := checkEmail(m.Email); err != nil {
		return false, err
	}
	if m.Message == "" {
		return false, invalid("message is required")
	}
	if len(m.Message) > maxSupportMessage {
		return false, invalid("message must be at most %d characters", maxSupportMessage)
	}
	if m.Page == "" {
		m.Page = "/"
	}
	occurred := time.Now().UTC()
	if ts, err := time.Parse(time.RFC3339, m.Timestamp); err == nil {
		occurred = ts.UTC()
	}
	return notify(ctx, s.log, s.notifier, Notice{
		Kind:         NoticeSupport,
		To:           s.adminEmail,
		AccountEmail: m.Email,
		Message:      m.Message,
		Page:         m.Page,
		OccurredAt:   occurred,
	}), nil
}
