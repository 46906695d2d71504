package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/spigell/reply-tracker/internal/mail"
)

const (
	emailChannel   = "email"
	defaultSubject = "Job application update"
)

type EmailConfig struct {
	From    string
	To      string
	Subject string
}

// Email sends notes as plain-text e-mails through a mail.Sender.
type Email struct {
	sender mail.Sender
	cfg    EmailConfig
}

func NewEmail(sender mail.Sender, cfg EmailConfig) (*Email, error) {
	if sender == nil {
		return nil, errors.New("mail sender is required")
	}
	if strings.TrimSpace(cfg.From) == "" || strings.TrimSpace(cfg.To) == "" {
		return nil, errors.New("both from and to addresses are required")
	}
	if strings.TrimSpace(cfg.Subject) == "" {
		cfg.Subject = defaultSubject
	}
	return &Email{sender: sender, cfg: cfg}, nil
}

func (e *Email) Name() string {
	return emailChannel
}

func (e *Email) Notify(ctx context.Context, text string) error {
	if err := e.sender.SendText(ctx, e.cfg.From, e.cfg.To, e.cfg.Subject, text); err != nil {
		return &NotifyError{Channel: emailChannel, Err: err}
	}
	return nil
}
