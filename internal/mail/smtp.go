package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Sender delivers a plain-text e-mail.
type Sender interface {
	SendText(ctx context.Context, from, to, subject, body string) error
}

type SMTPConfig struct {
	Addr     string
	Username string
	Password string
}

type sendFunc func(addr string, a sasl.Client, from string, to []string, r io.Reader) error

// SMTPSender submits messages through an SMTP relay with PLAIN authentication.
type SMTPSender struct {
	cfg  SMTPConfig
	send sendFunc
	now  func() time.Time
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

func (s *SMTPSender) SendText(ctx context.Context, from, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return fmt.Errorf("both sender and recipient are required")
	}

	msg, err := composeText(from, to, subject, body, s.now())
	if err != nil {
		return err
	}

	var auth sasl.Client
	if s.cfg.Username != "" {
		auth = sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
	}

	if err := s.send(s.cfg.Addr, auth, from, []string{to}, bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("send mail via %s: %w", s.cfg.Addr, err)
	}

	return nil
}

func composeText(from, to, subject, body string, date time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("compose message: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, fmt.Errorf("compose message: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compose message: %w", err)
	}

	return buf.Bytes(), nil
}
