package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
)

const defaultMailbox = "INBOX"

// ErrNoMessages is returned when the mailbox holds no inbound message.
var ErrNoMessages = errors.New("no inbound messages")

type IMAPConfig struct {
	Addr     string
	Username string
	Password string
	Mailbox  string
	// ExcludeFrom drops messages sent from this address, usually the own one.
	ExcludeFrom string
	// Insecure disables TLS. Meant for local bridges and tests.
	Insecure bool
}

// IMAPSource reads the newest message of a mailbox. It opens a fresh
// connection for every fetch.
type IMAPSource struct {
	cfg    IMAPConfig
	logger *zap.Logger
}

func NewIMAPSource(cfg IMAPConfig, logger *zap.Logger) *IMAPSource {
	if strings.TrimSpace(cfg.Mailbox) == "" {
		cfg.Mailbox = defaultMailbox
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &IMAPSource{cfg: cfg, logger: logger}
}

func (s *IMAPSource) FetchLatestInboundText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c, err := s.dial()
	if err != nil {
		return "", fmt.Errorf("dial imap %s: %w", s.cfg.Addr, err)
	}
	defer c.Logout()

	if deadline, ok := ctx.Deadline(); ok {
		c.Timeout = time.Until(deadline)
	}

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		return "", fmt.Errorf("imap login: %w", err)
	}

	if _, err := c.Select(s.cfg.Mailbox, true); err != nil {
		return "", fmt.Errorf("select mailbox %q: %w", s.cfg.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	if from := strings.TrimSpace(s.cfg.ExcludeFrom); from != "" {
		not := imap.NewSearchCriteria()
		not.Header.Add("From", from)
		criteria.Not = []*imap.SearchCriteria{not}
	}

	ids, err := c.Search(criteria)
	if err != nil {
		return "", fmt.Errorf("search mailbox: %w", err)
	}
	if len(ids) == 0 {
		return "", ErrNoMessages
	}

	latest := ids[0]
	for _, id := range ids {
		latest = max(latest, id)
	}

	s.logger.Debug("fetching latest inbound message",
		zap.String("mailbox", s.cfg.Mailbox),
		zap.Int("matched", len(ids)),
		zap.Uint32("seq", latest),
	)

	seqset := new(imap.SeqSet)
	seqset.AddNum(latest)
	section := &imap.BodySectionName{Peek: true}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	msg := <-messages
	if err := <-done; err != nil {
		return "", fmt.Errorf("fetch message %d: %w", latest, err)
	}
	if msg == nil {
		return "", fmt.Errorf("message %d disappeared", latest)
	}

	body := msg.GetBody(section)
	if body == nil {
		return "", fmt.Errorf("message %d has no body", latest)
	}

	return readText(body)
}

func (s *IMAPSource) dial() (*client.Client, error) {
	if s.cfg.Insecure {
		return client.Dial(s.cfg.Addr)
	}
	return client.DialTLS(s.cfg.Addr, nil)
}

// readText returns the text/plain part of a message, falling back to the
// first inline part.
func readText(r io.Reader) (string, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", fmt.Errorf("parse message: %w", err)
	}

	var fallback string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read message part: %w", err)
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		data, err := io.ReadAll(part.Body)
		if err != nil {
			return "", fmt.Errorf("read message part: %w", err)
		}

		contentType, _, _ := h.ContentType()
		if contentType == "" || contentType == "text/plain" {
			return strings.TrimSpace(string(data)), nil
		}
		if fallback == "" {
			fallback = strings.TrimSpace(string(data))
		}
	}

	if fallback == "" {
		return "", errors.New("message has no readable text")
	}
	return fallback, nil
}
