package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type fakeBot struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

type fakeSender struct {
	from, to, subject, body string
	err                     error
}

func (f *fakeSender) SendText(_ context.Context, from, to, subject, body string) error {
	f.from, f.to, f.subject, f.body = from, to, subject, body
	return f.err
}

type fakeNotifier struct {
	name  string
	err   error
	texts []string
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.texts = append(f.texts, text)
	return f.err
}

func TestTelegramNotify(t *testing.T) {
	bot := &fakeBot{}
	tg := &Telegram{bot: bot, chatID: 42, logger: zap.NewNop()}

	if err := tg.Notify(context.Background(), "Interview on Monday"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(bot.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(bot.sent))
	}
	if bot.sent[0].ChatID != 42 || bot.sent[0].Text != "Interview on Monday" {
		t.Fatalf("unexpected message: %+v", bot.sent[0])
	}
}

func TestTelegramNotifyError(t *testing.T) {
	tg := &Telegram{bot: &fakeBot{err: errors.New("chat not found")}, chatID: 42, logger: zap.NewNop()}

	err := tg.Notify(context.Background(), "x")
	var notifyErr *NotifyError
	if !errors.As(err, &notifyErr) || notifyErr.Channel != telegramChannel {
		t.Fatalf("expected telegram NotifyError, got %v", err)
	}
}

func TestNewTelegramAgainstBotAPI(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"tracker","username":"tracker_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			mu.Lock()
			sent = append(sent, r.PostForm.Get("chat_id")+":"+r.PostForm.Get("text"))
			mu.Unlock()
			fmt.Fprint(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tg, err := NewTelegram(TelegramConfig{Token: "123:abc", ChatID: 42, Endpoint: srv.URL + "/bot%s/%s"}, nil)
	if err != nil {
		t.Fatalf("new telegram: %v", err)
	}

	if err := tg.Notify(context.Background(), "Acme: offer call on Friday"); err != nil {
		t.Fatalf("notify: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sent) != 1 || sent[0] != "42:Acme: offer call on Friday" {
		t.Fatalf("unexpected requests: %v", sent)
	}
}

func TestNewTelegramValidation(t *testing.T) {
	if _, err := NewTelegram(TelegramConfig{ChatID: 1}, nil); err == nil {
		t.Fatal("expected error without token")
	}
	if _, err := NewTelegram(TelegramConfig{Token: "t"}, nil); err == nil {
		t.Fatal("expected error without chat id")
	}
}

func TestEmailNotify(t *testing.T) {
	sender := &fakeSender{}
	e, err := NewEmail(sender, EmailConfig{From: "bot@example.org", To: "me@example.org"})
	if err != nil {
		t.Fatalf("new email: %v", err)
	}

	if err := e.Notify(context.Background(), "Rejected by Initech"); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if sender.subject != defaultSubject || sender.body != "Rejected by Initech" || sender.to != "me@example.org" {
		t.Fatalf("unexpected mail: %+v", sender)
	}

	sender.err = errors.New("relay denied")
	var notifyErr *NotifyError
	if err := e.Notify(context.Background(), "x"); !errors.As(err, &notifyErr) || notifyErr.Channel != emailChannel {
		t.Fatalf("expected email NotifyError, got %v", err)
	}
}

func TestCompose(t *testing.T) {
	if Compose() != nil || Compose(nil, nil) != nil {
		t.Fatal("expected nil notifier")
	}

	single := &fakeNotifier{name: "one"}
	if Compose(nil, single) != Notifier(single) {
		t.Fatal("expected the single notifier itself")
	}

	failing := &fakeNotifier{name: "failing", err: &NotifyError{Channel: "failing", Err: errors.New("down")}}
	second := &fakeNotifier{name: "second"}

	err := Compose(failing, second).Notify(context.Background(), "note")
	var notifyErr *NotifyError
	if !errors.As(err, &notifyErr) {
		t.Fatalf("expected NotifyError, got %v", err)
	}
	if len(second.texts) != 1 {
		t.Fatal("delivery must continue past a failing notifier")
	}
}
