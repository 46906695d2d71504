package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/reply-tracker/internal/ai"
	"github.com/spigell/reply-tracker/internal/ai/anthropic"
	"github.com/spigell/reply-tracker/internal/ai/gemini"
	"github.com/spigell/reply-tracker/internal/ai/openai"
	"github.com/spigell/reply-tracker/internal/cloudsync"
	"github.com/spigell/reply-tracker/internal/logger"
	"github.com/spigell/reply-tracker/internal/mail"
	"github.com/spigell/reply-tracker/internal/metrics"
	"github.com/spigell/reply-tracker/internal/notify"
	"github.com/spigell/reply-tracker/internal/secrets"
	"github.com/spigell/reply-tracker/internal/sheet"
	"github.com/spigell/reply-tracker/internal/tracker"
)

// stream bundles a tracker with the resources it owns.
type stream struct {
	name     string
	tracker  *tracker.Tracker
	document *sheet.Document
	source   mail.Source
}

func (s *stream) Close() error {
	return s.document.Close()
}

type streamOptions struct {
	// source replaces the configured mailbox.
	source   mail.Source
	noNotify bool
	confirm  tracker.ConfirmFunc
	recorder metrics.Recorder
}

// newClassifier builds the configured backend and returns it together with the
// instruction the tracker passes along with every request.
func newClassifier(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Classifier, string, error) {
	if cfg == nil {
		return nil, "", errors.New("ai section is required")
	}

	instruction, err := ai.LoadInstruction(cfg.InstructionFile)
	if err != nil {
		return nil, "", err
	}

	var classifier ai.Classifier

	switch provider := strings.TrimSpace(strings.ToLower(cfg.Provider)); provider {
	case "", "openai":
		classifier, instruction, err = newOpenAI(cfg, instruction, log)
	case "gemini":
		classifier, err = newGemini(ctx, cfg, log)
	case "anthropic":
		classifier, err = newAnthropic(cfg, log)
	default:
		return nil, "", fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, "", err
	}

	return classifier, instruction, nil
}

func newOpenAI(cfg *AIConfig, instruction string, log *zap.Logger) (ai.Classifier, string, error) {
	mode, err := openai.ParseMode(cfg.Mode)
	if err != nil {
		return nil, "", err
	}

	oc := cfg.OpenAI
	if oc == nil {
		oc = &OpenAIConfig{}
	}

	src := secrets.Source{Name: "openai api key", Value: oc.APIKey, File: oc.APIKeyFile, Env: "OPENAI_API_KEY"}

	// Local OpenAI-compatible servers like Ollama accept any key.
	load := secrets.Load
	if strings.TrimSpace(oc.BaseURL) != "" {
		load = secrets.Optional
	}

	apiKey, err := load(src)
	if err != nil {
		return nil, "", fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY)", err)
	}

	config := openai.Config{
		APIKey:       apiKey,
		BaseURL:      oc.BaseURL,
		Model:        oc.Model,
		MaxTokens:    oc.MaxTokens,
		AssistantID:  cfg.AssistantID,
		ReuseThread:  cfg.ReuseThread,
		PollInterval: oc.PollInterval,
	}

	switch mode {
	case openai.ModeCompletion:
		return openai.NewCompletion(config, log), instruction, nil
	case openai.ModeAssistant:
		// The assistant keeps its instruction server side, the request carries its id.
		if strings.TrimSpace(cfg.AssistantID) == "" {
			return nil, "", errors.New("ai.assistant-id is required in assistant mode")
		}
		return openai.NewAssistant(config, log), cfg.AssistantID, nil
	default:
		return openai.NewChat(config, log), instruction, nil
	}
}

func newGemini(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Classifier, error) {
	gc := cfg.Gemini
	if gc == nil {
		gc = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: gc.APIKey,
		File:  gc.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	genLogger := log.With(zap.Int("ai_retry_attempts", gc.MaxRetries))

	return gemini.NewGenerator(ctx, gemini.Config{
		APIKey:     apiKey,
		Model:      gc.Model,
		MaxRetries: gc.MaxRetries,
	}, genLogger)
}

func newAnthropic(cfg *AIConfig, log *zap.Logger) (ai.Classifier, error) {
	ac := cfg.Anthropic
	if ac == nil {
		ac = &AnthropicConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "anthropic api key",
		Value: ac.APIKey,
		File:  ac.APIKeyFile,
		Env:   "ANTHROPIC_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.anthropic.api-key-file or ANTHROPIC_API_KEY)", err)
	}

	return anthropic.New(anthropic.Config{
		APIKey:    apiKey,
		BaseURL:   ac.BaseURL,
		Model:     ac.Model,
		MaxTokens: ac.MaxTokens,
	}, log)
}

func findStream(config *Config, name string) (*StreamConfig, error) {
	if len(config.Streams) == 0 {
		return nil, errors.New("at least one stream is required under streams")
	}

	if name == "" {
		return config.Streams[0], nil
	}

	for _, s := range config.Streams {
		if s.Name == name {
			return s, nil
		}
	}

	return nil, fmt.Errorf("stream %q is not configured", name)
}

func openStreamDocument(cfg *StreamConfig, log *zap.Logger) (*sheet.Document, error) {
	if cfg.Sheet == nil || strings.TrimSpace(cfg.Sheet.Path) == "" {
		return nil, fmt.Errorf("stream %s: sheet.path is required", cfg.Name)
	}

	return sheet.Open(cfg.Sheet.Path, cfg.Sheet.Name, log)
}

// newStream wires one tracker: document, detector, notifier and optional sync.
func newStream(config *Config, cfg *StreamConfig, classifier ai.Classifier, instruction string, opts streamOptions, log *zap.Logger) (*stream, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, errors.New("every stream needs a name")
	}

	log = logger.WithStream(log, cfg.Name)

	source := opts.source
	if source == nil {
		var err error
		if source, err = newMailSource(cfg, log); err != nil {
			return nil, err
		}
	}

	doc, err := openStreamDocument(cfg, log)
	if err != nil {
		return nil, err
	}

	trackerOpts := []tracker.Option{
		tracker.WithLogger(log),
		tracker.WithConfirm(opts.confirm),
	}

	if opts.recorder != nil {
		trackerOpts = append(trackerOpts, tracker.WithRecorder(opts.recorder))
	}

	if !opts.noNotify {
		notifier, err := newNotifier(cfg.Notify, log)
		if err != nil {
			doc.Close()
			return nil, fmt.Errorf("stream %s: %w", cfg.Name, err)
		}
		trackerOpts = append(trackerOpts, tracker.WithNotifier(notifier))
	}

	syncName := ""
	if cfg.Sync != nil {
		syncer, err := newSyncer(cfg.Sync, config.StateDir, cfg.Name, log)
		if err != nil {
			doc.Close()
			return nil, fmt.Errorf("stream %s: %w", cfg.Name, err)
		}

		syncName = cfg.Sync.Name
		if syncName == "" {
			syncName = filepath.Base(cfg.Sheet.Path)
		}
		trackerOpts = append(trackerOpts, tracker.WithSyncer(syncer))
	}

	detector := mail.NewDetector(source, mail.NewFileStore(config.StateDir, cfg.Name), log)

	t, err := tracker.New(tracker.Config{
		Stream:             cfg.Name,
		Interval:           config.Interval,
		Instruction:        instruction,
		SyncName:           syncName,
		HaltOnStorageError: config.HaltOnStorageError,
	}, doc, detector, ai.WithLogging(classifier, log, config.maxLogLength()), trackerOpts...)
	if err != nil {
		doc.Close()
		return nil, fmt.Errorf("stream %s: %w", cfg.Name, err)
	}

	return &stream{name: cfg.Name, tracker: t, document: doc, source: source}, nil
}

func (c *Config) maxLogLength() int {
	if c.AI == nil {
		return 0
	}
	return c.AI.MaxLogLength
}

func newMailSource(cfg *StreamConfig, log *zap.Logger) (mail.Source, error) {
	mc := cfg.Mail
	if mc == nil || strings.TrimSpace(mc.IMAPAddr) == "" {
		return nil, fmt.Errorf("stream %s: mail.imap-addr is required", cfg.Name)
	}

	password, err := secrets.Load(secrets.Source{
		Name:  "imap password",
		Value: mc.Password,
		File:  mc.PasswordFile,
	})
	if err != nil {
		return nil, fmt.Errorf("stream %s: %w", cfg.Name, err)
	}

	return mail.NewIMAPSource(mail.IMAPConfig{
		Addr:        mc.IMAPAddr,
		Username:    mc.Username,
		Password:    password,
		Mailbox:     mc.Mailbox,
		ExcludeFrom: mc.ExcludeFrom,
		Insecure:    mc.Insecure,
	}, log), nil
}

// newNotifier returns nil when no channel is configured, notes are then only logged.
func newNotifier(cfg *NotifyConfig, log *zap.Logger) (notify.Notifier, error) {
	if cfg == nil {
		return nil, nil
	}

	var notifiers []notify.Notifier

	if tc := cfg.Telegram; tc != nil {
		token, err := secrets.Load(secrets.Source{
			Name:  "telegram bot token",
			Value: tc.Token,
			File:  tc.TokenFile,
			Env:   "TELEGRAM_BOT_TOKEN",
		})
		if err != nil {
			return nil, err
		}

		telegram, err := notify.NewTelegram(notify.TelegramConfig{
			Token:    token,
			ChatID:   tc.ChatID,
			Endpoint: tc.Endpoint,
		}, log)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, telegram)
	}

	if ec := cfg.Email; ec != nil {
		password, err := secrets.Load(secrets.Source{
			Name:  "smtp password",
			Value: ec.Password,
			File:  ec.PasswordFile,
		})
		if err != nil {
			return nil, err
		}

		sender := mail.NewSMTPSender(mail.SMTPConfig{
			Addr:     ec.SMTPAddr,
			Username: ec.Username,
			Password: password,
		})

		email, err := notify.NewEmail(sender, notify.EmailConfig{
			From:    ec.From,
			To:      ec.To,
			Subject: ec.Subject,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, email)
	}

	return notify.Compose(notifiers...), nil
}

func newSyncer(cfg *SyncConfig, stateDir, stream string, log *zap.Logger) (*cloudsync.Client, error) {
	token, err := secrets.Optional(secrets.Source{
		Name:  "cloud sync token",
		Value: cfg.Token,
		File:  cfg.TokenFile,
	})
	if err != nil {
		return nil, err
	}

	dir := cfg.Dir
	if dir == "" {
		dir = filepath.Join(stateDir, "sync", stream)
	}

	return cloudsync.New(cloudsync.Config{
		BaseURL: cfg.BaseURL,
		Token:   token,
		Dir:     dir,
	}, log)
}
