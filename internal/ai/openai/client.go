// Package openai implements the three OpenAI classifier variants: a stateless
// text completion, a rolling chat and a stateful assistant thread. Any
// OpenAI-compatible server, Ollama included, can be used through BaseURL.
package openai

import (
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultCompletionModel = "gpt-3.5-turbo-instruct"
	defaultChatModel       = "gpt-4o-mini"
	defaultMaxTokens       = 256
	defaultPollInterval    = time.Second
)

// Mode selects the classifier variant.
type Mode string

const (
	ModeCompletion Mode = "completion"
	ModeChat       Mode = "chat"
	ModeAssistant  Mode = "assistant"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeCompletion, ModeChat, ModeAssistant:
		return m, nil
	case "":
		return ModeChat, nil
	default:
		return "", errors.New("unknown openai mode " + s + ", expected completion, chat or assistant")
	}
}

type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64

	// Assistant mode.
	AssistantID  string
	ReuseThread  bool
	PollInterval time.Duration
}

func newClient(cfg Config) openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return openai.NewClient(opts...)
}

func modelOr(model, fallback string) string {
	if model = strings.TrimSpace(model); model != "" {
		return model
	}
	return fallback
}

func maxTokensOr(n int64) int64 {
	if n > 0 {
		return n
	}
	return defaultMaxTokens
}
