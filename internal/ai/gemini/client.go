// Package gemini implements a stateless classifier backed by the Google GenAI API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/reply-tracker/internal/ai"
	"github.com/spigell/reply-tracker/internal/logger"
	"github.com/spigell/reply-tracker/internal/utils"
)

const (
	defaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 3
	backendName       = "gemini"

	baseRetryDelay = 2 * time.Second
	// Quota errors asking to wait longer than this are not retried.
	maxQuotaDelay = 15 * time.Second
)

var wait = utils.WaitFor

var retryHint = regexp.MustCompile(`(?i)retry (?:in|after) (\d+(?:\.\d+)?)\s*(s|sec|secs|seconds?)\b`)

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	chats *genai.Chats
}

func (c genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	chat, err := c.chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// Generator sends the instruction as system instruction and the labeled
// context as a single user turn. Every call starts a fresh chat.
type Generator struct {
	chats      chatCreator
	model      string
	maxRetries int
	logger     *zap.Logger
}

type Config struct {
	APIKey     string
	Model      string
	MaxRetries int
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, cfg Config, log *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	return &Generator{
		chats:      genaiChats{chats: client.Chats},
		model:      model,
		maxRetries: retries,
		logger:     logger.WithCommonFields(log, "gemini", model),
	}, nil
}

func (g *Generator) Name() string {
	return backendName
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// Classify implements ai.Classifier.
func (g *Generator) Classify(ctx context.Context, req ai.Request) (string, error) {
	answer, err := g.GenerateContent(ctx, req.Instruction, ai.Context(req.Snapshot, req.Message))
	if err != nil {
		return "", ai.Wrap(backendName, err)
	}
	return answer, nil
}

// GenerateContent sends message under the given system instruction and
// returns the textual answer. Temporary API errors are retried up to
// maxRetries attempts in total.
func (g *Generator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	if g == nil || g.chats == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message must not be empty")
	}

	config := &genai.GenerateContentConfig{}
	if system = strings.TrimSpace(system); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	attempts := max(g.maxRetries, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		output, err := g.send(ctx, config, message)
		if err == nil {
			return output, nil
		}
		lastErr = err

		delay, retry := retryDelay(err, attempt)
		if !retry || attempt == attempts {
			break
		}

		g.logger.Warn("temporary gemini error, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := wait(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", lastErr
}

func (g *Generator) send(ctx context.Context, config *genai.GenerateContentConfig, message string) (string, error) {
	chat, err := g.chats.Create(ctx, g.model, config, nil)
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}

	resp, err := chat.SendMessage(ctx, *genai.NewPartFromText(message))
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ai.ErrEmptyAnswer
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", ai.ErrEmptyAnswer
	}

	return output, nil
}

// retryDelay decides whether err is worth another attempt and how long to wait.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	backoff := baseRetryDelay * time.Duration(attempt)

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		hint, ok := parseRetryHint(apiErr.Message)
		if !ok {
			return backoff, true
		}
		if hint > maxQuotaDelay {
			return 0, false
		}
		return hint, true
	case apiErr.Code >= http.StatusInternalServerError:
		return backoff, true
	default:
		return 0, false
	}
}

func parseRetryHint(message string) (time.Duration, bool) {
	m := retryHint.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}

	seconds, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}

	return time.Duration(seconds * float64(time.Second)), true
}
