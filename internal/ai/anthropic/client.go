// Package anthropic implements a stateless classifier backed by the Claude
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/spigell/reply-tracker/internal/ai"
	"github.com/spigell/reply-tracker/internal/logger"
)

const (
	backendName      = "anthropic"
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 512
)

type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
}

// Client sends the instruction as system prompt and the labeled context as a
// single user message.
type Client struct {
	messages  messageCreator
	model     string
	maxTokens int64
	logger    *zap.Logger
}

func New(cfg Config, log *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	client := anthropic.NewClient(opts...)

	return &Client{
		messages:  &client.Messages,
		model:     model,
		maxTokens: maxTokens,
		logger:    logger.WithCommonFields(log, backendName, model),
	}, nil
}

func (c *Client) Name() string {
	return backendName
}

func (c *Client) Classify(ctx context.Context, req ai.Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(ai.Context(req.Snapshot, req.Message))),
		},
	}
	if instruction := strings.TrimSpace(req.Instruction); instruction != "" {
		params.System = []anthropic.TextBlockParam{{Text: instruction}}
	}

	resp, err := c.messages.New(ctx, params)
	if err != nil {
		return "", &ai.GatewayError{Backend: backendName, Err: fmt.Errorf("create message: %w", err)}
	}

	var parts []string
	for _, block := range resp.Content {
		if block.Type != "text" {
			continue
		}
		if text := strings.TrimSpace(block.Text); text != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return "", &ai.GatewayError{Backend: backendName, Err: ai.ErrEmptyAnswer}
	}

	c.logger.Debug("message created",
		zap.String("stop_reason", string(resp.StopReason)),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
	)

	return strings.Join(parts, "\n"), nil
}
