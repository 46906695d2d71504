package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/spigell/reply-tracker/internal/ai"
	"github.com/spigell/reply-tracker/internal/logger"
)

const chatBackend = "openai-chat"

type chatCompleter interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Chat is the rolling chat variant. The prompt is appended as a system turn to
// the caller's conversation, the history is sent, and the conversation is
// cleared after every call whatever the outcome.
type Chat struct {
	completions chatCompleter
	model       string
	maxTokens   int64
	logger      *zap.Logger
}

func NewChat(cfg Config, log *zap.Logger) *Chat {
	client := newClient(cfg)
	model := modelOr(cfg.Model, defaultChatModel)

	return &Chat{
		completions: &client.Chat.Completions,
		model:       model,
		maxTokens:   maxTokensOr(cfg.MaxTokens),
		logger:      logger.WithCommonFields(log, "openai", model),
	}
}

func (c *Chat) Name() string {
	return chatBackend
}

func (c *Chat) Classify(ctx context.Context, req ai.Request) (string, error) {
	conv := req.Conversation
	if conv == nil {
		conv = &ai.Conversation{}
	}
	defer conv.Reset()

	conv.Append(ai.RoleSystem, ai.BuildPrompt(req.Instruction, req.Snapshot, req.Message))

	resp, err := c.completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(c.model),
		Messages:  toMessages(conv.Turns),
		MaxTokens: openai.Int(c.maxTokens),
		N:         openai.Int(1),
	})
	if err != nil {
		return "", &ai.GatewayError{Backend: chatBackend, Err: fmt.Errorf("create chat completion: %w", err)}
	}

	if len(resp.Choices) == 0 {
		return "", &ai.GatewayError{Backend: chatBackend, Err: ai.ErrEmptyAnswer}
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", &ai.GatewayError{Backend: chatBackend, Err: ai.ErrEmptyAnswer}
	}

	c.logger.Debug("chat completion finished",
		zap.Int("turns", conv.Len()),
		zap.Int64("total_tokens", resp.Usage.TotalTokens),
	)

	return answer, nil
}

func toMessages(turns []ai.Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case ai.RoleSystem:
			messages = append(messages, openai.SystemMessage(turn.Text))
		case ai.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Text))
		default:
			messages = append(messages, openai.UserMessage(turn.Text))
		}
	}
	return messages
}
