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

const completionBackend = "openai-completion"

type completionCreator interface {
	New(ctx context.Context, body openai.CompletionNewParams, opts ...option.RequestOption) (*openai.Completion, error)
}

// Completion is the stateless single-turn variant. The whole prompt is sent
// as one text completion request.
type Completion struct {
	completions completionCreator
	model       string
	maxTokens   int64
	logger      *zap.Logger
}

func NewCompletion(cfg Config, log *zap.Logger) *Completion {
	client := newClient(cfg)
	model := modelOr(cfg.Model, defaultCompletionModel)

	return &Completion{
		completions: &client.Completions,
		model:       model,
		maxTokens:   maxTokensOr(cfg.MaxTokens),
		logger:      logger.WithCommonFields(log, "openai", model),
	}
}

func (c *Completion) Name() string {
	return completionBackend
}

func (c *Completion) Classify(ctx context.Context, req ai.Request) (string, error) {
	prompt := ai.BuildPrompt(req.Instruction, req.Snapshot, req.Message)

	resp, err := c.completions.New(ctx, openai.CompletionNewParams{
		Model:     openai.CompletionNewParamsModel(c.model),
		Prompt:    openai.CompletionNewParamsPromptUnion{OfString: openai.String(prompt)},
		MaxTokens: openai.Int(c.maxTokens),
	})
	if err != nil {
		return "", &ai.GatewayError{Backend: completionBackend, Err: fmt.Errorf("create completion: %w", err)}
	}

	if len(resp.Choices) == 0 {
		return "", &ai.GatewayError{Backend: completionBackend, Err: ai.ErrEmptyAnswer}
	}

	answer := strings.TrimSpace(resp.Choices[0].Text)
	if answer == "" {
		return "", &ai.GatewayError{Backend: completionBackend, Err: ai.ErrEmptyAnswer}
	}

	c.logger.Debug("completion finished", zap.String("finish_reason", string(resp.Choices[0].FinishReason)))
	return answer, nil
}
