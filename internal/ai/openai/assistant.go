package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/pagination"
	"go.uber.org/zap"

	"github.com/spigell/reply-tracker/internal/ai"
	"github.com/spigell/reply-tracker/internal/logger"
	"github.com/spigell/reply-tracker/internal/utils"
)

const assistantBackend = "openai-assistant"

type threadCreator interface {
	New(ctx context.Context, body openai.BetaThreadNewParams, opts ...option.RequestOption) (*openai.Thread, error)
}

type threadMessages interface {
	New(ctx context.Context, threadID string, body openai.BetaThreadMessageNewParams, opts ...option.RequestOption) (*openai.Message, error)
	List(ctx context.Context, threadID string, query openai.BetaThreadMessageListParams, opts ...option.RequestOption) (*pagination.CursorPage[openai.Message], error)
}

type threadRuns interface {
	New(ctx context.Context, threadID string, params openai.BetaThreadRunNewParams, opts ...option.RequestOption) (*openai.Run, error)
	Get(ctx context.Context, threadID string, runID string, opts ...option.RequestOption) (*openai.Run, error)
}

// Assistant is the stateful variant: the context is posted to a thread of a
// preconfigured assistant and the run is polled until it settles.
type Assistant struct {
	threads  threadCreator
	messages threadMessages
	runs     threadRuns

	assistantID  string
	reuseThread  bool
	pollInterval time.Duration
	logger       *zap.Logger
}

func NewAssistant(cfg Config, log *zap.Logger) *Assistant {
	client := newClient(cfg)

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	return &Assistant{
		threads:      &client.Beta.Threads,
		messages:     &client.Beta.Threads.Messages,
		runs:         &client.Beta.Threads.Runs,
		assistantID:  strings.TrimSpace(cfg.AssistantID),
		reuseThread:  cfg.ReuseThread,
		pollInterval: poll,
		logger:       logger.WithFields(log, zap.String("assistant_id", cfg.AssistantID)),
	}
}

func (a *Assistant) Name() string {
	return assistantBackend
}

// Classify posts the labeled context and waits for the assistant's reply. When
// no assistant id is configured the request instruction is used as the id.
func (a *Assistant) Classify(ctx context.Context, req ai.Request) (string, error) {
	answer, err := a.classify(ctx, req)
	if err != nil {
		return "", ai.Wrap(assistantBackend, err)
	}
	return answer, nil
}

func (a *Assistant) classify(ctx context.Context, req ai.Request) (string, error) {
	assistantID := a.assistantID
	if assistantID == "" {
		assistantID = strings.TrimSpace(req.Instruction)
	}
	if assistantID == "" {
		return "", errors.New("assistant id is not configured")
	}

	content := ai.Context(req.Snapshot, req.Message)

	threadID, err := a.post(ctx, req.Conversation, content)
	if err != nil {
		return "", err
	}

	run, err := a.runs.New(ctx, threadID, openai.BetaThreadRunNewParams{AssistantID: assistantID})
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}

	run, err = a.wait(ctx, threadID, run)
	if err != nil {
		return "", err
	}

	if run.Status != openai.RunStatusCompleted {
		return "", runError(run)
	}

	answer, err := a.reply(ctx, threadID, run.ID)
	if err != nil {
		return "", err
	}

	return answer, nil
}

// post adds content to the reused thread or opens a new one with it.
func (a *Assistant) post(ctx context.Context, conv *ai.Conversation, content string) (string, error) {
	if a.reuseThread && conv != nil && conv.ThreadID != "" {
		_, err := a.messages.New(ctx, conv.ThreadID, openai.BetaThreadMessageNewParams{
			Content: openai.BetaThreadMessageNewParamsContentUnion{OfString: openai.String(content)},
			Role:    openai.BetaThreadMessageNewParamsRoleUser,
		})
		if err != nil {
			return "", fmt.Errorf("post message to thread %s: %w", conv.ThreadID, err)
		}
		return conv.ThreadID, nil
	}

	thread, err := a.threads.New(ctx, openai.BetaThreadNewParams{
		Messages: []openai.BetaThreadNewParamsMessage{{
			Content: openai.BetaThreadNewParamsMessageContentUnion{OfString: openai.String(content)},
			Role:    "user",
		}},
	})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}

	if a.reuseThread && conv != nil {
		conv.ThreadID = thread.ID
	}

	a.logger.Debug("thread created", zap.String("thread_id", thread.ID))
	return thread.ID, nil
}

func (a *Assistant) wait(ctx context.Context, threadID string, run *openai.Run) (*openai.Run, error) {
	for pending(run.Status) {
		if err := utils.WaitFor(ctx, a.pollInterval); err != nil {
			return nil, err
		}

		next, err := a.runs.Get(ctx, threadID, run.ID)
		if err != nil {
			return nil, fmt.Errorf("poll run %s: %w", run.ID, err)
		}
		run = next

		a.logger.Debug("run polled", zap.String("run_id", run.ID), zap.String("status", string(run.Status)))
	}
	return run, nil
}

func (a *Assistant) reply(ctx context.Context, threadID, runID string) (string, error) {
	page, err := a.messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		RunID: openai.String(runID),
		Order: openai.BetaThreadMessageListParamsOrderDesc,
	})
	if err != nil {
		return "", fmt.Errorf("list messages of run %s: %w", runID, err)
	}

	for _, msg := range page.Data {
		if msg.Role != openai.MessageRoleAssistant {
			continue
		}

		var parts []string
		for _, content := range msg.Content {
			if content.Type == "text" && strings.TrimSpace(content.Text.Value) != "" {
				parts = append(parts, strings.TrimSpace(content.Text.Value))
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n"), nil
		}
	}

	return "", ai.ErrEmptyAnswer
}

func pending(status openai.RunStatus) bool {
	return status == openai.RunStatusQueued || status == openai.RunStatusInProgress
}

func runError(run *openai.Run) error {
	if run.LastError.Message != "" {
		return fmt.Errorf("run %s ended with status %s: %s: %s", run.ID, run.Status, run.LastError.Code, run.LastError.Message)
	}
	return fmt.Errorf("run %s ended with status %s", run.ID, run.Status)
}
