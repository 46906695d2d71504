package ai

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/reply-tracker/internal/logger"
	"github.com/spigell/reply-tracker/internal/utils"
)

const defaultMaxLogLength = 200

// Logged decorates a Classifier with request and response logging and strips
// markdown fences models like to wrap their answers in.
type Logged struct {
	next      Classifier
	logger    *zap.Logger
	maxLogLen int
}

func WithLogging(next Classifier, log *zap.Logger, maxLogLength int) *Logged {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Logged{
		next:      next,
		logger:    logger.WithFields(log, zap.String(logger.FieldBackend, next.Name())),
		maxLogLen: maxLogLength,
	}
}

func (l *Logged) Name() string {
	return l.next.Name()
}

func (l *Logged) Classify(ctx context.Context, req Request) (string, error) {
	l.logger.Debug("classification request",
		zap.Int("snapshot_length", utf8.RuneCountInString(req.Snapshot)),
		zap.Int("message_length", utf8.RuneCountInString(req.Message)),
		zap.String("message_preview", utils.TruncateForLog(req.Message, l.maxLogLen)),
		zap.Int("history", req.Conversation.Len()),
	)

	raw, err := l.next.Classify(ctx, req)
	if err != nil {
		return "", Wrap(l.next.Name(), err)
	}

	answer := CleanAnswer(raw)

	l.logger.Debug("classification response",
		zap.Int("response_length", utf8.RuneCountInString(answer)),
		zap.String("response_preview", utils.TruncateForLog(answer, l.maxLogLen)),
	)

	if answer == "" {
		return "", &GatewayError{Backend: l.next.Name(), Err: ErrEmptyAnswer}
	}

	return answer, nil
}

// CleanAnswer trims the answer and removes a surrounding code fence.
func CleanAnswer(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```text")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	return strings.TrimSpace(raw)
}
