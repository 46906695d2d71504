// Package tracker drives the poll, detect, classify, parse, apply and notify
// cycle for one stream: a mailbox paired with its tracking document.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/reply-tracker/internal/ai"
	"github.com/spigell/reply-tracker/internal/directive"
	"github.com/spigell/reply-tracker/internal/logger"
	"github.com/spigell/reply-tracker/internal/metrics"
	"github.com/spigell/reply-tracker/internal/notify"
	"github.com/spigell/reply-tracker/internal/sheet"
	"github.com/spigell/reply-tracker/internal/utils"
)

const (
	defaultInterval = 30 * time.Second
	maxLogLength    = 300
)

type Document interface {
	Snapshot() (string, error)
	Apply(d directive.Directive) error
	ReloadFrom(path string) error
}

type Detector interface {
	HasNewMessage(ctx context.Context) (bool, error)
	LastMessage() string
}

// Syncer fetches the freshest remote copy of the document.
type Syncer interface {
	FetchLatestCopy(ctx context.Context, name string) (string, error)
}

// ConfirmFunc is consulted right before a directive is applied. Returning
// false skips the write.
type ConfirmFunc func(ctx context.Context, d directive.Directive, answer string) (bool, error)

type Config struct {
	Stream      string
	Interval    time.Duration
	Instruction string
	// SyncName is the remote file name looked up by the Syncer.
	SyncName string
	// HaltOnStorageError stops Run when a flush fails.
	HaltOnStorageError bool
}

// Result describes one cycle. Decision reports the YES marker of the answer.
type Result struct {
	CycleID   string
	Status    Status
	Answer    string
	Directive *directive.Directive
	Decision  bool
	Applied   bool
	Notified  bool
}

type Tracker struct {
	cfg Config

	document   Document
	detector   Detector
	classifier ai.Classifier
	notifier   notify.Notifier
	syncer     Syncer
	confirm    ConfirmFunc
	recorder   metrics.Recorder
	logger     *zap.Logger

	// mu serializes cycles so the document is never mutated concurrently.
	mu           sync.Mutex
	conversation *ai.Conversation
	state        atomic.Int32
	newID        func() string
}

type Option func(*Tracker)

// WithNotifier delivers directive notes. Without one notes are only logged.
func WithNotifier(n notify.Notifier) Option {
	return func(t *Tracker) { t.notifier = n }
}

// WithSyncer re-syncs the document before every mutation.
func WithSyncer(s Syncer) Option {
	return func(t *Tracker) { t.syncer = s }
}

func WithConfirm(fn ConfirmFunc) Option {
	return func(t *Tracker) { t.confirm = fn }
}

func WithRecorder(r metrics.Recorder) Option {
	return func(t *Tracker) { t.recorder = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

func New(cfg Config, document Document, detector Detector, classifier ai.Classifier, opts ...Option) (*Tracker, error) {
	if document == nil {
		return nil, errors.New("tracking document is required")
	}
	if detector == nil {
		return nil, errors.New("change detector is required")
	}
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}

	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}

	t := &Tracker{
		cfg:          cfg,
		document:     document,
		detector:     detector,
		classifier:   classifier,
		conversation: &ai.Conversation{},
		newID:        uuid.NewString,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.recorder == nil {
		t.recorder = metrics.Nop()
	}
	t.logger = logger.WithStream(logger.WithFields(t.logger), cfg.Stream)

	if t.syncer != nil && strings.TrimSpace(cfg.SyncName) == "" {
		return nil, errors.New("sync name is required when a syncer is configured")
	}

	return t, nil
}

// State reports where the tracker currently is within a cycle.
func (t *Tracker) State() State {
	return State(t.state.Load())
}

// Run polls until ctx is done. The stop signal is checked before every cycle
// and interrupts the wait between cycles. Run returns nil on cancellation and
// an error only when a storage failure is configured to halt the loop.
func (t *Tracker) Run(ctx context.Context) error {
	t.logger.Info("tracker started", zap.Duration("interval", t.cfg.Interval))

	for {
		if ctx.Err() != nil {
			t.logger.Info("tracker stopped")
			return nil
		}

		if _, err := t.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				t.logger.Info("tracker stopped")
				return nil
			}
			return err
		}

		if err := utils.WaitFor(ctx, t.cfg.Interval); err != nil {
			t.logger.Info("tracker stopped")
			return nil
		}
	}
}

// RunOnce performs a single detect-and-process cycle.
func (t *Tracker) RunOnce(ctx context.Context) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cycle := t.begin()
	defer t.finish(cycle)

	if err := ctx.Err(); err != nil {
		return cycle.result, err
	}

	t.transition(cycle, Checking)
	changed, err := t.detector.HasNewMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return cycle.result, ctx.Err()
		}
		cycle.log.Warn("checking for new messages failed", zap.Error(err))
		cycle.result.Status = StatusCheckFailed
		return cycle.result, nil
	}

	if !changed {
		cycle.log.Debug("no new messages")
		cycle.result.Status = StatusUnchanged
		return cycle.result, nil
	}

	cycle.log.Info("new message detected")
	return t.process(ctx, cycle, t.detector.LastMessage())
}

// Process classifies message and applies the result, skipping change
// detection. It backs the single-shot check command.
func (t *Tracker) Process(ctx context.Context, message string) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cycle := t.begin()
	defer t.finish(cycle)

	if err := ctx.Err(); err != nil {
		return cycle.result, err
	}

	return t.process(ctx, cycle, message)
}

type cycle struct {
	started time.Time
	log     *zap.Logger
	result  Result
}

func (t *Tracker) begin() *cycle {
	id := t.newID()
	return &cycle{
		started: time.Now(),
		log:     logger.WithCycle(t.logger, id),
		result:  Result{CycleID: id},
	}
}

func (t *Tracker) finish(c *cycle) {
	t.transition(c, Idle)
	if c.result.Status == "" {
		return
	}
	t.recorder.ObserveCycle(t.cfg.Stream, string(c.result.Status), time.Since(c.started))
}

func (t *Tracker) transition(c *cycle, next State) {
	prev := State(t.state.Swap(int32(next)))
	if prev != next {
		c.log.Debug("state changed", zap.Stringer("from", prev), zap.Stringer("to", next))
	}
}

func (t *Tracker) process(ctx context.Context, c *cycle, message string) (Result, error) {
	t.transition(c, Classifying)

	snapshot, err := t.document.Snapshot()
	if err != nil {
		c.log.Error("reading tracking document failed", zap.Error(err))
		c.result.Status = StatusSnapshotFailed
		return c.result, nil
	}

	started := time.Now()
	answer, err := t.classifier.Classify(ctx, ai.Request{
		Snapshot:     snapshot,
		Message:      message,
		Instruction:  t.cfg.Instruction,
		Conversation: t.conversation,
	})
	t.recorder.ObserveClassification(t.cfg.Stream, t.classifier.Name(), err == nil, time.Since(started))
	if err != nil {
		if ctx.Err() != nil {
			return c.result, ctx.Err()
		}
		c.log.Warn("classification failed", zap.Error(err))
		c.result.Status = StatusClassifyFailed
		return c.result, nil
	}

	c.result.Answer = answer
	c.log.Debug("classifier answered", zap.String("answer", utils.TruncateForLog(answer, maxLogLength)))

	t.transition(c, Applying)

	d, err := directive.Parse(answer)
	if err != nil {
		c.log.Warn("answer skipped", zap.Error(err))
		c.result.Status = StatusParseFailed
		return c.result, nil
	}
	c.result.Directive = &d

	// YES re-syncs the document before the update.
	if c.result.Decision = directive.HasDecisionMarker(answer); c.result.Decision {
		if err := t.sync(ctx); err != nil {
			if ctx.Err() != nil {
				return c.result, ctx.Err()
			}
			c.log.Warn("syncing tracking document failed, skipping update", zap.Error(err))
			c.result.Status = StatusSyncFailed
			return c.result, nil
		}
	}

	if t.confirm != nil {
		ok, err := t.confirm(ctx, d, answer)
		if err != nil || !ok {
			c.log.Info("update declined", zap.Stringer("directive", d), zap.Error(err))
			c.result.Status = StatusDeclined
			return c.result, nil
		}
	}

	if err := t.document.Apply(d); err != nil {
		return t.applyFailed(c, d, err)
	}

	c.result.Applied = true
	c.result.Status = StatusApplied
	t.recorder.IncApplied(t.cfg.Stream, d.Outcome.String())
	c.log.Info("tracking document updated",
		zap.Int("row", d.Row),
		zap.Int("column", d.Column),
		zap.String("outcome", d.Outcome.String()),
	)

	if !d.HasNote {
		return c.result, nil
	}

	t.transition(c, Notifying)
	t.deliver(ctx, c, d.Note)

	return c.result, nil
}

func (t *Tracker) applyFailed(c *cycle, d directive.Directive, err error) (Result, error) {
	var storageErr *sheet.StorageError
	if errors.As(err, &storageErr) {
		c.log.Error("flushing tracking document failed, disk and memory diverged",
			zap.String("path", storageErr.Path),
			zap.Error(err),
		)
		c.result.Status = StatusStorageFailed
		if t.cfg.HaltOnStorageError {
			return c.result, fmt.Errorf("stream %s: %w", t.cfg.Stream, err)
		}
		return c.result, nil
	}

	c.log.Warn("directive rejected", zap.Stringer("directive", d), zap.Error(err))
	c.result.Status = StatusApplyFailed
	return c.result, nil
}

func (t *Tracker) sync(ctx context.Context) error {
	if t.syncer == nil {
		return nil
	}

	path, err := t.syncer.FetchLatestCopy(ctx, t.cfg.SyncName)
	if err != nil {
		return err
	}

	return t.document.ReloadFrom(path)
}

// deliver sends the note. Failures never undo the flushed update.
func (t *Tracker) deliver(ctx context.Context, c *cycle, note string) {
	if t.notifier == nil {
		c.log.Info("note not delivered, no notifier configured", zap.String("note", note))
		return
	}

	if err := t.notifier.Notify(ctx, note); err != nil {
		t.recorder.IncNotification(t.cfg.Stream, t.notifier.Name(), false)
		c.log.Warn("notification failed", zap.String("channel", t.notifier.Name()), zap.Error(err))
		return
	}

	t.recorder.IncNotification(t.cfg.Stream, t.notifier.Name(), true)
	c.result.Notified = true
	c.log.Info("note delivered", zap.String("channel", t.notifier.Name()))
}
