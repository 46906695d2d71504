// Package metrics records what the orchestrator does per stream.
package metrics

import "time"

// Recorder receives one call per orchestrator event.
type Recorder interface {
	// ObserveCycle records a finished cycle and its result.
	ObserveCycle(stream, result string, duration time.Duration)
	// ObserveClassification records a classifier call.
	ObserveClassification(stream, backend string, success bool, duration time.Duration)
	// IncApplied counts directives written to the document by outcome.
	IncApplied(stream, outcome string)
	// IncNotification counts note deliveries.
	IncNotification(stream, channel string, success bool)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) ObserveCycle(_, _ string, _ time.Duration) {}

func (n *NoopRecorder) ObserveClassification(_, _ string, _ bool, _ time.Duration) {}

func (n *NoopRecorder) IncApplied(_, _ string) {}

func (n *NoopRecorder) IncNotification(_, _ string, _ bool) {}
