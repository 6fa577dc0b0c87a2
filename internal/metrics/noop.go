package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncMessage is a no-op.
func (n *NoopRecorder) IncMessage(status string) {}

// IncCommand is a no-op.
func (n *NoopRecorder) IncCommand(command, outcome string) {}

// ObserveCommandDuration is a no-op.
func (n *NoopRecorder) ObserveCommandDuration(duration time.Duration) {}

// IncTxRetry is a no-op.
func (n *NoopRecorder) IncTxRetry() {}

// IncSMSSent is a no-op.
func (n *NoopRecorder) IncSMSSent() {}

// IncSMSFailed is a no-op.
func (n *NoopRecorder) IncSMSFailed() {}
