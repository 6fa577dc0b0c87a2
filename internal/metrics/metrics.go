// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Message statuses passed to IncMessage.
const (
	MessageReceived    = "received"
	MessageDuplicate   = "duplicate"
	MessageRateLimited = "rate_limited"
	MessageInvalid     = "invalid"
)

// Command outcomes passed to IncCommand.
const (
	OutcomeOK            = "ok"
	OutcomeUserError     = "user_error"
	OutcomeInternalError = "internal_error"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Inbound webhook metrics
	IncMessage(status string)

	// Command pipeline metrics
	IncCommand(command, outcome string)
	ObserveCommandDuration(duration time.Duration)
	IncTxRetry()

	// Outbound SMS metrics
	IncSMSSent()
	IncSMSFailed()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
