package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// CommandKey labels a command counter.
type CommandKey struct {
	Command string
	Outcome string
}

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Messages               map[string]uint64
	Commands               map[CommandKey]uint64
	CommandDurationCount   uint64
	CommandDurationTotalNs int64
	TxRetries              uint64
	SMSSent                uint64
	SMSFailed              uint64
}

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	mu       sync.Mutex
	messages map[string]uint64
	commands map[CommandKey]uint64

	commandDurationCount   uint64
	commandDurationTotalNs int64
	txRetries              uint64
	smsSent                uint64
	smsFailed              uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		messages: make(map[string]uint64),
		commands: make(map[CommandKey]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	messages := make(map[string]uint64, len(m.messages))
	for k, v := range m.messages {
		messages[k] = v
	}
	commands := make(map[CommandKey]uint64, len(m.commands))
	for k, v := range m.commands {
		commands[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		Messages:               messages,
		Commands:               commands,
		CommandDurationCount:   atomic.LoadUint64(&m.commandDurationCount),
		CommandDurationTotalNs: atomic.LoadInt64(&m.commandDurationTotalNs),
		TxRetries:              atomic.LoadUint64(&m.txRetries),
		SMSSent:                atomic.LoadUint64(&m.smsSent),
		SMSFailed:              atomic.LoadUint64(&m.smsFailed),
	}
}

// IncMessage increments the inbound message counter for status.
func (m *InMemoryRecorder) IncMessage(status string) {
	m.mu.Lock()
	m.messages[status]++
	m.mu.Unlock()
}

// IncCommand increments the command counter.
func (m *InMemoryRecorder) IncCommand(command, outcome string) {
	m.mu.Lock()
	m.commands[CommandKey{Command: command, Outcome: outcome}]++
	m.mu.Unlock()
}

// ObserveCommandDuration records end-to-end handling time of one message.
func (m *InMemoryRecorder) ObserveCommandDuration(duration time.Duration) {
	atomic.AddUint64(&m.commandDurationCount, 1)
	atomic.AddInt64(&m.commandDurationTotalNs, duration.Nanoseconds())
}

// IncTxRetry increments the transaction retry counter.
func (m *InMemoryRecorder) IncTxRetry() {
	atomic.AddUint64(&m.txRetries, 1)
}

// IncSMSSent increments the sent SMS counter.
func (m *InMemoryRecorder) IncSMSSent() {
	atomic.AddUint64(&m.smsSent, 1)
}

// IncSMSFailed increments the failed SMS counter.
func (m *InMemoryRecorder) IncSMSFailed() {
	atomic.AddUint64(&m.smsFailed, 1)
}
