// Package sms sends outbound text messages.
package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smstodo/smstodo/internal/model"
	"github.com/smstodo/smstodo/internal/phone"
)

// Sender errors.
var (
	ErrInvalidNumber = errors.New("phone number is not E.164")
	ErrRejected      = errors.New("message rejected by provider")
	// ErrTemporary marks failures worth retrying: transport errors, 5xx and
	// provider throttling.
	ErrTemporary = errors.New("temporary sms failure")
)

// Sender delivers a single SMS. Implementations must not block indefinitely.
type Sender interface {
	Send(ctx context.Context, msg model.OutboundMessage) error
}

// checkEndpoints rejects messages whose endpoints are not E.164.
func checkEndpoints(msg model.OutboundMessage) error {
	if !phone.IsE164(msg.To) {
		return fmt.Errorf("%w: to %q", ErrInvalidNumber, msg.To)
	}
	if !phone.IsE164(msg.From) {
		return fmt.Errorf("%w: from %q", ErrInvalidNumber, msg.From)
	}
	return nil
}

// DryRunSender logs messages instead of sending them and keeps a copy of each.
type DryRunSender struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []model.OutboundMessage
}

// NewDryRunSender creates a DryRunSender. A nil logger discards output.
func NewDryRunSender(logger *slog.Logger) *DryRunSender {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DryRunSender{logger: logger}
}

// Send records msg after the same endpoint checks the real client applies.
func (d *DryRunSender) Send(ctx context.Context, msg model.OutboundMessage) error {
	if err := checkEndpoints(msg); err != nil {
		return err
	}
	d.logger.InfoContext(ctx, "dry run sms",
		slog.String("to", msg.To),
		slog.String("from", msg.From),
		slog.String("text", msg.Text),
	)

	d.mu.Lock()
	d.sent = append(d.sent, msg)
	d.mu.Unlock()
	return nil
}

// Messages returns the messages sent so far.
func (d *DryRunSender) Messages() []model.OutboundMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.OutboundMessage(nil), d.sent...)
}

// Reset forgets recorded messages.
func (d *DryRunSender) Reset() {
	d.mu.Lock()
	d.sent = nil
	d.mu.Unlock()
}
