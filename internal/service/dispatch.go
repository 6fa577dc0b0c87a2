package service

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/smstodo/smstodo/internal/metrics"
	"github.com/smstodo/smstodo/internal/model"
	"github.com/smstodo/smstodo/internal/sms"
)

// DefaultNotifyConcurrency bounds parallel notification sends per message.
const DefaultNotifyConcurrency = 8

// Dispatcher sends replies, direct messages and group notifications.
// Send failures are logged and counted, never returned.
type Dispatcher struct {
	sender      sms.Sender
	logger      *slog.Logger
	metrics     metrics.Recorder
	concurrency int
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(sender sms.Sender, logger *slog.Logger, recorder metrics.Recorder, concurrency int) *Dispatcher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if concurrency <= 0 {
		concurrency = DefaultNotifyConcurrency
	}
	return &Dispatcher{
		sender:      sender,
		logger:      logger,
		metrics:     recorder,
		concurrency: concurrency,
	}
}

// Deliver sends every message in o: direct messages first, then the reply to
// the sender, then the group notification fan-out.
func (d *Dispatcher) Deliver(ctx context.Context, o *Outcome) {
	for _, msg := range o.Direct {
		d.send(ctx, msg)
	}
	if o.Reply != "" {
		d.send(ctx, model.OutboundMessage{To: o.Sender, From: o.Channel, Text: o.Reply})
	}
	if o.Notification == "" || len(o.Recipients) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, to := range o.Recipients {
		msg := model.OutboundMessage{To: to, From: o.Channel, Text: o.Notification}
		g.Go(func() error {
			d.send(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) send(ctx context.Context, msg model.OutboundMessage) {
	if err := d.sender.Send(ctx, msg); err != nil {
		d.metrics.IncSMSFailed()
		d.logger.ErrorContext(ctx, "failed to send sms",
			slog.String("to", msg.To),
			slog.Any("error", err),
		)
		return
	}
	d.metrics.IncSMSSent()
}
