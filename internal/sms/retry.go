package sms

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/smstodo/smstodo/internal/model"
)

// Delays between send attempts. The last entry repeats.
var retryDelays = []time.Duration{
	250 * time.Millisecond,
	1 * time.Second,
	3 * time.Second,
}

const (
	// DefaultMaxAttempts is the default number of send attempts per message.
	DefaultMaxAttempts = 3

	// JitterFactor is the ±percentage of jitter applied to delays.
	JitterFactor = 0.2
)

// NextRetryDelay returns the pause after the given 0-indexed failed attempt,
// with jitter applied.
func NextRetryDelay(attempt int) time.Duration {
	attempt = max(0, min(attempt, len(retryDelays)-1))
	base := retryDelays[attempt]
	jitter := (rand.Float64()*2 - 1) * float64(base) * JitterFactor
	return time.Duration(float64(base) + jitter)
}

// RetryingSender retries ErrTemporary failures of the wrapped Sender.
// Other errors, including ErrRejected and ErrInvalidNumber, return at once.
type RetryingSender struct {
	next        Sender
	maxAttempts int
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewRetryingSender wraps next. maxAttempts below 1 uses DefaultMaxAttempts.
func NewRetryingSender(next Sender, maxAttempts int, logger *slog.Logger) *RetryingSender {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RetryingSender{
		next:        next,
		maxAttempts: maxAttempts,
		logger:      logger,
		sleep:       sleepContext,
	}
}

// Send delivers msg, retrying temporary failures until attempts run out or
// ctx is done.
func (r *RetryingSender) Send(ctx context.Context, msg model.OutboundMessage) error {
	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		err = r.next.Send(ctx, msg)
		if err == nil || !errors.Is(err, ErrTemporary) || attempt == r.maxAttempts-1 {
			return err
		}

		delay := NextRetryDelay(attempt)
		r.logger.WarnContext(ctx, "sms_send_retry",
			"to", msg.To,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		if serr := r.sleep(ctx, delay); serr != nil {
			return errors.Join(err, serr)
		}
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
