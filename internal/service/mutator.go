package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/smstodo/smstodo/internal/alias"
	"github.com/smstodo/smstodo/internal/metrics"
	"github.com/smstodo/smstodo/internal/model"
	"github.com/smstodo/smstodo/internal/store"
)

const (
	// DefaultTxAttempts bounds how often a conflicting transaction is retried.
	DefaultTxAttempts = 3
	// DefaultTxBackoff is the base delay between transaction attempts.
	DefaultTxBackoff = 25 * time.Millisecond
	// txJitterFactor is the ±fraction of jitter applied to the backoff.
	txJitterFactor = 0.2
)

// Mutator runs the multi-document writes that keep List.Members and
// User.MemberOfLists consistent. Membership is always re-validated inside
// the transaction.
type Mutator struct {
	store    store.Store
	aliases  *alias.Generator
	logger   *slog.Logger
	metrics  metrics.Recorder
	attempts int
	backoff  time.Duration
}

// NewMutator creates a Mutator.
func NewMutator(st store.Store, aliases *alias.Generator, logger *slog.Logger, recorder metrics.Recorder, attempts int, backoff time.Duration) *Mutator {
	if aliases == nil {
		aliases = alias.NewGenerator()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if attempts <= 0 {
		attempts = DefaultTxAttempts
	}
	if backoff < 0 {
		backoff = 0
	}
	return &Mutator{
		store:    st,
		aliases:  aliases,
		logger:   logger,
		metrics:  recorder,
		attempts: attempts,
		backoff:  backoff,
	}
}

// CreateList creates a list with phone as its only member. An empty
// requestedAlias is replaced by a generated one that does not collide with
// ownAliases.
func (m *Mutator) CreateList(ctx context.Context, phone, channel, requestedAlias string, ownAliases []string) (model.ListRef, error) {
	finalAlias := requestedAlias
	if finalAlias == "" {
		generated, err := m.aliases.Unique(ownAliases, alias.DefaultAttempts)
		if err != nil {
			return model.ListRef{}, fmt.Errorf("%w: %v", ErrAliasExhausted, err)
		}
		finalAlias = generated
	}

	var id string
	err := m.withRetry(ctx, "create_list", func(ctx context.Context, tx store.Tx) error {
		var err error
		id, err = tx.CreateList(ctx, &model.List{
			Alias:        finalAlias,
			Members:      []string{phone},
			Tasks:        []string{},
			CreatedBy:    phone,
			VonageNumber: channel,
		})
		if err != nil {
			return err
		}
		return tx.AddUserList(ctx, phone, id)
	})
	if err != nil {
		return model.ListRef{}, err
	}

	m.logger.InfoContext(ctx, "list created",
		slog.String("list_id", id),
		slog.String("alias", finalAlias),
		slog.String("phone", phone),
	)
	return model.ListRef{ID: id, Alias: finalAlias}, nil
}

// AddMember adds invitee to the list on behalf of inviter.
func (m *Mutator) AddMember(ctx context.Context, inviter, invitee, listID string) error {
	err := m.withRetry(ctx, "add_member", func(ctx context.Context, tx store.Tx) error {
		list, err := tx.GetList(ctx, listID)
		if err != nil {
			return err
		}
		if !list.HasMember(inviter) {
			return ErrNotMember
		}
		if err := tx.AddListMember(ctx, listID, invitee); err != nil {
			return err
		}
		return tx.AddUserList(ctx, invitee, listID)
	})
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "member added",
		slog.String("list_id", listID),
		slog.String("by", inviter),
		slog.String("phone", invitee),
	)
	return nil
}

// RemoveMember removes removed from the list on behalf of remover. It refuses
// to remove the last remaining member.
func (m *Mutator) RemoveMember(ctx context.Context, remover, removed, listID string) error {
	err := m.withRetry(ctx, "remove_member", func(ctx context.Context, tx store.Tx) error {
		list, err := tx.GetList(ctx, listID)
		if err != nil {
			return err
		}
		if !list.HasMember(remover) {
			return ErrNotMember
		}
		if !list.HasMember(removed) {
			return ErrTargetNotMember
		}
		if len(list.Members) <= 1 {
			return ErrLastMember
		}
		if err := tx.RemoveListMember(ctx, listID, removed); err != nil {
			return err
		}
		return tx.RemoveUserList(ctx, removed, listID)
	})
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "member removed",
		slog.String("list_id", listID),
		slog.String("by", remover),
		slog.String("phone", removed),
	)
	return nil
}

// withRetry runs fn in a transaction, retrying only on store.ErrConflict.
func (m *Mutator) withRetry(ctx context.Context, op string, fn func(ctx context.Context, tx store.Tx) error) error {
	var err error
	for attempt := 0; attempt < m.attempts; attempt++ {
		if attempt > 0 {
			m.metrics.IncTxRetry()
			m.logger.WarnContext(ctx, "retrying transaction after conflict",
				slog.String("op", op),
				slog.Int("attempt", attempt+1),
			)
			if werr := sleepCtx(ctx, m.retryDelay(attempt)); werr != nil {
				return fmt.Errorf("%s: %w", op, werr)
			}
		}

		err = m.store.RunInTx(ctx, fn)
		if err == nil || !errors.Is(err, store.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("%s: %d attempts: %w", op, m.attempts, err)
}

// retryDelay grows linearly with the attempt and carries ±20% jitter.
func (m *Mutator) retryDelay(attempt int) time.Duration {
	base := float64(m.backoff) * float64(attempt)
	jitter := (rand.Float64()*2 - 1) * base * txJitterFactor
	return time.Duration(base + jitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
