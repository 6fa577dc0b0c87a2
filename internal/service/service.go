// Package service interprets inbound SMS commands against shared TODO lists.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/smstodo/smstodo/internal/alias"
	"github.com/smstodo/smstodo/internal/command"
	"github.com/smstodo/smstodo/internal/metrics"
	"github.com/smstodo/smstodo/internal/model"
	"github.com/smstodo/smstodo/internal/sms"
	"github.com/smstodo/smstodo/internal/store"
)

// ApologyMessage is sent when a message could not be handled for internal reasons.
const ApologyMessage = "Sorry, an unexpected internal error occurred."

// Outcome describes everything a message produced. It is returned for
// logging and tests; HandleMessage has already delivered it.
type Outcome struct {
	Kind    command.Kind
	Sender  string
	Channel string
	// ListID and Alias are empty when no list was addressed.
	ListID string
	Alias  string
	// Reply is the final text sent to the sender, prefix included.
	Reply        string
	Direct       []model.OutboundMessage
	Notification string
	Recipients   []string
}

// Options tunes a TodoService. Zero values pick defaults.
type Options struct {
	Aliases           *alias.Generator
	NotifyConcurrency int
	TxAttempts        int
	TxBackoff         time.Duration
}

// TodoService is the message pipeline. All collaborators are injected.
type TodoService struct {
	store      store.Store
	directory  *Directory
	mutator    *Mutator
	executor   *Executor
	dispatcher *Dispatcher
	logger     *slog.Logger
	metrics    metrics.Recorder
}

// NewTodoService wires a TodoService.
func NewTodoService(st store.Store, sender sms.Sender, phones PhoneNormalizer, logger *slog.Logger, recorder metrics.Recorder, opts Options) *TodoService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	backoff := opts.TxBackoff
	if backoff == 0 {
		backoff = DefaultTxBackoff
	}

	directory := NewDirectory(st, logger)
	mutator := NewMutator(st, opts.Aliases, logger, recorder, opts.TxAttempts, backoff)
	return &TodoService{
		store:      st,
		directory:  directory,
		mutator:    mutator,
		executor:   NewExecutor(st, mutator, directory, phones, logger),
		dispatcher: NewDispatcher(sender, logger, recorder, opts.NotifyConcurrency),
		logger:     logger,
		metrics:    recorder,
	}
}

// HandleMessage runs one inbound message through parsing, resolution and
// execution, then sends the reply and notifications. msg.From and msg.To must
// already be E.164. A non-nil error means an internal failure; the sender has
// been sent an apology when possible.
func (s *TodoService) HandleMessage(ctx context.Context, msg model.InboundMessage) (*Outcome, error) {
	start := time.Now()
	logger := s.logger.With(
		slog.String("message_id", msg.MessageID),
		slog.String("sender", msg.From),
	)

	cmd := command.Parse(msg.Text)
	out := &Outcome{Kind: cmd.Kind, Sender: msg.From, Channel: msg.To}

	if cmd.Kind == command.KindEmpty {
		logger.InfoContext(ctx, "empty message ignored")
		return out, nil
	}

	err := s.interpret(ctx, logger, cmd, out)
	outcome := metrics.OutcomeOK
	if err != nil {
		if ce, ok := AsCommandError(err); ok {
			logger.WarnContext(ctx, "command rejected",
				slog.String("command", cmd.Kind.String()),
				slog.String("reason", ce.Error()),
			)
			outcome = metrics.OutcomeUserError
			out.Reply = ce.Message
			out.Notification, out.Recipients, out.Direct = "", nil, nil
			err = nil
		} else {
			logger.ErrorContext(ctx, "failed to handle message",
				slog.String("command", cmd.Kind.String()),
				slog.Any("error", err),
			)
			outcome = metrics.OutcomeInternalError
			*out = Outcome{Kind: cmd.Kind, Sender: msg.From, Channel: msg.To, Reply: ApologyMessage}
		}
	}

	if out.Reply != "" && out.Alias != "" && cmd.Kind != command.KindLeave {
		out.Reply = out.Alias + ": " + out.Reply
	}

	s.dispatcher.Deliver(ctx, out)

	s.metrics.IncCommand(cmd.Kind.String(), outcome)
	s.metrics.ObserveCommandDuration(time.Since(start))
	logger.InfoContext(ctx, "message handled",
		slog.String("command", cmd.Kind.String()),
		slog.String("list_id", out.ListID),
		slog.String("outcome", outcome),
	)

	if outcome == metrics.OutcomeInternalError {
		return out, fmt.Errorf("handle message %s: internal error", msg.MessageID)
	}
	return out, nil
}

// interpret fills out with the unprefixed reply and the fan-out plan.
func (s *TodoService) interpret(ctx context.Context, logger *slog.Logger, cmd command.Command, out *Outcome) error {
	lists, err := s.directory.UserLists(ctx, out.Sender)
	if err != nil {
		return err
	}

	if cmd.Kind.IsGlobal() {
		out.Reply = s.runGlobal(ctx, cmd, out.Sender, out.Channel, lists)
		return nil
	}
	// Text outside the grammar names no command, so there is nothing to resolve.
	if cmd.Kind == command.KindUnknown && cmd.Name == "" {
		out.Reply = unknown(cmd).Reply
		return nil
	}

	ref, err := Resolve(cmd, lists)
	if err != nil {
		return err
	}
	out.ListID, out.Alias = ref.ID, ref.Alias

	inv := &Invocation{
		Sender:      out.Sender,
		Argument:    cmd.Argument,
		Ref:         ref,
		Channel:     out.Channel,
		Memberships: lists,
	}
	res, err := s.executor.Execute(ctx, cmd, inv)
	if err != nil {
		return err
	}

	if res.NewAlias != "" {
		out.Alias = res.NewAlias
	}
	out.Reply = res.Reply
	out.Direct = res.Direct

	if res.Notify && res.Notification != "" {
		members, ok := s.notifyMembers(ctx, logger, cmd.Kind, inv)
		if ok {
			out.Notification = fmt.Sprintf("[%s] %s", out.Alias, res.Notification)
			out.Recipients = slices.DeleteFunc(slices.Clone(members), func(m string) bool { return m == out.Sender })
		}
	}
	return nil
}

// notifyMembers returns the member set a notification goes to. Commands that
// change membership re-read the list; others use the executor's snapshot.
func (s *TodoService) notifyMembers(ctx context.Context, logger *slog.Logger, kind command.Kind, inv *Invocation) ([]string, bool) {
	if !kind.ModifiesMembers() {
		return inv.List.Members, true
	}

	list, err := s.store.GetList(ctx, inv.Ref.ID)
	if err != nil {
		if errors.Is(err, store.ErrListNotFound) {
			logger.WarnContext(ctx, "list vanished before notification", slog.String("list_id", inv.Ref.ID))
		} else {
			logger.ErrorContext(ctx, "failed to reload list for notification", slog.String("list_id", inv.Ref.ID), slog.Any("error", err))
		}
		return nil, false
	}
	return list.Members, true
}
