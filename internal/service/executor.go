package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/smstodo/smstodo/internal/command"
	"github.com/smstodo/smstodo/internal/model"
	"github.com/smstodo/smstodo/internal/store"
)

// WelcomeMessage is appended to the first message a user gets about their first list.
const WelcomeMessage = "\nWelcome! Try 'add [task]' to add your first item, or 'help' for more commands."

// PhoneNormalizer canonicalizes raw phone input to E.164.
type PhoneNormalizer interface {
	Normalize(raw string) (string, bool)
}

// Invocation is everything a list command handler needs.
type Invocation struct {
	Sender   string
	Argument string
	// Ref is the resolved list; Ref.Alias is the canonical alias.
	Ref model.ListRef
	// List is the snapshot loaded by the executor for this command.
	List *model.List
	// Channel is the provider number the message arrived on.
	Channel string
	// Memberships are the sender's lists at the start of the request.
	Memberships []model.ListRef
}

// Result is the successful outcome of a list command.
type Result struct {
	Reply        string
	Notify       bool
	Notification string
	// NewAlias is set when the command renamed the list.
	NewAlias string
	// Direct messages go to specific third parties, e.g. an invitee.
	Direct []model.OutboundMessage
}

// Executor loads a list, authorizes the sender and runs one list command.
type Executor struct {
	store     store.Store
	mutator   *Mutator
	directory *Directory
	phones    PhoneNormalizer
	logger    *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(st store.Store, mutator *Mutator, directory *Directory, phones PhoneNormalizer, logger *slog.Logger) *Executor {
	return &Executor{
		store:     st,
		mutator:   mutator,
		directory: directory,
		phones:    phones,
		logger:    logger,
	}
}

// Execute runs cmd against inv.Ref. The list is always re-read here; inv.List
// is overwritten with the fresh snapshot. Errors are either *CommandError or
// internal.
func (e *Executor) Execute(ctx context.Context, cmd command.Command, inv *Invocation) (Result, error) {
	list, err := e.store.GetList(ctx, inv.Ref.ID)
	if err != nil {
		if errors.Is(err, store.ErrListNotFound) {
			e.logger.ErrorContext(ctx, "resolved list missing",
				slog.String("list_id", inv.Ref.ID),
				slog.String("alias", inv.Ref.Alias),
			)
			return Result{}, userErrorf(err, "List '%s' seems to be missing.", inv.Ref.Alias)
		}
		return Result{}, fmt.Errorf("failed to load list: %w", err)
	}
	if !list.HasMember(inv.Sender) {
		e.logger.WarnContext(ctx, "sender lost membership before execution",
			slog.String("list_id", list.ID),
			slog.String("sender", inv.Sender),
		)
		return Result{}, userErrorf(ErrNotMember, "You are no longer a member of '%s'.", inv.Ref.Alias)
	}
	inv.List = list

	switch cmd.Kind {
	case command.KindAdd:
		return e.add(ctx, inv)
	case command.KindDone:
		return e.done(ctx, inv)
	case command.KindList:
		return e.list(inv), nil
	case command.KindInvite:
		return e.invite(ctx, inv)
	case command.KindRemove:
		return e.remove(ctx, inv)
	case command.KindLeave:
		return e.leave(ctx, inv)
	case command.KindRename:
		return e.rename(ctx, inv)
	default:
		return unknown(cmd), nil
	}
}

// unknown answers unrecognized input so the channel is never silent.
func unknown(cmd command.Command) Result {
	switch {
	case cmd.Name != "" && cmd.Argument == "":
		return Result{Reply: fmt.Sprintf("Unknown command '%s'. Did you mean 'add %s'? Use 'help' for commands.", cmd.Name, cmd.Name)}
	case cmd.Name != "":
		return Result{Reply: fmt.Sprintf("Unknown command '%s'. Use 'help'.", cmd.Name)}
	default:
		return Result{Reply: "Invalid input. Use 'help'."}
	}
}
