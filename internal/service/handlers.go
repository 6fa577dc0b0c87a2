package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/smstodo/smstodo/internal/alias"
	"github.com/smstodo/smstodo/internal/command"
	"github.com/smstodo/smstodo/internal/model"
	"github.com/smstodo/smstodo/internal/store"
)

func usage(k command.Kind) Result {
	return Result{Reply: command.Usage(k)}
}

func (e *Executor) add(ctx context.Context, inv *Invocation) (Result, error) {
	if inv.Argument == "" {
		return usage(command.KindAdd), nil
	}
	if err := e.store.AppendTask(ctx, inv.List.ID, inv.Argument); err != nil {
		return Result{}, fmt.Errorf("failed to add task: %w", err)
	}
	inv.List.Tasks = append(inv.List.Tasks, inv.Argument)

	return Result{
		Reply:        "Added: " + inv.Argument,
		Notify:       true,
		Notification: fmt.Sprintf("%s added TODO: %s", inv.Sender, inv.Argument),
	}, nil
}

func (e *Executor) done(ctx context.Context, inv *Invocation) (Result, error) {
	if inv.Argument == "" {
		return usage(command.KindDone), nil
	}

	task, ok := inv.List.FindTask(inv.Argument)
	if ok {
		removed, err := e.store.RemoveTask(ctx, inv.List.ID, task)
		if err != nil {
			return Result{}, fmt.Errorf("failed to remove task: %w", err)
		}
		ok = removed
	}
	if !ok {
		return Result{Reply: "Not found: " + inv.Argument}, nil
	}

	return Result{
		Reply:        "Done: " + task,
		Notify:       true,
		Notification: fmt.Sprintf("%s marked done: %s", inv.Sender, task),
	}, nil
}

func (e *Executor) list(inv *Invocation) Result {
	if len(inv.List.Tasks) == 0 {
		return Result{Reply: "No open TODOs!"}
	}
	var b strings.Builder
	b.WriteString("Open TODOs:")
	for _, task := range inv.List.Tasks {
		b.WriteString("\n- ")
		b.WriteString(task)
	}
	return Result{Reply: b.String()}
}

func (e *Executor) invite(ctx context.Context, inv *Invocation) (Result, error) {
	raw := inv.Argument
	invitee, ok := e.phones.Normalize(raw)
	if !ok {
		return usage(command.KindInvite), nil
	}
	if invitee == inv.Sender {
		return Result{Reply: "You cannot invite yourself."}, nil
	}
	if inv.List.HasMember(invitee) {
		return Result{Reply: raw + " is already in the list."}, nil
	}

	if err := e.mutator.AddMember(ctx, inv.Sender, invitee, inv.List.ID); err != nil {
		return Result{}, e.mutationError(ctx, err, inv, raw, "Could not invite user due to an internal error.")
	}

	welcome := ""
	if lists, err := e.directory.UserLists(ctx, invitee); err != nil {
		e.logger.WarnContext(ctx, "failed to load invitee lists", slog.String("phone", invitee), slog.Any("error", err))
	} else if len(lists) == 1 {
		welcome = WelcomeMessage
	}

	return Result{
		Reply:        fmt.Sprintf("Invited %s to the list.", raw),
		Notify:       true,
		Notification: fmt.Sprintf("%s invited %s.", inv.Sender, raw),
		Direct: []model.OutboundMessage{{
			To:   invitee,
			From: inv.Channel,
			Text: fmt.Sprintf("You've been added to the TODO list '[%s]' by %s.%s", inv.Ref.Alias, inv.Sender, welcome),
		}},
	}, nil
}

func (e *Executor) remove(ctx context.Context, inv *Invocation) (Result, error) {
	raw := inv.Argument
	removed, ok := e.phones.Normalize(raw)
	if !ok {
		return usage(command.KindRemove), nil
	}
	if removed == inv.Sender {
		return Result{Reply: "Use 'leave' to remove yourself."}, nil
	}
	if !inv.List.HasMember(removed) {
		return Result{Reply: raw + " is not in the list."}, nil
	}

	if err := e.mutator.RemoveMember(ctx, inv.Sender, removed, inv.List.ID); err != nil {
		return Result{}, e.mutationError(ctx, err, inv, raw, "Could not remove user due to an internal error.")
	}

	return Result{
		Reply:        fmt.Sprintf("Removed %s from the list.", raw),
		Notify:       true,
		Notification: fmt.Sprintf("%s removed %s.", inv.Sender, raw),
		Direct: []model.OutboundMessage{{
			To:   removed,
			From: inv.Channel,
			Text: fmt.Sprintf("You've been removed from the TODO list '[%s]' by %s.", inv.Ref.Alias, inv.Sender),
		}},
	}, nil
}

func (e *Executor) leave(ctx context.Context, inv *Invocation) (Result, error) {
	if len(inv.List.Members) <= 1 {
		return Result{Reply: lastMemberReply(inv.Ref.Alias)}, nil
	}

	if err := e.mutator.RemoveMember(ctx, inv.Sender, inv.Sender, inv.List.ID); err != nil {
		return Result{}, e.mutationError(ctx, err, inv, inv.Sender, "Could not leave the list due to an internal error.")
	}

	return Result{
		Reply:        fmt.Sprintf("You have left the list '[%s]'.", inv.Ref.Alias),
		Notify:       true,
		Notification: inv.Sender + " left the list.",
	}, nil
}

func (e *Executor) rename(ctx context.Context, inv *Invocation) (Result, error) {
	newAlias := inv.Argument
	if newAlias == "" {
		return usage(command.KindRename), nil
	}
	if !alias.Valid(newAlias) {
		return Result{Reply: invalidAliasReply}, nil
	}
	for _, l := range inv.Memberships {
		if l.ID != inv.List.ID && strings.EqualFold(l.Alias, newAlias) {
			return Result{Reply: fmt.Sprintf("Error: You already have a list named '[%s]'. Choose a different name.", newAlias)}, nil
		}
	}

	if err := e.store.RenameList(ctx, inv.List.ID, newAlias); err != nil {
		if errors.Is(err, store.ErrListNotFound) {
			return Result{}, userErrorf(err, "List '%s' seems to be missing.", inv.Ref.Alias)
		}
		e.logger.ErrorContext(ctx, "failed to rename list", slog.String("list_id", inv.List.ID), slog.Any("error", err))
		return Result{}, userErrorf(err, "Could not rename the list due to an internal error.")
	}
	inv.List.Alias = newAlias

	return Result{
		Reply:        fmt.Sprintf("List renamed to '[%s]'.", newAlias),
		Notify:       true,
		Notification: fmt.Sprintf("%s renamed the list to '[%s]'.", inv.Sender, newAlias),
		NewAlias:     newAlias,
	}, nil
}

const invalidAliasReply = "Error: List name can only contain letters, numbers, hyphens, and underscores."

func lastMemberReply(listAlias string) string {
	return fmt.Sprintf("You are the last member of '[%s]' and cannot leave it.", listAlias)
}

// mutationError maps typed mutator failures to user-facing errors. Anything
// unexpected is logged and reported with fallback.
func (e *Executor) mutationError(ctx context.Context, err error, inv *Invocation, target, fallback string) error {
	switch {
	case errors.Is(err, store.ErrListNotFound):
		return userErrorf(err, "List '%s' seems to be missing.", inv.Ref.Alias)
	case errors.Is(err, ErrNotMember):
		return userErrorf(err, "You are no longer a member of '%s'.", inv.Ref.Alias)
	case errors.Is(err, ErrTargetNotMember):
		return userErrorf(err, "%s is not in the list.", target)
	case errors.Is(err, ErrLastMember):
		return userErrorf(err, "%s", lastMemberReply(inv.Ref.Alias))
	}
	e.logger.ErrorContext(ctx, "membership change failed",
		slog.String("list_id", inv.List.ID),
		slog.String("sender", inv.Sender),
		slog.Any("error", err),
	)
	return userErrorf(err, "%s", fallback)
}
