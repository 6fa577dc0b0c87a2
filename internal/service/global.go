package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/smstodo/smstodo/internal/alias"
	"github.com/smstodo/smstodo/internal/command"
	"github.com/smstodo/smstodo/internal/model"
)

// runGlobal handles the commands that need no list context.
func (s *TodoService) runGlobal(ctx context.Context, cmd command.Command, sender, channel string, lists []model.ListRef) string {
	switch cmd.Kind {
	case command.KindCreate:
		return s.create(ctx, cmd.Argument, sender, channel, lists)
	case command.KindLists:
		return listsReply(lists)
	case command.KindHelp:
		return helpReply(cmd.Argument)
	}
	return ""
}

func (s *TodoService) create(ctx context.Context, requested, sender, channel string, lists []model.ListRef) string {
	own := make([]string, len(lists))
	for i, l := range lists {
		own[i] = l.Alias
	}

	if requested != "" {
		if !alias.Valid(requested) {
			return invalidAliasReply
		}
		if alias.Contains(own, requested) {
			return fmt.Sprintf("Error: You already have a list with alias '[%s]'. Choose a different name.", requested)
		}
	}

	ref, err := s.mutator.CreateList(ctx, sender, channel, requested, own)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create list", slog.String("sender", sender), slog.Any("error", err))
		return "Error: Could not create the list."
	}

	reply := fmt.Sprintf("Created new list '%s'. Invite others with: %s: invite +1...", ref.Alias, ref.Alias)
	if len(lists) == 0 {
		reply += WelcomeMessage
	}
	return reply
}

func listsReply(lists []model.ListRef) string {
	if len(lists) == 0 {
		return "You are not a member of any lists. Create one with 'create [optional name]'."
	}
	var b strings.Builder
	b.WriteString("You are a member of:")
	for _, l := range lists {
		b.WriteString("\n- ")
		b.WriteString(l.Alias)
	}
	return b.String()
}

func helpReply(topic string) string {
	if topic == "" {
		return command.HelpIndex()
	}
	if k, ok := command.Lookup(topic); ok {
		if text, ok := command.Help(k); ok {
			return text
		}
	}
	return fmt.Sprintf("Unknown command '%s'.\n\n%s", topic, command.HelpIndex())
}
