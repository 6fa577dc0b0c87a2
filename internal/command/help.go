package command

import (
	"sort"
	"strings"
)

var helpText = map[Kind]string{
	KindAdd:    "Usage: add [item description]\nAdds a task to the current list.",
	KindDone:   "Usage: done [item description]\nMarks a task as complete (case-insensitive exact match).",
	KindList:   "Usage: list\nShows all open tasks in the current list.",
	KindCreate: "Usage: create [optional list name]\nCreates a new list. If name is omitted, a random one is generated.",
	KindLists:  "Usage: lists\nShows the names of all lists you are a member of.",
	KindHelp:   "Usage: help [command]\nShows this help list or details for a specific command.",
	KindInvite: "Usage: invite [phone number]\nAdds another user to the current list (use +1... format).",
	KindRemove: "Usage: remove [phone number]\nRemoves a user from the current list.",
	KindLeave:  "Usage: leave\nRemoves yourself from the current list.",
	KindRename: "Usage: rename [new list name]\nRenames the current list (use letters, numbers, -, _).",
}

// Help returns the full help text for a command.
func Help(k Kind) (string, bool) {
	text, ok := helpText[k]
	return text, ok
}

// Usage returns only the "Usage: ..." line for a command.
func Usage(k Kind) string {
	text := helpText[k]
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

// HelpIndex lists every command keyword alphabetically.
func HelpIndex() string {
	names := make([]string, 0, len(helpText))
	for k := range helpText {
		names = append(names, k.String())
	}
	sort.Strings(names)
	return "Available commands:\n" + strings.Join(names, "\n") + "\n\nType 'help [command]' for details."
}
