// Package command parses inbound SMS text into a list alias, a command and its argument.
package command

import (
	"regexp"
	"strings"
)

// Kind is the closed set of commands the service understands.
type Kind int

const (
	// KindEmpty is effectively empty input. It is ignored without a reply.
	KindEmpty Kind = iota
	// KindUnknown is any input that is not a recognized command.
	KindUnknown

	// List commands operate on a single resolved list.
	KindAdd
	KindDone
	KindList
	KindInvite
	KindRemove
	KindLeave
	KindRename

	// Global commands run without a list context.
	KindCreate
	KindLists
	KindHelp
)

var kindNames = map[Kind]string{
	KindAdd:    "add",
	KindDone:   "done",
	KindList:   "list",
	KindInvite: "invite",
	KindRemove: "remove",
	KindLeave:  "leave",
	KindRename: "rename",
	KindCreate: "create",
	KindLists:  "lists",
	KindHelp:   "help",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

// String returns the command keyword, or "empty"/"unknown".
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindUnknown:
		return "unknown"
	}
	return kindNames[k]
}

// IsGlobal reports whether the command is handled before list resolution.
func (k Kind) IsGlobal() bool {
	return k == KindCreate || k == KindLists || k == KindHelp
}

// ModifiesMembers reports whether the command changes a list's member set.
func (k Kind) ModifiesMembers() bool {
	return k == KindInvite || k == KindRemove || k == KindLeave
}

// Lookup returns the Kind for a keyword, ignoring case.
func Lookup(name string) (Kind, bool) {
	k, ok := kindsByName[strings.ToLower(strings.TrimSpace(name))]
	return k, ok
}

// Command is a parsed inbound message.
type Command struct {
	// Alias is the optional "alias:" prefix, case preserved. Empty when absent.
	Alias string
	// Name is the lower-cased command token as typed.
	Name     string
	Kind     Kind
	Argument string
	// Raw is the trimmed input text.
	Raw string
}

// Attempt renders the command and argument the way the user typed them,
// used when asking the user to retry with an alias prefix.
func (c Command) Attempt() string {
	if c.Argument == "" {
		return c.Name
	}
	return c.Name + " " + c.Argument
}

// messagePattern matches "[alias:] command [argument...]".
// Word characters include any Unicode letter or digit.
var messagePattern = regexp.MustCompile(`(?is)^(?:([\p{L}\p{N}_-]+):\s*)?([\p{L}\p{N}_]+)(?:\s+(.*))?$`)

// Parse splits text into alias, command and argument. It never fails:
// input that does not fit the grammar yields KindUnknown, or KindEmpty
// when the input is blank.
func Parse(text string) Command {
	raw := strings.TrimSpace(text)
	cmd := Command{Raw: raw}

	m := messagePattern.FindStringSubmatch(raw)
	if m == nil {
		if raw == "" {
			cmd.Kind = KindEmpty
		} else {
			cmd.Kind = KindUnknown
		}
		return cmd
	}

	cmd.Alias = strings.TrimSpace(m[1])
	cmd.Name = strings.ToLower(m[2])
	cmd.Argument = strings.TrimSpace(m[3])

	if k, ok := kindsByName[cmd.Name]; ok {
		cmd.Kind = k
	} else {
		cmd.Kind = KindUnknown
	}
	return cmd
}
