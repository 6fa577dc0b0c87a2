package service

import (
	"strings"

	"github.com/smstodo/smstodo/internal/command"
	"github.com/smstodo/smstodo/internal/model"
)

// Resolve picks the single list a command addresses. An explicit alias is
// matched case-insensitively against the caller's own lists; otherwise a
// caller with exactly one list addresses it implicitly. The returned ref
// carries the alias as stored.
func Resolve(cmd command.Command, lists []model.ListRef) (model.ListRef, error) {
	if cmd.Alias != "" {
		for _, l := range lists {
			if strings.EqualFold(l.Alias, cmd.Alias) {
				return l, nil
			}
		}
		return model.ListRef{}, userErrorf(ErrNoList,
			"Error: List '%s' not found or you are not a member. Use 'lists' to see your lists.", cmd.Alias)
	}

	switch len(lists) {
	case 1:
		return lists[0], nil
	case 0:
		return model.ListRef{}, userErrorf(ErrNoList,
			"Error: You are not part of any list. Use 'create [name]' to start one.")
	default:
		return model.ListRef{}, userErrorf(ErrAmbiguousList,
			"Error: You are in multiple lists. Please specify which list (e.g., 'list_alias: %s'). Use 'lists' to see your lists.",
			cmd.Attempt())
	}
}
