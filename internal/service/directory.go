package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/smstodo/smstodo/internal/model"
	"github.com/smstodo/smstodo/internal/store"
)

// Directory answers which lists a user belongs to.
type Directory struct {
	store  store.Store
	logger *slog.Logger
}

// NewDirectory creates a Directory.
func NewDirectory(st store.Store, logger *slog.Logger) *Directory {
	return &Directory{store: st, logger: logger}
}

// UserLists returns the lists phone is a member of, in membership order.
// Dangling list ids are logged and skipped. A user with no record has no lists.
func (d *Directory) UserLists(ctx context.Context, phone string) ([]model.ListRef, error) {
	user, err := d.store.GetUser(ctx, phone)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return []model.ListRef{}, nil
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if len(user.MemberOfLists) == 0 {
		return []model.ListRef{}, nil
	}

	lists, err := d.store.GetLists(ctx, user.MemberOfLists)
	if err != nil {
		return nil, fmt.Errorf("failed to load user lists: %w", err)
	}

	refs := make([]model.ListRef, 0, len(lists))
	found := make(map[string]bool, len(lists))
	for _, l := range lists {
		found[l.ID] = true
		ref := l.Ref()
		if ref.Alias == "" {
			ref.Alias = fallbackAlias(l.ID)
		}
		refs = append(refs, ref)
	}

	for _, id := range user.MemberOfLists {
		if !found[id] {
			d.logger.WarnContext(ctx, "user is member of missing list",
				slog.String("phone", phone),
				slog.String("list_id", id),
			)
		}
	}

	return refs, nil
}

func fallbackAlias(id string) string {
	if len(id) > 4 {
		id = id[:4]
	}
	return "Unnamed-" + id
}
