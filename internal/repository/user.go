package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/smstodo/smstodo/internal/model"
	"github.com/smstodo/smstodo/internal/store"
)

// GetUser retrieves a user's memberships by phone number.
func (r *Repository) GetUser(ctx context.Context, phone string) (*model.User, error) {
	query := `
		SELECT phone, member_of_lists
		FROM users
		WHERE phone = $1
	`

	var user model.User
	err := r.pool.QueryRow(ctx, query, phone).Scan(&user.Phone, &user.MemberOfLists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

const addUserListQuery = `
	INSERT INTO users (phone, member_of_lists)
	VALUES ($1, ARRAY[$2::text])
	ON CONFLICT (phone) DO UPDATE SET member_of_lists =
		CASE WHEN $2::text = ANY(users.member_of_lists) THEN users.member_of_lists
		     ELSE array_append(users.member_of_lists, $2::text) END
`

const removeUserListQuery = `
	UPDATE users
	SET member_of_lists = array_remove(member_of_lists, $2::text)
	WHERE phone = $1
`
