// Package store defines the persistence contract for lists and user memberships.
package store

import (
	"context"
	"errors"

	"github.com/smstodo/smstodo/internal/model"
)

// Common store errors.
var (
	ErrListNotFound = errors.New("list not found")
	ErrUserNotFound = errors.New("user not found")
	// ErrConflict means a concurrent transaction won and this one was aborted.
	ErrConflict = errors.New("transaction conflict")
)

// Store is the document store for lists and users. Outside RunInTx every
// call is an independent atomic operation.
type Store interface {
	GetUser(ctx context.Context, phone string) (*model.User, error)
	GetList(ctx context.Context, id string) (*model.List, error)
	// GetLists returns the lists that exist, in the order of ids.
	GetLists(ctx context.Context, ids []string) ([]*model.List, error)

	// AppendTask appends task to the list. Duplicates are allowed.
	AppendTask(ctx context.Context, listID, task string) error
	// RemoveTask removes the first task exactly equal to task.
	RemoveTask(ctx context.Context, listID, task string) (bool, error)
	RenameList(ctx context.Context, listID, alias string) error

	// RunInTx runs fn in a single atomic transaction. If fn returns an error
	// nothing it wrote is kept.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Ping(ctx context.Context) error
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	// GetList reads the list and locks it for the rest of the transaction.
	GetList(ctx context.Context, id string) (*model.List, error)
	// CreateList stores l with a new id and server timestamp, sets both on l
	// and returns the id.
	CreateList(ctx context.Context, l *model.List) (string, error)

	AddListMember(ctx context.Context, listID, phone string) error
	RemoveListMember(ctx context.Context, listID, phone string) error

	// AddUserList creates the user if needed and adds listID to its memberships.
	AddUserList(ctx context.Context, phone, listID string) error
	RemoveUserList(ctx context.Context, phone, listID string) error
}
