package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/smstodo/smstodo/internal/model"
	"github.com/smstodo/smstodo/internal/store"
)

const listColumns = `id, alias, members, tasks, created_by, created_at, vonage_number`

// GetList retrieves a list by ID.
func (r *Repository) GetList(ctx context.Context, id string) (*model.List, error) {
	query := `SELECT ` + listColumns + ` FROM lists WHERE id = $1`
	return scanList(r.pool.QueryRow(ctx, query, id))
}

// GetLists retrieves several lists in one round trip. The result follows the
// order of ids and omits ids that do not exist.
func (r *Repository) GetLists(ctx context.Context, ids []string) ([]*model.List, error) {
	if len(ids) == 0 {
		return []*model.List{}, nil
	}

	query := `SELECT ` + listColumns + ` FROM lists WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get lists: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*model.List, len(ids))
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, err
		}
		byID[l.ID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lists: %w", err)
	}

	out := make([]*model.List, 0, len(byID))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

// AppendTask appends a task to the end of the list.
func (r *Repository) AppendTask(ctx context.Context, listID, task string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE lists SET tasks = array_append(tasks, $2::text) WHERE id = $1`,
		listID, task,
	)
	if err != nil {
		return fmt.Errorf("failed to append task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrListNotFound
	}
	return nil
}

// RemoveTask removes the first task exactly equal to task.
func (r *Repository) RemoveTask(ctx context.Context, listID, task string) (bool, error) {
	query := `
		UPDATE lists
		SET tasks = tasks[:array_position(tasks, $2::text) - 1]
		         || tasks[array_position(tasks, $2::text) + 1:]
		WHERE id = $1 AND array_position(tasks, $2::text) IS NOT NULL
	`
	tag, err := r.pool.Exec(ctx, query, listID, task)
	if err != nil {
		return false, fmt.Errorf("failed to remove task: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	exists, err := r.listExists(ctx, listID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, store.ErrListNotFound
	}
	return false, nil
}

// RenameList sets a new alias on the list.
func (r *Repository) RenameList(ctx context.Context, listID, alias string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE lists SET alias = $2 WHERE id = $1`, listID, alias)
	if err != nil {
		return fmt.Errorf("failed to rename list: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrListNotFound
	}
	return nil
}

// RunInTx runs fn inside a serializable transaction. Serialization failures
// are reported as store.ErrConflict.
func (r *Repository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
	if err != nil && isConflict(err) {
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

func (r *Repository) listExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lists WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check list: %w", err)
	}
	return exists, nil
}

// pgTx implements store.Tx on a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetList(ctx context.Context, id string) (*model.List, error) {
	query := `SELECT ` + listColumns + ` FROM lists WHERE id = $1 FOR UPDATE`
	return scanList(t.tx.QueryRow(ctx, query, id))
}

func (t *pgTx) CreateList(ctx context.Context, l *model.List) (string, error) {
	id := ulid.Make().String()
	tasks := l.Tasks
	if tasks == nil {
		tasks = []string{}
	}

	query := `
		INSERT INTO lists (id, alias, members, tasks, created_by, created_at, vonage_number)
		VALUES ($1, $2, $3, $4, $5, now(), $6)
		RETURNING created_at
	`
	err := t.tx.QueryRow(ctx, query,
		id,
		l.Alias,
		l.Members,
		tasks,
		l.CreatedBy,
		l.VonageNumber,
	).Scan(&l.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to create list: %w", err)
	}

	l.ID = id
	return id, nil
}

func (t *pgTx) AddListMember(ctx context.Context, listID, phone string) error {
	query := `
		UPDATE lists SET members =
			CASE WHEN $2::text = ANY(members) THEN members
			     ELSE array_append(members, $2::text) END
		WHERE id = $1
	`
	return t.execList(ctx, "add list member", query, listID, phone)
}

func (t *pgTx) RemoveListMember(ctx context.Context, listID, phone string) error {
	query := `UPDATE lists SET members = array_remove(members, $2::text) WHERE id = $1`
	return t.execList(ctx, "remove list member", query, listID, phone)
}

func (t *pgTx) AddUserList(ctx context.Context, phone, listID string) error {
	if _, err := t.tx.Exec(ctx, addUserListQuery, phone, listID); err != nil {
		return fmt.Errorf("failed to add user list: %w", err)
	}
	return nil
}

func (t *pgTx) RemoveUserList(ctx context.Context, phone, listID string) error {
	if _, err := t.tx.Exec(ctx, removeUserListQuery, phone, listID); err != nil {
		return fmt.Errorf("failed to remove user list: %w", err)
	}
	return nil
}

func (t *pgTx) execList(ctx context.Context, op, query, listID, phone string) error {
	tag, err := t.tx.Exec(ctx, query, listID, phone)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrListNotFound
	}
	return nil
}

func scanList(row pgx.Row) (*model.List, error) {
	var l model.List
	err := row.Scan(
		&l.ID,
		&l.Alias,
		&l.Members,
		&l.Tasks,
		&l.CreatedBy,
		&l.CreatedAt,
		&l.VonageNumber,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrListNotFound
		}
		return nil, fmt.Errorf("failed to scan list: %w", err)
	}
	return &l, nil
}
