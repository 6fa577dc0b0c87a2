// Package memstore is an in-memory store.Store used by tests and the local simulator.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smstodo/smstodo/internal/model"
	"github.com/smstodo/smstodo/internal/store"
)

type state struct {
	lists map[string]*model.List
	users map[string]*model.User
}

func (s state) clone() state {
	c := state{
		lists: make(map[string]*model.List, len(s.lists)),
		users: make(map[string]*model.User, len(s.users)),
	}
	for k, v := range s.lists {
		c.lists[k] = v.Clone()
	}
	for k, v := range s.users {
		c.users[k] = cloneUser(v)
	}
	return c
}

func cloneUser(u *model.User) *model.User {
	return &model.User{Phone: u.Phone, MemberOfLists: slices.Clone(u.MemberOfLists)}
}

// Store keeps all documents in memory. Transactions are serialized and work
// on a copy of the state that is swapped in on commit. Every write bumps
// version; a transaction whose snapshot is stale at commit fails with
// store.ErrConflict instead of overwriting the newer state.
type Store struct {
	mu      sync.RWMutex
	txMu    sync.Mutex
	state   state
	version uint64
	now     func() time.Time

	failNext int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		state: state{lists: map[string]*model.List{}, users: map[string]*model.User{}},
		now:   time.Now,
	}
}

var _ store.Store = (*Store)(nil)

// FailNextTx makes the next n transactions abort with store.ErrConflict
// after fn has run, as if a concurrent writer committed first.
func (s *Store) FailNextTx(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// PutList stores a copy of l as is. Intended for seeding.
func (s *Store) PutList(l *model.List) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.lists[l.ID] = l.Clone()
	s.version++
}

// PutUser stores a copy of u as is. Intended for seeding.
func (s *Store) PutUser(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[u.Phone] = cloneUser(u)
	s.version++
}

// DeleteList removes a list document without touching memberships.
func (s *Store) DeleteList(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.lists, id)
	s.version++
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) GetUser(_ context.Context, phone string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.state.users[phone]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) GetList(_ context.Context, id string) (*model.List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.state.lists[id]
	if !ok {
		return nil, store.ErrListNotFound
	}
	return l.Clone(), nil
}

func (s *Store) GetLists(_ context.Context, ids []string) ([]*model.List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.List, 0, len(ids))
	for _, id := range ids {
		if l, ok := s.state.lists[id]; ok {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

func (s *Store) AppendTask(_ context.Context, listID, task string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.state.lists[listID]
	if !ok {
		return store.ErrListNotFound
	}
	l.Tasks = append(l.Tasks, task)
	s.version++
	return nil
}

func (s *Store) RemoveTask(_ context.Context, listID, task string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.state.lists[listID]
	if !ok {
		return false, store.ErrListNotFound
	}
	i := slices.Index(l.Tasks, task)
	if i < 0 {
		return false, nil
	}
	l.Tasks = slices.Delete(l.Tasks, i, i+1)
	s.version++
	return true, nil
}

func (s *Store) RenameList(_ context.Context, listID, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.state.lists[listID]
	if !ok {
		return store.ErrListNotFound
	}
	l.Alias = alias
	s.version++
	return nil
}

// RunInTx implements store.Store.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.state.clone()
	base := s.version
	s.mu.RUnlock()

	tx := &memTx{state: work, now: s.now}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return store.ErrConflict
	}
	if s.version != base {
		return store.ErrConflict
	}
	s.state = work
	s.version++
	return nil
}

type memTx struct {
	state state
	now   func() time.Time
}

func (t *memTx) GetList(_ context.Context, id string) (*model.List, error) {
	l, ok := t.state.lists[id]
	if !ok {
		return nil, store.ErrListNotFound
	}
	return l.Clone(), nil
}

func (t *memTx) CreateList(_ context.Context, l *model.List) (string, error) {
	c := l.Clone()
	c.ID = ulid.Make().String()
	c.CreatedAt = t.now().UTC()
	if c.Tasks == nil {
		c.Tasks = []string{}
	}
	t.state.lists[c.ID] = c
	l.ID, l.CreatedAt = c.ID, c.CreatedAt
	return c.ID, nil
}

func (t *memTx) AddListMember(_ context.Context, listID, phone string) error {
	l, ok := t.state.lists[listID]
	if !ok {
		return store.ErrListNotFound
	}
	if !slices.Contains(l.Members, phone) {
		l.Members = append(l.Members, phone)
	}
	return nil
}

func (t *memTx) RemoveListMember(_ context.Context, listID, phone string) error {
	l, ok := t.state.lists[listID]
	if !ok {
		return store.ErrListNotFound
	}
	l.Members = slices.DeleteFunc(l.Members, func(m string) bool { return m == phone })
	return nil
}

func (t *memTx) AddUserList(_ context.Context, phone, listID string) error {
	u, ok := t.state.users[phone]
	if !ok {
		u = &model.User{Phone: phone}
		t.state.users[phone] = u
	}
	if !slices.Contains(u.MemberOfLists, listID) {
		u.MemberOfLists = append(u.MemberOfLists, listID)
	}
	return nil
}

func (t *memTx) RemoveUserList(_ context.Context, phone, listID string) error {
	u, ok := t.state.users[phone]
	if !ok {
		return nil
	}
	u.MemberOfLists = slices.DeleteFunc(u.MemberOfLists, func(id string) bool { return id == listID })
	return nil
}
