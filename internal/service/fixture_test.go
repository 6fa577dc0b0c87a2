package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smstodo/smstodo/internal/alias"
	"github.com/smstodo/smstodo/internal/metrics"
	"github.com/smstodo/smstodo/internal/model"
	"github.com/smstodo/smstodo/internal/phone"
	"github.com/smstodo/smstodo/internal/sms"
	"github.com/smstodo/smstodo/internal/store"
	"github.com/smstodo/smstodo/internal/store/memstore"
)

const (
	channel = "+16502530999"
	alice   = "+16502530001"
	bob     = "+16502530002"
	carol   = "+16502530003"
)

type fixture struct {
	t       *testing.T
	store   *memstore.Store
	sender  *sms.DryRunSender
	metrics *metrics.InMemoryRecorder
	svc     *TodoService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, memstore.New(), nil)
}

func newFixtureWith(t *testing.T, st *memstore.Store, sender sms.Sender) *fixture {
	t.Helper()
	dry := sms.NewDryRunSender(nil)
	if sender == nil {
		sender = dry
	}
	rec := metrics.NewInMemory()
	svc := NewTodoService(st, sender, phone.NewNormalizer("US"), nil, rec, Options{
		Aliases: &alias.Generator{
			Adjectives: []string{"mock-adj"},
			Nouns:      []string{"mock-noun"},
			Intn: func(n int) int {
				if n == 9000 {
					return 234
				}
				return 0
			},
		},
		TxBackoff: 1,
	})
	return &fixture{t: t, store: st, sender: dry, metrics: rec, svc: svc}
}

// seed stores a list and the matching user memberships.
func (f *fixture) seed(id, listAlias string, members ...string) {
	f.t.Helper()
	f.store.PutList(&model.List{
		ID:           id,
		Alias:        listAlias,
		Members:      members,
		Tasks:        []string{},
		CreatedBy:    members[0],
		VonageNumber: channel,
	})
	for _, m := range members {
		u, err := f.store.GetUser(context.Background(), m)
		if errors.Is(err, store.ErrUserNotFound) {
			u = &model.User{Phone: m}
		} else {
			require.NoError(f.t, err)
		}
		u.MemberOfLists = append(u.MemberOfLists, id)
		f.store.PutUser(u)
	}
}

func (f *fixture) send(from, text string) *Outcome {
	f.t.Helper()
	out, err := f.svc.HandleMessage(context.Background(), model.InboundMessage{
		From:      from,
		To:        channel,
		Text:      text,
		MessageID: "msg-test",
	})
	require.NoError(f.t, err)
	return out
}

func (f *fixture) list(id string) *model.List {
	f.t.Helper()
	l, err := f.store.GetList(context.Background(), id)
	require.NoError(f.t, err)
	return l
}

func (f *fixture) user(phone string) *model.User {
	f.t.Helper()
	u, err := f.store.GetUser(context.Background(), phone)
	if errors.Is(err, store.ErrUserNotFound) {
		return &model.User{Phone: phone}
	}
	require.NoError(f.t, err)
	return u
}

// inbox returns texts sent to phone, in send order.
func (f *fixture) inbox(phone string) []string {
	var texts []string
	for _, m := range f.sender.Messages() {
		if m.To == phone {
			texts = append(texts, m.Text)
		}
	}
	return texts
}
