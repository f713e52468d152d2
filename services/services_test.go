package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"chat_server/models"
	"chat_server/presence"
	"chat_server/stores"

	"github.com/stretchr/testify/require"
)

type pushed struct {
	user    string
	event   string
	payload any
}

// fakePresence records pushes per user. Users listed in failing have a
// channel that always errors.
type fakePresence struct {
	mu      sync.Mutex
	online  map[string]bool
	failing map[string]bool
	events  []pushed
}

func newFakePresence(online ...string) *fakePresence {
	f := &fakePresence{online: map[string]bool{}, failing: map[string]bool{}}
	for _, u := range online {
		f.online[u] = true
	}
	return f
}

type fakeHandle struct {
	f    *fakePresence
	user string
}

func (h fakeHandle) ID() string { return "conn-" + h.user }

func (h fakeHandle) Send(event string, payload any) error {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	if h.f.failing[h.user] {
		return presence.ErrChannelUnavailable
	}
	h.f.events = append(h.f.events, pushed{h.user, event, payload})
	return nil
}

func (f *fakePresence) Lookup(userID string) (presence.Handle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.online[userID] && !f.failing[userID] {
		return nil, false
	}
	return fakeHandle{f, userID}, true
}

func (f *fakePresence) pushes() []pushed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pushed(nil), f.events...)
}

type fixture struct {
	backend  *stores.Backend
	presence *fakePresence
	requests *ChatRequestService
	messages *MessageService
	users    *UserService
}

func newFixture(t *testing.T, userIDs ...string) *fixture {
	t.Helper()
	db, err := stores.OpenBadger(stores.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	backend := stores.NewBadgerBackend(db)

	ctx := context.Background()
	for _, id := range userIDs {
		require.NoError(t, backend.Users.Put(ctx, models.User{UserID: id, FullName: id, PasswordHash: "hash-" + id}))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := newFakePresence(userIDs...)
	requests := &ChatRequestService{
		Connections: backend.Connections,
		Users:       backend.Users,
		Presence:    p,
		Logger:      logger,
	}
	return &fixture{
		backend:  backend,
		presence: p,
		requests: requests,
		messages: &MessageService{Messages: backend.Messages, Requests: requests, Presence: p, Logger: logger},
		users:    &UserService{Users: backend.Users},
	}
}
