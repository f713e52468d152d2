package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"chat_server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRequestToSelfFails(t *testing.T) {
	f := newFixture(t, "alice")
	for _, u := range []string{"alice", "ghost"} {
		_, err := f.requests.SendRequest(context.Background(), u, u)
		assert.ErrorIs(t, err, ErrSelfRequest)
		assert.Equal(t, "Cannot send request to yourself", err.Error())
	}
}

func TestSendRequestUnknownReceiver(t *testing.T) {
	f := newFixture(t, "alice")
	_, err := f.requests.SendRequest(context.Background(), "alice", "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 404, HTTPStatus(err))
}

func TestSendRequestCreatesPendingAndNotifies(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	req, err := f.requests.SendRequest(context.Background(), "alice", "bob")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, req.Status)
	assert.Equal(t, "alice", req.RequestedBy())
	assert.Equal(t, "bob", req.ReceiverID)
	assert.Equal(t, models.PairKey("alice", "bob"), req.PairKey)

	pushes := f.presence.pushes()
	require.Len(t, pushes, 1)
	assert.Equal(t, "bob", pushes[0].user)
	assert.Equal(t, models.EventNewChatRequest, pushes[0].event)
	ev := pushes[0].payload.(models.RequestEvent)
	assert.Equal(t, req.ID, ev.ID)
	assert.Equal(t, models.StatusPending, ev.Status)
}

func TestDuplicateRequestConflicts(t *testing.T) {
	tests := []struct {
		name             string
		sender, receiver string
	}{
		{"same direction", "alice", "bob"},
		{"reverse direction", "bob", "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "alice", "bob")
			ctx := context.Background()
			first, err := f.requests.SendRequest(ctx, "alice", "bob")
			require.NoError(t, err)

			_, err = f.requests.SendRequest(ctx, tt.sender, tt.receiver)
			assert.ErrorIs(t, err, ErrConflict)
			assert.Equal(t, "Request already pending", err.Error())

			stored, err := f.backend.Connections.GetByID(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, models.StatusPending, stored.Status)
			assert.Equal(t, "alice", stored.SenderID)
		})
	}
}

func TestAcceptIsSymmetricAndTerminal(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()
	req, err := f.requests.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	accepted, err := f.requests.AcceptRequest(ctx, "bob", req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, accepted.Status)
	assert.Equal(t, "alice", accepted.SenderID, "direction is kept")

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		ok, err := f.requests.IsAccepted(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, ok)
	}

	_, err = f.requests.SendRequest(ctx, "bob", "alice")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "You are already connected with this user", err.Error())

	_, err = f.requests.RejectRequest(ctx, "bob", req.ID)
	assert.ErrorIs(t, err, ErrConflict)

	last := f.presence.pushes()
	require.Len(t, last, 2)
	assert.Equal(t, "alice", last[1].user)
	assert.Equal(t, models.EventChatRequestAccepted, last[1].event)
}

func TestOnlyReceiverMayDecide(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()
	req, err := f.requests.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	tests := []struct {
		name string
		do   func(ctx context.Context, user, id string) (*models.ChatRequest, error)
	}{
		{"accept", f.requests.AcceptRequest},
		{"reject", f.requests.RejectRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, actor := range []string{"alice", "carol"} {
				_, err := tt.do(ctx, actor, req.ID)
				assert.ErrorIs(t, err, ErrForbidden, actor)
				assert.Equal(t, 403, HTTPStatus(err))
			}
			_, err := tt.do(ctx, "bob", "no-such-request")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}

	stored, err := f.backend.Connections.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestRejectThenReRequestReusesRecord(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()
	req, err := f.requests.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	rejected, err := f.requests.RejectRequest(ctx, "bob", req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)

	ok, err := f.requests.IsAccepted(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := f.requests.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, req.ID, again.ID)
	assert.Equal(t, models.StatusPending, again.Status)
	assert.True(t, again.CreatedAt.Equal(req.CreatedAt))

	all, err := f.backend.Connections.ListByUser(ctx, "alice", "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRejectedPairCanBeRevivedByEitherParty(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()
	req, err := f.requests.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = f.requests.RejectRequest(ctx, "bob", req.ID)
	require.NoError(t, err)

	revived, err := f.requests.SendRequest(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, req.ID, revived.ID)
	assert.Equal(t, "bob", revived.SenderID)
	assert.Equal(t, "alice", revived.ReceiverID)

	// Direction flipped, so now alice decides and bob may not.
	_, err = f.requests.AcceptRequest(ctx, "bob", req.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.requests.AcceptRequest(ctx, "alice", req.ID)
	require.NoError(t, err)
}

func TestConcurrentRequestsSingleWinner(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	const n = 40
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		others    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender, receiver := "alice", "bob"
			if i%2 == 1 {
				sender, receiver = receiver, sender
			}
			_, err := f.requests.SendRequest(ctx, sender, receiver)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			if !errors.Is(err, ErrConflict) {
				others = append(others, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Empty(t, others)

	for _, u := range []string{"alice", "bob"} {
		recs, err := f.backend.Connections.ListByUser(ctx, u, "")
		require.NoError(t, err)
		assert.Len(t, recs, 1)
	}
}

func TestNotificationFailureNeverFailsTransition(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()
	f.presence.failing["bob"] = true
	delete(f.presence.online, "carol")

	req, err := f.requests.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = f.requests.SendRequest(ctx, "alice", "carol")
	require.NoError(t, err)
	_, err = f.requests.AcceptRequest(ctx, "bob", req.ID)
	require.NoError(t, err)

	pushes := f.presence.pushes()
	require.Len(t, pushes, 1, "only alice's accept event is delivered")
	assert.Equal(t, models.EventChatRequestAccepted, pushes[0].event)

	f.requests.Presence = nil
	_, err = f.requests.SendRequest(ctx, "bob", "carol")
	require.NoError(t, err)
}

func TestListPendingAndAccepted(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol", "dave")
	ctx := context.Background()

	toBob, err := f.requests.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = f.requests.SendRequest(ctx, "carol", "alice")
	require.NoError(t, err)
	toDave, err := f.requests.SendRequest(ctx, "alice", "dave")
	require.NoError(t, err)
	_, err = f.requests.AcceptRequest(ctx, "dave", toDave.ID)
	require.NoError(t, err)

	pending, err := f.requests.ListPending(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	var incoming, outgoing int
	for _, p := range pending {
		if p.ReceiverID == "alice" {
			incoming++
			assert.Equal(t, "carol", p.Sender.ID)
		} else {
			outgoing++
			assert.Equal(t, toBob.ID, p.ID)
			assert.Equal(t, "bob", p.Receiver.FullName)
		}
	}
	assert.Equal(t, 1, incoming)
	assert.Equal(t, 1, outgoing)

	accepted, err := f.requests.ListAccepted(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, "dave", accepted[0].ID)

	back, err := f.requests.ListAccepted(ctx, "dave")
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, "alice", back[0].ID)
}

func TestScenarioRequestRejectMessageReRequest(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx := context.Background()
	send := func() error {
		_, err := f.messages.SendMessage(ctx, "a", "b", SendMessageInput{Text: "hi"})
		return err
	}

	req, err := f.requests.SendRequest(ctx, "a", "b")
	require.NoError(t, err)
	assert.ErrorIs(t, send(), ErrForbidden)

	_, err = f.requests.RejectRequest(ctx, "b", req.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, send(), ErrForbidden)

	again, err := f.requests.SendRequest(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, req.ID, again.ID)

	_, err = f.requests.AcceptRequest(ctx, "b", req.ID)
	require.NoError(t, err)
	require.NoError(t, send())
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		outcome string
		message string
	}{
		{newError(ErrSelfRequest, "x"), 400, "self_request", "x"},
		{newError(ErrConflict, "y"), 400, "conflict", "y"},
		{newError(ErrInvalid, "z"), 400, "invalid", "z"},
		{newError(ErrNotFound, "n"), 404, "not_found", "n"},
		{newError(ErrForbidden, "f"), 403, "forbidden", "f"},
		{fmt.Errorf("wrapped: %w", newError(ErrForbidden, "f")), 403, "forbidden", "f"},
		{errors.New("boom"), 500, "error", "Internal server error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, HTTPStatus(tt.err), tt.err.Error())
		assert.Equal(t, tt.outcome, Outcome(tt.err))
		assert.Equal(t, tt.message, UserMessage(tt.err))
	}
}
