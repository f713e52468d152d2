package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"chat_server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	users    []models.PublicUser
	pending  []models.ChatRequestView
	accepted []models.PublicUser
	calls    map[string]int
	gates    map[int]chan struct{} // Pending call n waits on gates[n]
	failSend error
}

func newFakeSource() *fakeSource {
	return &fakeSource{calls: map[string]int{}}
}

func (f *fakeSource) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeSource) Users(ctx context.Context) ([]models.PublicUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["users"]++
	return append([]models.PublicUser(nil), f.users...), nil
}

func (f *fakeSource) Pending(ctx context.Context) ([]models.ChatRequestView, error) {
	f.mu.Lock()
	f.calls["pending"]++
	out := append([]models.ChatRequestView(nil), f.pending...)
	gate := f.gates[f.calls["pending"]]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

func (f *fakeSource) Accepted(ctx context.Context) ([]models.PublicUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["accepted"]++
	return append([]models.PublicUser(nil), f.accepted...), nil
}

func (f *fakeSource) SendRequest(ctx context.Context, receiverID string) (*models.ChatRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["send"]++
	if f.failSend != nil {
		return nil, f.failSend
	}
	req := pendingView("new", "me", receiverID)
	f.pending = append(f.pending, req)
	return &req.ChatRequest, nil
}

func (f *fakeSource) AcceptRequest(ctx context.Context, requestID string) (*models.ChatRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.pending {
		if p.ID == requestID {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			f.accepted = append(f.accepted, p.Sender)
			p.Status = models.StatusAccepted
			return &p.ChatRequest, nil
		}
	}
	return nil, &APIError{Status: 404, Message: "Request not found"}
}

func (f *fakeSource) RejectRequest(ctx context.Context, requestID string) (*models.ChatRequest, error) {
	return nil, &APIError{Status: 403, Message: "Not authorized"}
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestViewRefreshAndCompose(t *testing.T) {
	src := newFakeSource()
	src.users = []models.PublicUser{user("bob"), user("carol"), user("dave")}
	src.pending = []models.ChatRequestView{pendingView("r1", "bob", "me"), pendingView("r2", "me", "carol")}
	v := NewView(src, "me", quietLogger())
	ctx := context.Background()

	require.NoError(t, v.Refresh(ctx))

	ok, why := v.CanCompose("bob")
	assert.False(t, ok)
	assert.Equal(t, "Accept their chat request to start messaging", why)
	ok, why = v.CanCompose("carol")
	assert.False(t, ok)
	assert.Equal(t, "Waiting for them to accept your chat request", why)
	ok, _ = v.CanCompose("dave")
	assert.False(t, ok)

	require.NoError(t, v.AcceptRequest(ctx, "r1"))
	ok, why = v.CanCompose("bob")
	assert.True(t, ok)
	assert.Empty(t, why)
	assert.Equal(t, BucketAccepted, v.Buckets().Of("bob"))
}

func TestViewFailedActionLeavesState(t *testing.T) {
	src := newFakeSource()
	src.users = []models.PublicUser{user("bob")}
	src.failSend = &APIError{Status: 400, Message: "Request already pending"}
	v := NewView(src, "me", quietLogger())
	ctx := context.Background()
	require.NoError(t, v.Refresh(ctx))
	before := src.count("pending")

	err := v.SendRequest(ctx, "bob")
	require.Error(t, err)
	assert.Equal(t, "Request already pending", Describe(err))
	assert.Equal(t, BucketDiscoverable, v.Buckets().Of("bob"))
	assert.Equal(t, before, src.count("pending"), "no refetch after a failed action")

	err = v.RejectRequest(ctx, "r9")
	assert.Equal(t, "Not authorized", Describe(err))
}

func TestViewIgnoresStaleFetch(t *testing.T) {
	src := newFakeSource()
	src.pending = []models.ChatRequestView{pendingView("old", "bob", "me")}
	src.gates = map[int]chan struct{}{1: make(chan struct{}), 2: make(chan struct{})}
	v := NewView(src, "me", quietLogger())
	ctx := context.Background()

	// A slow fetch starts first and sees the old state.
	slow := make(chan error, 1)
	go func() { slow <- v.RefreshPending(ctx) }()
	require.Eventually(t, func() bool { return src.count("pending") == 1 }, time.Second, time.Millisecond)

	// A newer fetch sees the cleared list and completes first.
	src.mu.Lock()
	src.pending = nil
	src.mu.Unlock()
	fast := make(chan error, 1)
	go func() { fast <- v.RefreshPending(ctx) }()
	require.Eventually(t, func() bool { return src.count("pending") == 2 }, time.Second, time.Millisecond)

	close(src.gates[2])
	require.NoError(t, <-fast)
	close(src.gates[1])
	require.NoError(t, <-slow)

	assert.Empty(t, v.Buckets().Incoming, "older response must not overwrite newer")
}

func TestViewHandleEventTargetsLists(t *testing.T) {
	src := newFakeSource()
	v := NewView(src, "me", quietLogger())
	ctx := context.Background()

	require.NoError(t, v.HandleEvent(ctx, models.EventNewChatRequest))
	assert.Equal(t, 1, src.count("pending"))
	assert.Equal(t, 0, src.count("accepted"))

	require.NoError(t, v.HandleEvent(ctx, models.EventChatRequestAccepted))
	assert.Equal(t, 2, src.count("pending"))
	assert.Equal(t, 1, src.count("accepted"))

	require.NoError(t, v.HandleEvent(ctx, models.EventChatRequestRejected))
	assert.Equal(t, 3, src.count("pending"))

	require.NoError(t, v.HandleEvent(ctx, models.EventOnlineUsers))
	assert.Equal(t, 0, src.count("users"))
}

func TestViewRunStopsOnCancel(t *testing.T) {
	src := newFakeSource()
	v := NewView(src, "me", quietLogger())
	var updates int
	var mu sync.Mutex
	v.OnChange(func(Buckets) {
		mu.Lock()
		updates++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return src.count("users") >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}

	calls := src.count("users")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, src.count("users"), "no polling after cancel")
	mu.Lock()
	assert.Positive(t, updates)
	mu.Unlock()
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&APIError{Status: 400, Message: "Cannot send request to yourself"}, "Cannot send request to yourself"},
		{&APIError{Status: 403}, "You are not allowed to do that"},
		{&APIError{Status: 404}, "Not found"},
		{&APIError{Status: 500, Message: "Internal server error"}, "Something went wrong, try again"},
		{context.DeadlineExceeded, "Request timed out, try again"},
		{errors.New("dial tcp: refused"), "Could not reach the server"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Describe(tt.err))
	}
}
