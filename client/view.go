package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chat_server/models"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultPollInterval matches the browser client's pending-request poll.
const DefaultPollInterval = 3 * time.Second

// Source is the slice of APIClient a View reads and acts through.
type Source interface {
	Users(ctx context.Context) ([]models.PublicUser, error)
	Pending(ctx context.Context) ([]models.ChatRequestView, error)
	Accepted(ctx context.Context) ([]models.PublicUser, error)
	SendRequest(ctx context.Context, receiverID string) (*models.ChatRequest, error)
	AcceptRequest(ctx context.Context, requestID string) (*models.ChatRequest, error)
	RejectRequest(ctx context.Context, requestID string) (*models.ChatRequest, error)
}

type list int

const (
	listUsers list = iota
	listPending
	listAccepted
	numLists
)

// View is one user's local read model. Each list carries a fetch sequence:
// a response is applied only if no later fetch of the same list has already
// been applied, so a slow poll cannot overwrite a fresher push refetch.
type View struct {
	source  Source
	viewer  string
	logger  *slog.Logger
	limiter *rate.Limiter

	mu       sync.Mutex
	users    []models.PublicUser
	pending  []models.ChatRequestView
	accepted []models.PublicUser
	issued   [numLists]uint64
	applied  [numLists]uint64
	onChange func(Buckets)
}

// NewView returns an empty view for viewer. Push-triggered refetches are
// limited to a few per second.
func NewView(source Source, viewer string, logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	return &View{
		source:  source,
		viewer:  viewer,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(5), 3),
	}
}

// OnChange registers f to receive the buckets after every applied update.
func (v *View) OnChange(f func(Buckets)) {
	v.mu.Lock()
	v.onChange = f
	v.mu.Unlock()
}

// Buckets projects the current state.
func (v *View) Buckets() Buckets {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Project(v.viewer, v.users, v.pending, v.accepted)
}

func (v *View) begin(l list) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.issued[l]++
	return v.issued[l]
}

// apply stores data for l if seq is newer than what is applied and reports
// whether it did.
func (v *View) apply(l list, seq uint64, set func()) bool {
	v.mu.Lock()
	if seq <= v.applied[l] {
		v.mu.Unlock()
		return false
	}
	v.applied[l] = seq
	set()
	f := v.onChange
	b := Project(v.viewer, v.users, v.pending, v.accepted)
	v.mu.Unlock()
	if f != nil {
		f(b)
	}
	return true
}

func (v *View) RefreshUsers(ctx context.Context) error {
	seq := v.begin(listUsers)
	users, err := v.source.Users(ctx)
	if err != nil {
		return err
	}
	v.apply(listUsers, seq, func() { v.users = users })
	return nil
}

func (v *View) RefreshPending(ctx context.Context) error {
	seq := v.begin(listPending)
	pending, err := v.source.Pending(ctx)
	if err != nil {
		return err
	}
	v.apply(listPending, seq, func() { v.pending = pending })
	return nil
}

func (v *View) RefreshAccepted(ctx context.Context) error {
	seq := v.begin(listAccepted)
	accepted, err := v.source.Accepted(ctx)
	if err != nil {
		return err
	}
	v.apply(listAccepted, seq, func() { v.accepted = accepted })
	return nil
}

// Refresh fetches all three lists concurrently.
func (v *View) Refresh(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return v.RefreshUsers(ctx) })
	g.Go(func() error { return v.RefreshPending(ctx) })
	g.Go(func() error { return v.RefreshAccepted(ctx) })
	return g.Wait()
}

// HandleEvent refetches the lists a push event affects. Unknown events are
// ignored.
func (v *View) HandleEvent(ctx context.Context, event string) error {
	var refetch []func(context.Context) error
	switch event {
	case models.EventNewChatRequest, models.EventChatRequestRejected:
		refetch = []func(context.Context) error{v.RefreshPending}
	case models.EventChatRequestAccepted:
		refetch = []func(context.Context) error{v.RefreshAccepted, v.RefreshPending}
	default:
		return nil
	}
	if err := v.limiter.Wait(ctx); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, f := range refetch {
		f := f
		g.Go(func() error { return f(ctx) })
	}
	return g.Wait()
}

// Run refreshes immediately and then every interval until ctx is done.
func (v *View) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if err := v.Refresh(ctx); err != nil && ctx.Err() == nil {
		v.logger.Warn("refresh failed", "error", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := v.Refresh(ctx); err != nil && ctx.Err() == nil {
				v.logger.Warn("refresh failed", "error", err)
			}
		}
	}
}

// CanCompose reports whether the viewer may message counterpartID and, if
// not, why.
func (v *View) CanCompose(counterpartID string) (bool, string) {
	switch v.Buckets().Of(counterpartID) {
	case BucketAccepted:
		return true, ""
	case BucketIncoming:
		return false, "Accept their chat request to start messaging"
	case BucketOutgoing:
		return false, "Waiting for them to accept your chat request"
	}
	return false, "Send a chat request to start messaging"
}

// SendRequest asks the server first and only then refetches.
func (v *View) SendRequest(ctx context.Context, receiverID string) error {
	if _, err := v.source.SendRequest(ctx, receiverID); err != nil {
		return err
	}
	return v.RefreshPending(ctx)
}

func (v *View) AcceptRequest(ctx context.Context, requestID string) error {
	if _, err := v.source.AcceptRequest(ctx, requestID); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return v.RefreshPending(gctx) })
	g.Go(func() error { return v.RefreshAccepted(gctx) })
	return g.Wait()
}

func (v *View) RejectRequest(ctx context.Context, requestID string) error {
	if _, err := v.source.RejectRequest(ctx, requestID); err != nil {
		return err
	}
	return v.RefreshPending(ctx)
}
