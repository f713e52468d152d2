package presence

import (
	"log/slog"
	"sync"
)

// DefaultOutboxSize is the per-connection queue length.
const DefaultOutboxSize = 16

// DeliverFunc writes one event to the underlying connection.
type DeliverFunc func(event string, payload any) error

type envelope struct {
	event   string
	payload any
}

// Outbox is a Handle backed by a bounded queue and a single writer
// goroutine. Send never blocks; when the queue is full the event is dropped.
type Outbox struct {
	id      string
	queue   chan envelope
	deliver DeliverFunc
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewOutbox starts the writer goroutine. Close stops it.
func NewOutbox(id string, size int, deliver DeliverFunc, logger *slog.Logger) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &Outbox{
		id:      id,
		queue:   make(chan envelope, size),
		deliver: deliver,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go o.run()
	return o
}

func (o *Outbox) ID() string { return o.id }

// Send enqueues an event for delivery.
func (o *Outbox) Send(event string, payload any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrChannelUnavailable
	}
	select {
	case o.queue <- envelope{event: event, payload: payload}:
		return nil
	default:
		return ErrChannelUnavailable
	}
}

// Close stops accepting events. Queued events are discarded.
func (o *Outbox) Close() {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.done)
	}
	o.mu.Unlock()
}

// Done is closed once Close has been called.
func (o *Outbox) Done() <-chan struct{} { return o.done }

func (o *Outbox) run() {
	for {
		select {
		case <-o.done:
			return
		case env := <-o.queue:
			if err := o.deliver(env.event, env.payload); err != nil {
				o.logger.Debug("push delivery failed", "conn", o.id, "event", env.event, "error", err)
			}
		}
	}
}
