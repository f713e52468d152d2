// Package presence is the live-push directory: which users currently hold a
// push connection, and a handle to reach each of them. It is populated by
// the transports on connect, cleared on disconnect and queried read-only by
// the services. Delivery is best effort and at most once.
package presence

import (
	"errors"
	"sort"
	"sync"
)

// ErrChannelUnavailable means the event could not be handed to the user's
// connection: it is gone, closed, or its queue is full.
var ErrChannelUnavailable = errors.New("push channel unavailable")

// Handle reaches one live connection.
type Handle interface {
	ID() string
	// Send must not block.
	Send(event string, payload any) error
}

// Directory maps user ids to their current connection. One handle per user;
// the most recent connection wins.
type Directory struct {
	mu       sync.RWMutex
	handles  map[string]Handle
	onChange func(online []string)
}

func NewDirectory() *Directory {
	return &Directory{handles: make(map[string]Handle)}
}

// OnChange registers f to be called with the online user ids after every
// register or unregister. f runs outside the directory lock.
func (d *Directory) OnChange(f func(online []string)) {
	d.mu.Lock()
	d.onChange = f
	d.mu.Unlock()
}

// Register binds userID to h and returns the handle it replaced, if any.
func (d *Directory) Register(userID string, h Handle) (replaced Handle) {
	d.mu.Lock()
	replaced = d.handles[userID]
	d.handles[userID] = h
	d.mu.Unlock()
	d.notify()
	return replaced
}

// Unregister removes userID only while it is still bound to h, so a stale
// disconnect cannot evict a newer connection.
func (d *Directory) Unregister(userID string, h Handle) bool {
	d.mu.Lock()
	current, ok := d.handles[userID]
	removed := ok && current.ID() == h.ID()
	if removed {
		delete(d.handles, userID)
	}
	d.mu.Unlock()
	if removed {
		d.notify()
	}
	return removed
}

// Lookup returns the handle for userID, if connected.
func (d *Directory) Lookup(userID string) (Handle, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handles[userID]
	return h, ok
}

// Online returns the connected user ids, sorted.
func (d *Directory) Online() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.onlineLocked()
}

func (d *Directory) onlineLocked() []string {
	ids := make([]string, 0, len(d.handles))
	for id := range d.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d *Directory) notify() {
	d.mu.RLock()
	f := d.onChange
	online := d.onlineLocked()
	d.mu.RUnlock()
	if f != nil {
		f(online)
	}
}
