package broadcast

import (
	"sync"

	"github.com/google/uuid"
)

// Listener is a per-subscriber callback. It returns whether the
// subscriber wishes to remain subscribed; returning false, or panicking,
// evicts the listener. A single subscriber may register the same
// function value more than once — each registration is a distinct
// listener and receives the event once per Fire.
type Listener func(Event) bool

// listenerEntry gives each registration an identity independent of the
// underlying function value, since func values are not comparable in
// Go. id is used only to find and remove an entry after a Fire pass;
// it is never exposed outside this package.
type listenerEntry struct {
	id uint64
	fn Listener
}

// Channel holds the listener set for one channel name and implements
// the fire/subscribe/close lifecycle described in the data model.
// A Channel removed from the registry (via Registry.Remove) is never
// reused: closeChannel followed by a fresh lookup always produces a
// new *Channel with a new ID.
type Channel struct {
	id   uuid.UUID
	name string

	mu        sync.Mutex
	listeners []listenerEntry
	nextID    uint64
	active    bool

	closeOnce sync.Once
	closed    chan struct{}
}

// newChannel creates an active Channel with a fresh ID and no listeners.
func newChannel(name string) *Channel {
	return &Channel{
		id:     uuid.New(),
		name:   name,
		active: true,
		closed: make(chan struct{}),
	}
}

// ID returns the channel's identity. Two lookups of the same name
// return the same ID only while the Channel has not been closed and
// replaced.
func (c *Channel) ID() uuid.UUID {
	return c.id
}

// Name returns the channel's name.
func (c *Channel) Name() string {
	return c.name
}

// Subscribe appends listener to the listener set if the channel is
// still active; otherwise it does nothing. A listener added to a
// closed channel is never invoked (invariant 2).
func (c *Channel) Subscribe(listener Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.nextID++
	c.listeners = append(c.listeners, listenerEntry{id: c.nextID, fn: listener})
}

// Fire broadcasts event to every listener attached at the instant the
// snapshot is taken, in insertion order, delivering to each at most
// once before returning (invariant 3). Listeners that return false or
// panic are evicted; an evicted listener is never invoked again
// (invariant 4). Registering or deregistering listeners from inside a
// listener takes effect on a later Fire, never the one in progress,
// because the invocation pass runs, outside the lock, against a private
// snapshot copied under it. Fire never panics and is a no-op if the channel
// is not active.
func (c *Channel) Fire(event Event) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	snapshot := make([]listenerEntry, len(c.listeners))
	copy(snapshot, c.listeners)
	c.mu.Unlock()

	var evicted map[uint64]struct{}
	for _, entry := range snapshot {
		if !invoke(entry.fn, event) {
			if evicted == nil {
				evicted = make(map[uint64]struct{})
			}
			evicted[entry.id] = struct{}{}
		}
	}
	if len(evicted) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.listeners[:0]
	for _, entry := range c.listeners {
		if _, gone := evicted[entry.id]; !gone {
			kept = append(kept, entry)
		}
	}
	c.listeners = kept
}

// invoke calls fn, converting a panic into a keep-false return so that
// one misbehaving listener never prevents others on the same event
// from being called (isolation).
func invoke(fn Listener, event Event) (keep bool) {
	defer func() {
		if recover() != nil {
			keep = false
		}
	}()
	return fn(event)
}

// Close clears the listener set, marks the channel inactive, and trips
// the one-shot close latch observed by AwaitClose. Idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	c.listeners = nil
	c.active = false
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closed) })
}

// AwaitClose blocks until Close has been invoked.
func (c *Channel) AwaitClose() {
	<-c.closed
}

// Done returns a channel that is closed once Close has been invoked,
// for use in select statements by callers (e.g. the streaming endpoint)
// that need to react to channel closure without blocking.
func (c *Channel) Done() <-chan struct{} {
	return c.closed
}

// ListenerCount returns a best-effort snapshot of the number of
// attached listeners, coherent at some instant between call and return
// (invariant 5).
func (c *Channel) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}
