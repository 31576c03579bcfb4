package broadcast

import "sync"

// Registry maps channel name to Channel. At most one Channel per name
// exists at any instant (invariant 1); concurrent GetOrCreate calls for
// the same name observe the same instance; a removed
// Channel is replaced by a fresh one with a new ID on the next
// GetOrCreate for that name (invariant 6).
type Registry struct {
	mu       sync.Mutex
	channels map[string]*Channel
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]*Channel)}
}

// GetOrCreate returns the existing Channel for name if present,
// otherwise creates, installs, and returns a new one. The create step
// holds the registry lock for its duration, so two concurrent callers
// racing on the same name are linearized and always observe the same
// *Channel.
func (r *Registry) GetOrCreate(name string) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.channels[name]; ok {
		return ch
	}
	ch := newChannel(name)
	r.channels[name] = ch
	return ch
}

// Get returns the Channel for name without creating one, or nil if
// none exists.
func (r *Registry) Get(name string) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channels[name]
}

// Remove detaches the Channel for name from the registry, if present,
// and closes it. Idempotent: removing an absent name does nothing.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	ch, ok := r.channels[name]
	if ok {
		delete(r.channels, name)
	}
	r.mu.Unlock()
	if ok {
		ch.Close()
	}
}

// CloseAll detaches and closes every Channel, leaving the registry
// empty. Intended for process shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	channels := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		channels = append(channels, ch)
	}
	r.channels = make(map[string]*Channel)
	r.mu.Unlock()

	for _, ch := range channels {
		ch.Close()
	}
}

// Names returns a snapshot of the currently registered channel names.
// Insertion order is not preserved.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	return names
}
