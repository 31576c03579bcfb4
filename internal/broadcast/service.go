// Package broadcast implements the channel registry and fan-out engine:
// concurrent creation/lookup of named channels, per-channel listener
// bookkeeping, publish-side broadcasting with at-most-once per-listener
// delivery, and listener eviction on failure or disconnect.
package broadcast

import "log/slog"

// Metrics receives fire-side accounting from Service. Implementations
// must be safe for concurrent use. A nil Metrics is valid; Service
// treats it as a no-op.
type Metrics interface {
	// RecordFire is called once per Broadcast call that found an
	// existing channel and delegated to Channel.Fire.
	RecordFire(channel string)
}

// Service is the public façade publishers and administrators use:
// it validates names and payloads and delegates to a Registry. All
// methods are safe to call from any goroutine.
type Service struct {
	registry *Registry
	logger   *slog.Logger
	metrics  Metrics
}

// ServiceOption configures a Service built by NewService.
type ServiceOption func(*Service)

// WithLogger attaches a logger for trace-level diagnostics. Defaults to
// slog.Default() if not set.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches a Metrics sink for fire accounting.
func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService builds a Service backed by registry.
func NewService(registry *Registry, opts ...ServiceOption) *Service {
	s := &Service{registry: registry, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Registry returns the underlying Registry, for components that need
// direct registry access.
func (s *Service) Registry() *Registry {
	return s.registry
}

// LookupByChannelName validates name and returns its Channel, creating
// one if none exists yet.
func (s *Service) LookupByChannelName(name string) (*Channel, error) {
	if err := ValidateChannelName(name); err != nil {
		return nil, err
	}
	return s.registry.GetOrCreate(name), nil
}

// Broadcast validates name and payload, then fans payload out to every
// listener of the named channel. Publishing to a channel that is not in
// the registry (never looked up, or closed) is a silent no-op: it never
// allocates a Channel, never errors, and records no fire metric. Invalid input is a
// synchronous, programmer-error-class failure.
func (s *Service) Broadcast(name, payload string) error {
	if err := ValidateChannelName(name); err != nil {
		return err
	}
	if err := ValidatePayload(payload); err != nil {
		return err
	}

	ch := s.registry.Get(name)
	if ch == nil {
		s.logger.Debug("broadcast: no subscribers, dropping", "channel", name)
		return nil
	}

	ch.Fire(newEvent(ch.ID(), payload))
	if s.metrics != nil {
		s.metrics.RecordFire(name)
	}
	return nil
}

// GetClientCount returns the listener count for name, or 0 if the
// channel does not exist.
func (s *Service) GetClientCount(name string) int {
	ch := s.registry.Get(name)
	if ch == nil {
		return 0
	}
	return ch.ListenerCount()
}

// GetActiveChannels returns a snapshot of currently registered channel
// names.
func (s *Service) GetActiveChannels() []string {
	return s.registry.Names()
}

// CloseChannel validates name and removes+closes its Channel, if any.
func (s *Service) CloseChannel(name string) error {
	if err := ValidateChannelName(name); err != nil {
		return err
	}
	s.registry.Remove(name)
	return nil
}

// CloseAllChannels closes and removes every channel. Intended for
// process shutdown.
func (s *Service) CloseAllChannels() {
	s.registry.CloseAll()
}
