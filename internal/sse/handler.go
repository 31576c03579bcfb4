// Package sse implements the subscriber-facing HTTP endpoint: the
// admission/CORS gated state machine that upgrades a GET request into a
// long-lived Server-Sent Events stream bridging one broadcast channel to
// one connection, with a heartbeat to keep intermediaries from timing
// out an otherwise idle stream.
package sse

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/niv0/causeway-extensions-sse-broadcast/internal/admission"
	"github.com/niv0/causeway-extensions-sse-broadcast/internal/broadcast"
	"github.com/niv0/causeway-extensions-sse-broadcast/internal/cors"
)

const defaultHeartbeatInterval = 15 * time.Second

// Metrics receives eviction and HTTP-outcome accounting from Handler. A
// nil Metrics is valid; Handler treats it as a no-op.
type Metrics interface {
	RecordEviction(channel, reason string)
	RecordHTTPStatus(status int)
}

// Handler implements the subscriber endpoint state machine (spec §4.4):
// query validation, CORS, admission, channel resolution, header commit,
// and the streaming loop.
type Handler struct {
	service           *broadcast.Service
	admitter          admission.Admitter
	cors              *cors.Policy
	heartbeatInterval time.Duration
	logger            *slog.Logger
	metrics           Metrics
}

// Option configures a Handler built by NewHandler.
type Option func(*Handler)

// WithHeartbeatInterval overrides the default 15 second heartbeat cadence.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(h *Handler) { h.heartbeatInterval = d }
}

// WithLogger attaches a logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithMetrics attaches a Metrics sink.
func WithMetrics(m Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler builds a Handler serving channel subscriptions out of
// service, gated by admitter and policy.
func NewHandler(service *broadcast.Service, admitter admission.Admitter, policy *cors.Policy, opts ...Option) *Handler {
	h := &Handler{
		service:           service,
		admitter:          admitter,
		cors:              policy,
		heartbeatInterval: defaultHeartbeatInterval,
		logger:            slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// ServeHTTP implements the S0-S7 state machine from spec §4.4.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	applied := h.cors.ApplyHeaders(w, r)
	if !applied && r.Header.Get("Origin") != "" {
		h.logger.Warn("cors: origin not on allow-list", "origin", r.Header.Get("Origin"))
	}

	if r.Method == http.MethodOptions {
		h.recordStatus(http.StatusOK)
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		h.recordStatus(http.StatusMethodNotAllowed)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	channelName := r.URL.Query().Get("channel")
	if channelName == "" {
		h.recordStatus(http.StatusBadRequest)
		http.Error(w, "Missing channel parameter", http.StatusBadRequest)
		return
	}

	err := h.admitter.Authorize(r, func(req *http.Request) error {
		return h.stream(w, req, channelName)
	})
	if err == nil {
		return
	}

	if admission.IsDenied(err) {
		h.denyAuth(w, err)
		return
	}

	h.logger.Error("sse: channel resolution failed", "channel", channelName, "error", err)
	h.recordStatus(http.StatusInternalServerError)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (h *Handler) denyAuth(w http.ResponseWriter, err error) {
	h.recordStatus(http.StatusUnauthorized)
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
}

// stream resolves the channel, commits SSE headers, registers a
// listener bridging channel events to the response, and runs the
// heartbeat loop until the client disconnects, the listener is evicted,
// or the channel is closed.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request, channelName string) error {
	ch, err := h.service.LookupByChannelName(channelName)
	if err != nil {
		return err
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming not supported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache,no-store")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	h.recordStatus(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var writeMu sync.Mutex

	listener := func(e broadcast.Event) (keep bool) {
		writeMu.Lock()
		defer writeMu.Unlock()
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", e.Payload); err != nil {
			h.recordEviction(channelName, "write_error")
			cancel()
			return false
		}
		flusher.Flush()
		return true
	}
	ch.Subscribe(listener)

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch.Done():
			cancel()
			return nil
		case <-heartbeat.C:
			writeMu.Lock()
			_, werr := fmt.Fprint(w, ": heartbeat\n\n")
			writeMu.Unlock()
			if werr != nil {
				h.recordEviction(channelName, "write_error")
				cancel()
				return nil
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) recordStatus(status int) {
	if h.metrics != nil {
		h.metrics.RecordHTTPStatus(status)
	}
}

func (h *Handler) recordEviction(channel, reason string) {
	if h.metrics != nil {
		h.metrics.RecordEviction(channel, reason)
	}
}
