// Package adminapi implements the operational HTTP surface: broadcast
// and channel introspection routes, gated by the same admission adapter
// as the public subscriber endpoint, plus open version/health endpoints.
package adminapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/niv0/causeway-extensions-sse-broadcast/internal/admission"
	"github.com/niv0/causeway-extensions-sse-broadcast/internal/broadcast"
	"github.com/niv0/causeway-extensions-sse-broadcast/internal/buildinfo"
)

func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("adminapi: failed to write JSON response", "error", err)
	}
}

// Server holds the administrative handlers. Register wires them onto an
// existing mux rather than owning an http.Server, since the admin
// surface shares a listener with whatever mux the caller builds.
type Server struct {
	service  *broadcast.Service
	admitter admission.Admitter
	logger   *slog.Logger
}

// NewServer builds a Server backed by service, gating every admin
// operation through admitter.
func NewServer(service *broadcast.Service, admitter admission.Admitter, logger *slog.Logger) *Server {
	return &Server{service: service, admitter: admitter, logger: logger}
}

// Register installs the admin and status routes onto mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /admin/broadcast", s.authorize(s.handleBroadcast))
	mux.HandleFunc("GET /admin/channels", s.authorize(s.handleListChannels))
	mux.HandleFunc("GET /admin/channels/{name}/count", s.authorize(s.handleChannelCount))
	mux.HandleFunc("DELETE /admin/channels/{name}", s.authorize(s.handleCloseChannel))
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
}

// authorize wraps an admin handler so it runs only once the configured
// Admitter has resolved the caller's identity.
func (s *Server) authorize(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.admitter.Authorize(r, func(req *http.Request) error {
			next(w, req)
			return nil
		})
		if err != nil && admission.IsDenied(err) {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSON(w, map[string]string{"error": err.Error()}, s.logger)
		}
	}
}

type broadcastRequest struct {
	Channel string `json:"channel"`
	Payload string `json:"payload"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]string{"error": "invalid request body"}, s.logger)
		return
	}

	if err := s.service.Broadcast(req.Channel, req.Payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]string{"error": err.Error()}, s.logger)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"channels": s.service.GetActiveChannels()}, s.logger)
}

func (s *Server) handleChannelCount(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	writeJSON(w, map[string]any{"channel": name, "count": s.service.GetClientCount(name)}, s.logger)
}

func (s *Server) handleCloseChannel(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.service.CloseChannel(name); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]string{"error": err.Error()}, s.logger)
		return
	}
	writeJSON(w, map[string]string{"status": "closed"}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, buildinfo.RuntimeInfo(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := buildinfo.RuntimeInfo()
	info["status"] = "healthy"
	writeJSON(w, info, s.logger)
}
