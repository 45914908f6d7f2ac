// Package server exposes the relay's HTTP API: envelope ingest, the
// connectivity test, operator settings, and the diagnostic log.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/groblegark/pixelrelay/internal/capi"
	"github.com/groblegark/pixelrelay/internal/store"
	"github.com/groblegark/pixelrelay/internal/track"
)

// RelayServer handles the relay's HTTP API.
type RelayServer struct {
	tracker *track.Tracker
	client  *capi.Client
	store   store.Store
	siteURL string
	logger  *slog.Logger
}

// NewRelayServer creates the API server. client is used synchronously only
// for the connectivity test; normal deliveries go through the tracker's
// dispatcher.
func NewRelayServer(tracker *track.Tracker, client *capi.Client, st store.Store, siteURL string, logger *slog.Logger) *RelayServer {
	return &RelayServer{
		tracker: tracker,
		client:  client,
		store:   st,
		siteURL: siteURL,
		logger:  logger,
	}
}

// NewHTTPHandler returns an http.Handler with all routes registered. When
// authToken is non-empty, requests (except GET /v1/health) must include a
// valid Authorization: Bearer <token> header.
func (s *RelayServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/track", s.handleTrack)
	mux.HandleFunc("POST /v1/test", s.handleTestConnection)
	mux.HandleFunc("GET /v1/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /v1/settings", s.handlePutSettings)
	mux.HandleFunc("GET /v1/logs", s.handleListLogs)
	mux.HandleFunc("DELETE /v1/logs", s.handleCleanupLogs)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return AuthMiddleware(authToken, mux)
}

// handleHealth handles GET /v1/health.
func (s *RelayServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
